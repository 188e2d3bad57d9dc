package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/storetest"
)

func TestMemstore(t *testing.T) {
	storetest.Suite{
		Open: func(t *testing.T, s *dbschema.Schema) store.Client { return New(s) },
	}.Run(t)
}

func TestUniqueViolationMessage(t *testing.T) {
	s := New(storetest.BlogSchema(t))
	users, err := s.Model("User")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = users.Create(ctx, store.Data{"email": "a@example.com"})
	require.NoError(t, err)
	_, err = users.Create(ctx, store.Data{"email": "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unique constraint failed on the fields: (`email`)")
}

func TestReadsReturnCopies(t *testing.T) {
	s := New(storetest.BlogSchema(t))
	tags, err := s.Model("Tag")
	require.NoError(t, err)
	ctx := context.Background()

	created, err := tags.Create(ctx, store.Data{"id": "t1", "name": "go"})
	require.NoError(t, err)
	created["name"] = "changed"

	found, err := tags.FindUnique(ctx, map[string]any{"id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, "go", found["name"])
	assert.Equal(t, store.ProviderMemory, s.Provider().Name)
	assert.True(t, s.Provider().ConcurrentWrites)
}

func TestCanceledContext(t *testing.T) {
	s := New(storetest.BlogSchema(t))
	tags, err := s.Model("Tag")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tags.FindMany(ctx, store.FindArgs{})
	assert.ErrorIs(t, err, context.Canceled)
}
