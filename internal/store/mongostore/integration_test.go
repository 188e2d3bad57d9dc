//go:build integration

package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/storetest"
	"cms-graphql/internal/testutil/containers"
)

func TestMongo(t *testing.T) {
	storetest.Suite{
		Open: func(t *testing.T, s *dbschema.Schema) store.Client {
			uri, database := containers.NewMongo(t)
			ctx := context.Background()
			st, err := Connect(ctx, uri, database, s, nil)
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = st.db.Drop(context.Background())
				_ = st.Close()
			})
			require.NoError(t, st.EnsureIndexes(ctx))
			return st
		},
	}.Run(t)
}
