//go:build integration

package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/storetest"
	"cms-graphql/internal/testutil/containers"
)

func TestPostgres(t *testing.T) {
	storetest.Suite{
		Open: func(t *testing.T, s *dbschema.Schema) store.Client {
			tdb := containers.NewPostgres(t)
			st := New(tdb.DB, sqlutil.PostgreSQL, s, nil)
			require.NoError(t, st.CreateTables(context.Background()))
			return st
		},
	}.Run(t)
}

func TestMySQL(t *testing.T) {
	storetest.Suite{
		Open: func(t *testing.T, s *dbschema.Schema) store.Client {
			tdb := containers.NewMySQL(t)
			st := New(tdb.DB, sqlutil.MySQL, s, nil)
			require.NoError(t, st.CreateTables(context.Background()))
			return st
		},
		CaseInsensitiveCollation: true,
	}.Run(t)
}
