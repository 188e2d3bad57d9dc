//go:build integration

package serverapp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/config"
	"cms-graphql/internal/testutil/containers"
)

func exerciseBlog(t *testing.T, handler http.Handler) {
	t.Helper()

	created := postGraphQL(t, handler, `mutation {
		createUser(data: { name: "Ada", posts: { create: [{ title: "Engines" }, { title: "Notes" }] } }) { id name }
	}`, nil)
	require.Empty(t, created.Errors)

	listed := postGraphQL(t, handler, `{
		allPosts(where: { author: { name: { equals: "Ada" } } }, orderBy: [{ title: desc }]) { title author { name } }
		allUsersCount
	}`, nil)
	require.Empty(t, listed.Errors)
	assert.Equal(t, float64(1), listed.Data["allUsersCount"])
	assert.Equal(t, []any{
		map[string]any{"title": "Notes", "author": map[string]any{"name": "Ada"}},
		map[string]any{"title": "Engines", "author": map[string]any{"name": "Ada"}},
	}, listed.Data["allPosts"])
}

func TestIntegration_PostgresProvider(t *testing.T) {
	tdb := containers.NewPostgres(t)

	cfg := testConfig(writeLists(t, blogLists))
	cfg.Database = config.DatabaseConfig{
		Provider:                "postgresql",
		ConnectionString:        tdb.DSN,
		CreateTables:            true,
		Pool:                    config.PoolConfig{MaxOpen: 4, MaxIdle: 2, MaxLifetime: time.Minute},
		ConnectionTimeout:       30 * time.Second,
		ConnectionRetryInterval: 100 * time.Millisecond,
	}
	app := initApp(t, cfg)
	exerciseBlog(t, app.Handler())
}

func TestIntegration_MongoProvider(t *testing.T) {
	uri, database := containers.NewMongo(t)

	cfg := testConfig(writeLists(t, blogLists))
	cfg.Database = config.DatabaseConfig{
		Provider:                "mongodb",
		ConnectionString:        uri,
		Database:                database,
		CreateTables:            true,
		ConnectionTimeout:       30 * time.Second,
		ConnectionRetryInterval: 100 * time.Millisecond,
	}
	app := initApp(t, cfg)
	exerciseBlog(t, app.Handler())
}

func TestIntegration_GracefulShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := testConfig(writeLists(t, blogLists))
	cfg.Server.Port = port
	app, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))

	serverErrors, err := app.Start()
	require.NoError(t, err)

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))

	select {
	case err := <-serverErrors:
		assert.NoError(t, err)
	default:
	}

	_, err = http.Get(healthURL)
	assert.Error(t, err, "server should refuse connections after shutdown")
}
