package schemarefresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/listconfig"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postsYAML = `
lists:
  Post:
    fields:
      - key: title
        type: text
`

const postsAndTagsYAML = `
lists:
  Post:
    fields:
      - key: title
        type: text
      - key: tags
        type: relationship
        ref: Tag
        many: true
  Tag:
    fields:
      - key: name
        type: text
`

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func memOpener(_ context.Context, s *dbschema.Schema) (store.Client, error) {
	return memstore.New(s), nil
}

// fakeLists is a mutable definitions source.
type fakeLists struct {
	mu   sync.Mutex
	data string
	err  error
}

func (f *fakeLists) set(data string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

func (f *fakeLists) read() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.data), nil
}

func newTestManager(t *testing.T, src *fakeLists) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		ReadLists:   src.read,
		OpenStore:   memOpener,
		Logger:      testLogger(),
		MinInterval: 10 * time.Millisecond,
		MaxInterval: 40 * time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func postQuery(t *testing.T, h http.Handler, query string) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewManager_BuildsInitialSnapshot(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)

	snap := m.CurrentSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, []string{"Post"}, snap.Lists.Keys)
	assert.Equal(t, listconfig.Fingerprint([]byte(postsYAML)), snap.Fingerprint)
	assert.NotNil(t, snap.Store)
	assert.NotNil(t, snap.Resolver)
	assert.False(t, snap.BuiltAt.IsZero())

	out := postQuery(t, m, `mutation { createPost(data: { title: "hello" }) { title } }`)
	assert.Nil(t, out["errors"])
	out = postQuery(t, m, `{ allPosts { title } allPostsCount }`)
	data := out["data"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"title": "hello"}}, data["allPosts"])
	assert.Equal(t, float64(1), data["allPostsCount"])
}

func TestNewManager_Errors(t *testing.T) {
	_, err := NewManager(Config{OpenStore: memOpener})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a list definitions file")

	_, err = NewManager(Config{ListsPath: "lists.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a store opener")

	_, err = NewManager(Config{
		ListsPath: filepath.Join(t.TempDir(), "missing.yaml"),
		OpenStore: memOpener,
		Logger:    testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read list definitions")

	_, err = NewManager(Config{
		ReadLists: (&fakeLists{data: "lists:\n  Post:\n    fields:\n      - { key: body, type: document }\n"}).read,
		OpenStore: memOpener,
		Logger:    testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field type "document"`)

	_, err = NewManager(Config{
		ReadLists: (&fakeLists{data: postsYAML}).read,
		OpenStore: func(context.Context, *dbschema.Schema) (store.Client, error) {
			return nil, errors.New("connection refused")
		},
		Logger: testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open store: connection refused")
}

func TestNewManager_ReadsListsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(postsYAML), 0o600))

	m, err := NewManager(Config{ListsPath: path, OpenStore: memOpener, Logger: testLogger()})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(postsAndTagsYAML), 0o600))
	require.NoError(t, m.RefreshNow())
	assert.Equal(t, []string{"Post", "Tag"}, m.CurrentSnapshot().Lists.Keys)
}

func TestRefreshOnce_SkipsUnchangedDefinitions(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)
	before := m.CurrentSnapshot()

	interval := m.minInterval
	m.refreshOnce(context.Background(), &interval)
	assert.Same(t, before, m.CurrentSnapshot())
	assert.Equal(t, 15*time.Millisecond, interval)

	m.refreshOnce(context.Background(), &interval)
	m.refreshOnce(context.Background(), &interval)
	m.refreshOnce(context.Background(), &interval)
	assert.Equal(t, m.maxInterval, interval)
}

func TestRefreshOnce_RebuildsOnChange(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)
	before := m.CurrentSnapshot()

	src.set(postsAndTagsYAML, nil)
	interval := m.maxInterval
	m.refreshOnce(context.Background(), &interval)

	after := m.CurrentSnapshot()
	assert.NotSame(t, before, after)
	assert.Equal(t, []string{"Post", "Tag"}, after.Lists.Keys)
	assert.Equal(t, m.minInterval, interval)

	out := postQuery(t, m, `{ allTags { name } }`)
	assert.Nil(t, out["errors"])
}

func TestRefreshOnce_KeepsSnapshotOnFailure(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)
	before := m.CurrentSnapshot()

	src.set("lists:\n  Post:\n    fields:\n      - { key: body }\n", nil)
	interval := m.maxInterval
	m.refreshOnce(context.Background(), &interval)
	assert.Same(t, before, m.CurrentSnapshot())
	assert.Equal(t, m.minInterval, interval)

	src.set("", errors.New("disk gone"))
	interval = m.maxInterval
	m.refreshOnce(context.Background(), &interval)
	assert.Same(t, before, m.CurrentSnapshot())
	assert.Equal(t, m.minInterval, interval)
}

func TestRefreshNowContext_ReturnsBuildErrors(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)
	before := m.CurrentSnapshot()

	src.set("lists: {}", nil)
	err := m.RefreshNowContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lists declared")
	assert.Same(t, before, m.CurrentSnapshot())

	// A manual refresh rebuilds even when nothing changed.
	src.set(postsYAML, nil)
	require.NoError(t, m.RefreshNowContext(context.Background()))
	assert.NotSame(t, before, m.CurrentSnapshot())
	assert.Equal(t, before.Fingerprint, m.CurrentSnapshot().Fingerprint)
}

func TestStartPollsAndStops(t *testing.T) {
	src := &fakeLists{data: postsYAML}
	m := newTestManager(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	src.set(postsAndTagsYAML, nil)
	require.Eventually(t, func() bool {
		return len(m.CurrentSnapshot().Lists.Keys) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, m.Wait(waitCtx))
}

func TestStartDisabled(t *testing.T) {
	m, err := NewManager(Config{
		ReadLists:   (&fakeLists{data: postsYAML}).read,
		OpenStore:   memOpener,
		Logger:      testLogger(),
		MinInterval: -1,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	waitCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Wait(waitCtx))
}

func TestHandlerNotReady(t *testing.T) {
	m := &Manager{}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{}")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema not ready")
}

func TestNextInterval(t *testing.T) {
	minInterval := 30 * time.Second
	maxInterval := 5 * time.Minute

	assert.Equal(t, minInterval, nextInterval(0, minInterval, maxInterval))
	assert.Equal(t, 45*time.Second, nextInterval(minInterval, minInterval, maxInterval))
	assert.Equal(t, maxInterval, nextInterval(4*time.Minute, minInterval, maxInterval))
	assert.Equal(t, maxInterval, nextInterval(maxInterval, minInterval, maxInterval))
}

func TestBuildSchemaRequiresOpener(t *testing.T) {
	_, err := BuildSchema(context.Background(), BuildSchemaConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a store opener")
}
