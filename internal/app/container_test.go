package app_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weft/internal/app"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/async"
	"github.com/aretw0/weft/pkg/task"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContainer(t *testing.T, cfg config.Config, opts ...app.Option) *app.Container {
	t.Helper()
	opts = append([]app.Option{app.WithLogger(logging.NewNop())}, opts...)
	c, err := app.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Dispose)
	require.NoError(t, c.Bootstrap(context.Background()))
	return c
}

func TestContainer_FileBackendSurvivesRestart(t *testing.T) {
	cfg := config.Default()
	cfg.Transient.Backend = config.BackendFile
	cfg.Transient.Dir = t.TempDir()
	ctx := context.Background()

	first := newContainer(t, cfg)
	id := first.Transient.CreateMessage("hello")
	require.NoError(t, first.Transient.Persist(ctx))
	first.Dispose()

	second := newContainer(t, cfg)
	v, ok := second.Transient.Message(id)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestContainer_RedisBackendWithEncryption(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Default()
	cfg.Transient.Backend = config.BackendRedis
	cfg.Encryption.Key = hex.EncodeToString([]byte(strings.Repeat("k", 32)))
	ctx := context.Background()

	c := newContainer(t, cfg, app.WithRedisClient(client))
	c.Transient.SetMessage("m", "secret-value")
	require.NoError(t, c.Transient.Persist(ctx))

	raw, err := mr.Get(cfg.Redis.Prefix + "data:" + cfg.Transient.Key)
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-value")

	restored := newContainer(t, cfg, app.WithRedisClient(client))
	v, ok := restored.Transient.Message("m")
	require.True(t, ok)
	assert.Equal(t, "secret-value", v)
}

func TestContainer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Encryption.Key = "not-hex"
	_, err := app.New(cfg, app.WithLogger(logging.NewNop()))
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Transient.Backend = "tape"
	_, err = app.New(cfg, app.WithLogger(logging.NewNop()))
	assert.Error(t, err)
}

func TestContainer_AutoPersist(t *testing.T) {
	cfg := config.Default()
	c := newContainer(t, cfg, app.WithAutoPersist())

	c.Transient.SetMessage("a", 1)
	assert.Eventually(t, func() bool {
		keys, err := c.Snapshots.List(context.Background())
		return err == nil && len(keys) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestContainer_ServerExposesQueriesAndTransient(t *testing.T) {
	cfg := config.Default()
	cfg.Query.Debounce = 0
	c := newContainer(t, cfg)

	q := app.NewQuery(c, "greeting", func(ctx context.Context, name string) (string, error) {
		return "hi " + name, nil
	})
	require.NoError(t, q.Fetch(context.Background(), "ana"))

	w := httptest.NewRecorder()
	c.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"greeting"`)
	assert.Contains(t, w.Body.String(), `"hi ana"`)
	assert.Contains(t, w.Body.String(), `"transient"`)
}

func TestContainer_MCPServerExposesTools(t *testing.T) {
	c := newContainer(t, config.Default())
	c.Transient.Create("note", "remember")

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_state","arguments":{"name":"transient"}}}`)
	resp := c.MCPServer().MCPServer().HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `remember`)
	assert.NotContains(t, string(out), `"isError":true`)

	raw = []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	out, err = json.Marshal(c.MCPServer().MCPServer().HandleMessage(context.Background(), raw))
	require.NoError(t, err)
	for _, tool := range []string{"cancel_tasks", "transient_set", "transient_remove"} {
		assert.Contains(t, string(out), `"`+tool+`"`)
	}
}

func TestContainer_DisposeCancelsTasks(t *testing.T) {
	c, err := app.New(config.Default(), app.WithLogger(logging.NewNop()))
	require.NoError(t, err)

	pending := task.Pin[int](c.Tasks, async.NewDeferred[int]())
	c.Dispose()

	assert.True(t, pending.IsCanceled())
	_, err = pending.Await(context.Background())
	assert.ErrorIs(t, err, async.ErrCanceled)
}
