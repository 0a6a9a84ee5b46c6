package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/async"
	"github.com/aretw0/weft/pkg/store"
	"github.com/aretw0/weft/pkg/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int `json:"count"`
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_HealthAndState(t *testing.T) {
	s := store.New(counter{Count: 3})
	srv := weftHTTP.NewServer(weftHTTP.WithObservable("counter", s))
	defer srv.Close()
	h := srv.Handler()

	w := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, h, "/state")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"counter":{"count":3}}`, w.Body.String())

	w = get(t, h, "/state/counter")
	assert.JSONEq(t, `{"count":3}`, w.Body.String())

	w = get(t, h, "/state/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Tasks(t *testing.T) {
	tasks := task.NewManager()
	srv := weftHTTP.NewServer(weftHTTP.WithTasks(tasks))
	defer srv.Close()
	h := srv.Handler()

	pending := task.Pin[int](tasks, async.NewDeferred[int]())

	w := get(t, h, "/tasks")
	assert.JSONEq(t, `{"inflight":1}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/cancel", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"canceled":1}`, w.Body.String())
	assert.True(t, pending.IsCanceled())

	assert.Eventually(t, func() bool { return tasks.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_TasksNotConfigured(t *testing.T) {
	srv := weftHTTP.NewServer()
	defer srv.Close()
	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/tasks").Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tasks := task.NewManager(task.WithMetrics(reg))
	srv := weftHTTP.NewServer(weftHTTP.WithTasks(tasks), weftHTTP.WithGatherer(reg))
	defer srv.Close()

	c := task.Pin[int](tasks, async.Resolved(1))
	<-c.Done()

	w := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weft_tasks_inflight")
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := weftHTTP.NewServer()
	defer srv.Close()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServer_SubscribeEvents(t *testing.T) {
	a := store.New(counter{})
	b := store.New(counter{})
	srv := weftHTTP.NewServer(weftHTTP.WithObservable("a", a), weftHTTP.WithObservable("b", b))
	defer srv.Close()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?watch=b", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readEvent(t, reader)
	assert.Equal(t, "ping", event)
	assert.Equal(t, "connected", data)

	a.Set(counter{Count: 1})
	b.Set(counter{Count: 2})

	event, data = readEvent(t, reader)
	assert.Equal(t, "change", event)
	var change struct {
		Name  string  `json:"name"`
		State counter `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &change))
	assert.Equal(t, "b", change.Name)
	assert.Equal(t, 2, change.State.Count)

	cancel()
	_, _ = io.Copy(io.Discard, resp.Body)
}

func TestStreamManager_CloseDisconnects(t *testing.T) {
	sm := weftHTTP.NewStreamManager(nil)
	ch, unsubscribe := sm.Subscribe()
	assert.Equal(t, 1, sm.Len())

	sm.Close()
	_, ok := <-ch
	assert.False(t, ok)
	unsubscribe()
	assert.Zero(t, sm.Len())
}

func TestListenAndServe_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- weftHTTP.ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(weftHTTP.ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
