package rest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridgate/gridgate/internal/directory"
	"github.com/gridgate/gridgate/internal/dispatch"
	"github.com/gridgate/gridgate/internal/jsoncodec"
	"github.com/gridgate/gridgate/internal/logging"
	"github.com/gridgate/gridgate/internal/metrics"
	"github.com/gridgate/gridgate/internal/store"
	"github.com/gridgate/gridgate/internal/stream"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	logger := logging.NewWatermillServiceLogger(watermill.NopLogger{})
	engine := stream.NewEngine(logger, metrics.New(), stream.Options{})
	t.Cleanup(func() { _ = engine.Close() })

	d := dispatch.New(store.New(), directory.New(), engine, metrics.New())
	srv := httptest.NewServer(NewServer(d, logger, opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		payload, err := jsoncodec.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, jsoncodec.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func TestGridItemRoundTrip(t *testing.T) {
	srv := newTestServer(t, Options{})

	// Create.
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/grid", map[string]any{
		"name": "tower", "description": "north-west corner", "x": 10, "y": 20,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "Successfully created grid item", env.Message)
	assert.Equal(t, float64(1), env.Data["id"])
	assert.Equal(t, "tower", env.Data["name"])

	// Get it back.
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/grid/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "Successfully retrieved grid item", env.Message)
	assert.Equal(t, float64(10), env.Data["x"])

	// Partial update leaves other fields alone.
	resp, env = doJSON(t, http.MethodPut, srv.URL+"/grid/1", map[string]any{"y": 99})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "tower", env.Data["name"])
	assert.Equal(t, float64(99), env.Data["y"])

	// Delete, then the item is gone.
	resp, env = doJSON(t, http.MethodDelete, srv.URL+"/grid/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "Successfully deleted grid item", env.Message)

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/grid/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "lookup misses keep a 200")
	assert.False(t, env.Success)
	assert.Equal(t, "Specified grid item not found", env.Message)
	assert.Nil(t, env.Data)
}

func TestListGridItems(t *testing.T) {
	srv := newTestServer(t, Options{})

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/grid", map[string]any{
			"name": fmt.Sprintf("item-%d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/grid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listEnv struct {
		Success bool             `json:"success"`
		Data    []store.GridItem `json:"data"`
		Message string           `json:"message"`
	}
	require.NoError(t, jsoncodec.Decode(resp.Body, &listEnv))
	assert.True(t, listEnv.Success)
	assert.Equal(t, "Successfully retrieved grid item list", listEnv.Message)
	require.Len(t, listEnv.Data, 3)
	assert.Equal(t, uint64(1), listEnv.Data[0].Id)
}

func TestUpdateMissReturns404(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/grid/77", map[string]any{"name": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Specified grid item not found", env.Message)
}

func TestDeleteMissKeeps200(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, env := doJSON(t, http.MethodDelete, srv.URL+"/grid/77", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Specified grid item not found", env.Message)
}

func TestGarbagePathID(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/grid/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/grid", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var h struct {
		Status    string `json:"status"`
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, jsoncodec.Decode(resp.Body, &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "Server is running normally", h.Message)
	assert.InDelta(t, time.Now().Unix(), h.Timestamp, 5)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/grid", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimiting(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitRPS: 1, RateLimitBurst: 2})

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Contains(t, statuses, http.StatusTooManyRequests)
}
