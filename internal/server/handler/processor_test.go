package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongdcdev/shade-trader/internal/scheduler"
)

type mockProcessor struct {
	running bool
	ticks   int
}

func (m *mockProcessor) Start() bool {
	if m.running {
		return false
	}
	m.running = true
	return true
}

func (m *mockProcessor) Stop() bool {
	if !m.running {
		return false
	}
	m.running = false
	return true
}

func (m *mockProcessor) Status() scheduler.Status {
	return scheduler.Status{
		Running:   m.running,
		Interval:  (30 * time.Second).String(),
		TickCount: uint64(m.ticks),
	}
}

func (m *mockProcessor) Tick(context.Context) {
	m.ticks++
}

func newProcessorMux(proc *mockProcessor) *http.ServeMux {
	h := NewProcessorHandler(proc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/processor/status", h.Status)
	mux.HandleFunc("POST /api/processor/start", h.Start)
	mux.HandleFunc("POST /api/processor/stop", h.Stop)
	mux.HandleFunc("POST /api/processor/tick", h.Tick)
	return mux
}

func TestProcessorLifecycleEndpoints(t *testing.T) {
	proc := &mockProcessor{}
	mux := newProcessorMux(proc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/processor/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var startResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &startResp))
	assert.Equal(t, true, startResp["started"])

	// Starting again is reported as a no-op.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/processor/start", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &startResp))
	assert.Equal(t, false, startResp["started"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/processor/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/processor/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, proc.running)
}

func TestProcessorTickEndpoint(t *testing.T) {
	proc := &mockProcessor{}
	mux := newProcessorMux(proc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/processor/tick", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, proc.ticks)
}
