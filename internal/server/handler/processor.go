package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongdcdev/shade-trader/internal/scheduler"
)

// Processor defines the control surface the processor handler needs from
// the order processor.
type Processor interface {
	Start() bool
	Stop() bool
	Status() scheduler.Status
	Tick(ctx context.Context)
}

// ProcessorHandler exposes start/stop/status control over the order
// processor loop.
type ProcessorHandler struct {
	proc   Processor
	logger *slog.Logger
}

// NewProcessorHandler creates a ProcessorHandler with the given processor
// and logger.
func NewProcessorHandler(proc Processor, logger *slog.Logger) *ProcessorHandler {
	return &ProcessorHandler{
		proc:   proc,
		logger: logger,
	}
}

// Status returns the processor's current state.
// GET /api/processor/status
func (h *ProcessorHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.proc.Status())
}

// Start launches the processor loop. Starting an already-running processor
// is a no-op reported as such.
// POST /api/processor/start
func (h *ProcessorHandler) Start(w http.ResponseWriter, r *http.Request) {
	started := h.proc.Start()
	if started {
		h.logger.InfoContext(r.Context(), "handler: processor started via API")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"started": started,
		"running": true,
	})
}

// Stop halts the processor loop.
// POST /api/processor/stop
func (h *ProcessorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	stopped := h.proc.Stop()
	if stopped {
		h.logger.InfoContext(r.Context(), "handler: processor stopped via API")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stopped": stopped,
		"running": false,
	})
}

// Tick runs one evaluation pass immediately, regardless of the loop state.
// POST /api/processor/tick
func (h *ProcessorHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.proc.Tick(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "tick complete"})
}
