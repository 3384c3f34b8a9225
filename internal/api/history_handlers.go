package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/events"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	historyTimeout      = 3 * time.Second
)

// HistoryReader returns the recorded transitions of one record, oldest first.
type HistoryReader interface {
	History(ctx context.Context, recordID string, limit int) ([]events.Event, error)
}

// HistoryHandler serves GET /v1/archives/{record_id}/history.
type HistoryHandler struct {
	repo    HistoryReader
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the repository and logger.
func NewHistoryHandler(repo HistoryReader, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ServeHTTP returns {"transitions": [...]} on success, 400 for malformed ids
// or limits, 503 when no repository is configured, 504 when the repository
// times out and 500 otherwise.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	recordID, ok := parseRecordID(w, r)
	if !ok {
		return
	}
	limit, _, err := parseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	transitions, err := h.repo.History(ctx, recordID, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "history lookup timed out")
			return
		}
		h.logger.Error("load history failed", zap.String("record_id", recordID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if transitions == nil {
		transitions = []events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}
