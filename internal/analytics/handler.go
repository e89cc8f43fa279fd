package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics[?top=N]. top bounds each query list and
// must lie in [1, MaxTop].
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := DefaultTop
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxTop {
			requestID, _ := logger.RequestID(r.Context())
			h.write(w, http.StatusBadRequest, proto.ErrorResponse{
				Error:     fmt.Sprintf("top must be an integer between 1 and %d, got %q", MaxTop, v),
				Kind:      "invalid_input",
				RequestID: requestID,
			})
			return
		}
		top = n
	}
	h.write(w, http.StatusOK, h.aggregator.Snapshot(top))
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
