package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/index"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

// maxBodyBytes caps POST /api/v1/query bodies.
const maxBodyBytes = 1 << 20

// SourceStats reports per-source index statistics.
type SourceStats interface {
	Stats() map[string]index.Stats
}

type Handler struct {
	service *searcher.Service
	sources SourceStats
	logger  *slog.Logger
}

func New(service *searcher.Service, sources SourceStats) *Handler {
	return &Handler{
		service: service,
		sources: sources,
		logger:  slog.Default().With("component", "query-handler"),
	}
}

// Query serves GET /api/v1/query?q=&selector=&field=&skip=&limit= and
// POST /api/v1/query with a JSON QueryRequest body.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req proto.QueryRequest
	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		req.Query = params.Get("q")
		req.Selectors = params["selector"]
		req.Field = params.Get("field")
		var err error
		if req.Skip, err = intParam(params.Get("skip")); err != nil {
			h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "skip: %v", err))
			return
		}
		if req.Limit, err = intParam(params.Get("limit")); err != nil {
			h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit: %v", err))
			return
		}
	case http.MethodPost:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		h.writeJSON(w, http.StatusMethodNotAllowed, proto.ErrorResponse{Error: "method not allowed"})
		return
	}

	page, err := h.service.Query(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// Compile serves GET /api/v1/compile?q=.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	resp, err := h.service.Compile(r.Context(), proto.CompileRequest{Query: query})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sources.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.service.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := c.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"circuit":  c.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.service.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, proto.ErrorResponse{Error: "caching is disabled"})
		return
	}

	deleted, err := c.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	requestID, _ := logger.RequestID(r.Context())
	h.writeJSON(w, status, proto.ErrorResponse{
		Error:     err.Error(),
		Kind:      kind(err),
		RequestID: requestID,
	})
}

func kind(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrMalformedExpression):
		return "malformed_expression"
	case apperrors.Is(err, apperrors.ErrUnsupportedEscape):
		return "unsupported_escape"
	case apperrors.Is(err, apperrors.ErrAmbiguousSelector):
		return "ambiguous_selector"
	case apperrors.Is(err, apperrors.ErrUnknownSource):
		return "unknown_source"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
