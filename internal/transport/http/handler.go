package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"feedrelay/internal/domain"
	"feedrelay/internal/usecase"

	"github.com/google/uuid"
)

type sourceService interface {
	Sources() []usecase.SourceSettings
	ProcessSource(ctx context.Context, id string) (usecase.Report, error)
	Preview(ctx context.Context, id string, limit int) (*domain.Batch, error)
	ResetMarker(ctx context.Context, id, key string) error
}

type requestIDKey struct{}

// sourceView - представление источника в API. Прокси не раскрывается.
type sourceView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       domain.SourceKind `json:"kind"`
	URL        string            `json:"url"`
	Namespace  string            `json:"namespace"`
	BatchLimit int               `json:"batch_limit"`
	Proxied    bool              `json:"proxied"`
}

type runResponse struct {
	usecase.Report
	Error string `json:"error,omitempty"`
}

type Handler struct {
	log        *slog.Logger
	service    sourceService
	runTimeout time.Duration
}

// NewHandler создает хендлеры API. runTimeout ограничивает ручной запуск
// источника так же, как запуск по расписанию; ноль - без ограничения.
func NewHandler(log *slog.Logger, service sourceService, runTimeout time.Duration) *Handler {
	return &Handler{
		log:        log.With(slog.String("component", "http")),
		service:    service,
		runTimeout: runTimeout,
	}
}

// listSources - хендлер для эндпоинта GET /api/sources
func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	settings := h.service.Sources()
	out := make([]sourceView, 0, len(settings))
	for _, s := range settings {
		out = append(out, sourceView{
			ID:         s.ID,
			Name:       s.Name,
			Kind:       s.Kind,
			URL:        s.URL,
			Namespace:  s.Namespace,
			BatchLimit: s.BatchLimit,
			Proxied:    s.Proxy != "",
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

// runSource - хендлер для эндпоинта POST /api/sources/{id}/run.
// Ошибки доставки не скрывают отчет: он возвращается вместе с текстом ошибки.
// Запуск не прерывается при отключении клиента: маркеры к этому моменту уже записаны.
func (h *Handler) runSource(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/runSource"
	id := r.PathValue("id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
		slog.String("source", id),
	)
	ctx := context.WithoutCancel(r.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}
	report, err := h.service.ProcessSource(ctx, id)
	switch {
	case errors.Is(err, usecase.ErrUnknownSource):
		respondWithError(w, http.StatusNotFound, "Unknown source")
	case err != nil:
		log.Error("Manual run failed", slog.Any("error", err))
		respondWithJSON(w, http.StatusBadGateway, runResponse{Report: report, Error: err.Error()})
	default:
		respondWithJSON(w, http.StatusOK, runResponse{Report: report})
	}
}

// previewSource - хендлер для эндпоинта GET /api/sources/{id}/preview
func (h *Handler) previewSource(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/previewSource"
	id := r.PathValue("id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
		slog.String("source", id),
	)
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			log.Warn("invalid limit parameter", slog.String("limit", limitStr))
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
	}
	batch, err := h.service.Preview(r.Context(), id, limit)
	switch {
	case errors.Is(err, usecase.ErrUnknownSource):
		respondWithError(w, http.StatusNotFound, "Unknown source")
	case err != nil:
		log.Error("Preview failed", slog.Any("error", err))
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithJSON(w, http.StatusOK, batch)
	}
}

// deleteMarker - хендлер для эндпоинта DELETE /api/markers?source=&key=
func (h *Handler) deleteMarker(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/deleteMarker"
	source, key := r.URL.Query().Get("source"), r.URL.Query().Get("key")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
		slog.String("source", source),
	)
	if source == "" || key == "" {
		respondWithError(w, http.StatusBadRequest, "Both 'source' and 'key' are required")
		return
	}
	err := h.service.ResetMarker(r.Context(), source, key)
	switch {
	case errors.Is(err, usecase.ErrUnknownSource):
		respondWithError(w, http.StatusNotFound, "Unknown source")
	case errors.Is(err, usecase.ErrDedupDisabled):
		respondWithError(w, http.StatusConflict, "Deduplication is disabled")
	case err != nil:
		log.Error("Marker reset failed", slog.Any("error", err))
		respondWithError(w, http.StatusServiceUnavailable, "Marker store unavailable")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func withRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestIDKey{}, uuid.NewString())
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
