package http

import (
	"log/slog"
	"net/http"

	"feedrelay/internal/config"
)

// NewServer создает роутер административного API.
// Добавляет middleware для логирования и ограничения частоты запросов.
func NewServer(log *slog.Logger, cfg config.ServerConfig, h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.healthCheck)
	mux.HandleFunc("GET /api/sources", h.listSources)
	mux.HandleFunc("POST /api/sources/{id}/run", h.runSource)
	mux.HandleFunc("GET /api/sources/{id}/preview", h.previewSource)
	mux.HandleFunc("DELETE /api/markers", h.deleteMarker)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(log, cfg.RateLimit, cfg.RateBurst)(handler)
	handler = loggingMiddleware(log)(handler)
	return handler
}
