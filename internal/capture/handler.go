package capture

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/notepub/internal/models"
)

const ackBody = "ok"

// NewHandler returns a router that records every request, whatever its
// method or path, and always answers 200 "ok".
func NewHandler(rec *Recorder, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{rec: rec, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.HandleFunc("/*", h.capture)
	r.NotFound(h.capture)
	r.MethodNotAllowed(h.capture)
	return r
}

type handler struct {
	rec    *Recorder
	logger *slog.Logger
}

func (h *handler) capture(w http.ResponseWriter, r *http.Request) {
	// The whole body is read before anything is written.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("capture: body read failed", slog.String("error", err.Error()))
	}

	rec := models.CapturedRequest{
		Method:     r.Method,
		URL:        r.URL.String(),
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header.Clone(),
		Body:       string(body),
	}
	if name, err := h.rec.Record(rec); err != nil {
		h.logger.Error("capture: record write failed",
			slog.String("method", r.Method),
			slog.String("url", rec.URL),
			slog.String("error", err.Error()))
	} else {
		h.logger.Info("capture: record written",
			slog.String("method", r.Method),
			slog.String("url", rec.URL),
			slog.String("file", name),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ackBody))
}
