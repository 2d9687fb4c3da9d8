package errors

import (
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

func NotAllowed(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.With(
			sl.Module("http.handlers.errors"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		).Debug("method not allowed")

		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed"))
	}
}
