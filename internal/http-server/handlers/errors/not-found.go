package errors

import (
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

func NotFound(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.With(
			sl.Module("http.handlers.errors"),
			slog.String("path", r.URL.Path),
		).Debug("route not found")

		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Requested resource not found"))
	}
}
