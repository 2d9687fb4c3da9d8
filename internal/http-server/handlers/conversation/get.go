package conversation

import (
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Get returns the live conversation record; data is null when there is none.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Missing phone parameter"))
			return
		}

		state, err := handler.GetConversation(r.Context(), phone)
		if err != nil {
			log.With(sl.Module("http.handlers.conversation"), sl.Err(err)).Error("get conversation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to get conversation"))
			return
		}

		render.JSON(w, r, response.Ok(state))
	}
}
