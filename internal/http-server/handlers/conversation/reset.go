package conversation

import (
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

func Reset(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Missing phone parameter"))
			return
		}

		err := handler.ResetConversation(r.Context(), phone)
		if err != nil {
			log.With(sl.Module("http.handlers.conversation"), sl.Err(err)).Error("reset conversation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Reset failed: "+err.Error()))
			return
		}

		render.JSON(w, r, response.Ok("Conversation reset successfully"))
	}
}
