package chats

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/api/response"
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const platformWhatsApp = "whatsapp"

type Core interface {
	GetChatMessages(platform, userID string, limit, offset int) ([]entity.ChatMessage, error)
}

// GetMessages returns paginated message history for one customer.
func GetMessages(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		if userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("user_id is required"))
			return
		}

		limit := 50
		offset := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}
		if o := r.URL.Query().Get("offset"); o != "" {
			if v, err := strconv.Atoi(o); err == nil && v >= 0 {
				offset = v
			}
		}

		messages, err := handler.GetChatMessages(platformWhatsApp, userID, limit, offset)
		if err != nil {
			log.With(
				sl.Module("http.handlers.chats"),
				slog.String("user_id", userID),
				sl.Err(err),
			).Error("failed to get chat messages")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to get messages"))
			return
		}

		if messages == nil {
			messages = []entity.ChatMessage{}
		}

		render.JSON(w, r, response.Ok(messages))
	}
}
