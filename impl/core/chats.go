package core

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"log/slog"
)

// GetChatMessages returns paginated message history from MongoDB.
func (c *Core) GetChatMessages(platform, userID string, limit, offset int) ([]entity.ChatMessage, error) {
	if c.repo == nil {
		return nil, ErrNoRepository
	}
	return c.repo.GetChatMessages(platform, userID, limit, offset)
}

// SaveAndBroadcastChatMessage saves a chat message and broadcasts it via WebSocket.
func (c *Core) SaveAndBroadcastChatMessage(msg entity.ChatMessage) {
	if c.repo != nil {
		if err := c.repo.SaveChatMessage(msg); err != nil {
			c.log.With(
				slog.String("platform", msg.Platform),
				slog.String("user_id", msg.UserID),
				sl.Err(err),
			).Error("failed to save chat message")
		}
	}

	if c.wsHub != nil {
		c.wsHub.BroadcastMessage(msg)
	}
}
