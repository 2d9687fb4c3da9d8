package chat

import "FrappeBot/entity"

// MessageListener journals every message the bot sees or sends,
// so the repository and the live feed stay outside this package.
type MessageListener interface {
	SaveAndBroadcastChatMessage(msg entity.ChatMessage)
}
