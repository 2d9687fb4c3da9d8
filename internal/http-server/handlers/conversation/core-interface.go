package conversation

import (
	"FrappeBot/bot/chat"
	"context"
)

type Core interface {
	GetConversation(ctx context.Context, phone string) (*chat.State, error)
	ResetConversation(ctx context.Context, phone string) error
}
