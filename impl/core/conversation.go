package core

import (
	"FrappeBot/bot/chat"
	"context"
	"fmt"
	"log/slog"
)

func (c *Core) GetConversation(ctx context.Context, phone string) (*chat.State, error) {
	if c.conversations == nil {
		return nil, fmt.Errorf("conversations not set")
	}
	phone = chat.NormalizePhone(phone)
	if !chat.IsValidPhone(phone) {
		return nil, fmt.Errorf("invalid phone number")
	}
	return c.conversations.Conversation(ctx, phone)
}

func (c *Core) ResetConversation(ctx context.Context, phone string) error {
	if c.conversations == nil {
		return fmt.Errorf("conversations not set")
	}
	phone = chat.NormalizePhone(phone)
	if !chat.IsValidPhone(phone) {
		return fmt.Errorf("invalid phone number")
	}

	c.log.With(
		slog.String("phone", phone),
	).Info("reset conversation")

	return c.conversations.Reset(ctx, phone)
}
