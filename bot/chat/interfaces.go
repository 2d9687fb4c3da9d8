package chat

import (
	"FrappeBot/bot/order"
	"FrappeBot/entity"
	"context"
	"time"
)

// KV is the raw conversation store: JSON records keyed by phone number.
// Get returns nil, nil when the key does not exist.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Gateway sends messages to a WhatsApp user.
type Gateway interface {
	SendText(ctx context.Context, to, body string) error
	SendInteractive(ctx context.Context, to string, payload Interactive) error
	SendImage(ctx context.Context, to, mediaID, caption string) error
	SendReaction(ctx context.Context, to, messageID, emoji string) error
}

type Finalizer interface {
	Finalize(ctx context.Context, c order.Completion) (*entity.Order, error)
}

// Assistant answers free-form questions that match no command.
type Assistant interface {
	Reply(ctx context.Context, userID, text string) (string, error)
}

// Publisher hands an event to the workflow system without waiting for delivery.
type Publisher interface {
	Go(payload interface{})
}
