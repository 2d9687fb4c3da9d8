package core

import (
	"FrappeBot/bot/chat"
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"errors"
	"log/slog"
)

var ErrNoRepository = errors.New("order log is not configured")

type Repository interface {
	CheckApiKey(key string) (string, error)

	AppendOrder(order *entity.Order) error
	ListOrders(query entity.OrderQuery) ([]entity.Order, error)
	UpdateOrderStatus(id, status string) (*entity.Order, error)

	SaveChatMessage(msg entity.ChatMessage) error
	GetChatMessages(platform, userID string, limit, offset int) ([]entity.ChatMessage, error)
}

// Conversations exposes the live conversation records.
type Conversations interface {
	Conversation(ctx context.Context, phone string) (*chat.State, error)
	Reset(ctx context.Context, phone string) error
}

// Hub fans events out to the dashboard websocket clients.
type Hub interface {
	BroadcastMessage(msg entity.ChatMessage)
	BroadcastOrder(eventType string, order *entity.Order)
}

type Publisher interface {
	Go(payload interface{})
}

type Core struct {
	repo          Repository
	conversations Conversations
	wsHub         Hub
	publisher     Publisher
	authKey       string
	log           *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetConversations(conv Conversations) {
	c.conversations = conv
}

func (c *Core) SetHub(hub Hub) {
	c.wsHub = hub
}

func (c *Core) SetPublisher(p Publisher) {
	c.publisher = p
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}
