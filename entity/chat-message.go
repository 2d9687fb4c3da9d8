package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"

	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAdmin = "admin"
)

// ChatMessage is one journaled WhatsApp message, inbound or outbound.
type ChatMessage struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Platform  string             `json:"platform" bson:"platform"`
	UserID    string             `json:"user_id" bson:"user_id"`
	MessageID string             `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Direction string             `json:"direction" bson:"direction"` // "incoming" | "outgoing"
	Sender    string             `json:"sender" bson:"sender"`       // "user" | "bot" | "admin"
	Type      string             `json:"type" bson:"type"`
	Text      string             `json:"text" bson:"text"`
	Delivered bool               `json:"delivered" bson:"delivered"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
