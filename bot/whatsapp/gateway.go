package whatsapp

import (
	"FrappeBot/bot/chat"
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"log/slog"
	"strings"
	"time"
)

const EventOutgoingMessage = "outgoing_message"

// OutgoingEvent is forwarded to the workflow system for every send attempt.
type OutgoingEvent struct {
	Recipient string          `json:"recipient"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Message   OutgoingMessage `json:"message"`
	Delivered bool            `json:"delivered"`
	Error     string          `json:"error,omitempty"`
}

type OutgoingMessage struct {
	Kind    string        `json:"kind"`
	Text    string        `json:"text,omitempty"`
	MediaID string        `json:"mediaId,omitempty"`
	Buttons []chat.Button `json:"buttons,omitempty"`
}

type sender interface {
	SendMessage(ctx context.Context, to, text string) error
	SendInteractive(ctx context.Context, to string, payload chat.Interactive) error
	SendImage(ctx context.Context, to, mediaID, caption string) error
	SendReaction(ctx context.Context, to, messageID, emoji string) error
}

// Gateway sends through the Graph API and records every attempt,
// delivered or not, in the chat journal and the workflow feed.
type Gateway struct {
	bot       sender
	listener  chat.MessageListener
	publisher chat.Publisher
	nowFunc   func() time.Time
	log       *slog.Logger
}

func NewGateway(bot sender, log *slog.Logger) *Gateway {
	return &Gateway{
		bot:     bot,
		nowFunc: time.Now,
		log:     log.With(sl.Module("whatsapp.gateway")),
	}
}

func (g *Gateway) SetMessageListener(l chat.MessageListener) {
	g.listener = l
}

func (g *Gateway) SetPublisher(p chat.Publisher) {
	g.publisher = p
}

func (g *Gateway) SendText(ctx context.Context, to, body string) error {
	err := g.bot.SendMessage(ctx, to, body)
	g.record(to, OutgoingMessage{Kind: "text", Text: body}, err)
	return err
}

func (g *Gateway) SendInteractive(ctx context.Context, to string, payload chat.Interactive) error {
	err := g.bot.SendInteractive(ctx, to, payload)
	g.record(to, OutgoingMessage{Kind: "interactive", Text: payload.Body, Buttons: payload.Buttons}, err)
	return err
}

func (g *Gateway) SendImage(ctx context.Context, to, mediaID, caption string) error {
	err := g.bot.SendImage(ctx, to, mediaID, caption)
	g.record(to, OutgoingMessage{Kind: "image", Text: caption, MediaID: mediaID}, err)
	return err
}

// SendReaction is not journaled; a reaction carries no content of its own.
func (g *Gateway) SendReaction(ctx context.Context, to, messageID, emoji string) error {
	return g.bot.SendReaction(ctx, to, messageID, emoji)
}

func (g *Gateway) record(to string, msg OutgoingMessage, sendErr error) {
	now := g.nowFunc()
	if sendErr != nil {
		g.log.With(
			slog.String("to", to),
			slog.String("kind", msg.Kind),
			sl.Err(sendErr),
		).Error("send whatsapp message")
	}

	if g.listener != nil {
		g.listener.SaveAndBroadcastChatMessage(entity.ChatMessage{
			Platform:  "whatsapp",
			UserID:    to,
			Direction: entity.DirectionOutgoing,
			Sender:    entity.SenderBot,
			Type:      msg.Kind,
			Text:      journalText(msg),
			Delivered: sendErr == nil,
			CreatedAt: now,
		})
	}

	if g.publisher != nil {
		event := OutgoingEvent{
			Recipient: to,
			Type:      EventOutgoingMessage,
			Timestamp: now,
			Message:   msg,
			Delivered: sendErr == nil,
		}
		if sendErr != nil {
			event.Error = sendErr.Error()
		}
		g.publisher.Go(event)
	}
}

func journalText(msg OutgoingMessage) string {
	switch msg.Kind {
	case "image":
		if msg.Text != "" {
			return "[imagen] " + msg.Text
		}
		return "[imagen]"
	case "interactive":
		titles := make([]string, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			titles = append(titles, "["+b.Title+"]")
		}
		if len(titles) == 0 {
			return msg.Text
		}
		return msg.Text + "\n" + strings.Join(titles, " ")
	}
	return msg.Text
}
