package chat

import (
	"FrappeBot/entity"
	"time"
)

type MessageType string

const (
	TypeText        MessageType = "text"
	TypeInteractive MessageType = "interactive"
	TypeButton      MessageType = "button"
	TypeImage       MessageType = "image"
	TypeLocation    MessageType = "location"
)

// Message is an inbound WhatsApp message normalized by the webhook.
type Message struct {
	From        string           `json:"from" validate:"required,numeric"`
	ID          string           `json:"id" validate:"required"`
	Type        MessageType      `json:"type" validate:"required,oneof=text interactive image location button"`
	ProfileName string           `json:"profileName,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Text        string           `json:"text,omitempty"`
	Reply       *Reply           `json:"reply,omitempty"`
	Image       *Image           `json:"image,omitempty"`
	Location    *entity.Location `json:"location,omitempty"`
}

// Reply is a pressed reply button, list row or template quick reply.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Image struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Interactive is an outbound text with up to three reply buttons.
type Interactive struct {
	Header  string   `json:"header,omitempty"`
	Body    string   `json:"body"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Summary is the text form of a message used by the journal and the bridge.
func (m *Message) Summary() string {
	switch m.Type {
	case TypeText:
		return m.Text
	case TypeInteractive, TypeButton:
		if m.Reply != nil {
			return m.Reply.Title
		}
	case TypeImage:
		if m.Image != nil && m.Image.Caption != "" {
			return "[imagen] " + m.Image.Caption
		}
		return "[imagen]"
	case TypeLocation:
		if m.Location != nil {
			return "[ubicación] " + m.Location.MapURL
		}
	}
	return ""
}
