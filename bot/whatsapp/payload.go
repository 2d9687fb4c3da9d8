package whatsapp

import (
	"FrappeBot/bot/chat"
	"FrappeBot/entity"
	"strconv"
	"strings"
	"time"
)

const (
	maxButtons     = 3
	maxButtonTitle = 20
)

// WebhookPayload represents the incoming webhook payload from WhatsApp
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []WebhookMessage `json:"messages"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
	Image *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
		Caption  string `json:"caption"`
	} `json:"image,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location,omitempty"`
}

// normalize maps a webhook message onto chat.Message; ok is false for types the bot ignores.
func normalize(m WebhookMessage, profileName string) (chat.Message, bool) {
	msg := chat.Message{
		From:        m.From,
		ID:          m.ID,
		ProfileName: profileName,
		Timestamp:   parseTimestamp(m.Timestamp),
	}

	switch m.Type {
	case "text":
		if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
			return msg, false
		}
		msg.Type = chat.TypeText
		msg.Text = m.Text.Body
	case "interactive":
		if m.Interactive == nil {
			return msg, false
		}
		msg.Type = chat.TypeInteractive
		switch {
		case m.Interactive.ButtonReply != nil:
			msg.Reply = &chat.Reply{ID: m.Interactive.ButtonReply.ID, Title: m.Interactive.ButtonReply.Title}
		case m.Interactive.ListReply != nil:
			msg.Reply = &chat.Reply{ID: m.Interactive.ListReply.ID, Title: m.Interactive.ListReply.Title}
		default:
			return msg, false
		}
	case "button":
		if m.Button == nil {
			return msg, false
		}
		msg.Type = chat.TypeButton
		id := m.Button.Payload
		if id == "" {
			id = m.Button.Text
		}
		msg.Reply = &chat.Reply{ID: id, Title: m.Button.Text}
	case "image":
		if m.Image == nil || m.Image.ID == "" {
			return msg, false
		}
		msg.Type = chat.TypeImage
		msg.Image = &chat.Image{ID: m.Image.ID, MimeType: m.Image.MimeType, Caption: m.Image.Caption}
	case "location":
		if m.Location == nil {
			return msg, false
		}
		msg.Type = chat.TypeLocation
		msg.Location = &entity.Location{
			Latitude:  m.Location.Latitude,
			Longitude: m.Location.Longitude,
			Name:      m.Location.Name,
			Address:   m.Location.Address,
			MapURL:    chat.MapURL(m.Location.Latitude, m.Location.Longitude),
		}
	default:
		return msg, false
	}
	return msg, true
}

func parseTimestamp(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(sec, 0)
}

// outgoing is the Graph API /messages request body.
type outgoing struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             *outText        `json:"text,omitempty"`
	Interactive      *outInteractive `json:"interactive,omitempty"`
	Image            *outImage       `json:"image,omitempty"`
	Reaction         *outReaction    `json:"reaction,omitempty"`
}

type outText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type outInteractive struct {
	Type   string     `json:"type"`
	Header *outHeader `json:"header,omitempty"`
	Body   struct {
		Text string `json:"text"`
	} `json:"body"`
	Footer *outFooter `json:"footer,omitempty"`
	Action struct {
		Buttons []outReplyButton `json:"buttons"`
	} `json:"action"`
}

type outHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outFooter struct {
	Text string `json:"text"`
}

type outReplyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type outImage struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type outReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}
