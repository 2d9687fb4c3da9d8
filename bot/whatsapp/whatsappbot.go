package whatsapp

import (
	"FrappeBot/bot/chat"
	"FrappeBot/internal/lib/sl"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const DefaultAPIURL = "https://graph.facebook.com/v21.0"

// MessageProcessor consumes normalized inbound messages.
type MessageProcessor interface {
	Process(ctx context.Context, msg chat.Message)
}

// WhatsAppBot handles WhatsApp messaging via the Graph API
type WhatsAppBot struct {
	log           *slog.Logger
	apiURL        string
	accessToken   string
	verifyToken   string
	appSecret     string
	phoneNumberID string
	client        *http.Client
	processor     MessageProcessor
	inflight      sync.WaitGroup
}

type Options struct {
	APIURL        string
	AccessToken   string
	VerifyToken   string
	AppSecret     string
	PhoneNumberID string
	Timeout       time.Duration
}

func NewWhatsAppBot(opts Options, log *slog.Logger) *WhatsAppBot {
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppBot{
		log:           log.With(sl.Module("whatsappbot")),
		apiURL:        apiURL,
		accessToken:   opts.AccessToken,
		verifyToken:   opts.VerifyToken,
		appSecret:     opts.AppSecret,
		phoneNumberID: opts.PhoneNumberID,
		client:        &http.Client{Timeout: timeout},
	}
}

func (b *WhatsAppBot) SetProcessor(p MessageProcessor) {
	b.processor = p
}

// HandleWebhookVerification handles the GET request for webhook verification
func (b *WhatsAppBot) HandleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && b.verifyToken != "" && token == b.verifyToken {
		b.log.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	b.log.Warn("webhook verification failed",
		slog.String("mode", mode),
		slog.Bool("token_match", token == b.verifyToken),
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleWebhook acknowledges the delivery at once and processes it in the background.
func (b *WhatsAppBot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.log.Error("failed to read request body", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if b.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !b.verifySignature(body, signature) {
			b.log.Warn("invalid webhook signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		b.log.Error("failed to parse webhook payload", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.processPayload(payload)
	}()
}

// Wait blocks until every accepted webhook payload has been processed.
// Call it after the HTTP server stopped accepting requests.
func (b *WhatsAppBot) Wait() {
	b.inflight.Wait()
}

func (b *WhatsAppBot) processPayload(payload WebhookPayload) {
	if b.processor == nil {
		b.log.Warn("no message processor configured")
		return
	}
	for _, msg := range b.messages(payload) {
		b.processor.Process(context.Background(), msg)
	}
}

// messages normalizes every supported message in the payload.
func (b *WhatsAppBot) messages(payload WebhookPayload) []chat.Message {
	if payload.Object != "whatsapp_business_account" {
		return nil
	}

	var out []chat.Message
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, message := range change.Value.Messages {
				msg, ok := normalize(message, names[message.From])
				if !ok {
					b.log.Debug("ignoring message",
						slog.String("from", message.From),
						slog.String("type", message.Type),
					)
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out
}

func (b *WhatsAppBot) SendMessage(ctx context.Context, recipientPhone, text string) error {
	req := outgoing{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "text",
		Text:             &outText{Body: text},
	}
	return b.send(ctx, req)
}

// SendInteractive sends reply buttons. WhatsApp allows three buttons with titles up to 20 characters.
func (b *WhatsAppBot) SendInteractive(ctx context.Context, recipientPhone string, payload chat.Interactive) error {
	if len(payload.Buttons) == 0 {
		return b.SendMessage(ctx, recipientPhone, payload.Body)
	}
	if len(payload.Buttons) > maxButtons {
		return fmt.Errorf("too many buttons: %d", len(payload.Buttons))
	}

	in := &outInteractive{Type: "button"}
	in.Body.Text = payload.Body
	if payload.Header != "" {
		in.Header = &outHeader{Type: "text", Text: payload.Header}
	}
	if payload.Footer != "" {
		in.Footer = &outFooter{Text: payload.Footer}
	}
	for _, btn := range payload.Buttons {
		var rb outReplyButton
		rb.Type = "reply"
		rb.Reply.ID = btn.ID
		rb.Reply.Title = truncate(btn.Title, maxButtonTitle)
		in.Action.Buttons = append(in.Action.Buttons, rb)
	}

	return b.send(ctx, outgoing{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "interactive",
		Interactive:      in,
	})
}

// SendImage re-sends previously uploaded media by id.
func (b *WhatsAppBot) SendImage(ctx context.Context, recipientPhone, mediaID, caption string) error {
	return b.send(ctx, outgoing{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "image",
		Image:            &outImage{ID: mediaID, Caption: caption},
	})
}

func (b *WhatsAppBot) SendReaction(ctx context.Context, recipientPhone, messageID, emoji string) error {
	return b.send(ctx, outgoing{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientPhone,
		Type:             "reaction",
		Reaction:         &outReaction{MessageID: messageID, Emoji: emoji},
	})
}

func (b *WhatsAppBot) send(ctx context.Context, reqBody outgoing) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", b.apiURL, b.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.accessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	b.log.Debug("message sent",
		slog.String("recipient_phone", reqBody.To),
		slog.String("type", reqBody.Type),
	)
	return nil
}

// verifySignature verifies the X-Hub-Signature-256 header
func (b *WhatsAppBot) verifySignature(body []byte, signature string) bool {
	// Signature format: "sha256=<hex_signature>"
	if len(signature) < 8 || signature[:7] != "sha256=" {
		return false
	}

	expectedSig := signature[7:]
	mac := hmac.New(sha256.New, []byte(b.appSecret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
