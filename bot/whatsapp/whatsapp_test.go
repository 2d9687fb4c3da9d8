package whatsapp

import (
	"FrappeBot/bot/chat"
	"FrappeBot/entity"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type processorFunc func(ctx context.Context, msg chat.Message)

func (f processorFunc) Process(ctx context.Context, msg chat.Message) { f(ctx, msg) }

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"profile": {"name": "Ana"}, "wa_id": "5215551234567"}],
        "messages": [
          {"from": "5215551234567", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "hola"}},
          {"from": "5215551234567", "id": "wamid.2", "timestamp": "1700000001", "type": "sticker"}
        ]
      }
    }]
  }]
}`

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerification(t *testing.T) {
	b := NewWhatsAppBot(Options{VerifyToken: "secret-token"}, discard())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=42", nil)
	b.HandleWebhookVerification(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil)
	b.HandleWebhookVerification(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleWebhookProcessesSupportedMessages(t *testing.T) {
	b := NewWhatsAppBot(Options{AppSecret: "app-secret"}, discard())

	got := make(chan chat.Message, 2)
	b.SetProcessor(processorFunc(func(_ context.Context, msg chat.Message) { got <- msg }))

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", textPayload))
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case msg := <-got:
		assert.Equal(t, "5215551234567", msg.From)
		assert.Equal(t, chat.TypeText, msg.Type)
		assert.Equal(t, "hola", msg.Text)
		assert.Equal(t, "Ana", msg.ProfileName)
		assert.Equal(t, time.Unix(1700000000, 0), msg.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("message was not processed")
	}

	select {
	case msg := <-got:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWaitDrainsAcceptedPayloads(t *testing.T) {
	b := NewWhatsAppBot(Options{}, discard())

	release := make(chan struct{})
	var processed atomic.Int32
	b.SetProcessor(processorFunc(func(context.Context, chat.Message) {
		<-release
		processed.Add(1)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		b.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(textPayload)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before processing finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, int32(3), processed.Load())
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	b := NewWhatsAppBot(Options{AppSecret: "app-secret"}, discard())
	b.SetProcessor(processorFunc(func(context.Context, chat.Message) { t.Error("must not process") }))

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", sign("other", textPayload))
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func decodeMessage(t *testing.T, raw string) WebhookMessage {
	t.Helper()
	var m WebhookMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNormalize(t *testing.T) {
	msg, ok := normalize(decodeMessage(t, `{"from":"521","id":"w1","timestamp":"1","type":"interactive",
		"interactive":{"type":"button_reply","button_reply":{"id":"payment_cash","title":"Efectivo"}}}`), "")
	require.True(t, ok)
	assert.Equal(t, chat.TypeInteractive, msg.Type)
	assert.Equal(t, &chat.Reply{ID: "payment_cash", Title: "Efectivo"}, msg.Reply)

	msg, ok = normalize(decodeMessage(t, `{"from":"521","id":"w2","timestamp":"1","type":"interactive",
		"interactive":{"type":"list_reply","list_reply":{"id":"horario","title":"Horario"}}}`), "")
	require.True(t, ok)
	assert.Equal(t, "horario", msg.Reply.ID)

	msg, ok = normalize(decodeMessage(t, `{"from":"521","id":"w3","timestamp":"1","type":"button",
		"button":{"payload":"","text":"Ver menú"}}`), "")
	require.True(t, ok)
	assert.Equal(t, chat.TypeButton, msg.Type)
	assert.Equal(t, "Ver menú", msg.Reply.ID)

	msg, ok = normalize(decodeMessage(t, `{"from":"521","id":"w4","timestamp":"1","type":"image",
		"image":{"id":"media-9","mime_type":"image/jpeg","caption":"pago"}}`), "")
	require.True(t, ok)
	assert.Equal(t, &chat.Image{ID: "media-9", MimeType: "image/jpeg", Caption: "pago"}, msg.Image)

	msg, ok = normalize(decodeMessage(t, `{"from":"521","id":"w5","timestamp":"1","type":"location",
		"location":{"latitude":19.4326,"longitude":-99.1332,"name":"Casa"}}`), "")
	require.True(t, ok)
	require.NotNil(t, msg.Location)
	assert.Equal(t, "Casa", msg.Location.Name)
	assert.Equal(t, chat.MapURL(19.4326, -99.1332), msg.Location.MapURL)

	_, ok = normalize(decodeMessage(t, `{"from":"521","id":"w6","timestamp":"1","type":"text","text":{"body":"   "}}`), "")
	assert.False(t, ok)

	_, ok = normalize(decodeMessage(t, `{"from":"521","id":"w7","timestamp":"1","type":"audio"}`), "")
	assert.False(t, ok)
}

func graphServer(t *testing.T, status int) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var mu sync.Mutex
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/phone-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestSendRequests(t *testing.T) {
	srv, bodies := graphServer(t, http.StatusOK)
	b := NewWhatsAppBot(Options{APIURL: srv.URL, AccessToken: "token-1", PhoneNumberID: "phone-1"}, discard())
	ctx := context.Background()

	require.NoError(t, b.SendMessage(ctx, "521", "hola"))
	require.NoError(t, b.SendInteractive(ctx, "521", chat.Interactive{
		Body:    "¿Cómo vas a pagar?",
		Buttons: []chat.Button{{ID: "payment_cash", Title: "Efectivo con un título larguísimo"}},
	}))
	require.NoError(t, b.SendImage(ctx, "521", "media-1", "comprobante"))
	require.NoError(t, b.SendReaction(ctx, "521", "wamid.1", "✅"))

	require.Len(t, *bodies, 4)
	assert.Equal(t, "hola", (*bodies)[0]["text"].(map[string]interface{})["body"])

	interactive := (*bodies)[1]["interactive"].(map[string]interface{})
	buttons := interactive["action"].(map[string]interface{})["buttons"].([]interface{})
	title := buttons[0].(map[string]interface{})["reply"].(map[string]interface{})["title"].(string)
	assert.Len(t, []rune(title), maxButtonTitle)

	assert.Equal(t, "media-1", (*bodies)[2]["image"].(map[string]interface{})["id"])
	assert.Equal(t, "wamid.1", (*bodies)[3]["reaction"].(map[string]interface{})["message_id"])
}

func TestSendInteractiveTooManyButtons(t *testing.T) {
	b := NewWhatsAppBot(Options{}, discard())
	err := b.SendInteractive(context.Background(), "521", chat.Interactive{
		Body:    "x",
		Buttons: []chat.Button{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}},
	})
	assert.Error(t, err)
}

func TestSendAPIError(t *testing.T) {
	srv, _ := graphServer(t, http.StatusBadRequest)
	b := NewWhatsAppBot(Options{APIURL: srv.URL, AccessToken: "token-1", PhoneNumberID: "phone-1"}, discard())
	err := b.SendMessage(context.Background(), "521", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

type fakeSender struct {
	err error
}

func (f *fakeSender) SendMessage(context.Context, string, string) error { return f.err }
func (f *fakeSender) SendInteractive(context.Context, string, chat.Interactive) error {
	return f.err
}
func (f *fakeSender) SendImage(context.Context, string, string, string) error { return f.err }
func (f *fakeSender) SendReaction(context.Context, string, string, string) error {
	return f.err
}

type journal struct {
	messages []entity.ChatMessage
}

func (j *journal) SaveAndBroadcastChatMessage(msg entity.ChatMessage) {
	j.messages = append(j.messages, msg)
}

type events struct {
	payloads []interface{}
}

func (e *events) Go(payload interface{}) { e.payloads = append(e.payloads, payload) }

func TestGatewayRecordsEverySend(t *testing.T) {
	s := &fakeSender{}
	g := NewGateway(s, discard())
	j := &journal{}
	ev := &events{}
	g.SetMessageListener(j)
	g.SetPublisher(ev)
	ctx := context.Background()

	require.NoError(t, g.SendText(ctx, "521", "hola"))
	require.NoError(t, g.SendInteractive(ctx, "521", chat.Interactive{
		Body: "¿Requiere código?", Buttons: []chat.Button{{ID: "access_code_yes", Title: "Sí"}},
	}))

	s.err = errors.New("graph down")
	require.Error(t, g.SendImage(ctx, "521", "media-1", "pago"))
	assert.Error(t, g.SendReaction(ctx, "521", "wamid", "✅"))

	require.Len(t, j.messages, 3)
	assert.True(t, j.messages[0].Delivered)
	assert.Equal(t, entity.DirectionOutgoing, j.messages[0].Direction)
	assert.Equal(t, "¿Requiere código?\n[Sí]", j.messages[1].Text)
	assert.False(t, j.messages[2].Delivered)
	assert.Equal(t, "[imagen] pago", j.messages[2].Text)

	require.Len(t, ev.payloads, 3)
	failed := ev.payloads[2].(OutgoingEvent)
	assert.Equal(t, EventOutgoingMessage, failed.Type)
	assert.False(t, failed.Delivered)
	assert.Equal(t, "graph down", failed.Error)
}
