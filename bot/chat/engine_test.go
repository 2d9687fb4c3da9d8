package chat

import (
	"FrappeBot/bot/order"
	"FrappeBot/entity"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	customer = "5215551234567"
	admin    = "5215550000001"
	admin2   = "5215550000002"

	menuOrder = "¡Hola! Quiero hacer este pedido:\n\n1x Frappé - $45.00\n2x Bubble Tea - $90.00\n\nTotal del pedido: $173.00\nGracias"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    map[string]time.Duration
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl[key] = ttl
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.ttl, key)
	return nil
}

type outbound struct {
	to      string
	body    string
	mediaID string
	payload Interactive
}

type fakeGateway struct {
	mu           sync.Mutex
	texts        []outbound
	interactives []outbound
	images       []outbound
	reactions    []outbound
}

func (g *fakeGateway) SendText(_ context.Context, to, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts = append(g.texts, outbound{to: to, body: body})
	return nil
}

func (g *fakeGateway) SendInteractive(_ context.Context, to string, payload Interactive) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.interactives = append(g.interactives, outbound{to: to, body: payload.Body, payload: payload})
	return nil
}

func (g *fakeGateway) SendImage(_ context.Context, to, mediaID, caption string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = append(g.images, outbound{to: to, body: caption, mediaID: mediaID})
	return nil
}

func (g *fakeGateway) SendReaction(_ context.Context, to, messageID, emoji string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reactions = append(g.reactions, outbound{to: to, body: emoji, mediaID: messageID})
	return nil
}

func (g *fakeGateway) lastText() string {
	if len(g.texts) == 0 {
		return ""
	}
	return g.texts[len(g.texts)-1].body
}

func (g *fakeGateway) textsTo(to string) []string {
	var out []string
	for _, t := range g.texts {
		if t.to == to {
			out = append(out, t.body)
		}
	}
	return out
}

type fakeNotifier struct {
	events []interface{}
}

func (n *fakeNotifier) Notify(_ context.Context, payload interface{}) error {
	n.events = append(n.events, payload)
	return nil
}

type fakeOrderLog struct {
	orders []*entity.Order
}

func (l *fakeOrderLog) AppendOrder(_ context.Context, o *entity.Order) error {
	l.orders = append(l.orders, o)
	return nil
}

type fakePublisher struct {
	events []interface{}
}

func (p *fakePublisher) Go(payload interface{}) {
	p.events = append(p.events, payload)
}

type panickyFinalizer struct{}

func (panickyFinalizer) Finalize(context.Context, order.Completion) (*entity.Order, error) {
	panic("boom")
}

type fakeAssistant struct {
	reply string
	err   error
}

func (a *fakeAssistant) Reply(context.Context, string, string) (string, error) {
	return a.reply, a.err
}

type harness struct {
	kv       *memKV
	storage  *Storage
	gateway  *fakeGateway
	notifier *fakeNotifier
	orders   *fakeOrderLog
	engine   *Engine
	seq      int
}

func newHarness(t *testing.T, requestLocation bool) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		kv:       newMemKV(),
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		orders:   &fakeOrderLog{},
	}
	h.storage = NewStorage(h.kv)
	settings := Settings{
		Name:            "Frappé Bar",
		MenuURL:         "https://menu.example.com",
		Hours:           "12:00 a 21:00",
		BankDetails:     "CLABE 012345678901234567",
		RequestLocation: requestLocation,
		Admins:          []string{admin, admin2},
	}
	finalizer := order.NewFinalizer(h.orders, h.notifier, h.gateway, h.storage, settings.Admins, log)
	h.engine = NewEngine(h.storage, h.gateway, finalizer, settings, log)
	return h
}

func (h *harness) nextID() string {
	h.seq++
	return "wamid." + strconv.Itoa(h.seq)
}

func (h *harness) text(from, body string) {
	h.engine.Process(context.Background(), Message{From: from, ID: h.nextID(), Type: TypeText, Text: body})
}

func (h *harness) reply(from, id string) {
	h.engine.Process(context.Background(), Message{From: from, ID: h.nextID(), Type: TypeInteractive, Reply: &Reply{ID: id, Title: id}})
}

func (h *harness) image(from, mediaID string) {
	h.engine.Process(context.Background(), Message{From: from, ID: h.nextID(), Type: TypeImage, Image: &Image{ID: mediaID, MimeType: "image/jpeg"}})
}

func (h *harness) location(from string, loc entity.Location) {
	h.engine.Process(context.Background(), Message{From: from, ID: h.nextID(), Type: TypeLocation, Location: &loc})
}

func (h *harness) state(t *testing.T, phone string) *State {
	t.Helper()
	st, err := h.storage.Load(context.Background(), phone)
	require.NoError(t, err)
	return st
}

func (h *harness) step(t *testing.T, phone string) Step {
	t.Helper()
	st := h.state(t, phone)
	if st == nil {
		return ""
	}
	return st.Step
}

func TestCashHappyPath(t *testing.T) {
	h := newHarness(t, true)

	h.text(customer, menuOrder)
	require.Equal(t, StepAwaitingAddress, h.step(t, customer))
	st := h.state(t, customer)
	assert.Equal(t, 173.0, st.Total)
	assert.Equal(t, "1x Frappé - $45.00\n2x Bubble Tea - $90.00", st.Summary)
	assert.Equal(t, StateTTL, h.kv.ttl[customer])

	h.text(customer, "Av. Reforma 100, depto 4, Juárez")
	require.Equal(t, StepAwaitingLocation, h.step(t, customer))

	h.reply(customer, ButtonLocationSkip)
	require.Equal(t, StepAwaitingAccessCode, h.step(t, customer))

	h.reply(customer, ButtonAccessCodeNo)
	require.Equal(t, StepAwaitingPaymentMethod, h.step(t, customer))

	h.reply(customer, ButtonPaymentCash)
	require.Equal(t, StepAwaitingCashDenomination, h.step(t, customer))

	h.text(customer, "200")
	assert.Nil(t, h.state(t, customer))

	require.Len(t, h.notifier.events, 1)
	event := h.notifier.events[0].(order.CompletedEvent)
	assert.Equal(t, order.PaymentCash, event.Payment.Method)
	assert.Equal(t, "200", event.Payment.CashDenomination)
	assert.Equal(t, "Av. Reforma 100, depto 4, Juárez", event.Delivery.Address)
	assert.False(t, event.Delivery.AccessCodeRequired)
	require.Len(t, h.orders.orders, 1)

	assert.Len(t, h.gateway.textsTo(admin), 1)
	assert.Len(t, h.gateway.textsTo(admin2), 1)
}

func TestTransferHappyPath(t *testing.T) {
	h := newHarness(t, false)

	h.text(customer, menuOrder)
	h.text(customer, "Calle Roble 22, Col. Centro")
	require.Equal(t, StepAwaitingAccessCode, h.step(t, customer))

	h.text(customer, "Sí")
	require.Equal(t, StepAwaitingPaymentMethod, h.step(t, customer))
	assert.Equal(t, order.AccessCodeYes, h.state(t, customer).AccessCodeInfo)

	h.reply(customer, ButtonPaymentTransfer)
	require.Equal(t, StepAwaitingPaymentProof, h.step(t, customer))
	customerTexts := h.gateway.textsTo(customer)
	assert.Contains(t, customerTexts[len(customerTexts)-1], "CLABE 012345678901234567")
	require.Len(t, h.gateway.textsTo(admin), 1)
	assert.Contains(t, h.gateway.textsTo(admin)[0], "COMPROBANTE")

	h.image(customer, "media-proof-1")
	assert.Nil(t, h.state(t, customer))

	require.Len(t, h.notifier.events, 1)
	event := h.notifier.events[0].(order.CompletedEvent)
	assert.Equal(t, order.PaymentTransfer, event.Payment.Method)
	assert.Equal(t, "media-proof-1", event.Payment.ProofImageID)
	assert.True(t, event.Delivery.AccessCodeRequired)

	require.Len(t, h.gateway.images, 2)
	assert.Equal(t, admin, h.gateway.images[0].to)
	assert.Equal(t, admin2, h.gateway.images[1].to)
	for _, img := range h.gateway.images {
		assert.Equal(t, "media-proof-1", img.mediaID)
	}
}

func TestOrderPastedAgainKeepsAwaitingAddress(t *testing.T) {
	h := newHarness(t, true)

	h.text(customer, menuOrder)
	h.text(customer, menuOrder)

	assert.Equal(t, StepAwaitingAddress, h.step(t, customer))
	assert.Empty(t, h.state(t, customer).Address)
	assert.Equal(t, textAskAddressAgain, h.gateway.lastText())
}

func TestCashDenominationValidation(t *testing.T) {
	h := newHarness(t, false)
	h.text(customer, menuOrder)
	h.text(customer, "Calle Roble 22, Col. Centro")
	h.reply(customer, ButtonAccessCodeNo)
	h.reply(customer, ButtonPaymentCash)

	for _, input := range []string{"abc", "-50", "0", "1e3", "+200"} {
		h.text(customer, input)
		assert.Equal(t, StepAwaitingCashDenomination, h.step(t, customer), input)
		assert.Equal(t, textAskCashAgain, h.gateway.lastText(), input)
	}
	assert.Empty(t, h.notifier.events)

	h.text(customer, "$500")
	assert.Nil(t, h.state(t, customer))
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "500", h.notifier.events[0].(order.CompletedEvent).Payment.CashDenomination)
}

func TestAdminBridgeOverridesOrderFlow(t *testing.T) {
	h := newHarness(t, true)

	h.text(customer, menuOrder)
	require.Equal(t, StepAwaitingAddress, h.step(t, customer))

	h.text(admin, "hablar con "+customer)
	st := h.state(t, customer)
	require.NotNil(t, st)
	assert.Equal(t, ModeWithAdmin, st.Mode)
	assert.Equal(t, admin, st.Admin)
	assert.Empty(t, st.OrderText)
	assert.Equal(t, ModeChatting, h.state(t, admin).Mode)

	h.text(customer, "Av. Reforma 100, depto 4")
	assert.Equal(t, "Av. Reforma 100, depto 4", h.gateway.lastText())
	assert.Equal(t, admin, h.gateway.texts[len(h.gateway.texts)-1].to)
	assert.Empty(t, h.state(t, customer).Address)

	h.text(admin, "Hola, ¿en qué te ayudo?")
	assert.Equal(t, customer, h.gateway.texts[len(h.gateway.texts)-1].to)
	assert.Equal(t, "Hola, ¿en qué te ayudo?", h.gateway.lastText())

	h.text(customer, "terminar chat")
	assert.Nil(t, h.state(t, customer))
	assert.Nil(t, h.state(t, admin))
}

func TestAdminResetAndStatus(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)

	h.text(admin, "estado "+customer)
	assert.Contains(t, h.gateway.lastText(), string(StepAwaitingAddress))

	h.text(admin, "reiniciar "+customer)
	assert.Nil(t, h.state(t, customer))

	h.text(admin, "reiniciar 123")
	assert.Contains(t, h.gateway.lastText(), "Número inválido")
}

func TestUnknownStepTreatedAsInitial(t *testing.T) {
	h := newHarness(t, true)
	h.kv.data[customer] = []byte(`{"phone":"` + customer + `","step":"awaiting_dessert"}`)

	h.text(customer, menuOrder)
	assert.Equal(t, StepAwaitingAddress, h.step(t, customer))
}

func TestStoreReadFailureStartsFresh(t *testing.T) {
	h := newHarness(t, true)
	h.kv.getErr = errors.New("redis down")

	h.text(customer, menuOrder)

	h.kv.getErr = nil
	assert.Equal(t, StepAwaitingAddress, h.step(t, customer))
	assert.Contains(t, h.gateway.lastText(), "Recibimos tu pedido")
}

func TestLastMessageIDRecordedBeforeBranching(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)

	h.engine.Process(context.Background(), Message{From: customer, ID: "wamid.latest", Type: TypeImage, Image: &Image{ID: "x"}})

	st := h.state(t, customer)
	assert.Equal(t, StepAwaitingAddress, st.Step)
	assert.Equal(t, "wamid.latest", st.LastMessageID)
	assert.Equal(t, textImageAck, h.gateway.lastText())
}

func TestGuardRedirectsToMissingAnswer(t *testing.T) {
	h := newHarness(t, true)
	broken := &State{
		Phone:         customer,
		Step:          StepAwaitingCashDenomination,
		OrderText:     menuOrder,
		Address:       "Calle Roble 22, Col. Centro",
		PaymentMethod: order.PaymentCash,
	}
	require.NoError(t, h.storage.Save(context.Background(), broken))

	h.text(customer, "200")

	assert.Equal(t, StepAwaitingAccessCode, h.step(t, customer))
	assert.Empty(t, h.notifier.events)
}

func TestPanicEndsWithApology(t *testing.T) {
	h := newHarness(t, false)
	h.engine.finalizer = panickyFinalizer{}

	h.text(customer, menuOrder)
	h.text(customer, "Calle Roble 22, Col. Centro")
	h.reply(customer, ButtonAccessCodeNo)
	h.reply(customer, ButtonPaymentCash)
	h.text(customer, "200")

	assert.Equal(t, textApology, h.gateway.lastText())
}

func TestGlobalButtonsWinOverStepButtons(t *testing.T) {
	h := newHarness(t, false)
	h.text(customer, menuOrder)
	h.text(customer, "Calle Roble 22, Col. Centro")
	h.reply(customer, ButtonAccessCodeNo)

	h.reply(customer, ButtonHours)
	assert.Contains(t, h.gateway.lastText(), "12:00 a 21:00")
	assert.Equal(t, StepAwaitingPaymentMethod, h.step(t, customer))
}

func TestLocationInsteadOfAddress(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)

	h.location(customer, entity.Location{Latitude: 19.4326, Longitude: -99.1332, Name: "Oficina", Address: "Zócalo 1"})

	st := h.state(t, customer)
	assert.Equal(t, StepAwaitingAccessCode, st.Step)
	assert.Equal(t, "Oficina, Zócalo 1", st.Address)
	require.NotNil(t, st.Location)
	assert.Equal(t, "https://www.google.com/maps?q=19.432600,-99.133200", st.Location.MapURL)
}

func TestCustomerCancel(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, "cancelar")
	assert.Equal(t, textNothingToCancel, h.gateway.lastText())

	h.text(customer, menuOrder)
	h.text(customer, "Cancelar")
	assert.Nil(t, h.state(t, customer))
	assert.Equal(t, textCancelled, h.gateway.lastText())
}

func TestFallbackUsesAssistant(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, "¿tienen opciones sin azúcar?")
	assert.Equal(t, textGeneralAck, h.gateway.lastText())

	h.engine.SetAssistant(&fakeAssistant{reply: "Sí, tenemos frappés sin azúcar."})
	h.text(customer, "¿tienen opciones sin azúcar?")
	assert.Equal(t, "Sí, tenemos frappés sin azúcar.", h.gateway.lastText())

	h.engine.SetAssistant(&fakeAssistant{err: errors.New("quota")})
	h.text(customer, "¿tienen opciones sin azúcar?")
	assert.Equal(t, textGeneralAck, h.gateway.lastText())
	assert.Nil(t, h.state(t, customer))
}

func TestKeywordCommands(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, "Hola!")
	require.Len(t, h.gateway.interactives, 1)
	assert.Len(t, h.gateway.interactives[0].payload.Buttons, 3)

	h.text(customer, "MENÚ")
	require.Len(t, h.gateway.interactives, 2)
	assert.Contains(t, h.gateway.interactives[1].body, "https://menu.example.com")
	assert.Empty(t, h.gateway.texts)

	h.reply(customer, ButtonMenu)
	assert.Contains(t, h.gateway.lastText(), "https://menu.example.com")
}

func TestBridgeRelaysAdminTextThatLooksLikeCommand(t *testing.T) {
	h := newHarness(t, true)
	h.text(admin, "hablar con "+customer)

	for _, body := range []string{"Estado de tu pedido: va en camino", "Reiniciar el pedido no hace falta", "hablar con cocina"} {
		h.text(admin, body)
		last := h.gateway.texts[len(h.gateway.texts)-1]
		assert.Equal(t, customer, last.to, body)
		assert.Equal(t, body, last.body, body)
	}
	assert.Empty(t, h.gateway.textsTo(admin2))
	assert.Equal(t, ModeWithAdmin, h.state(t, customer).Mode)
	assert.Equal(t, ModeChatting, h.state(t, admin).Mode)

	h.text(admin, "terminar chat")
	assert.Nil(t, h.state(t, customer))
	assert.Nil(t, h.state(t, admin))
}

func TestBridgeSwitchesToAnotherCustomer(t *testing.T) {
	const other = "5215559876543"
	h := newHarness(t, true)
	h.text(admin, "hablar con "+customer)
	h.text(admin, "hablar con "+other)

	assert.Nil(t, h.state(t, customer))
	assert.Equal(t, admin, h.state(t, other).Admin)
	assert.Equal(t, other, h.state(t, admin).TargetUser)
}

func TestShortAddressAccepted(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)

	h.text(customer, "Calle 5")

	st := h.state(t, customer)
	assert.Equal(t, StepAwaitingLocation, st.Step)
	assert.Equal(t, "Calle 5", st.Address)
}

func TestLocationSharedAfterAddress(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)
	h.text(customer, "Calle Roble 22, Col. Centro")
	require.Equal(t, StepAwaitingLocation, h.step(t, customer))

	h.location(customer, entity.Location{Latitude: 20.6597, Longitude: -103.3496})

	st := h.state(t, customer)
	assert.Equal(t, StepAwaitingAccessCode, st.Step)
	assert.Equal(t, "Calle Roble 22, Col. Centro", st.Address)
	require.NotNil(t, st.Location)
	assert.Equal(t, 20.6597, st.Location.Latitude)
	assert.Equal(t, -103.3496, st.Location.Longitude)
	assert.Equal(t, "https://www.google.com/maps?q=20.659700,-103.349600", st.Location.MapURL)
}

func TestPaymentMethodByText(t *testing.T) {
	const other = "5215559876543"
	h := newHarness(t, false)

	for _, phone := range []string{customer, other} {
		h.text(phone, menuOrder)
		h.text(phone, "Calle Roble 22, Col. Centro")
		h.text(phone, "no")
		require.Equal(t, StepAwaitingPaymentMethod, h.step(t, phone))
	}

	h.text(customer, "tarjeta")
	assert.Equal(t, StepAwaitingPaymentMethod, h.step(t, customer))

	h.text(customer, "Pago en efectivo")
	assert.Equal(t, StepAwaitingCashDenomination, h.step(t, customer))
	assert.Equal(t, order.PaymentCash, h.state(t, customer).PaymentMethod)

	h.text(other, "Transferencia")
	assert.Equal(t, StepAwaitingPaymentProof, h.step(t, other))
	assert.Equal(t, order.PaymentTransfer, h.state(t, other).PaymentMethod)
}

func TestIncomingMessagesArePublished(t *testing.T) {
	h := newHarness(t, true)
	pub := &fakePublisher{}
	h.engine.SetPublisher(pub)

	h.text(customer, "hola")
	require.Len(t, pub.events, 1)
	event := pub.events[0].(IncomingEvent)
	assert.Equal(t, EventIncomingMessage, event.Type)
	assert.Equal(t, customer, event.From)
}

func TestInvalidMessageIgnored(t *testing.T) {
	h := newHarness(t, true)
	h.engine.Process(context.Background(), Message{From: "not-a-number", ID: "x", Type: TypeText, Text: "hola"})
	h.engine.Process(context.Background(), Message{From: customer, ID: "y", Type: "sticker"})
	assert.Empty(t, h.gateway.texts)
	assert.Empty(t, h.gateway.interactives)
}

func TestConcurrentMessagesLeaveOneStep(t *testing.T) {
	h := newHarness(t, true)
	h.text(customer, menuOrder)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.Process(context.Background(), Message{From: customer, ID: "dup", Type: TypeText, Text: "Calle Roble 22, Col. Centro"})
		}()
	}
	wg.Wait()

	st := h.state(t, customer)
	assert.Equal(t, StepAwaitingLocation, st.Step)
	assert.Equal(t, "Calle Roble 22, Col. Centro", st.Address)
}

func TestResetReleasesBridge(t *testing.T) {
	h := newHarness(t, true)
	h.text(admin, "hablar con "+customer)
	require.NotNil(t, h.state(t, customer))

	require.NoError(t, h.engine.Reset(context.Background(), customer))
	assert.Nil(t, h.state(t, customer))
	assert.Nil(t, h.state(t, admin))

	st, err := h.engine.Conversation(context.Background(), customer)
	require.NoError(t, err)
	assert.Nil(t, st)
}
