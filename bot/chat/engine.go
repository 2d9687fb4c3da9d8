package chat

import (
	"FrappeBot/bot/order"
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"FrappeBot/internal/lib/validate"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	platformWhatsApp     = "whatsapp"
	EventIncomingMessage = "incoming_message"
)

// IncomingEvent is forwarded to the workflow system for every inbound message.
type IncomingEvent struct {
	From      string    `json:"from"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   Message   `json:"message"`
}

// Engine runs the ordering conversation for every WhatsApp user.
type Engine struct {
	storage   *Storage
	gateway   Gateway
	finalizer Finalizer
	settings  Settings
	assistant Assistant
	publisher Publisher
	listener  MessageListener
	commands  map[string]command
	locks     *keyLocks
	nowFunc   func() time.Time
	log       *slog.Logger
}

func NewEngine(storage *Storage, gateway Gateway, finalizer Finalizer, settings Settings, log *slog.Logger) *Engine {
	e := &Engine{
		storage:   storage,
		gateway:   gateway,
		finalizer: finalizer,
		settings:  settings,
		locks:     newKeyLocks(),
		nowFunc:   time.Now,
		log:       log.With(sl.Module("chat.engine")),
	}
	e.commands = e.commandTable()
	return e
}

func (e *Engine) SetAssistant(a Assistant) {
	e.assistant = a
}

func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

func (e *Engine) SetMessageListener(l MessageListener) {
	e.listener = l
}

// Process handles one inbound message. Messages from the same number are
// handled one at a time; any failure ends with an apology to the sender.
func (e *Engine) Process(ctx context.Context, msg Message) {
	log := e.log.With(
		slog.String("from", msg.From),
		slog.String("message_id", msg.ID),
		slog.String("type", string(msg.Type)),
	)
	if err := validate.Struct(&msg); err != nil {
		log.With(sl.Err(err)).Warn("invalid inbound message")
		return
	}

	unlock := e.locks.Lock(msg.From)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			log.With(slog.Any("panic", r)).Error("message handler panic")
			e.apologize(ctx, log, msg.From)
		}
	}()

	e.record(msg)

	if err := e.handleMessage(ctx, log, msg); err != nil {
		log.With(sl.Err(err)).Error("handle message")
		e.apologize(ctx, log, msg.From)
	}
}

func (e *Engine) handleMessage(ctx context.Context, log *slog.Logger, msg Message) error {
	state, err := e.storage.Load(ctx, msg.From)
	if err != nil {
		log.With(sl.Err(err)).Error("load state, continuing with a fresh conversation")
	}
	if state == nil {
		state = NewState(msg.From)
	}
	if state.Step == "" {
		state.Step = StepInitial
	}
	if !state.Step.Valid() {
		log.With(slog.String("step", string(state.Step))).Warn("unknown step, treating as initial")
		state.Step = StepInitial
	}

	state.LastMessageID = msg.ID
	if state.Active() {
		e.save(ctx, log, state)
	}

	switch msg.Type {
	case TypeText:
		return e.handleText(ctx, log, state, msg)
	case TypeInteractive, TypeButton:
		return e.handleReply(ctx, log, state, msg)
	case TypeImage:
		return e.handleImage(ctx, log, state, msg)
	case TypeLocation:
		return e.handleLocation(ctx, log, state, msg)
	}
	return fmt.Errorf("unsupported message type %q", msg.Type)
}

func (e *Engine) handleText(ctx context.Context, log *slog.Logger, state *State, msg Message) error {
	text := strings.TrimSpace(msg.Text)

	if e.isAdmin(msg.From) && e.handleAdminCommand(ctx, log, state, text) {
		return nil
	}

	if state.Bridged() {
		if isEndChat(text) {
			e.endBridge(ctx, log, state)
			return nil
		}
		e.relay(ctx, log, state, msg)
		return nil
	}

	if w := words(text); len(w) > 0 && w[0] == "cancelar" {
		e.cancel(ctx, log, state)
		return nil
	}

	switch state.Step {
	case StepInitial:
		if order.HasCompletionMarker(text) {
			e.startOrder(ctx, log, state, text)
			return nil
		}
	case StepAwaitingAddress:
		e.onAddress(ctx, log, state, text)
		return nil
	case StepAwaitingLocation:
		if isNo(text) || hasWord(text, "omitir", "saltar") {
			e.transition(ctx, log, state, StepAwaitingAccessCode)
			return nil
		}
		e.reprompt(ctx, log, state)
		return nil
	case StepAwaitingAccessCode:
		switch {
		case isYes(text):
			e.onAccessCode(ctx, log, state, order.AccessCodeYes)
		case isNo(text):
			e.onAccessCode(ctx, log, state, order.AccessCodeNo)
		default:
			e.reprompt(ctx, log, state)
		}
		return nil
	case StepAwaitingPaymentMethod:
		if method, ok := parsePaymentMethod(text); ok {
			e.onPaymentMethod(ctx, log, state, method)
			return nil
		}
		e.reprompt(ctx, log, state)
		return nil
	case StepAwaitingCashDenomination:
		return e.onCashDenomination(ctx, log, state, text)
	case StepAwaitingPaymentProof:
		e.sendText(ctx, log, state.Phone, textAwaitingProof)
		return nil
	}

	if e.handleCommand(ctx, log, state, msg, text) {
		return nil
	}
	return e.fallback(ctx, log, state, text)
}

func (e *Engine) handleReply(ctx context.Context, log *slog.Logger, state *State, msg Message) error {
	if msg.Reply == nil || msg.Reply.ID == "" {
		e.sendText(ctx, log, state.Phone, textGeneralAck)
		return nil
	}
	if state.Bridged() {
		e.relay(ctx, log, state, msg)
		return nil
	}
	if e.handleGlobalButton(ctx, log, state, msg, msg.Reply.ID) {
		return nil
	}

	id := msg.Reply.ID
	switch state.Step {
	case StepAwaitingLocation:
		if id == ButtonLocationSkip {
			e.transition(ctx, log, state, StepAwaitingAccessCode)
			return nil
		}
	case StepAwaitingAccessCode:
		switch id {
		case ButtonAccessCodeYes:
			e.onAccessCode(ctx, log, state, order.AccessCodeYes)
			return nil
		case ButtonAccessCodeNo:
			e.onAccessCode(ctx, log, state, order.AccessCodeNo)
			return nil
		}
	case StepAwaitingPaymentMethod:
		switch id {
		case ButtonPaymentCash:
			e.onPaymentMethod(ctx, log, state, order.PaymentCash)
			return nil
		case ButtonPaymentTransfer:
			e.onPaymentMethod(ctx, log, state, order.PaymentTransfer)
			return nil
		}
	}

	if state.Active() {
		log.With(slog.String("button", id), slog.String("step", string(state.Step))).Debug("button out of step")
		e.reprompt(ctx, log, state)
		return nil
	}
	e.sendInteractive(ctx, log, state.Phone, e.settings.welcome())
	return nil
}

func (e *Engine) handleImage(ctx context.Context, log *slog.Logger, state *State, msg Message) error {
	if state.Bridged() {
		e.relay(ctx, log, state, msg)
		return nil
	}
	if state.Step == StepAwaitingPaymentProof {
		if msg.Image == nil || msg.Image.ID == "" {
			e.sendText(ctx, log, state.Phone, textAwaitingProof)
			return nil
		}
		return e.onProofImage(ctx, log, state, msg.Image.ID)
	}
	e.sendText(ctx, log, state.Phone, textImageAck)
	return nil
}

func (e *Engine) handleLocation(ctx context.Context, log *slog.Logger, state *State, msg Message) error {
	if msg.Location == nil {
		e.sendText(ctx, log, state.Phone, textLocationAck)
		return nil
	}
	loc := *msg.Location
	if loc.MapURL == "" {
		loc.MapURL = MapURL(loc.Latitude, loc.Longitude)
	}
	msg.Location = &loc

	if state.Bridged() {
		e.relay(ctx, log, state, msg)
		return nil
	}

	switch state.Step {
	case StepAwaitingLocation:
		state.Location = &loc
		e.transition(ctx, log, state, StepAwaitingAccessCode)
	case StepAwaitingAddress:
		state.Location = &loc
		state.Address = addressFromLocation(&loc)
		e.transition(ctx, log, state, StepAwaitingAccessCode)
	default:
		e.sendText(ctx, log, state.Phone, textLocationAck)
	}
	return nil
}

// record journals the inbound message and forwards it to the workflow system.
func (e *Engine) record(msg Message) {
	sender := entity.SenderUser
	if e.isAdmin(msg.From) {
		sender = entity.SenderAdmin
	}
	if e.listener != nil {
		e.listener.SaveAndBroadcastChatMessage(entity.ChatMessage{
			Platform:  platformWhatsApp,
			UserID:    msg.From,
			MessageID: msg.ID,
			Direction: entity.DirectionIncoming,
			Sender:    sender,
			Type:      string(msg.Type),
			Text:      msg.Summary(),
			Delivered: true,
			CreatedAt: e.nowFunc(),
		})
	}
	if e.publisher != nil {
		e.publisher.Go(IncomingEvent{
			From:      msg.From,
			Type:      EventIncomingMessage,
			Timestamp: e.nowFunc(),
			Message:   msg,
		})
	}
}

func (e *Engine) save(ctx context.Context, log *slog.Logger, state *State) {
	if err := e.storage.Save(ctx, state); err != nil {
		log.With(sl.Err(err), slog.String("phone", state.Phone)).Error("save state")
	}
}

func (e *Engine) drop(ctx context.Context, log *slog.Logger, phone string) {
	if err := e.storage.Delete(ctx, phone); err != nil {
		log.With(sl.Err(err), slog.String("phone", phone)).Error("delete state")
	}
}

func (e *Engine) sendText(ctx context.Context, log *slog.Logger, to, body string) {
	if err := e.gateway.SendText(ctx, to, body); err != nil {
		log.With(sl.Err(err), slog.String("to", to)).Warn("send text")
	}
}

func (e *Engine) sendInteractive(ctx context.Context, log *slog.Logger, to string, payload Interactive) {
	if err := e.gateway.SendInteractive(ctx, to, payload); err != nil {
		log.With(sl.Err(err), slog.String("to", to)).Warn("send interactive")
	}
}

func (e *Engine) apologize(ctx context.Context, log *slog.Logger, to string) {
	if err := e.gateway.SendText(ctx, to, textApology); err != nil {
		log.With(sl.Err(err)).Error("send apology")
	}
}

func (e *Engine) notifyAdmins(ctx context.Context, log *slog.Logger, text string) {
	for _, admin := range e.settings.Admins {
		e.sendText(ctx, log, admin, text)
	}
}

func (e *Engine) isAdmin(phone string) bool {
	phone = NormalizePhone(phone)
	for _, admin := range e.settings.Admins {
		if NormalizePhone(admin) == phone {
			return true
		}
	}
	return false
}

// Conversation returns the stored state for phone, nil when there is none.
func (e *Engine) Conversation(ctx context.Context, phone string) (*State, error) {
	return e.storage.Load(ctx, phone)
}

// Reset drops the conversation for phone once any message in flight for it
// has been handled. A bridged counterpart is released as well.
func (e *Engine) Reset(ctx context.Context, phone string) error {
	unlock := e.locks.Lock(phone)
	defer unlock()

	state, err := e.storage.Load(ctx, phone)
	if err != nil {
		return err
	}
	if state != nil {
		if other := state.Counterpart(); other != "" {
			if err = e.storage.Delete(ctx, other); err != nil {
				return err
			}
		}
	}
	if err = e.storage.Delete(ctx, phone); err != nil {
		return err
	}
	e.log.With(slog.String("phone", phone)).Info("conversation reset")
	return nil
}
