package order

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	notifyTimeout = 5 * time.Second
	doneReaction  = "✅"
)

type OrderLog interface {
	AppendOrder(ctx context.Context, order *entity.Order) error
}

type Notifier interface {
	Notify(ctx context.Context, payload interface{}) error
}

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to, mediaID, caption string) error
	SendReaction(ctx context.Context, to, messageID, emoji string) error
}

type StateDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Completion is everything the conversation collected for one order.
type Completion struct {
	From             string
	OrderText        string
	Summary          string
	Total            float64
	Address          string
	Location         *entity.Location
	AccessCode       AccessCode
	Payment          PaymentMethod
	CashDenomination string
	ProofImageID     string
	LastMessageID    string
}

func (c *Completion) validate() error {
	if c.From == "" {
		return errors.New("missing customer number")
	}
	switch c.Payment {
	case PaymentCash:
		if c.CashDenomination == "" {
			return errors.New("cash order without denomination")
		}
	case PaymentTransfer:
		if c.ProofImageID == "" {
			return errors.New("transfer order without proof image")
		}
	default:
		return fmt.Errorf("unknown payment method %q", c.Payment)
	}
	return nil
}

// Finalizer turns a finished conversation into a logged order and closes the conversation.
type Finalizer struct {
	orders    OrderLog
	notifier  Notifier
	messenger Messenger
	states    StateDeleter
	admins    []string
	nowFunc   func() time.Time
	log       *slog.Logger
}

func NewFinalizer(orders OrderLog, notifier Notifier, messenger Messenger, states StateDeleter, admins []string, log *slog.Logger) *Finalizer {
	return &Finalizer{
		orders:    orders,
		notifier:  notifier,
		messenger: messenger,
		states:    states,
		admins:    admins,
		nowFunc:   time.Now,
		log:       log.With(sl.Module("order.finalizer")),
	}
}

// Finalize writes the order to the order log and the workflow system, alerts the admins
// and confirms to the customer. Sink failures are logged only; the conversation state
// is deleted in every case once the input is valid.
func (f *Finalizer) Finalize(ctx context.Context, c Completion) (*entity.Order, error) {
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("finalize order: %w", err)
	}
	log := f.log.With(
		slog.String("from", c.From),
		slog.String("payment", string(c.Payment)),
	)
	defer func() {
		if err := f.states.Delete(ctx, c.From); err != nil {
			log.With(sl.Err(err)).Error("delete conversation state")
		}
	}()

	event := newCompletedEvent(&c, f.nowFunc())
	order := event.toOrder(uuid.NewString())

	if f.orders != nil {
		if err := f.orders.AppendOrder(ctx, order); err != nil {
			log.With(sl.Err(err)).Error("append order log")
		}
	}

	if f.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := f.notifier.Notify(notifyCtx, event); err != nil {
			log.With(sl.Err(err)).Error("push order to workflow")
		}
		cancel()
	}

	f.alertAdmins(ctx, log, &c)
	f.confirmCustomer(ctx, log, &c)

	log.With(
		slog.String("order_id", order.ID),
		slog.Float64("total", order.Total),
	).Info("order completed")
	return order, nil
}

func (f *Finalizer) alertAdmins(ctx context.Context, log *slog.Logger, c *Completion) {
	notification := AdminNotification(c)
	for _, admin := range f.admins {
		var err error
		if c.Payment == PaymentTransfer {
			err = f.messenger.SendImage(ctx, admin, c.ProofImageID, notification)
		} else {
			err = f.messenger.SendText(ctx, admin, notification)
		}
		if err != nil {
			log.With(
				slog.String("admin", admin),
				sl.Err(err),
			).Warn("admin notification")
		}
	}
}

func (f *Finalizer) confirmCustomer(ctx context.Context, log *slog.Logger, c *Completion) {
	var text string
	if c.Payment == PaymentTransfer {
		text = "¡Gracias! Recibimos tu comprobante de pago. Tu pedido ya está en preparación y te avisaremos cuando vaya en camino. 🚀"
	} else {
		text = fmt.Sprintf("¡Gracias! Tu pedido está confirmado. Pagarás en efectivo con $%s; nuestro repartidor llevará tu cambio. 🚀", c.CashDenomination)
	}
	if err := f.messenger.SendText(ctx, c.From, text); err != nil {
		log.With(sl.Err(err)).Warn("customer confirmation")
	}
	if c.LastMessageID != "" {
		if err := f.messenger.SendReaction(ctx, c.From, c.LastMessageID, doneReaction); err != nil {
			log.With(sl.Err(err)).Debug("confirmation reaction")
		}
	}
}

// KV is an extra labelled line of the admin notification.
type KV struct {
	Key   string
	Value string
}

// AdminNotification is the text sent to the admins for a completed order.
func AdminNotification(c *Completion) string {
	title := "🛎️ NUEVO PEDIDO"
	var extra []KV
	switch c.Payment {
	case PaymentCash:
		title += " (Efectivo)"
		extra = append(extra, KV{"Paga con", "$" + c.CashDenomination})
		if change, ok := cashChange(c.CashDenomination, c.Total); ok {
			extra = append(extra, KV{"Cambio", FormatMoney(change)})
		}
	case PaymentTransfer:
		title += " (Transferencia)"
		extra = append(extra, KV{"Comprobante", "imagen adjunta"})
	}
	return BuildNotification(title, c, extra...)
}

// ProofPendingNotice tells the admins a transfer is on its way for an order not yet paid.
func ProofPendingNotice(c *Completion) string {
	return BuildNotification("⏳ PEDIDO EN ESPERA DE COMPROBANTE", c, KV{"Pago", string(PaymentTransfer)})
}

func BuildNotification(title string, c *Completion, extra ...KV) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Cliente: +%s\n", c.From)
	fmt.Fprintf(&b, "Dirección: %s\n", c.Address)
	if c.Location != nil && c.Location.MapURL != "" {
		fmt.Fprintf(&b, "Ubicación: %s\n", c.Location.MapURL)
	}
	fmt.Fprintf(&b, "Código de acceso: %s\n", c.AccessCode.Phrase())

	items := ExtractItems(c.OrderText)
	if items == "" {
		items = c.Summary
	}
	if items != "" {
		b.WriteString("\nProductos:\n")
		b.WriteString(items)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTotal: %s", FormatMoney(c.Total))
	for _, kv := range extra {
		fmt.Fprintf(&b, "\n%s: %s", kv.Key, kv.Value)
	}
	return b.String()
}

func cashChange(denomination string, total float64) (float64, bool) {
	paid := parseAmount(denomination)
	if total <= 0 || paid < total {
		return 0, false
	}
	return paid - total, true
}
