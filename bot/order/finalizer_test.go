package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"FrappeBot/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderLog struct {
	orders []*entity.Order
	err    error
}

func (f *fakeOrderLog) AppendOrder(_ context.Context, o *entity.Order) error {
	f.orders = append(f.orders, o)
	return f.err
}

type fakeNotifier struct {
	payloads []interface{}
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, payload interface{}) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type sent struct {
	to, body, mediaID string
}

type fakeMessenger struct {
	texts     []sent
	images    []sent
	reactions []sent
}

func (f *fakeMessenger) SendText(_ context.Context, to, body string) error {
	f.texts = append(f.texts, sent{to: to, body: body})
	return nil
}

func (f *fakeMessenger) SendImage(_ context.Context, to, mediaID, caption string) error {
	f.images = append(f.images, sent{to: to, body: caption, mediaID: mediaID})
	return nil
}

func (f *fakeMessenger) SendReaction(_ context.Context, to, messageID, emoji string) error {
	f.reactions = append(f.reactions, sent{to: to, body: emoji, mediaID: messageID})
	return nil
}

type fakeDeleter struct {
	deleted []string
}

func (f *fakeDeleter) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestFinalizer(orders *fakeOrderLog, notifier *fakeNotifier, msg *fakeMessenger, del *fakeDeleter) *Finalizer {
	f := NewFinalizer(orders, notifier, msg, del, []string{"5215550000001", "5215550000002"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func baseCompletion() Completion {
	return Completion{
		From:          "5215551234567",
		OrderText:     menuOrder,
		Summary:       "1x Frappé - $45.00\n2x Bubble Tea - $90.00",
		Total:         173,
		Address:       "Av. Reforma 100, depto 4",
		AccessCode:    AccessCodeNo,
		LastMessageID: "wamid.last",
	}
}

func TestFinalizeCash(t *testing.T) {
	orders, notifier, msg, del := &fakeOrderLog{}, &fakeNotifier{}, &fakeMessenger{}, &fakeDeleter{}
	f := newTestFinalizer(orders, notifier, msg, del)

	c := baseCompletion()
	c.Payment = PaymentCash
	c.CashDenomination = "200"

	order, err := f.Finalize(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	event, ok := notifier.payloads[0].(CompletedEvent)
	require.True(t, ok)
	assert.Equal(t, EventOrderCompleted, event.Type)
	assert.Equal(t, PaymentCash, event.Payment.Method)
	assert.Equal(t, "200", event.Payment.CashDenomination)
	assert.Empty(t, event.Payment.ProofImageID)
	assert.False(t, event.Delivery.AccessCodeRequired)

	require.Len(t, orders.orders, 1)
	assert.Equal(t, order.ID, orders.orders[0].ID)
	assert.Equal(t, entity.OrderStatusNew, order.Status)

	// two admins plus the customer
	require.Len(t, msg.texts, 3)
	assert.Contains(t, msg.texts[0].body, "Cambio: $27.00")
	assert.Contains(t, msg.texts[0].body, "2x Bubble Tea - $90.00")
	assert.Equal(t, c.From, msg.texts[2].to)
	assert.Empty(t, msg.images)
	require.Len(t, msg.reactions, 1)
	assert.Equal(t, "wamid.last", msg.reactions[0].mediaID)

	assert.Equal(t, []string{c.From}, del.deleted)
}

func TestFinalizeTransferForwardsProof(t *testing.T) {
	orders, notifier, msg, del := &fakeOrderLog{}, &fakeNotifier{}, &fakeMessenger{}, &fakeDeleter{}
	f := newTestFinalizer(orders, notifier, msg, del)

	c := baseCompletion()
	c.Payment = PaymentTransfer
	c.ProofImageID = "media-42"

	_, err := f.Finalize(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, msg.images, 2)
	for i, admin := range []string{"5215550000001", "5215550000002"} {
		assert.Equal(t, admin, msg.images[i].to)
		assert.Equal(t, "media-42", msg.images[i].mediaID)
		assert.Contains(t, msg.images[i].body, "Transferencia")
	}
	event := notifier.payloads[0].(CompletedEvent)
	assert.Equal(t, "media-42", event.Payment.ProofImageID)
	assert.Equal(t, []string{c.From}, del.deleted)
}

func TestFinalizeSinkFailuresStillDeleteState(t *testing.T) {
	orders := &fakeOrderLog{err: errors.New("mongo down")}
	notifier := &fakeNotifier{err: errors.New("n8n down")}
	msg, del := &fakeMessenger{}, &fakeDeleter{}
	f := newTestFinalizer(orders, notifier, msg, del)

	c := baseCompletion()
	c.Payment = PaymentCash
	c.CashDenomination = "500"

	_, err := f.Finalize(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, orders.orders, 1)
	assert.Len(t, notifier.payloads, 1)
	assert.Equal(t, []string{c.From}, del.deleted)
}

func TestFinalizeRejectsIncompleteInput(t *testing.T) {
	del := &fakeDeleter{}
	f := newTestFinalizer(&fakeOrderLog{}, &fakeNotifier{}, &fakeMessenger{}, del)

	c := baseCompletion()
	c.Payment = PaymentTransfer

	_, err := f.Finalize(context.Background(), c)
	assert.Error(t, err)
	assert.Empty(t, del.deleted)
}
