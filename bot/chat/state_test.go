package chat

import (
	"FrappeBot/bot/order"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanEnter(t *testing.T) {
	s := &State{Phone: customer}
	assert.NoError(t, s.CanEnter(StepInitial))
	assert.ErrorIs(t, s.CanEnter(StepAwaitingAddress), ErrMissingOrder)

	s.OrderText = menuOrder
	assert.NoError(t, s.CanEnter(StepAwaitingAddress))
	assert.ErrorIs(t, s.CanEnter(StepAwaitingAccessCode), ErrMissingAddress)

	s.Address = "Calle Roble 22"
	assert.NoError(t, s.CanEnter(StepAwaitingPaymentMethod))
	assert.ErrorIs(t, s.CanEnter(StepAwaitingCashDenomination), ErrMissingAccessCode)

	s.AccessCodeInfo = order.AccessCodeNo
	assert.ErrorIs(t, s.CanEnter(StepAwaitingCashDenomination), ErrMissingPaymentMethod)

	s.PaymentMethod = order.PaymentTransfer
	assert.ErrorIs(t, s.CanEnter(StepAwaitingCashDenomination), ErrPaymentMismatch)
	assert.NoError(t, s.CanEnter(StepAwaitingPaymentProof))
}

func TestStorageRoundTripAndTTL(t *testing.T) {
	kv := newMemKV()
	st := NewStorage(kv)
	ctx := context.Background()

	loaded, err := st.Load(ctx, customer)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, st.Save(ctx, &State{Phone: customer, Step: StepAwaitingAddress, OrderText: menuOrder}))
	assert.Equal(t, StateTTL, kv.ttl[customer])
	assert.Contains(t, string(kv.data[customer]), `"step":"awaiting_address"`)
	assert.Contains(t, string(kv.data[customer]), `"orderText"`)

	loaded, err = st.Load(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingAddress, loaded.Step)

	require.NoError(t, st.Delete(ctx, customer))
	loaded, err = st.Load(ctx, customer)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStorageTreatsEmptyStepAsAbsent(t *testing.T) {
	kv := newMemKV()
	kv.data[customer] = []byte(`{"phone":"` + customer + `"}`)

	loaded, err := NewStorage(kv).Load(context.Background(), customer)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestHelpers(t *testing.T) {
	assert.True(t, isYes("Sí, claro"))
	assert.True(t, isYes("si"))
	assert.False(t, isYes("sin código"))
	assert.True(t, isNo("No"))
	assert.False(t, isNo("nomás el de la caseta"))
	assert.Equal(t, "5215551234567", NormalizePhone("+52 1 55 5123 4567"))
	assert.False(t, IsValidPhone("12345"))

	m, ok := parsePaymentMethod("Pago con transferencia")
	assert.True(t, ok)
	assert.Equal(t, order.PaymentTransfer, m)
	_, ok = parsePaymentMethod("tarjeta")
	assert.False(t, ok)
}

func TestKeyLocksRelease(t *testing.T) {
	l := newKeyLocks()
	unlock := l.Lock("a")
	unlock2 := l.Lock("b")
	unlock()
	unlock2()
	assert.Empty(t, l.keys)
}
