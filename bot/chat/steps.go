package chat

import (
	"FrappeBot/bot/order"
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

func (e *Engine) startOrder(ctx context.Context, log *slog.Logger, state *State, text string) {
	info := order.ExtractOrderInfo(text)

	state.resetOrder()
	state.OrderText = text
	state.OrderTimestamp = e.nowFunc().Unix()
	state.Summary = info.Summary
	state.Total = info.Total
	state.Step = StepAwaitingAddress
	e.save(ctx, log, state)

	log.With(slog.Float64("total", info.Total)).Info("order captured")
	e.sendText(ctx, log, state.Phone, orderReceived(info))
}

func (e *Engine) onAddress(ctx context.Context, log *slog.Logger, state *State, text string) {
	// customers often paste the order again instead of the address
	if order.HasCompletionMarker(text) {
		e.sendText(ctx, log, state.Phone, textAskAddressAgain)
		return
	}
	if strings.TrimSpace(text) == "" {
		e.sendText(ctx, log, state.Phone, textAskAddress)
		return
	}

	state.Address = text
	if e.settings.RequestLocation {
		e.transition(ctx, log, state, StepAwaitingLocation)
		return
	}
	e.transition(ctx, log, state, StepAwaitingAccessCode)
}

func (e *Engine) onAccessCode(ctx context.Context, log *slog.Logger, state *State, code order.AccessCode) {
	state.AccessCodeInfo = code
	e.transition(ctx, log, state, StepAwaitingPaymentMethod)
}

func (e *Engine) onPaymentMethod(ctx context.Context, log *slog.Logger, state *State, method order.PaymentMethod) {
	if !state.AccessCodeInfo.Valid() {
		e.redirect(ctx, log, state, ErrMissingAccessCode)
		return
	}
	state.PaymentMethod = method

	next := StepAwaitingCashDenomination
	if method == order.PaymentTransfer {
		next = StepAwaitingPaymentProof
	}
	if !e.transition(ctx, log, state, next) {
		return
	}
	if method == order.PaymentTransfer {
		c := state.completion()
		e.notifyAdmins(ctx, log, order.ProofPendingNotice(&c))
	}
}

func (e *Engine) onCashDenomination(ctx context.Context, log *slog.Logger, state *State, text string) error {
	if err := state.CanEnter(StepAwaitingCashDenomination); err != nil {
		e.redirect(ctx, log, state, err)
		return nil
	}
	amount, err := order.ParseCashAmount(text)
	if err != nil {
		e.sendText(ctx, log, state.Phone, textAskCashAgain)
		return nil
	}
	state.CashDenomination = amount
	return e.finalize(ctx, log, state)
}

func (e *Engine) onProofImage(ctx context.Context, log *slog.Logger, state *State, imageID string) error {
	if err := state.CanEnter(StepAwaitingPaymentProof); err != nil {
		e.redirect(ctx, log, state, err)
		return nil
	}
	state.ProofImageID = imageID
	return e.finalize(ctx, log, state)
}

// finalize hands the collected order over; the finalizer removes the state.
func (e *Engine) finalize(ctx context.Context, log *slog.Logger, state *State) error {
	ord, err := e.finalizer.Finalize(ctx, state.completion())
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}
	log.With(slog.String("order_id", ord.ID)).Debug("conversation closed")
	return nil
}

// transition moves state to next and asks the matching question.
// A failed guard sends the customer back to the earliest missing answer.
func (e *Engine) transition(ctx context.Context, log *slog.Logger, state *State, next Step) bool {
	if err := state.CanEnter(next); err != nil {
		e.redirect(ctx, log, state, err)
		return false
	}
	log.With(
		slog.String("from_step", string(state.Step)),
		slog.String("to_step", string(next)),
	).Debug("transition")
	state.Step = next
	e.save(ctx, log, state)
	e.prompt(ctx, log, state)
	return true
}

func (e *Engine) redirect(ctx context.Context, log *slog.Logger, state *State, cause error) {
	log.With(sl.Err(cause), slog.String("step", string(state.Step))).Warn("state guard failed")

	switch {
	case errors.Is(cause, ErrMissingOrder):
		e.drop(ctx, log, state.Phone)
		e.sendText(ctx, log, state.Phone, textOrderLost)
		return
	case errors.Is(cause, ErrMissingAddress):
		state.Step = StepAwaitingAddress
	case errors.Is(cause, ErrMissingAccessCode):
		state.Step = StepAwaitingAccessCode
	default:
		state.PaymentMethod = ""
		state.Step = StepAwaitingPaymentMethod
	}
	e.save(ctx, log, state)
	e.prompt(ctx, log, state)
}

func (e *Engine) prompt(ctx context.Context, log *slog.Logger, state *State) {
	switch state.Step {
	case StepAwaitingAddress:
		e.sendText(ctx, log, state.Phone, textAskAddress)
	case StepAwaitingLocation:
		e.sendInteractive(ctx, log, state.Phone, askLocation())
	case StepAwaitingAccessCode:
		e.sendInteractive(ctx, log, state.Phone, askAccessCode())
	case StepAwaitingPaymentMethod:
		e.sendInteractive(ctx, log, state.Phone, askPaymentMethod())
	case StepAwaitingCashDenomination:
		e.sendText(ctx, log, state.Phone, askCashDenomination(state.Total))
	case StepAwaitingPaymentProof:
		e.sendText(ctx, log, state.Phone, e.settings.bankDetails(state.Total))
	}
}

// reprompt repeats the question of the current step after an unusable answer.
func (e *Engine) reprompt(ctx context.Context, log *slog.Logger, state *State) {
	var payload Interactive
	switch state.Step {
	case StepAwaitingAddress:
		e.sendText(ctx, log, state.Phone, textAskAddressAgain)
		return
	case StepAwaitingLocation:
		payload = askLocation()
		payload.Body = textAskLocationAgain
	case StepAwaitingAccessCode:
		payload = askAccessCode()
		payload.Body = textAskAccessAgain
	case StepAwaitingPaymentMethod:
		payload = askPaymentMethod()
		payload.Body = textAskPaymentAgain
	case StepAwaitingCashDenomination:
		e.sendText(ctx, log, state.Phone, textAskCashAgain)
		return
	case StepAwaitingPaymentProof:
		e.sendText(ctx, log, state.Phone, textAwaitingProof)
		return
	default:
		e.sendText(ctx, log, state.Phone, textGeneralAck)
		return
	}
	e.sendInteractive(ctx, log, state.Phone, payload)
}

func (e *Engine) cancel(ctx context.Context, log *slog.Logger, state *State) {
	if !state.Active() {
		e.sendText(ctx, log, state.Phone, textNothingToCancel)
		return
	}
	e.drop(ctx, log, state.Phone)
	log.With(slog.String("step", string(state.Step))).Info("order cancelled by customer")
	e.sendText(ctx, log, state.Phone, textCancelled)
}

func parsePaymentMethod(text string) (order.PaymentMethod, bool) {
	switch {
	case hasWord(text, "efectivo", "cash"):
		return order.PaymentCash, true
	case hasWord(text, "transferencia", "transferir", "transfer", "deposito", "spei"):
		return order.PaymentTransfer, true
	}
	return "", false
}

func addressFromLocation(loc *entity.Location) string {
	parts := make([]string, 0, 2)
	if loc.Name != "" {
		parts = append(parts, loc.Name)
	}
	if loc.Address != "" {
		parts = append(parts, loc.Address)
	}
	if len(parts) == 0 {
		return "Ubicación compartida: " + loc.MapURL
	}
	return strings.Join(parts, ", ")
}

func hasWord(text string, candidates ...string) bool {
	for _, w := range words(text) {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}
