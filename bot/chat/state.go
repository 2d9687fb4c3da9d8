package chat

import (
	"FrappeBot/bot/order"
	"FrappeBot/entity"
	"errors"
	"time"
)

// StateTTL is refreshed on every write.
const StateTTL = 24 * time.Hour

type Step string

const (
	StepInitial                  Step = "initial"
	StepAwaitingAddress          Step = "awaiting_address"
	StepAwaitingLocation         Step = "awaiting_location_confirmation"
	StepAwaitingAccessCode       Step = "awaiting_access_code_info"
	StepAwaitingPaymentMethod    Step = "awaiting_payment_method"
	StepAwaitingCashDenomination Step = "awaiting_cash_denomination"
	StepAwaitingPaymentProof     Step = "awaiting_payment_proof"
)

func (s Step) Valid() bool {
	switch s {
	case StepInitial, StepAwaitingAddress, StepAwaitingLocation, StepAwaitingAccessCode,
		StepAwaitingPaymentMethod, StepAwaitingCashDenomination, StepAwaitingPaymentProof:
		return true
	}
	return false
}

// Mode marks the two sides of an admin bridge.
type Mode string

const (
	ModeNone      Mode = ""
	ModeChatting  Mode = "chatting"
	ModeWithAdmin Mode = "in_conversation_with_admin"
)

var (
	ErrMissingOrder         = errors.New("no order captured")
	ErrMissingAddress       = errors.New("no delivery address")
	ErrMissingAccessCode    = errors.New("access code answer missing")
	ErrMissingPaymentMethod = errors.New("payment method missing")
	ErrPaymentMismatch      = errors.New("payment method does not match step")
)

// State is the per-customer conversation record.
type State struct {
	Phone            string              `json:"phone"`
	Step             Step                `json:"step,omitempty"`
	OrderText        string              `json:"orderText,omitempty"`
	OrderTimestamp   int64               `json:"orderTimestamp,omitempty"`
	Summary          string              `json:"summary,omitempty"`
	Total            float64             `json:"total,omitempty"`
	Address          string              `json:"address,omitempty"`
	Location         *entity.Location    `json:"location,omitempty"`
	AccessCodeInfo   order.AccessCode    `json:"accessCodeInfo,omitempty"`
	PaymentMethod    order.PaymentMethod `json:"paymentMethod,omitempty"`
	CashDenomination string              `json:"cashDenomination,omitempty"`
	ProofImageID     string              `json:"proofImageId,omitempty"`
	LastMessageID    string              `json:"lastMessageId,omitempty"`
	Mode             Mode                `json:"mode,omitempty"`
	TargetUser       string              `json:"targetUser,omitempty"`
	Admin            string              `json:"admin,omitempty"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

func NewState(phone string) *State {
	return &State{
		Phone: phone,
		Step:  StepInitial,
	}
}

// Active reports whether the record carries anything worth keeping.
func (s *State) Active() bool {
	return (s.Step != "" && s.Step != StepInitial) || s.Mode != ModeNone
}

func (s *State) Bridged() bool {
	return s.Mode == ModeChatting || s.Mode == ModeWithAdmin
}

// Counterpart is the other side of an admin bridge.
func (s *State) Counterpart() string {
	switch s.Mode {
	case ModeChatting:
		return s.TargetUser
	case ModeWithAdmin:
		return s.Admin
	}
	return ""
}

// CanEnter checks that everything collected before step is present.
func (s *State) CanEnter(step Step) error {
	if step == StepInitial {
		return nil
	}
	if s.OrderText == "" {
		return ErrMissingOrder
	}
	if step == StepAwaitingAddress {
		return nil
	}
	if s.Address == "" {
		return ErrMissingAddress
	}
	if step == StepAwaitingLocation || step == StepAwaitingAccessCode {
		return nil
	}
	if step == StepAwaitingPaymentMethod {
		return nil
	}
	if !s.AccessCodeInfo.Valid() {
		return ErrMissingAccessCode
	}
	if !s.PaymentMethod.Valid() {
		return ErrMissingPaymentMethod
	}
	switch step {
	case StepAwaitingCashDenomination:
		if s.PaymentMethod != order.PaymentCash {
			return ErrPaymentMismatch
		}
	case StepAwaitingPaymentProof:
		if s.PaymentMethod != order.PaymentTransfer {
			return ErrPaymentMismatch
		}
	}
	return nil
}

// resetOrder drops every order field while keeping the identity of the record.
func (s *State) resetOrder() {
	*s = State{
		Phone:         s.Phone,
		Step:          StepInitial,
		LastMessageID: s.LastMessageID,
	}
}

func (s *State) completion() order.Completion {
	return order.Completion{
		From:             s.Phone,
		OrderText:        s.OrderText,
		Summary:          s.Summary,
		Total:            s.Total,
		Address:          s.Address,
		Location:         s.Location,
		AccessCode:       s.AccessCodeInfo,
		Payment:          s.PaymentMethod,
		CashDenomination: s.CashDenomination,
		ProofImageID:     s.ProofImageID,
		LastMessageID:    s.LastMessageID,
	}
}
