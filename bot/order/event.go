package order

import (
	"FrappeBot/entity"
	"time"
)

const EventOrderCompleted = "order_completed"

// CompletedEvent is pushed to the workflow system when a customer finishes an order.
type CompletedEvent struct {
	From      string        `json:"from"`
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Order     EventOrder    `json:"order"`
	Delivery  EventDelivery `json:"delivery"`
	Payment   EventPayment  `json:"payment"`
}

type EventOrder struct {
	Summary  string  `json:"summary"`
	Total    float64 `json:"total"`
	FullText string  `json:"fullText"`
}

type EventDelivery struct {
	Address            string           `json:"address"`
	AccessCodeRequired bool             `json:"accessCodeRequired"`
	Location           *entity.Location `json:"location,omitempty"`
}

type EventPayment struct {
	Method           PaymentMethod `json:"method"`
	CashDenomination string        `json:"cashDenomination,omitempty"`
	ProofImageID     string        `json:"proofImageId,omitempty"`
}

func newCompletedEvent(c *Completion, now time.Time) CompletedEvent {
	return CompletedEvent{
		From:      c.From,
		Type:      EventOrderCompleted,
		Timestamp: now,
		Order: EventOrder{
			Summary:  c.Summary,
			Total:    c.Total,
			FullText: c.OrderText,
		},
		Delivery: EventDelivery{
			Address:            c.Address,
			AccessCodeRequired: c.AccessCode.Required(),
			Location:           c.Location,
		},
		Payment: EventPayment{
			Method:           c.Payment,
			CashDenomination: c.CashDenomination,
			ProofImageID:     c.ProofImageID,
		},
	}
}

func (e CompletedEvent) toOrder(id string) *entity.Order {
	return &entity.Order{
		ID:                 id,
		From:               e.From,
		Summary:            e.Order.Summary,
		Total:              e.Order.Total,
		FullText:           e.Order.FullText,
		Address:            e.Delivery.Address,
		Location:           e.Delivery.Location,
		AccessCodeRequired: e.Delivery.AccessCodeRequired,
		PaymentMethod:      string(e.Payment.Method),
		CashDenomination:   e.Payment.CashDenomination,
		ProofImageID:       e.Payment.ProofImageID,
		Status:             entity.OrderStatusNew,
		Timestamp:          e.Timestamp,
		UpdatedAt:          e.Timestamp,
	}
}
