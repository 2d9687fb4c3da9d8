package entity

import (
	"FrappeBot/internal/lib/validate"
	"net/http"
	"time"
)

const (
	OrderStatusNew       = "new"
	OrderStatusPreparing = "preparing"
	OrderStatusOnTheWay  = "on_the_way"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is the durable record written once per completed conversation.
type Order struct {
	ID                 string    `json:"id" bson:"_id"`
	From               string    `json:"from" bson:"from"`
	Summary            string    `json:"summary" bson:"summary"`
	Total              float64   `json:"total" bson:"total"`
	FullText           string    `json:"full_text" bson:"full_text"`
	Address            string    `json:"address" bson:"address"`
	Location           *Location `json:"location,omitempty" bson:"location,omitempty"`
	AccessCodeRequired bool      `json:"access_code_required" bson:"access_code_required"`
	PaymentMethod      string    `json:"payment_method" bson:"payment_method"`
	CashDenomination   string    `json:"cash_denomination,omitempty" bson:"cash_denomination,omitempty"`
	ProofImageID       string    `json:"proof_image_id,omitempty" bson:"proof_image_id,omitempty"`
	Status             string    `json:"status" bson:"status"`
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

// Location is a shared map pin.
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
	Name      string  `json:"name,omitempty" bson:"name,omitempty"`
	Address   string  `json:"address,omitempty" bson:"address,omitempty"`
	MapURL    string  `json:"mapUrl" bson:"map_url"`
}

type OrderStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=new preparing on_the_way delivered cancelled"`
}

func (u *OrderStatusUpdate) Bind(_ *http.Request) error {
	return validate.Struct(u)
}

type OrderQuery struct {
	Phone         string `json:"phone" validate:"omitempty,numeric"`
	Status        string `json:"status" validate:"omitempty,oneof=new preparing on_the_way delivered cancelled"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=Efectivo Transferencia"`
	Limit         int    `json:"limit" validate:"min=1,max=100"`
	Offset        int    `json:"offset" validate:"min=0"`
}

func (q *OrderQuery) Validate() error {
	return validate.Struct(q)
}
