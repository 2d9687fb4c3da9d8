package core

import (
	"FrappeBot/entity"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	EventOrderCompleted     = "order_completed"
	EventOrderStatusChanged = "order_status_changed"
)

// OrderStatusEvent tells the workflow system an operator moved an order along.
type OrderStatusEvent struct {
	From      string    `json:"from"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
}

// AppendOrder stores a completed order and pushes it to the dashboard.
func (c *Core) AppendOrder(_ context.Context, order *entity.Order) error {
	if c.wsHub != nil {
		defer c.wsHub.BroadcastOrder(EventOrderCompleted, order)
	}
	if c.repo == nil {
		c.log.With(slog.String("order_id", order.ID)).Warn("order log disabled, order not stored")
		return nil
	}
	if err := c.repo.AppendOrder(order); err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

func (c *Core) ListOrders(query entity.OrderQuery) ([]entity.Order, error) {
	if c.repo == nil {
		return nil, ErrNoRepository
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return c.repo.ListOrders(query)
}

func (c *Core) UpdateOrderStatus(id, status string) (*entity.Order, error) {
	if c.repo == nil {
		return nil, ErrNoRepository
	}
	order, err := c.repo.UpdateOrderStatus(id, status)
	if err != nil {
		return nil, err
	}

	c.log.With(
		slog.String("order_id", id),
		slog.String("status", status),
	).Info("order status updated")

	if c.wsHub != nil {
		c.wsHub.BroadcastOrder(EventOrderStatusChanged, order)
	}
	if c.publisher != nil {
		c.publisher.Go(OrderStatusEvent{
			From:      order.From,
			Type:      EventOrderStatusChanged,
			Timestamp: time.Now(),
			OrderID:   order.ID,
			Status:    order.Status,
		})
	}
	return order, nil
}
