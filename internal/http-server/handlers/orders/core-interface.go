package orders

import "FrappeBot/entity"

type Core interface {
	ListOrders(query entity.OrderQuery) ([]entity.Order, error)
	UpdateOrderStatus(id, status string) (*entity.Order, error)
}
