package repository

import (
	"FrappeBot/entity"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AppendOrder writes a completed order to the durable order log.
func (m *MongoDB) AppendOrder(order *entity.Order) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ordersCollection)

	if _, err = collection.InsertOne(m.ctx, order); err != nil {
		return fmt.Errorf("mongodb insert order: %w", err)
	}
	return nil
}

// ListOrders returns orders matching the query, newest first.
func (m *MongoDB) ListOrders(query entity.OrderQuery) ([]entity.Order, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ordersCollection)

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(query.Limit)).
		SetSkip(int64(query.Offset))

	cursor, err := collection.Find(m.ctx, orderFilter(query), opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find orders: %w", err)
	}
	defer cursor.Close(m.ctx)

	orders := make([]entity.Order, 0)
	if err = cursor.All(m.ctx, &orders); err != nil {
		return nil, fmt.Errorf("mongodb decode orders: %w", err)
	}
	return orders, nil
}

func (m *MongoDB) UpdateOrderStatus(id, status string) (*entity.Order, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ordersCollection)

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order entity.Order
	err = collection.FindOneAndUpdate(m.ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("order %s %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb update order status: %w", err)
	}
	return &order, nil
}

func orderFilter(query entity.OrderQuery) bson.D {
	filter := bson.D{}
	if query.Phone != "" {
		filter = append(filter, bson.E{Key: "from", Value: query.Phone})
	}
	if query.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: query.Status})
	}
	if query.PaymentMethod != "" {
		filter = append(filter, bson.E{Key: "payment_method", Value: query.PaymentMethod})
	}
	return filter
}
