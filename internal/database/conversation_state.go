package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conversationStatesCollection = "conversation_states"

// StateStore keeps conversation records in MongoDB when Redis is not available.
// Expired documents are removed by a TTL index; reads filter on expiry too
// because the TTL monitor only runs once a minute.
type StateStore struct {
	m       *MongoDB
	nowFunc func() time.Time
}

type stateRecord struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m *MongoDB) StateStore() *StateStore {
	return &StateStore{m: m, nowFunc: time.Now}
}

func (s *StateStore) Get(ctx context.Context, key string) ([]byte, error) {
	connection, err := s.m.connect()
	if err != nil {
		return nil, err
	}
	defer s.m.disconnect(connection)

	collection := connection.Database(s.m.database).Collection(conversationStatesCollection)

	filter := bson.D{{Key: "_id", Value: key}, {Key: "expires_at", Value: bson.D{{Key: "$gt", Value: s.nowFunc()}}}}

	var record stateRecord
	err = collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find conversation state: %w", err)
	}
	return []byte(record.Value), nil
}

func (s *StateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	connection, err := s.m.connect()
	if err != nil {
		return err
	}
	defer s.m.disconnect(connection)

	collection := connection.Database(s.m.database).Collection(conversationStatesCollection)

	now := s.nowFunc()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "value", Value: string(value)},
		{Key: "expires_at", Value: now.Add(ttl)},
		{Key: "updated_at", Value: now},
	}}}
	opts := options.Update().SetUpsert(true)

	if _, err = collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: key}}, update, opts); err != nil {
		return fmt.Errorf("mongodb save conversation state: %w", err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	connection, err := s.m.connect()
	if err != nil {
		return err
	}
	defer s.m.disconnect(connection)

	collection := connection.Database(s.m.database).Collection(conversationStatesCollection)

	if _, err = collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("mongodb delete conversation state: %w", err)
	}
	return nil
}
