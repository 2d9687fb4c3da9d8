package repository

import (
	"FrappeBot/entity"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxMessagesPerUser = 200

// SaveChatMessage inserts a chat message and trims the user's history.
func (m *MongoDB) SaveChatMessage(msg entity.ChatMessage) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	_, err = collection.InsertOne(m.ctx, msg)
	if err != nil {
		return fmt.Errorf("mongodb insert chat message: %w", err)
	}

	filter := bson.D{{Key: "platform", Value: msg.Platform}, {Key: "user_id", Value: msg.UserID}}
	count, err := collection.CountDocuments(m.ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb count chat messages: %w", err)
	}

	if count > maxMessagesPerUser {
		opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(maxMessagesPerUser - 1)
		var cutoff entity.ChatMessage
		err = collection.FindOne(m.ctx, filter, opts).Decode(&cutoff)
		if err != nil {
			return fmt.Errorf("mongodb find cutoff message: %w", err)
		}

		deleteFilter := bson.D{
			{Key: "platform", Value: msg.Platform},
			{Key: "user_id", Value: msg.UserID},
			{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff.CreatedAt}}},
		}
		_, err = collection.DeleteMany(m.ctx, deleteFilter)
		if err != nil {
			return fmt.Errorf("mongodb trim chat messages: %w", err)
		}
	}

	return nil
}

// GetChatMessages returns messages for a user, paginated (newest first).
func (m *MongoDB) GetChatMessages(platform, userID string, limit, offset int) ([]entity.ChatMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	filter := bson.D{{Key: "platform", Value: platform}, {Key: "user_id", Value: userID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find chat messages: %w", err)
	}
	defer cursor.Close(m.ctx)

	messages := make([]entity.ChatMessage, 0)
	if err = cursor.All(m.ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode chat messages: %w", err)
	}

	return messages, nil
}
