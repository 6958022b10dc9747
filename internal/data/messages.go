package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
	seq  *Sequence
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection, seq *Sequence) *MessagesStore {
	return &MessagesStore{coll: coll, seq: seq}
}

// CreateMessage assigns an id and timestamps and inserts the message.
func (m *MessagesStore) CreateMessage(ctx context.Context, msg *Message) error {
	id, err := m.seq.Next(ctx, "messages")
	if err != nil {
		return err
	}
	msg.ID = id
	// The pipeline may pre-stamp CreatedAt so thread recency matches exactly
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.UpdatedAt = msg.CreatedAt
	if msg.Status == "" {
		msg.Status = StatusSent
	}

	_, err = m.coll.InsertOne(ctx, msg)
	return err
}

// ListMessages returns the latest messages of a thread ordered oldest→newest.
func (m *MessagesStore) ListMessages(ctx context.Context, threadID int64, limit int64) ([]*Message, error) {
	// Newest first so the limit keeps the most recent ones
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.coll.Find(ctx, bson.M{"thread_id": threadID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Reverse into chronological order for the client
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
