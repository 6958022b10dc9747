// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the database holding every collection below
	db *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second) // fail fast if MongoDB is unreachable

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Connect is lazy; Ping is the actual connection test
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection { return c.db.Collection("users") }

// GroupsCollection returns the groups collection.
func (c *Client) GroupsCollection() *mongo.Collection { return c.db.Collection("groups") }

// GroupMembersCollection returns the group_members collection.
func (c *Client) GroupMembersCollection() *mongo.Collection { return c.db.Collection("group_members") }

// ThreadsCollection returns the message_threads collection.
func (c *Client) ThreadsCollection() *mongo.Collection { return c.db.Collection("message_threads") }

// ParticipantsCollection returns the message_thread_participants collection.
func (c *Client) ParticipantsCollection() *mongo.Collection {
	return c.db.Collection("message_thread_participants")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection { return c.db.Collection("messages") }

// TokensCollection returns the notification_tokens collection.
func (c *Client) TokensCollection() *mongo.Collection { return c.db.Collection("notification_tokens") }

// CountersCollection returns the counters collection used for numeric ids.
func (c *Client) CountersCollection() *mongo.Collection { return c.db.Collection("counters") }

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the delivery core relies on. The unique
// ones back the thread and token invariants.
func (c *Client) CreateIndexes(ctx context.Context) error {
	collections := []struct {
		coll    *mongo.Collection
		indexes []mongo.IndexModel
	}{
		{c.ThreadsCollection(), []mongo.IndexModel{
			// A group has at most one thread
			{Keys: bson.D{{Key: "group_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			// A user pair has at most one direct thread
			{Keys: bson.D{{Key: "direct_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		}},
		{c.ParticipantsCollection(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "participant_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participant_id", Value: 1}}},
		}},
		{c.MessagesCollection(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{c.TokensCollection(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		}},
		{c.GroupMembersCollection(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "group_id", Value: 1}}},
			{Keys: bson.D{{Key: "member_id", Value: 1}}},
		}},
	}

	for _, s := range collections {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.indexes); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", s.coll.Name(), err)
		}
	}
	return nil
}
