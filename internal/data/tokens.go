package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// TokensStore persists device push tokens.
type TokensStore struct {
	coll *mongo.Collection
	seq  *Sequence
}

// NewTokensStore returns a TokensStore using the notification_tokens collection.
func NewTokensStore(coll *mongo.Collection, seq *Sequence) *TokensStore {
	return &TokensStore{coll: coll, seq: seq}
}

// CreateToken inserts a token. The unique index on token turns a concurrent
// duplicate registration into ErrDuplicate.
func (s *TokensStore) CreateToken(ctx context.Context, token *NotificationToken) error {
	id, err := s.seq.Next(ctx, "notification_tokens")
	if err != nil {
		return err
	}
	token.ID = id
	token.CreatedAt = time.Now().UTC()

	if _, err := s.coll.InsertOne(ctx, token); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindToken looks a token up by its value.
func (s *TokensStore) FindToken(ctx context.Context, token string) (*NotificationToken, error) {
	var t NotificationToken
	if err := s.coll.FindOne(ctx, bson.M{"token": token}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTokensByUsers returns every token owned by any of userIDs.
func (s *TokensStore) ListTokensByUsers(ctx context.Context, userIDs []int64) ([]*NotificationToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}})
}

// ListTokens returns every stored token.
func (s *TokensStore) ListTokens(ctx context.Context) ([]*NotificationToken, error) {
	return s.find(ctx, bson.M{})
}

func (s *TokensStore) find(ctx context.Context, filter bson.M) ([]*NotificationToken, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tokens []*NotificationToken
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteTokens removes tokens by id and returns how many were deleted.
func (s *TokensStore) DeleteTokens(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
