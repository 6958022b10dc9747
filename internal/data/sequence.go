package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Sequence hands out monotonically increasing numeric ids per collection
// using a counters collection ({_id: name, seq: n}).
type Sequence struct {
	coll *mongo.Collection
}

// NewSequence returns a Sequence backed by the given counters collection.
func NewSequence(coll *mongo.Collection) *Sequence {
	return &Sequence{coll: coll}
}

// Next atomically increments and returns the counter for name.
func (s *Sequence) Next(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	// Upsert creates the counter on first use; ReturnDocument After yields the new value
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return doc.Seq, nil
}
