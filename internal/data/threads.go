package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ThreadsStore persists message threads and their participants.
type ThreadsStore struct {
	threads      *mongo.Collection
	participants *mongo.Collection
	seq          *Sequence
}

// NewThreadsStore returns a ThreadsStore. Paired participant creation runs in
// a transaction, so the deployment must be a replica set.
func NewThreadsStore(threads, participants *mongo.Collection, seq *Sequence) *ThreadsStore {
	return &ThreadsStore{threads: threads, participants: participants, seq: seq}
}

// GetThread loads a thread with its participants.
func (s *ThreadsStore) GetThread(ctx context.Context, id int64) (*MessageThread, error) {
	return s.findThread(ctx, bson.M{"_id": id})
}

// FindGroupThread returns the thread bound to groupID.
func (s *ThreadsStore) FindGroupThread(ctx context.Context, groupID int64) (*MessageThread, error) {
	return s.findThread(ctx, bson.M{"group_id": groupID})
}

// FindDirectThread returns the direct thread with the given pair key.
func (s *ThreadsStore) FindDirectThread(ctx context.Context, key string) (*MessageThread, error) {
	return s.findThread(ctx, bson.M{"direct_key": key})
}

func (s *ThreadsStore) findThread(ctx context.Context, filter bson.M) (*MessageThread, error) {
	var thread MessageThread
	if err := s.threads.FindOne(ctx, filter).Decode(&thread); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	participants, err := s.listParticipants(ctx, bson.M{"thread_id": thread.ID})
	if err != nil {
		return nil, err
	}
	thread.Participants = participants
	return &thread, nil
}

// ListParticipations returns every participant record of userID.
func (s *ThreadsStore) ListParticipations(ctx context.Context, userID int64) ([]*MessageThreadParticipant, error) {
	return s.listParticipants(ctx, bson.M{"participant_id": userID})
}

// FindParticipant returns the participant record binding userID to threadID.
func (s *ThreadsStore) FindParticipant(ctx context.Context, threadID, userID int64) (*MessageThreadParticipant, error) {
	var p MessageThreadParticipant
	err := s.participants.FindOne(ctx, bson.M{"thread_id": threadID, "participant_id": userID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *ThreadsStore) listParticipants(ctx context.Context, filter bson.M) ([]*MessageThreadParticipant, error) {
	cursor, err := s.participants.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*MessageThreadParticipant
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateThread inserts a thread without participants (group threads).
func (s *ThreadsStore) CreateThread(ctx context.Context, thread *MessageThread) error {
	id, err := s.seq.Next(ctx, "message_threads")
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	thread.ID, thread.CreatedAt, thread.UpdatedAt = id, now, now

	if _, err := s.threads.InsertOne(ctx, thread); err != nil {
		// unique group_id / direct_key index: someone else created it first
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateThreadWithParticipants inserts a thread and its participants in one
// transaction so a direct thread never exists with a single side.
func (s *ThreadsStore) CreateThreadWithParticipants(ctx context.Context, thread *MessageThread, participants []*MessageThreadParticipant) error {
	// Allocate ids outside the transaction; gaps on abort are harmless
	threadID, err := s.seq.Next(ctx, "message_threads")
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	thread.ID, thread.CreatedAt, thread.UpdatedAt = threadID, now, now

	docs := make([]any, 0, len(participants))
	for _, p := range participants {
		pid, err := s.seq.Next(ctx, "message_thread_participants")
		if err != nil {
			return err
		}
		p.ID, p.ThreadID, p.CreatedAt = pid, threadID, now
		docs = append(docs, p)
	}

	sess, err := s.threads.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := s.threads.InsertOne(ctx, thread); err != nil {
			return nil, err
		}
		if _, err := s.participants.InsertMany(ctx, docs); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	thread.Participants = participants
	return nil
}

// TouchThread sets the thread's last-activity timestamp.
func (s *ThreadsStore) TouchThread(ctx context.Context, id int64, at time.Time) error {
	res, err := s.threads.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"updated_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// threadActivitySort orders threads by last activity, newest first, with the id
// breaking ties so skip/limit pages are stable.
var threadActivitySort = bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}

// ListThreadsForUser returns the user's direct threads plus the threads of
// groupIDs, most recently active first.
func (s *ThreadsStore) ListThreadsForUser(ctx context.Context, userID int64, groupIDs []int64, skip, limit int64) ([]*MessageThread, error) {
	mine, err := s.ListParticipations(ctx, userID)
	if err != nil {
		return nil, err
	}
	threadIDs := make([]int64, 0, len(mine))
	for _, p := range mine {
		threadIDs = append(threadIDs, p.ThreadID)
	}
	if groupIDs == nil {
		groupIDs = []int64{}
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"_id": bson.M{"$in": threadIDs}},
		bson.M{"group_id": bson.M{"$in": groupIDs}},
	}}
	opts := options.Find().
		SetSort(threadActivitySort).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.threads.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var threads []*MessageThread
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, err
	}

	// Attach participants in one query so summaries can use the cached names
	ids := make([]int64, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}
	participants, err := s.listParticipants(ctx, bson.M{"thread_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byThread := make(map[int64][]*MessageThreadParticipant, len(threads))
	for _, p := range participants {
		byThread[p.ThreadID] = append(byThread[p.ThreadID], p)
	}
	for _, t := range threads {
		t.Participants = byThread[t.ID]
	}
	return threads, nil
}
