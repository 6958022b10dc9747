// Package threads finds or creates message threads for a requester and a
// target user or group, without creating duplicates.
package threads

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
)

// Store is the persistence the resolver needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (*data.User, error)
	GetGroup(ctx context.Context, id int64) (*data.Group, error)
	GetThread(ctx context.Context, id int64) (*data.MessageThread, error)
	FindGroupThread(ctx context.Context, groupID int64) (*data.MessageThread, error)
	FindDirectThread(ctx context.Context, key string) (*data.MessageThread, error)
	ListParticipations(ctx context.Context, userID int64) ([]*data.MessageThreadParticipant, error)
	FindParticipant(ctx context.Context, threadID, userID int64) (*data.MessageThreadParticipant, error)
	CreateThread(ctx context.Context, thread *data.MessageThread) error
	CreateThreadWithParticipants(ctx context.Context, thread *data.MessageThread, participants []*data.MessageThreadParticipant) error
}

// Target names the other side of a thread. Exactly one field must be set.
type Target struct {
	UserID  *int64
	GroupID *int64
}

// Resolver resolves threads. Concurrent resolutions of the same pair or group
// share one store round trip.
type Resolver struct {
	store  Store
	log    zerolog.Logger
	flight singleflight.Group
}

// NewResolver returns a Resolver over store.
func NewResolver(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log.With().Str("component", "threads").Logger()}
}

// Resolve returns the thread between requesterID and target, creating it on
// first use. Direct threads come back with both participants, group threads
// with their group.
func (r *Resolver) Resolve(ctx context.Context, requesterID int64, target Target) (*data.MessageThread, error) {
	switch {
	case target.UserID == nil && target.GroupID == nil:
		return nil, errs.Validation("either userId or groupId is required")
	case target.UserID != nil && target.GroupID != nil:
		return nil, errs.Validation("only one of userId or groupId may be set")
	case target.UserID != nil:
		if *target.UserID == requesterID {
			return nil, errs.Validation("cannot open a thread with yourself")
		}
		return r.resolveDirect(ctx, requesterID, *target.UserID)
	default:
		return r.resolveGroup(ctx, *target.GroupID)
	}
}

func (r *Resolver) resolveDirect(ctx context.Context, requesterID, counterpartID int64) (*data.MessageThread, error) {
	counterpart, err := r.user(ctx, counterpartID)
	if err != nil {
		return nil, err
	}
	requester, err := r.user(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	key := data.DirectKey(requesterID, counterpartID)
	thread, shared, err := r.share(ctx, "direct:"+key, func(ctx context.Context) (*data.MessageThread, error) {
		thread, err := r.findDirect(ctx, requesterID, counterpartID)
		if err == nil {
			return thread, nil
		}
		if !errors.Is(err, data.ErrNotFound) {
			return nil, err
		}
		return r.createDirect(ctx, key, requester, counterpart)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.Debug().Str("key", key).Msg("direct thread resolution shared")
	}
	return thread, nil
}

// share runs fn once per key across concurrent callers. fn runs detached from
// any single caller's cancellation, and each caller gets its own copy of the
// result.
func (r *Resolver) share(ctx context.Context, key string, fn func(context.Context) (*data.MessageThread, error)) (*data.MessageThread, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		thread := *res.Val.(*data.MessageThread)
		thread.Participants = append([]*data.MessageThreadParticipant(nil), thread.Participants...)
		return &thread, res.Shared, nil
	}
}

// findDirect walks the requester's participations and returns the first thread
// the counterpart also takes part in.
func (r *Resolver) findDirect(ctx context.Context, requesterID, counterpartID int64) (*data.MessageThread, error) {
	mine, err := r.store.ListParticipations(ctx, requesterID)
	if err != nil {
		return nil, errs.Internal("list participations", err)
	}
	for _, p := range mine {
		if _, err := r.store.FindParticipant(ctx, p.ThreadID, counterpartID); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				continue
			}
			return nil, errs.Internal("find participant", err)
		}
		thread, err := r.store.GetThread(ctx, p.ThreadID)
		if err != nil {
			return nil, errs.Internal("load thread", err)
		}
		return thread, nil
	}
	return nil, data.ErrNotFound
}

func (r *Resolver) createDirect(ctx context.Context, key string, requester, counterpart *data.User) (*data.MessageThread, error) {
	thread := &data.MessageThread{DirectKey: key}
	participants := []*data.MessageThreadParticipant{
		{
			ParticipantID:    requester.ID,
			CounterpartName:  counterpart.DisplayName(),
			CounterpartPhoto: counterpart.ProfilePhoto,
		},
		{
			ParticipantID:    counterpart.ID,
			CounterpartName:  requester.DisplayName(),
			CounterpartPhoto: requester.ProfilePhoto,
		},
	}

	err := r.store.CreateThreadWithParticipants(ctx, thread, participants)
	if errors.Is(err, data.ErrDuplicate) {
		// another process won the race on the pair key
		winner, ferr := r.store.FindDirectThread(ctx, key)
		if ferr != nil {
			return nil, errs.Internal("reload direct thread", ferr)
		}
		return winner, nil
	}
	if err != nil {
		return nil, errs.Internal("create direct thread", err)
	}

	r.log.Info().Int64("thread_id", thread.ID).Str("key", key).Msg("direct thread created")
	return thread, nil
}

func (r *Resolver) resolveGroup(ctx context.Context, groupID int64) (*data.MessageThread, error) {
	group, err := r.store.GetGroup(ctx, groupID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errs.NotFound("group %d not found", groupID)
	}
	if err != nil {
		return nil, errs.Internal("load group", err)
	}

	thread, _, err := r.share(ctx, "group:"+strconv.FormatInt(groupID, 10), func(ctx context.Context) (*data.MessageThread, error) {
		thread, err := r.store.FindGroupThread(ctx, groupID)
		if err == nil {
			return thread, nil
		}
		if !errors.Is(err, data.ErrNotFound) {
			return nil, errs.Internal("find group thread", err)
		}

		thread = &data.MessageThread{GroupID: &groupID}
		err = r.store.CreateThread(ctx, thread)
		if errors.Is(err, data.ErrDuplicate) {
			winner, ferr := r.store.FindGroupThread(ctx, groupID)
			if ferr != nil {
				return nil, errs.Internal("reload group thread", ferr)
			}
			return winner, nil
		}
		if err != nil {
			return nil, errs.Internal("create group thread", err)
		}
		r.log.Info().Int64("thread_id", thread.ID).Int64("group_id", groupID).Msg("group thread created")
		return thread, nil
	})
	if err != nil {
		return nil, err
	}

	thread.Group = group
	return thread, nil
}

func (r *Resolver) user(ctx context.Context, id int64) (*data.User, error) {
	u, err := r.store.GetUser(ctx, id)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errs.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, errs.Internal(fmt.Sprintf("load user %d", id), err)
	}
	return u, nil
}
