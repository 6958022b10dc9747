package threads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
)

func ptr(v int64) *int64 { return &v }

func seed(t *testing.T) *data.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := data.NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &data.User{ID: 3, FirstName: "Ada", LastName: "Obi", ProfilePhoto: "ada.png"}))
	require.NoError(t, s.CreateUser(ctx, &data.User{ID: 5, FirstName: "Tunde", LastName: "Bello"}))
	require.NoError(t, s.CreateUser(ctx, &data.User{ID: 8, FirstName: "Kemi", LastName: "Ade"}))
	require.NoError(t, s.CreateGroup(ctx, &data.Group{ID: 11, Name: "Runners"}))
	return s
}

func TestResolve_Validation(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())
	ctx := context.Background()

	_, err := r.Resolve(ctx, 3, Target{})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = r.Resolve(ctx, 3, Target{UserID: ptr(5), GroupID: ptr(11)})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = r.Resolve(ctx, 3, Target{UserID: ptr(3)})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestResolve_UnknownTargets(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())
	ctx := context.Background()

	_, err := r.Resolve(ctx, 3, Target{UserID: ptr(404)})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = r.Resolve(ctx, 3, Target{GroupID: ptr(404)})
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestResolve_DirectIsReusedAcrossRequests(t *testing.T) {
	store := seed(t)
	r := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	first, err := r.Resolve(ctx, 3, Target{UserID: ptr(5)})
	require.NoError(t, err)
	second, err := r.Resolve(ctx, 3, Target{UserID: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// the other side resolves to the same thread
	reverse, err := r.Resolve(ctx, 5, Target{UserID: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, reverse.ID)

	parts, err := store.ListParticipations(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestResolve_DirectCachesCounterpartDisplay(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())

	thread, err := r.Resolve(context.Background(), 3, Target{UserID: ptr(5)})
	require.NoError(t, err)
	require.Len(t, thread.Participants, 2)
	assert.False(t, thread.IsGroup())

	for _, p := range thread.Participants {
		switch p.ParticipantID {
		case 3:
			assert.Equal(t, "Tunde Bello", p.CounterpartName)
			assert.Empty(t, p.CounterpartPhoto)
		case 5:
			assert.Equal(t, "Ada Obi", p.CounterpartName)
			assert.Equal(t, "ada.png", p.CounterpartPhoto)
		default:
			t.Fatalf("unexpected participant %d", p.ParticipantID)
		}
	}
}

func TestResolve_DistinctPairsGetDistinctThreads(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())
	ctx := context.Background()

	a, err := r.Resolve(ctx, 3, Target{UserID: ptr(5)})
	require.NoError(t, err)
	b, err := r.Resolve(ctx, 3, Target{UserID: ptr(8)})
	require.NoError(t, err)
	c, err := r.Resolve(ctx, 5, Target{UserID: ptr(8)})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, b.ID, c.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestResolve_ConcurrentDirectCreatesOneThread(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())
	ctx := context.Background()

	const n = 20
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester, other := int64(3), int64(5)
			if i%2 == 1 {
				requester, other = other, requester
			}
			th, err := r.Resolve(ctx, requester, Target{UserID: ptr(other)})
			assert.NoError(t, err)
			if th != nil {
				ids[i] = th.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

// racingStore lets another writer win the pair key just before our insert.
type racingStore struct {
	*data.MemoryStore
}

func (s racingStore) CreateThreadWithParticipants(ctx context.Context, thread *data.MessageThread, participants []*data.MessageThreadParticipant) error {
	winner := &data.MessageThread{DirectKey: thread.DirectKey}
	if err := s.MemoryStore.CreateThreadWithParticipants(ctx, winner, []*data.MessageThreadParticipant{
		{ParticipantID: participants[0].ParticipantID},
		{ParticipantID: participants[1].ParticipantID},
	}); err != nil {
		return err
	}
	return s.MemoryStore.CreateThreadWithParticipants(ctx, thread, participants)
}

func TestResolve_DuplicateKeyRereadsWinner(t *testing.T) {
	store := racingStore{seed(t)}
	r := NewResolver(store, zerolog.Nop())

	thread, err := r.Resolve(context.Background(), 3, Target{UserID: ptr(5)})
	require.NoError(t, err)

	winner, err := store.FindDirectThread(context.Background(), data.DirectKey(3, 5))
	require.NoError(t, err)
	assert.Equal(t, winner.ID, thread.ID)
}

func TestResolve_GroupThreadIsUnique(t *testing.T) {
	r := NewResolver(seed(t), zerolog.Nop())
	ctx := context.Background()

	first, err := r.Resolve(ctx, 3, Target{GroupID: ptr(11)})
	require.NoError(t, err)
	require.NotNil(t, first.Group)
	assert.Equal(t, "Runners", first.Group.Name)
	assert.True(t, first.IsGroup())

	second, err := r.Resolve(ctx, 8, Target{GroupID: ptr(11)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

// gatedStore holds ListParticipations until release is closed, then honours
// the caller's context the way a network driver would.
type gatedStore struct {
	*data.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(t *testing.T) *gatedStore {
	return &gatedStore{MemoryStore: seed(t), entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) ListParticipations(ctx context.Context, userID int64) ([]*data.MessageThreadParticipant, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.ListParticipations(ctx, userID)
}

type resolved struct {
	thread *data.MessageThread
	err    error
}

func resolveAsync(ctx context.Context, r *Resolver, requesterID int64, target Target) <-chan resolved {
	out := make(chan resolved, 1)
	go func() {
		th, err := r.Resolve(ctx, requesterID, target)
		out <- resolved{th, err}
	}()
	return out
}

func TestResolve_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newGatedStore(t)
	r := NewResolver(store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	first := resolveAsync(ctx, r, 3, Target{UserID: ptr(5)})
	<-store.entered

	second := resolveAsync(context.Background(), r, 5, Target{UserID: ptr(3)})
	// give the second caller time to join the in-flight resolution
	time.Sleep(50 * time.Millisecond)

	cancel()
	got := <-first
	assert.ErrorIs(t, got.err, context.Canceled)

	close(store.release)
	got = <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.thread)
	assert.Equal(t, data.DirectKey(3, 5), got.thread.DirectKey)

	parts, err := store.MemoryStore.ListParticipations(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestResolve_SharedResultIsCopiedPerCaller(t *testing.T) {
	store := newGatedStore(t)
	r := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	first := resolveAsync(ctx, r, 3, Target{UserID: ptr(5)})
	<-store.entered
	second := resolveAsync(ctx, r, 5, Target{UserID: ptr(3)})
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	require.Equal(t, a.thread.ID, b.thread.ID)
	assert.NotSame(t, a.thread, b.thread)

	a.thread.Group = &data.Group{ID: 99}
	a.thread.Participants[0] = nil
	assert.Nil(t, b.thread.Group)
	assert.NotNil(t, b.thread.Participants[0])
}
