package hub

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
)

type fakeSender struct {
	mu   sync.Mutex
	last *chatv1.ChatStreamResponse
	n    int
	fail bool
}

func (f *fakeSender) Send(r *chatv1.ChatStreamResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send fail")
	}
	f.last = r
	f.n++
	return nil
}

func frame(id int64) *chatv1.ChatStreamResponse {
	return &chatv1.ChatStreamResponse{Type: chatv1.FrameMessage, Message: &data.Message{ID: id}}
}

func TestRegistry_RegisterAndDeliver(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{}

	id := r.Register(7, s)
	require.NotZero(t, id)

	got, ok := r.Lookup(7)
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, r.Deliver(7, frame(1)))
	assert.Equal(t, int64(1), s.last.Message.ID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DeliverToOffline(t *testing.T) {
	r := NewRegistry()

	err := r.Deliver(42, frame(1))
	assert.ErrorIs(t, err, ErrOffline)

	_, ok := r.Lookup(42)
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesPrevious(t *testing.T) {
	r := NewRegistry()
	old := &fakeSender{}
	cur := &fakeSender{}

	oldID := r.Register(3, old)
	curID := r.Register(3, cur)
	require.NotEqual(t, oldID, curID)

	require.NoError(t, r.Deliver(3, frame(9)))
	assert.Nil(t, old.last)
	assert.Equal(t, int64(9), cur.last.Message.ID)

	// closing the superseded transport must not drop its replacement
	assert.False(t, r.Unregister(3, oldID))
	_, ok := r.Lookup(3)
	assert.True(t, ok)

	assert.True(t, r.Unregister(3, curID))
	_, ok = r.Lookup(3)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_FailedDeliverDropsHandle(t *testing.T) {
	r := NewRegistry()
	r.Register(5, &fakeSender{fail: true})

	err := r.Deliver(5, frame(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOffline)

	assert.ErrorIs(t, r.Deliver(5, frame(2)), ErrOffline)
}

func TestRegistry_RestoreAfterFailedDeliver(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{fail: true}
	id := r.Register(5, s)

	require.Error(t, r.Deliver(5, frame(1)))
	_, ok := r.Lookup(5)
	require.False(t, ok)

	s.mu.Lock()
	s.fail = false
	s.mu.Unlock()

	require.True(t, r.Restore(5, id, s))
	require.NoError(t, r.Deliver(5, frame(2)))
	assert.Equal(t, int64(2), s.last.Message.ID)

	// the restored handle keeps its id, so its transport can still remove it
	assert.True(t, r.Unregister(5, id))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RestoreKeepsNewerConnection(t *testing.T) {
	r := NewRegistry()
	old := &fakeSender{}
	oldID := r.Register(5, old)
	cur := &fakeSender{}
	r.Register(5, cur)

	assert.False(t, r.Restore(5, oldID, old))
	require.NoError(t, r.Deliver(5, frame(3)))
	assert.Nil(t, old.last)
	assert.Equal(t, int64(3), cur.last.Message.ID)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			s := NewSyncSender(&fakeSender{})
			id := r.Register(uid, s)
			_ = r.Deliver(uid, frame(uid))
			r.Unregister(uid, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func TestSyncSender_SerializesSends(t *testing.T) {
	f := &fakeSender{}
	s := NewSyncSender(f)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Send(frame(1))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, f.n)
}
