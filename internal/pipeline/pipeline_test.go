package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/hub"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/push"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []*chatv1.ChatStreamResponse
	fail   bool
}

func (f *fakeSender) Send(r *chatv1.ChatStreamResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, r)
	return nil
}

// recordingProvider accepts every token and remembers what it pushed.
type recordingProvider struct {
	mu     sync.Mutex
	pushed []push.Notification
	tokens [][]string
	err    error
}

func (p *recordingProvider) ValidToken(t string) bool { return t != "" }
func (p *recordingProvider) SendBatchSize() int       { return 100 }
func (p *recordingProvider) ReceiptBatchSize() int    { return 1000 }

func (p *recordingProvider) Send(ctx context.Context, n push.Notification, tokens []string) ([]push.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.pushed = append(p.pushed, n)
	p.tokens = append(p.tokens, tokens)
	out := make([]push.Ticket, len(tokens))
	for i := range tokens {
		out[i] = push.Ticket{ID: tokens[i], Status: push.StatusOK}
	}
	return out, nil
}

func (p *recordingProvider) Receipts(ctx context.Context, ids []string) (map[string]push.Receipt, error) {
	return map[string]push.Receipt{}, nil
}

type fixture struct {
	store    *data.MemoryStore
	registry *hub.Registry
	provider *recordingProvider
	pipe     *Pipeline
	ada      *data.User
	tunde    *data.User
	kemi     *data.User
	direct   *data.MessageThread
	group    *data.MessageThread
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    data.NewMemoryStore(),
		registry: hub.NewRegistry(),
		provider: &recordingProvider{},
		ada:      &data.User{ID: 3, FirstName: "Ada", LastName: "Obi"},
		tunde:    &data.User{ID: 5, FirstName: "Tunde", LastName: "Bello"},
		kemi:     &data.User{ID: 8, FirstName: "Kemi", LastName: "Ade"},
	}
	for _, u := range []*data.User{f.ada, f.tunde, f.kemi} {
		require.NoError(t, f.store.CreateUser(ctx, u))
	}

	f.direct = &data.MessageThread{DirectKey: data.DirectKey(3, 5)}
	require.NoError(t, f.store.CreateThreadWithParticipants(ctx, f.direct, []*data.MessageThreadParticipant{
		{ParticipantID: 3, CounterpartName: "Tunde Bello"},
		{ParticipantID: 5, CounterpartName: "Ada Obi"},
	}))

	gid := int64(11)
	require.NoError(t, f.store.CreateGroup(ctx, &data.Group{ID: gid, Name: "Runners"}))
	for _, id := range []int64{3, 5, 8} {
		require.NoError(t, f.store.AddGroupMember(ctx, &data.GroupMember{GroupID: gid, MemberID: id, Approved: true}))
	}
	f.group = &data.MessageThread{GroupID: &gid}
	require.NoError(t, f.store.CreateThread(ctx, f.group))

	engine := push.NewEngine(f.provider, f.store, zerolog.Nop(), nil, "")
	f.pipe = New(f.store, f.registry, engine, zerolog.Nop(), nil)
	return f
}

func (f *fixture) token(t *testing.T, userID int64, token string) {
	t.Helper()
	require.NoError(t, f.store.CreateToken(context.Background(), &data.NotificationToken{UserID: userID, Token: token}))
}

func text(threadID int64, body string) Event {
	return Event{ThreadID: threadID, Payload: Text{Body: body}}
}

func TestProcess_OnlineRecipientGetsLiveFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, err := f.store.GetThread(ctx, f.direct.ID)
	require.NoError(t, err)

	bob := &fakeSender{}
	f.registry.Register(5, bob)
	f.token(t, 5, "device-5")

	res, err := f.pipe.Process(ctx, f.ada, text(f.direct.ID, "hi"))
	require.NoError(t, err)

	assert.Equal(t, DeliveryLive, res.Delivery)
	assert.Nil(t, res.Report)
	require.Len(t, bob.frames, 1)
	got := bob.frames[0]
	assert.Equal(t, chatv1.FrameMessage, got.Type)
	assert.Equal(t, "hi", got.Message.Text)
	assert.Equal(t, int64(3), got.Message.SenderID)
	assert.Equal(t, f.direct.ID, got.Thread.ID)
	assert.Empty(t, f.provider.pushed)

	msgs, err := f.store.ListMessages(ctx, f.direct.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, data.StatusSent, msgs[0].Status)
	assert.Equal(t, data.TypeText, msgs[0].MessageType)

	after, err := f.store.GetThread(ctx, f.direct.ID)
	require.NoError(t, err)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	assert.Equal(t, msgs[0].CreatedAt, after.UpdatedAt)
}

func TestProcess_OfflineRecipientGetsPush(t *testing.T) {
	f := newFixture(t)
	f.token(t, 5, "device-5")

	res, err := f.pipe.Process(context.Background(), f.ada, text(f.direct.ID, "hi"))
	require.NoError(t, err)

	assert.Equal(t, DeliveryPush, res.Delivery)
	assert.Equal(t, []int64{5}, res.Recipients)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, res.Report.Sent)
	assert.NoError(t, res.PushErr)

	require.Len(t, f.provider.pushed, 1)
	assert.Equal(t, "hi", f.provider.pushed[0].Body)
	assert.Equal(t, "Ada Obi", f.provider.pushed[0].Title)
	assert.Equal(t, []string{"device-5"}, f.provider.tokens[0])
}

func TestProcess_FailedLiveSendFallsBackToPush(t *testing.T) {
	f := newFixture(t)
	f.registry.Register(5, &fakeSender{fail: true})
	f.token(t, 5, "device-5")

	res, err := f.pipe.Process(context.Background(), f.ada, text(f.direct.ID, "hello?"))
	require.NoError(t, err)
	assert.Equal(t, DeliveryPush, res.Delivery)
	require.Len(t, f.provider.pushed, 1)

	_, online := f.registry.Lookup(5)
	assert.False(t, online)
}

func TestProcess_UnknownThread(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipe.Process(context.Background(), f.ada, text(999, "hi"))
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestProcess_OutsiderIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipe.Process(ctx, f.kemi, text(f.direct.ID, "let me in"))
	assert.True(t, errs.Is(err, errs.KindNotFound))

	outsider := &data.User{ID: 77, FirstName: "No", LastName: "Body"}
	_, err = f.pipe.Process(ctx, outsider, text(f.group.ID, "hey"))
	assert.True(t, errs.Is(err, errs.KindNotFound))

	msgs, err := f.store.ListMessages(ctx, f.direct.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestProcess_GroupPushesEveryOtherMember(t *testing.T) {
	f := newFixture(t)
	// a live connection does not matter for group threads
	live := &fakeSender{}
	f.registry.Register(5, live)
	f.token(t, 3, "device-3")
	f.token(t, 5, "device-5")
	f.token(t, 8, "device-8")

	res, err := f.pipe.Process(context.Background(), f.ada, text(f.group.ID, "run at 6"))
	require.NoError(t, err)

	assert.Equal(t, DeliveryPush, res.Delivery)
	assert.ElementsMatch(t, []int64{5, 8}, res.Recipients)
	assert.Empty(t, live.frames)

	require.Len(t, f.provider.tokens, 1)
	assert.ElementsMatch(t, []string{"device-5", "device-8"}, f.provider.tokens[0])
	assert.Equal(t, "Ada Obi @ Runners", f.provider.pushed[0].Title)
	assert.Equal(t, int64(11), f.provider.pushed[0].Data["groupId"])
}

func TestProcess_PushFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	f.token(t, 5, "device-5")
	f.provider.err = errors.New("provider down")

	res, err := f.pipe.Process(context.Background(), f.ada, text(f.direct.ID, "hi"))
	require.NoError(t, err)
	require.Error(t, res.PushErr)
	assert.True(t, errs.Is(res.PushErr, errs.KindTransientDelivery))
	assert.NotZero(t, res.Message.ID)
}

func TestProcess_MediaPayload(t *testing.T) {
	f := newFixture(t)
	f.token(t, 5, "device-5")

	ev := Event{ThreadID: f.direct.ID, Payload: File{URL: "https://cdn/x.pdf", Name: "x.pdf"}}
	res, err := f.pipe.Process(context.Background(), f.ada, ev)
	require.NoError(t, err)

	assert.Equal(t, data.TypeFile, res.Message.MessageType)
	assert.Equal(t, "https://cdn/x.pdf", res.Message.File)
	assert.Equal(t, "x.pdf", res.Message.FileName)
	assert.Equal(t, "Sent x.pdf", f.provider.pushed[0].Body)
}

func TestProcess_PreservesPerSenderOrder(t *testing.T) {
	f := newFixture(t)
	bob := &fakeSender{}
	f.registry.Register(5, bob)

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.pipe.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}

	for _, body := range []string{"one", "two", "three"} {
		_, err := f.pipe.Process(context.Background(), f.ada, text(f.direct.ID, body))
		require.NoError(t, err)
	}

	require.Len(t, bob.frames, 3)
	assert.Equal(t, "one", bob.frames[0].Message.Text)
	assert.Equal(t, "three", bob.frames[2].Message.Text)

	msgs, err := f.store.ListMessages(context.Background(), f.direct.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[1].Text)
}
