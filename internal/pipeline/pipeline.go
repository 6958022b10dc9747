// Package pipeline persists inbound messages and routes them to recipients,
// live when a connection is registered and by push otherwise.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/push"
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetThread(ctx context.Context, id int64) (*data.MessageThread, error)
	GetGroup(ctx context.Context, id int64) (*data.Group, error)
	ListGroupMembers(ctx context.Context, groupID int64) ([]*data.GroupMember, error)
	CreateMessage(ctx context.Context, msg *data.Message) error
	TouchThread(ctx context.Context, id int64, at time.Time) error
}

// Registry delivers a frame to a live connection. It returns an error when
// the user is offline or the write fails.
type Registry interface {
	Deliver(userID int64, resp *chatv1.ChatStreamResponse) error
}

// Notifier pushes a notification to users' devices.
type Notifier interface {
	NotifyUsers(ctx context.Context, n push.Notification, userIDs []int64) (*push.Report, error)
}

// Delivery is how a message reached its recipients.
type Delivery string

const (
	DeliveryLive Delivery = "live"
	DeliveryPush Delivery = "push"
)

// Result describes one processed event.
type Result struct {
	Message    *data.Message
	Thread     *data.MessageThread
	Delivery   Delivery
	Recipients []int64
	// Report and PushErr are set when push was attempted. The message is
	// persisted either way.
	Report  *push.Report
	PushErr error
}

// Pipeline processes message events. Callers process the events of one
// connection sequentially to keep per-sender order.
type Pipeline struct {
	store    Store
	registry Registry
	notifier Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns a Pipeline. m may be nil.
func New(store Store, registry Registry, notifier Notifier, log zerolog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:    store,
		registry: registry,
		notifier: notifier,
		log:      log.With().Str("component", "pipeline").Logger(),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process persists ev as a message from sender and delivers it.
func (p *Pipeline) Process(ctx context.Context, sender *data.User, ev Event) (*Result, error) {
	if ev.Payload == nil {
		return nil, errs.Validation("message payload is required")
	}

	thread, err := p.store.GetThread(ctx, ev.ThreadID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errs.NotFound("thread %d not found", ev.ThreadID)
	}
	if err != nil {
		return nil, errs.Internal("load thread", err)
	}

	recipients, err := p.recipients(ctx, thread, sender.ID)
	if err != nil {
		return nil, err
	}

	now := p.now()
	msg := &data.Message{
		ThreadID:    thread.ID,
		SenderID:    sender.ID,
		Status:      data.StatusSent,
		MessageType: ev.Payload.Type(),
		CreatedAt:   now,
	}
	ev.Payload.apply(msg)

	if err := p.store.CreateMessage(ctx, msg); err != nil {
		return nil, errs.Internal("save message", err)
	}
	if err := p.store.TouchThread(ctx, thread.ID, now); err != nil {
		return nil, errs.Internal("touch thread", err)
	}
	thread.UpdatedAt = now

	res := &Result{Message: msg, Thread: thread, Recipients: recipients}

	if thread.IsGroup() {
		// group threads always go out by push
		res.Delivery = DeliveryPush
		p.notify(ctx, res, sender, ev.Payload)
		p.metrics.MessageProcessed(string(res.Delivery))
		return res, nil
	}

	recipient := recipients[0]
	frame := &chatv1.ChatStreamResponse{Type: chatv1.FrameMessage, Thread: thread, Message: msg}
	if err := p.registry.Deliver(recipient, frame); err == nil {
		res.Delivery = DeliveryLive
		p.metrics.MessageProcessed(string(res.Delivery))
		return res, nil
	}
	p.log.Debug().Int64("recipient", recipient).Int64("message_id", msg.ID).Msg("live delivery unavailable, falling back to push")

	res.Delivery = DeliveryPush
	p.notify(ctx, res, sender, ev.Payload)
	p.metrics.MessageProcessed(string(res.Delivery))
	return res, nil
}

// recipients checks that senderID may post to thread and returns the other
// side: the counterpart of a direct thread, or every other group member.
func (p *Pipeline) recipients(ctx context.Context, thread *data.MessageThread, senderID int64) ([]int64, error) {
	if !thread.IsGroup() {
		if !thread.HasParticipant(senderID) {
			return nil, errs.NotFound("thread %d not found", thread.ID)
		}
		other := thread.Counterpart(senderID)
		if other == nil {
			return nil, errs.Internal("direct thread without counterpart", nil)
		}
		return []int64{other.ParticipantID}, nil
	}

	members, err := p.store.ListGroupMembers(ctx, *thread.GroupID)
	if err != nil {
		return nil, errs.Internal("list group members", err)
	}
	var (
		member bool
		others []int64
	)
	for _, m := range members {
		if m.MemberID == senderID {
			member = true
			continue
		}
		others = append(others, m.MemberID)
	}
	if !member {
		return nil, errs.NotFound("thread %d not found", thread.ID)
	}
	if thread.Group == nil {
		if g, err := p.store.GetGroup(ctx, *thread.GroupID); err == nil {
			thread.Group = g
		}
	}
	return others, nil
}

func (p *Pipeline) notify(ctx context.Context, res *Result, sender *data.User, payload Payload) {
	if len(res.Recipients) == 0 {
		res.Report = &push.Report{}
		return
	}

	n := push.Notification{
		Title: sender.DisplayName(),
		Body:  payload.preview(),
		Data: map[string]any{
			"threadId":  res.Thread.ID,
			"messageId": res.Message.ID,
		},
	}
	if res.Thread.Group != nil {
		n.Data["groupId"] = res.Thread.Group.ID
		n.Title = sender.DisplayName() + " @ " + res.Thread.Group.Name
	}

	report, err := p.notifier.NotifyUsers(ctx, n, res.Recipients)
	res.Report, res.PushErr = report, err
	if err != nil {
		p.log.Warn().Err(err).
			Int64("thread_id", res.Thread.ID).
			Int64("message_id", res.Message.ID).
			Str("kind", string(errs.KindOf(err))).
			Msg("push delivery failed")
	}
}
