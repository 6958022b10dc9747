package main

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/auth"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/hub"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/middleware"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/normalize"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/pipeline"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/threads"
)

const (
	defaultPageSize     = 20
	maxPageSize         = 100
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// CreateThread returns the thread between the caller and a user or group,
// creating it on first use.
func (s *Server) CreateThread(ctx context.Context, req *chatv1.CreateThreadRequest) (*chatv1.CreateThreadResponse, error) {
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	thread, err := s.resolver.Resolve(ctx, claims.UserID, threads.Target{UserID: req.UserID, GroupID: req.GroupID})
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatv1.CreateThreadResponse{Thread: thread}, nil
}

// RegisterPushToken stores a device token for the caller.
func (s *Server) RegisterPushToken(ctx context.Context, req *chatv1.RegisterPushTokenRequest) (*chatv1.RegisterPushTokenResponse, error) {
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	tok, err := s.tokens.RegisterToken(ctx, claims.UserID, req.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatv1.RegisterPushTokenResponse{ID: tok.ID, Token: tok.Token, CreatedAt: tok.CreatedAt}, nil
}

// ListThreads streams the caller's direct and group threads, most recent first.
func (s *Server) ListThreads(req *chatv1.ListThreadsRequest, stream chatv1.ChatService_ListThreadsServer) error {
	ctx := stream.Context()
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	groupIDs, err := s.store.ListUserGroupIDs(ctx, claims.UserID)
	if err != nil {
		return toStatus(errs.Internal("list groups", err))
	}
	skip, limit := normalize.Page(int(req.Page), int(req.PageSize), defaultPageSize, maxPageSize)
	list, err := s.store.ListThreadsForUser(ctx, claims.UserID, groupIDs, skip, limit)
	if err != nil {
		return toStatus(errs.Internal("list threads", err))
	}

	groups := make(map[int64]*data.Group)
	for _, t := range list {
		summary, err := s.summarize(ctx, t, claims.UserID, groups)
		if err != nil {
			return toStatus(err)
		}
		if err := stream.Send(summary); err != nil {
			return status.Errorf(codes.Internal, "failed to send thread: %v", err)
		}
	}
	return nil
}

// summarize titles a thread for userID: the cached counterpart of a direct
// thread, or the group name.
func (s *Server) summarize(ctx context.Context, t *data.MessageThread, userID int64, groups map[int64]*data.Group) (*chatv1.ThreadSummary, error) {
	summary := &chatv1.ThreadSummary{Thread: t}
	if !t.IsGroup() {
		for _, p := range t.Participants {
			if p.ParticipantID == userID {
				summary.Title, summary.Avatar = p.CounterpartName, p.CounterpartPhoto
			}
		}
		return summary, nil
	}

	g, ok := groups[*t.GroupID]
	if !ok {
		var err error
		g, err = s.store.GetGroup(ctx, *t.GroupID)
		if err != nil && !errors.Is(err, data.ErrNotFound) {
			return nil, errs.Internal("load group", err)
		}
		groups[*t.GroupID] = g
	}
	if g != nil {
		t.Group = g
		summary.Title = g.Name
	}
	return summary, nil
}

// GetHistory streams the latest messages of a thread, oldest first.
func (s *Server) GetHistory(req *chatv1.GetHistoryRequest, stream chatv1.ChatService_GetHistoryServer) error {
	ctx := stream.Context()
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	thread, err := s.accessibleThread(ctx, req.ThreadID, claims.UserID)
	if err != nil {
		return toStatus(err)
	}

	limit := int64(req.Limit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := s.store.ListMessages(ctx, thread.ID, limit)
	if err != nil {
		return toStatus(errs.Internal("list messages", err))
	}

	for _, m := range msgs {
		if err := stream.Send(&chatv1.ChatStreamResponse{Type: chatv1.FrameMessage, Thread: thread, Message: m}); err != nil {
			return status.Errorf(codes.Internal, "failed to send message: %v", err)
		}
	}
	return nil
}

// accessibleThread loads a thread userID participates in. Threads the user
// cannot see are reported as not found.
func (s *Server) accessibleThread(ctx context.Context, threadID, userID int64) (*data.MessageThread, error) {
	if threadID <= 0 {
		return nil, errs.Validation("threadId is required")
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errs.NotFound("thread %d not found", threadID)
	}
	if err != nil {
		return nil, errs.Internal("load thread", err)
	}

	if !thread.IsGroup() {
		if !thread.HasParticipant(userID) {
			return nil, errs.NotFound("thread %d not found", threadID)
		}
		return thread, nil
	}

	members, err := s.store.ListGroupMembers(ctx, *thread.GroupID)
	if err != nil {
		return nil, errs.Internal("list group members", err)
	}
	for _, m := range members {
		if m.MemberID == userID {
			return thread, nil
		}
	}
	return nil, errs.NotFound("thread %d not found", threadID)
}

// ChatStream registers the caller for live delivery and processes inbound
// events until the client closes the stream.
func (s *Server) ChatStream(stream chatv1.ChatService_ChatStreamServer) error {
	ctx := stream.Context()
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	user, err := s.sender(ctx, claims)
	if err != nil {
		return toStatus(err)
	}

	err = s.serve(ctx, user, transportGRPC, stream.Recv, stream)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return nil
	}
	if err != nil {
		return status.Errorf(codes.Internal, "receive error: %v", err)
	}
	return nil
}

const (
	transportGRPC = "grpc"
	transportWS   = "ws"
)

// sender loads the authenticated user that events will be attributed to.
func (s *Server) sender(ctx context.Context, claims *auth.Claims) (*data.User, error) {
	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errs.NotFound("user %d not found", claims.UserID)
	}
	if err != nil {
		return nil, errs.Internal("load user", err)
	}
	return user, nil
}

// serve runs one connection: register, then read and process events in
// order until recv fails. The returned error is recv's.
func (s *Server) serve(
	ctx context.Context,
	user *data.User,
	transport string,
	recv func() (*chatv1.ChatStreamRequest, error),
	out hub.Sender,
) error {
	conn := hub.NewSyncSender(out)
	connID := s.registry.Register(user.ID, conn)
	s.metrics.ConnectionOpened(transport)
	log := s.log.With().Int64("user_id", user.ID).Int64("conn_id", connID).Str("transport", transport).Logger()
	log.Debug().Msg("connection registered")

	defer func() {
		s.registry.Unregister(user.ID, connID)
		s.metrics.ConnectionClosed(transport)
		log.Debug().Msg("connection closed")
	}()

	for {
		req, err := recv()
		if err != nil {
			return err
		}
		// a failed delivery may have dropped this handle while the client
		// kept reading
		if s.registry.Restore(user.ID, connID, conn) {
			log.Info().Msg("connection re-registered")
		}

		frame := s.handleEvent(ctx, log, user, req)
		if err := conn.Send(frame); err != nil {
			log.Warn().Err(err).Msg("failed to write frame")
			return err
		}
	}
}

// handleEvent processes one inbound event and returns the frame for the sender.
func (s *Server) handleEvent(ctx context.Context, log zerolog.Logger, user *data.User, req *chatv1.ChatStreamRequest) *chatv1.ChatStreamResponse {
	if req == nil {
		req = &chatv1.ChatStreamRequest{}
	}
	if s.messages != nil && !s.messages.Allow(middleware.UserKey(user.ID)) {
		return rateLimitedFrame(req.ClientRef)
	}

	ev, err := pipeline.ParseEvent(req)
	if err != nil {
		return errorFrame(err, req.ClientRef)
	}

	res, err := s.pipeline.Process(ctx, user, ev)
	if err != nil {
		if errs.Is(err, errs.KindInternal) {
			log.Error().Err(err).Int64("thread_id", ev.ThreadID).Msg("failed to process message")
		}
		return errorFrame(err, ev.ClientRef)
	}

	ack := &chatv1.ChatStreamResponse{
		Type:      chatv1.FrameAck,
		Thread:    res.Thread,
		Message:   res.Message,
		ClientRef: ev.ClientRef,
	}
	if res.PushErr != nil {
		ack.Warning = deliveryWarning(res)
		log.Warn().Err(res.PushErr).
			Int64("thread_id", res.Thread.ID).
			Int64("message_id", res.Message.ID).
			Int("sent", ack.Warning.Sent).
			Int("delivered", ack.Warning.Delivered).
			Msg("message saved but push delivery failed")
	}
	return ack
}
