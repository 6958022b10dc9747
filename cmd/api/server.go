package main

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/hub"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/middleware"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/pipeline"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/threads"
)

// Store is the read side the handlers need beyond the core components.
type Store interface {
	GetUser(ctx context.Context, id int64) (*data.User, error)
	GetThread(ctx context.Context, id int64) (*data.MessageThread, error)
	GetGroup(ctx context.Context, id int64) (*data.Group, error)
	ListGroupMembers(ctx context.Context, groupID int64) ([]*data.GroupMember, error)
	ListUserGroupIDs(ctx context.Context, userID int64) ([]int64, error)
	ListThreadsForUser(ctx context.Context, userID int64, groupIDs []int64, skip, limit int64) ([]*data.MessageThread, error)
	ListMessages(ctx context.Context, threadID int64, limit int64) ([]*data.Message, error)
}

// ThreadResolver finds or creates the thread for a target.
type ThreadResolver interface {
	Resolve(ctx context.Context, requesterID int64, target threads.Target) (*data.MessageThread, error)
}

// MessageProcessor persists and routes one inbound event.
type MessageProcessor interface {
	Process(ctx context.Context, sender *data.User, ev pipeline.Event) (*pipeline.Result, error)
}

// TokenRegistrar stores device push tokens.
type TokenRegistrar interface {
	RegisterToken(ctx context.Context, userID int64, token string) (*data.NotificationToken, error)
}

// Server implements chat.v1.ChatService and backs the websocket gateway.
type Server struct {
	chatv1.UnimplementedChatServiceServer

	store    Store
	resolver ThreadResolver
	pipeline MessageProcessor
	tokens   TokenRegistrar
	registry *hub.Registry
	// messages limits inbound events per user across all connections
	messages *middleware.LimiterStore
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// newServer returns a ready-to-use Server. messages and m may be nil.
func newServer(
	store Store,
	resolver ThreadResolver,
	proc MessageProcessor,
	tokens TokenRegistrar,
	registry *hub.Registry,
	messages *middleware.LimiterStore,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Server {
	return &Server{
		store:    store,
		resolver: resolver,
		pipeline: proc,
		tokens:   tokens,
		registry: registry,
		messages: messages,
		log:      log.With().Str("component", "server").Logger(),
		metrics:  m,
	}
}

// registerService registers the ChatService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	chatv1.RegisterChatServiceServer(s, srv)
}
