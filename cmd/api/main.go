package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/auth"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/config"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/db"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/hub"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/logging"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/middleware"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/pipeline"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/push"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/push/expo"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/threads"
)

// storeBackend is everything the components read and write.
type storeBackend interface {
	Store
	threads.Store
	pipeline.Store
	push.TokenStore
}

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	m := metrics.New()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Token valid for the configured TTL. JWT_KEYS enables rotation; JWT_SECRET
	// is the single key fallback.
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.JWTTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	var provider push.Provider
	switch cfg.PushProvider {
	case config.PushLog:
		provider = push.NewLogProvider(log)
	default:
		provider = expo.New(cfg.ExpoBaseURL, cfg.ExpoAccessToken, cfg.PushTimeout)
	}

	registry := hub.NewRegistry()
	engine := push.NewEngine(provider, store, log, m, cfg.PushChannelID)
	resolver := threads.NewResolver(store, log)
	proc := pipeline.New(store, registry, engine, log, m)

	// RATE_LIMIT_RPM guards thread and token creation; MESSAGE_LIMIT_RPM
	// bounds inbound events per user.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitBurst, time.Minute)
	defer limiterStore.Stop()
	messageLimits := middleware.NewLimiterStore(cfg.MessageLimitRPM, cfg.MessageLimitBurst, time.Minute)
	defer messageLimits.Stop()
	limited := map[string]bool{
		chatv1.ChatService_CreateThread_FullMethodName:      true,
		chatv1.ChatService_RegisterPushToken_FullMethodName: true,
	}

	var serverOpts []grpc.ServerOption
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// logging -> auth -> rate limiter, so the limiter can key by user
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(log, m),
			authUnaryInterceptor(jwtMgr),
			middleware.RateLimitUnaryInterceptor(limiterStore, limited),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(log, m),
			authStreamInterceptor(jwtMgr),
		),
	)

	grpcServer := grpc.NewServer(serverOpts...)
	srv := newServer(store, resolver, proc, engine, registry, messageLimits, log, m)
	registerService(grpcServer, srv)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(srv, jwtMgr, m, cfg.WSOriginPatterns),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCAddr()).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdown(cfg.ShutdownTimeout, grpcServer, httpServer, log)
		return nil
	})

	return g.Wait()
}

// shutdown stops both servers, forcing the gRPC server closed once timeout
// elapses.
func shutdown(timeout time.Duration, grpcServer *grpc.Server, httpServer *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("graceful stop timed out, forcing")
		grpcServer.Stop()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storeBackend, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return data.NewMemoryStore(), func() {}, nil
	}

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = dbClient.Close(context.Background()) }

	if err := dbClient.CreateIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return data.NewStores(dbClient), closeFn, nil
}
