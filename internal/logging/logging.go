// Package logging builds the service logger and the gRPC logging interceptors.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
)

// New creates a zerolog.Logger writing JSON to stdout, or a human readable
// console format when format is "console".
func New(level, format, service, environment string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, service, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format, service, environment string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Str("environment", environment).
		Logger().
		Level(parseLevel(level))
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// UnaryServerInterceptor logs every unary call and records its duration.
func UnaryServerInterceptor(log zerolog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		record(log, m, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor logs every stream when it ends.
func StreamServerInterceptor(log zerolog.Logger, m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		record(log, m, info.FullMethod, start, err)
		return err
	}
}

func record(log zerolog.Logger, m *metrics.Metrics, method string, start time.Time, err error) {
	d := time.Since(start)
	code := status.Code(err)
	m.ObserveRPC(method, code.String(), d)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("code", code.String()).
		Dur("duration", d).
		Msg("grpc call")
}
