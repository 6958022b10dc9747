// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Push providers.
const (
	PushExpo = "expo"
	PushLog  = "log"
)

// Config holds all configuration for the realtime service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"ilinkon-realtime"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	GRPCPort        int           `env:"PORT" envDefault:"50051"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Persistence
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"chat_db"`

	// Auth: either a single secret or kid:secret pairs for rotation
	JWTSecret    string            `env:"JWT_SECRET"`
	JWTKeys      map[string]string `env:"JWT_KEYS" envSeparator:"," envKeyValSeparator:":"`
	JWTActiveKid string            `env:"JWT_ACTIVE_KID"`
	JWTTTL       time.Duration     `env:"JWT_TTL" envDefault:"24h"`

	// TLS for the gRPC listener
	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS" envDefault:"false"`

	// Rate limits
	RateLimitRPM      int `env:"RATE_LIMIT_RPM" envDefault:"10"`
	RateLimitBurst    int `env:"RATE_LIMIT_BURST" envDefault:"3"`
	MessageLimitRPM   int `env:"MESSAGE_LIMIT_RPM" envDefault:"120"`
	MessageLimitBurst int `env:"MESSAGE_LIMIT_BURST" envDefault:"20"`

	// Push
	PushProvider    string        `env:"PUSH_PROVIDER" envDefault:"expo"`
	ExpoBaseURL     string        `env:"EXPO_BASE_URL" envDefault:"https://exp.host"`
	ExpoAccessToken string        `env:"EXPO_ACCESS_TOKEN"`
	PushChannelID   string        `env:"PUSH_CHANNEL_ID" envDefault:"chat-messages"`
	PushTimeout     time.Duration `env:"PUSH_TIMEOUT" envDefault:"15s"`

	// Websocket gateway
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`
}

// Load parses environment variables into Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations env tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", StoreMongo)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if strings.TrimSpace(c.JWTSecret) == "" && len(c.JWTKeys) == 0 {
		return fmt.Errorf("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(c.JWTKeys) > 0 && c.JWTActiveKid != "" {
		if _, ok := c.JWTKeys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWTActiveKid)
		}
	}

	hasCert := c.TLSCert != "" && c.TLSKey != ""
	if c.RequireTLS && !hasCert {
		return fmt.Errorf("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}

	switch c.PushProvider {
	case PushExpo, PushLog:
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.PushProvider)
	}
	return nil
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// LoadEnvFiles loads the first .env files found near the working directory.
// Variables already set in the process environment win.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env", "../../.env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
		}
	}
}
