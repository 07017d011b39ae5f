// Package config loads server configuration from the environment and builds
// the service graph from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
	"github.com/greenlight-eco/ecolens/pkg/ecolens/session"
	fsstorage "github.com/greenlight-eco/ecolens/pkg/ecolens/storage/fs"
	memorystorage "github.com/greenlight-eco/ecolens/pkg/ecolens/storage/memory"
	s3storage "github.com/greenlight-eco/ecolens/pkg/ecolens/storage/s3"
)

// ServerConfig represents server configuration for the EcoLens service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"5001"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// PublicBaseURL is the externally reachable base under which slot files
	// are served (a tunnel or CDN host). Falls back to the local address.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	// ML service
	MLBaseURL string `env:"ML_BASE_URL"`

	// Slot storage
	StorageType string   `env:"STORAGE_TYPE" env-default:"fs"` // "fs", "memory", "s3"
	DataDir     string   `env:"DATA_DIR" env-default:"./data"`
	Slots       []string `env:"SLOTS" env-separator:"," env-default:"uploads,product1,product2"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" env-default:"5242880"`

	// Session storage
	SessionStoreType string `env:"SESSION_STORE" env-default:"fs"` // "memory", "fs", "postgres"
	SessionDir       string `env:"SESSION_DIR" env-default:"./data/extracted_data"`
	DatabaseURL      string `env:"DATABASE_URL"`

	// S3 slot storage (used when STORAGE_TYPE=s3)
	S3Region          string `env:"S3_REGION"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3KeyPrefix       string `env:"S3_KEY_PREFIX"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET_IF_NOT_EXIST" env-default:"false"`
}

// Load reads .env (when present) and the process environment.
func Load() (*ServerConfig, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if len(c.Slots) == 0 {
		return errors.New("at least one slot is required")
	}

	switch c.StorageType {
	case "fs", "memory":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when using s3 storage")
		}
	default:
		return fmt.Errorf("storage type must be 'fs', 'memory' or 's3', got %q", c.StorageType)
	}

	switch c.SessionStoreType {
	case "memory", "fs":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when using the postgres session store")
		}
	default:
		return fmt.Errorf("session store must be 'memory', 'fs' or 'postgres', got %q", c.SessionStoreType)
	}

	if c.MLBaseURL == "" {
		return errors.New("ML_BASE_URL is required")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	return nil
}

// LocalBaseURL is the base under which this process serves slot files.
func (c *ServerConfig) LocalBaseURL() string {
	return "http://localhost:" + c.Port
}

// BuildSlotStore creates the configured slot storage backend.
func (c *ServerConfig) BuildSlotStore() (ecolens.SlotStore, error) {
	switch c.StorageType {
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.DataDir,
			Slots:   c.Slots,
		})
	case "memory":
		return memorystorage.New(), nil
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			KeyPrefix:              c.S3KeyPrefix,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.StorageType)
	}
}

// BuildService creates the slot allocator service from the configuration.
func (c *ServerConfig) BuildService(store ecolens.SlotStore, logger *slog.Logger) (ecolens.Service, error) {
	return ecolens.New(
		ecolens.WithSlotStore(store),
		ecolens.WithSlots(c.Slots...),
		ecolens.WithMaxUploadSize(c.MaxUploadBytes),
		ecolens.WithEventSink(ecolens.NewSlogEventSink(logger)),
	)
}

// BuildSessionStore creates the configured session store. Durable stores are
// fronted by a memory cache.
func (c *ServerConfig) BuildSessionStore(ctx context.Context) (session.Store, error) {
	switch c.SessionStoreType {
	case "memory":
		return session.NewMemoryStore(), nil
	case "fs":
		fs, err := session.NewFSStore(c.SessionDir)
		if err != nil {
			return nil, err
		}
		return session.NewCachedStore(fs), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return session.NewCachedStore(session.NewPostgresStoreWithPool(pool)), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", c.SessionStoreType)
	}
}
