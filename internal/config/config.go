package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	Uploads storage.Config
	Log     LogConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Production reports whether gin should run in release mode.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

// MongoDBConfig configures the record store. An empty URI selects the
// in-memory store.
type MongoDBConfig struct {
	URI             string
	Database        string
	Collection      string
	Timeout         time.Duration
	ConnectAttempts int
}

// RedisConfig configures the optional book cache. An empty Host disables it.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables and an optional
// .env file (path overridable with ENV_FILE).
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 15)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MONGODB_DATABASE", "libros")
	v.SetDefault("MONGODB_COLLECTION", "libros")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_CONNECT_ATTEMPTS", 5)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CACHE_TTL", 300)
	v.SetDefault("UPLOADS_BACKEND", storage.BackendLocal)
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("UPLOADS_MAX_BYTES", 5<<20)
	v.SetDefault("MINIO_BUCKET", "libros")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     seconds(v, "SERVER_READ_TIMEOUT"),
			WriteTimeout:    seconds(v, "SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: seconds(v, "SERVER_SHUTDOWN_TIMEOUT"),
			AllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		MongoDB: MongoDBConfig{
			URI:             v.GetString("MONGODB_URI"),
			Database:        v.GetString("MONGODB_DATABASE"),
			Collection:      v.GetString("MONGODB_COLLECTION"),
			Timeout:         seconds(v, "MONGODB_TIMEOUT"),
			ConnectAttempts: v.GetInt("MONGODB_CONNECT_ATTEMPTS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CacheTTL: seconds(v, "REDIS_CACHE_TTL"),
		},
		Uploads: storage.Config{
			Backend:  strings.ToLower(v.GetString("UPLOADS_BACKEND")),
			Dir:      v.GetString("UPLOADS_DIR"),
			MaxBytes: v.GetInt64("UPLOADS_MAX_BYTES"),
			MinIO: storage.MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
				Bucket:    v.GetString("MINIO_BUCKET"),
			},
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT is required")
	}
	if c.MongoDB.URI != "" && c.MongoDB.ConnectAttempts < 1 {
		return errors.New("MONGODB_CONNECT_ATTEMPTS must be at least 1")
	}
	if c.Redis.Enabled() && c.Redis.CacheTTL <= 0 {
		return errors.New("REDIS_CACHE_TTL must be positive")
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	return nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
