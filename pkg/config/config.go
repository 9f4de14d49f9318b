// Package config holds the settings of the layout server and CLI.
//
// Settings are resolved in order, later sources overriding earlier ones:
//
//  1. [Default] values
//  2. a TOML file passed to [Load] (optional)
//  3. a .env file in the working directory and VIEWGRAPH_* environment
//     variables
//  4. command-line flags, applied by the CLI after Load returns
//
// A complete file looks like:
//
//	[server]
//	addr = "127.0.0.1:3000"
//	read_timeout = "30s"
//	max_body_bytes = 33554432
//
//	[layout]
//	engine = "dot"
//
//	[cache]
//	backend = "redis"
//	ttl = "168h"
//	redis_addr = "localhost:6379"
//
//	[log]
//	level = "info"
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/viewgraph/pkg/cache"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/layout"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultAddr is the listening address of the layout server.
	DefaultAddr = "127.0.0.1:3000"

	// DefaultMaxBodyBytes bounds the request body (32 MiB).
	DefaultMaxBodyBytes = 32 << 20

	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultLogLevel = "info"
)

// =============================================================================
// Config
// =============================================================================

// Config is the complete configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Layout LayoutConfig `toml:"layout"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `toml:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `toml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `toml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `toml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `toml:"max_body_bytes" validate:"gt=0"`
}

// LayoutConfig selects the layout engine. Node and rank separations are
// fixed and not configurable.
type LayoutConfig struct {
	Engine string `toml:"engine" validate:"oneof=dot layered"`
}

// CacheConfig selects and configures the response cache.
type CacheConfig struct {
	Backend         string        `toml:"backend" validate:"oneof=none file redis mongo"`
	TTL             time.Duration `toml:"ttl" validate:"min=0"`
	KeyPrefix       string        `toml:"key_prefix"`
	Dir             string        `toml:"dir"`
	RedisAddr       string        `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword   string        `toml:"redis_password"`
	RedisDB         int           `toml:"redis_db" validate:"min=0"`
	MongoURI        string        `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase   string        `toml:"mongo_database"`
	MongoCollection string        `toml:"mongo_collection"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Layout: LayoutConfig{
			Engine: layout.EngineDot,
		},
		Cache: CacheConfig{
			Backend:         cache.BackendNone,
			TTL:             cache.TTLLayout,
			MongoDatabase:   cache.DefaultMongoDatabase,
			MongoCollection: cache.DefaultMongoCollection,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// CacheOptions converts the cache section into [cache.Options].
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:         c.Cache.Backend,
		Dir:             c.Cache.Dir,
		RedisAddr:       c.Cache.RedisAddr,
		RedisPassword:   c.Cache.RedisPassword,
		RedisDB:         c.Cache.RedisDB,
		MongoURI:        c.Cache.MongoURI,
		MongoDatabase:   c.Cache.MongoDatabase,
		MongoCollection: c.Cache.MongoCollection,
	}
}

// CacheKeyer returns the keyer for cached responses. A KeyPrefix scopes
// every key so several deployments can share one redis or mongo.
func (c *Config) CacheKeyer() cache.Keyer {
	keyer := cache.NewDefaultKeyer()
	if c.Cache.KeyPrefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Cache.KeyPrefix)
	}
	return keyer
}

// LogLevel returns the configured level. Validate guarantees it parses.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// =============================================================================
// Validation
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their TOML key.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate checks every section and reports all failing fields at once as
// an INVALID_CONFIG error. Engine, backend and level names are lowercased
// first.
func (c *Config) Validate() error {
	c.Layout.Engine = strings.ToLower(strings.TrimSpace(c.Layout.Engine))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return verrors.Wrap(verrors.ErrCodeInvalidConfig, err, "invalid configuration")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), errorMessage(fe)))
	}
	return verrors.New(verrors.ErrCodeInvalidConfig, "invalid configuration: %s", strings.Join(msgs, "; "))
}

// fieldPath turns "Config.cache.redis_addr" into "cache.redis_addr".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		param := strings.Fields(fe.Param())
		if len(param) == 2 {
			return fmt.Sprintf("is required when backend is %q", param[1])
		}
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("must be host:port, got %q", fe.Value())
	case "gt":
		return "must be positive"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
