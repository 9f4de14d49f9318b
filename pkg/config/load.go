package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by [ApplyEnv].
const EnvPrefix = "VIEWGRAPH_"

// Load builds a configuration from the defaults, the TOML file at path
// (skipped when path is empty), a .env file in the working directory and the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal; variables already set win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, verrors.Wrap(verrors.ErrCodeInvalidConfig, err, "read .env")
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path over c. Keys that do not map to a
// setting are rejected so that typos are not silently ignored.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return verrors.Wrap(verrors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return verrors.New(verrors.ErrCodeInvalidConfig, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// envVar binds one environment variable to a setting.
type envVar struct {
	name  string
	apply func(c *Config, value string) error
}

var envVars = []envVar{
	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"READ_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"WRITE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"IDLE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.IdleTimeout })},
	{"SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"MAX_BODY_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Server.MaxBodyBytes = n
		return err
	}},
	{"ENGINE", func(c *Config, v string) error { c.Layout.Engine = v; return nil }},
	{"CACHE_BACKEND", func(c *Config, v string) error { c.Cache.Backend = v; return nil }},
	{"CACHE_TTL", durationVar(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"CACHE_KEY_PREFIX", func(c *Config, v string) error { c.Cache.KeyPrefix = v; return nil }},
	{"CACHE_DIR", func(c *Config, v string) error { c.Cache.Dir = v; return nil }},
	{"REDIS_ADDR", func(c *Config, v string) error { c.Cache.RedisAddr = v; return nil }},
	{"REDIS_PASSWORD", func(c *Config, v string) error { c.Cache.RedisPassword = v; return nil }},
	{"REDIS_DB", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Cache.RedisDB = n
		return err
	}},
	{"MONGO_URI", func(c *Config, v string) error { c.Cache.MongoURI = v; return nil }},
	{"MONGO_DATABASE", func(c *Config, v string) error { c.Cache.MongoDatabase = v; return nil }},
	{"MONGO_COLLECTION", func(c *Config, v string) error { c.Cache.MongoCollection = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
}

func durationVar(field func(c *Config) *time.Duration) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// ApplyEnv overrides settings from VIEWGRAPH_* variables found by lookup
// (usually [os.LookupEnv]). Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		name := EnvPrefix + ev.name
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := ev.apply(c, strings.TrimSpace(v)); err != nil {
			return verrors.Wrap(verrors.ErrCodeInvalidConfig, err, "%s=%q", name, v)
		}
	}
	return nil
}

// EnvNames lists the recognized environment variables.
func EnvNames() []string {
	names := make([]string, len(envVars))
	for i, ev := range envVars {
		names[i] = EnvPrefix + ev.name
	}
	return names
}
