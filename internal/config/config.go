// Package config loads the astkg configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/astkg/config.toml unless
// a path is given explicitly. Every key is optional; missing keys keep the
// values from [Default].
//
//	[codec]
//	max_depth = 1000
//	lenient = false
//	parallel = false
//
//	[store]
//	backend = "sqlite"
//	path = "~/.local/share/astkg/graphs.db"
//
//	[cache]
//	enabled = true
//	backend = "file"
//	ttl = "168h"
//
//	[server]
//	addr = ":8080"
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/store"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

const appName = "astkg"

// EnvPath overrides the default config file location.
const EnvPath = "ASTKG_CONFIG"

// Config is the whole configuration file.
type Config struct {
	Codec  Codec        `toml:"codec"`
	Store  store.Config `toml:"store"`
	Cache  Cache        `toml:"cache"`
	Server Server       `toml:"server"`
}

// Codec holds encoder and decoder settings.
type Codec struct {
	MaxDepth int  `toml:"max_depth"`
	Lenient  bool `toml:"lenient"`
	Parallel bool `toml:"parallel"`
}

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Cache configures the graph and render cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Backend string `toml:"backend"`

	// Dir is the file cache directory. Empty means $XDG_CACHE_HOME/astkg.
	Dir string `toml:"dir"`

	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`

	// KeyPrefix namespaces entries so several deployments can share one
	// redis cache.
	KeyPrefix string `toml:"key_prefix"`

	// TTL bounds entry lifetime. Zero keeps the built-in lifetimes.
	TTL Duration `toml:"ttl"`
}

// Server configures `astkg serve`.
type Server struct {
	Addr string `toml:"addr"`

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes"`

	// RequestTimeout bounds one request.
	RequestTimeout Duration `toml:"request_timeout"`
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Codec: Codec{MaxDepth: codec.DefaultMaxDepth},
		Store: defaultStore(),
		Cache: Cache{
			Enabled:   true,
			Backend:   CacheFile,
			RedisAddr: "localhost:6379",
		},
		Server: Server{
			Addr:           ":8080",
			MaxBodyBytes:   10 << 20,
			RequestTimeout: Duration{30 * time.Second},
		},
	}
}

// defaultStore keeps graphs in a sqlite file under the XDG data
// directory, or in memory when no home directory is known.
func defaultStore() store.Config {
	cfg := store.DefaultConfig()
	if dir, err := DataDir(); err == nil {
		cfg.Backend = store.BackendSQLite
		cfg.Path = filepath.Join(dir, "graphs.db")
	}
	return cfg
}

// Path returns the config file location: $ASTKG_CONFIG if set, else
// $XDG_CONFIG_HOME/astkg/config.toml, else ~/.config/astkg/config.toml.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// CacheDir returns the file cache directory using the XDG layout
// (~/.cache/astkg/).
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// DataDir returns the directory for persistent data
// (~/.local/share/astkg/).
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// Load reads the file at path on top of Default. An empty path uses
// Path(), and a missing default file is not an error. A path given
// explicitly must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if explicit {
			return cfg, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "read config %s", path)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, apperr.Wrap(apperr.GetCode(err), err, "%s", path)
	}
	return cfg, nil
}

// Decode parses TOML data into cfg, keeping fields the data does not set.
// Unknown keys are rejected so typos do not pass silently.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return apperr.New(apperr.ErrCodeInvalidFormat, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate checks value ranges and backend names.
func (c *Config) Validate() error {
	if c.Codec.MaxDepth < 0 {
		return apperr.New(apperr.ErrCodeInvalidInput, "codec.max_depth must be >= 0, got %d", c.Codec.MaxDepth)
	}
	switch c.Store.Backend {
	case "", store.BackendMemory, store.BackendSQLite, store.BackendBadger, store.BackendRedis, store.BackendMongo:
	default:
		return apperr.New(apperr.ErrCodeInvalidInput, "store.backend %q is not one of memory, sqlite, badger, redis, mongo", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "", CacheFile, CacheRedis:
	default:
		return apperr.New(apperr.ErrCodeInvalidInput, "cache.backend %q is not one of file, redis", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return apperr.New(apperr.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return apperr.New(apperr.ErrCodeInvalidInput, "server.max_body_bytes must not be negative")
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "encode config")
	}
	return buf.Bytes(), nil
}

// WriteDefault writes Default to path, creating parent directories. An
// existing file is left alone and reported as InvalidPath.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return apperr.New(apperr.ErrCodeInvalidPath, "%s already exists", path)
	}
	data, err := Encode(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
