// Package store persists knowledge graphs as (source, relation,
// destination) triples.
//
// A [Store] keeps any number of graphs under string ids. Put replaces a
// graph wholesale and Scan replays its triples in the order they were
// written, so a graph read back through [LoadGraph] serializes identically
// to the one saved with [SaveGraph].
//
// Backends:
//
//   - memory: process-local map, for tests and one-shot CLI runs
//   - sqlite: single file through modernc.org/sqlite (no cgo)
//   - badger: embedded key-value directory through dgraph-io/badger
//   - redis: one list per graph through go-redis
//   - mongo: one document per triple through the official driver
//
// Graph ids are validated with [errors.ValidateGraphID]; [NewID] returns a
// fresh UUID for callers that do not name their graphs.
package store

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Store is a triple store holding many graphs.
type Store interface {
	// Put replaces the triples stored under graphID.
	Put(ctx context.Context, graphID string, triples []kg.Triple) error

	// Scan calls fn for every triple of graphID in insertion order. A
	// missing graph yields ErrCodeGraphNotFound. An error from fn stops the
	// scan and is returned unchanged.
	Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error

	// Delete removes graphID. A missing graph yields ErrCodeGraphNotFound.
	Delete(ctx context.Context, graphID string) error

	// List returns the stored graph ids in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases the backend.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `toml:"backend"`

	// Path is the sqlite file or badger directory. Empty means in-memory
	// for both.
	Path string `toml:"path"`

	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	RedisPassword string `toml:"redis_password"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`

	// KeyPrefix namespaces redis keys and the mongo collection.
	KeyPrefix string `toml:"key_prefix"`

	Logger *log.Logger `toml:"-"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMemory,
		RedisAddr:     "localhost:6379",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "astkg",
		KeyPrefix:     "astkg",
	}
}

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "astkg"
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case BackendBadger:
		return OpenBadger(cfg.Path, cfg.Logger)
	case BackendRedis:
		return OpenRedis(ctx, cfg)
	case BackendMongo:
		return OpenMongo(ctx, cfg)
	}
	return nil, apperr.New(apperr.ErrCodeInvalidInput, "unknown store backend %q", cfg.Backend)
}

// NewID returns a random graph id.
func NewID() string {
	return uuid.NewString()
}

// SaveGraph stores g under id, or under a fresh id when id is empty, and
// returns the id used.
func SaveGraph(ctx context.Context, s Store, id string, g *kg.Graph) (string, error) {
	if id == "" {
		id = NewID()
	}
	ts, err := kg.ToTriples(g)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrCodeInvalidGraph, err, "flatten graph")
	}
	if err := s.Put(ctx, id, ts); err != nil {
		return "", err
	}
	return id, nil
}

// LoadGraph reads the graph stored under id.
func LoadGraph(ctx context.Context, s Store, id string) (*kg.Graph, error) {
	var ts []kg.Triple
	err := s.Scan(ctx, id, func(t kg.Triple) error {
		ts = append(ts, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	g, err := kg.FromTriples(ts)
	if err != nil {
		return nil, apperr.Wrap(apperr.GetCode(err), err, "graph %s", id)
	}
	return g, nil
}

// checkPut validates the arguments shared by every Put implementation.
func checkPut(graphID string, triples []kg.Triple) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	if len(triples) == 0 {
		return apperr.New(apperr.ErrCodeInvalidInput, "graph %s has no triples", graphID)
	}
	return nil
}

func notFound(graphID string) error {
	return apperr.New(apperr.ErrCodeGraphNotFound, "graph %s not found", graphID)
}

func storeErr(err error, format string, args ...any) error {
	return apperr.Wrap(apperr.ErrCodeStore, err, format, args...)
}

func sorted(ids []string) []string {
	sort.Strings(ids)
	if ids == nil {
		return []string{}
	}
	return ids
}
