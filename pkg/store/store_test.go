package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

func sampleGraph(t *testing.T) *kg.Graph {
	t.Helper()
	mod := &pyast.Module{Body: []pyast.Stmt{
		&pyast.Assign{
			Pos:     pyast.Pos{Lineno: 1},
			Targets: []pyast.Expr{&pyast.Name{ID: "x", Ctx: pyast.Store}},
			Value:   &pyast.BinOp{Left: pyast.Int(1), Op: pyast.Add, Right: pyast.Str("two")},
		},
		&pyast.Return{Pos: pyast.Pos{Lineno: 2}, Value: pyast.NewName("x")},
	}}
	g, err := codec.Encode(mod)
	require.NoError(t, err)
	return g
}

func triples(n int) []kg.Triple {
	out := make([]kg.Triple, n)
	for i := range out {
		out[i] = kg.Triple{Source: "a", Relation: kg.Indexed("Element", i).String(), Destination: "b"}
	}
	return out
}

func collect(t *testing.T, s Store, id string) []kg.Triple {
	t.Helper()
	var got []kg.Triple
	require.NoError(t, s.Scan(context.Background(), id, func(tr kg.Triple) error {
		got = append(got, tr)
		return nil
	}))
	return got
}

// conformance checks the behaviour every backend shares.
func conformance(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("put and scan keep order", func(t *testing.T) {
		in := triples(300)
		require.NoError(t, s.Put(ctx, "ordered", in))
		assert.Equal(t, in, collect(t, s, "ordered"))
	})

	t.Run("put replaces", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "replaced", triples(5)))
		require.NoError(t, s.Put(ctx, "replaced", triples(2)))
		assert.Len(t, collect(t, s, "replaced"), 2)
	})

	t.Run("missing graph", func(t *testing.T) {
		err := s.Scan(ctx, "nope", func(kg.Triple) error { return nil })
		assert.True(t, apperr.Is(err, apperr.ErrCodeGraphNotFound), "scan error = %v", err)
		err = s.Delete(ctx, "nope")
		assert.True(t, apperr.Is(err, apperr.ErrCodeGraphNotFound), "delete error = %v", err)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.True(t, apperr.Is(s.Put(ctx, "../x", triples(1)), apperr.ErrCodeInvalidGraphID))
		assert.True(t, apperr.Is(s.Put(ctx, "empty", nil), apperr.ErrCodeInvalidInput))
	})

	t.Run("callback error stops scan", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "stopped", triples(10)))
		stop := errors.New("stop")
		seen := 0
		err := s.Scan(ctx, "stopped", func(kg.Triple) error {
			seen++
			if seen == 3 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 3, seen)
	})

	t.Run("list and delete", func(t *testing.T) {
		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ordered", "replaced", "stopped"}, ids)

		require.NoError(t, s.Delete(ctx, "replaced"))
		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ordered", "stopped"}, ids)
	})

	t.Run("graph round trip", func(t *testing.T) {
		g := sampleGraph(t)
		id, err := SaveGraph(ctx, s, "", g)
		require.NoError(t, err)
		assert.Len(t, id, 36)

		back, err := LoadGraph(ctx, s, id)
		require.NoError(t, err)

		want, err := kg.MarshalGraph(g)
		require.NoError(t, err)
		got, err := kg.MarshalGraph(back)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(got))

		mod, err := codec.Decode(back, "")
		require.NoError(t, err)
		assert.Equal(t, "x = 1 + 'two'\nreturn x\n", pyast.Format(mod))

		require.NoError(t, s.Delete(ctx, id))
	})
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	conformance(t, s)
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	defer s.Close()
	conformance(t, s)
}

func TestSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	conformance(t, s)
	require.NoError(t, s.Put(context.Background(), "persisted", triples(3)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, collect(t, s, "persisted"), 3)
}

func TestBadgerInMemory(t *testing.T) {
	s, err := OpenBadger("", nil)
	require.NoError(t, err)
	defer s.Close()
	conformance(t, s)
}

func TestBadgerDir(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "persisted", triples(4)))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, collect(t, s, "persisted"), 4)
}

// The network backends run only when a server is named in the
// environment.
func TestRedis(t *testing.T) {
	addr := os.Getenv("ASTKG_TEST_REDIS")
	if addr == "" {
		t.Skip("ASTKG_TEST_REDIS not set")
	}
	cfg := DefaultConfig()
	cfg.RedisAddr = addr
	cfg.KeyPrefix = "astkg-test-" + NewID()
	s, err := OpenRedis(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	conformance(t, s)
}

func TestMongo(t *testing.T) {
	uri := os.Getenv("ASTKG_TEST_MONGO")
	if uri == "" {
		t.Skip("ASTKG_TEST_MONGO not set")
	}
	cfg := DefaultConfig()
	cfg.MongoURI = uri
	cfg.KeyPrefix = "test_" + NewID()[:8]
	s, err := OpenMongo(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		s.coll.Drop(context.Background())
		s.Close()
	}()
	conformance(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		backend string
		want    any
	}{
		{"", &Memory{}},
		{BackendMemory, &Memory{}},
		{BackendSQLite, &SQLite{}},
		{BackendBadger, &Badger{}},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Backend = tt.backend
		s, err := Open(ctx, cfg)
		require.NoError(t, err, tt.backend)
		assert.IsType(t, tt.want, s, tt.backend)
		s.Close()
	}

	_, err := Open(ctx, Config{Backend: "cassandra"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidInput))
}

func TestWithRetry(t *testing.T) {
	defer func(d time.Duration) { retryDelay = d }(retryDelay)
	retryDelay = time.Millisecond
	ctx := context.Background()
	transient := errors.New("connection refused")

	calls := 0
	err := withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return retryable(transient)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = withRetry(ctx, func() error {
		calls++
		return retryable(transient)
	})
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("auth failed")
	err = withRetry(ctx, func() error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = withRetry(cancelled, func() error { return retryable(transient) })
	assert.ErrorIs(t, err, context.Canceled)
}
