package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Badger is a Store in an embedded badger directory.
//
// Keys:
//
//	g/<graph>             marker, empty value
//	t/<graph>/<seq:8 BE>  JSON triple
type Badger struct {
	db *badger.DB
}

// badgerLogger adapts a charm logger to badger's Logger interface.
type badgerLogger struct{ l *log.Logger }

func (b badgerLogger) Errorf(f string, args ...any)   { b.l.Errorf(f, args...) }
func (b badgerLogger) Warningf(f string, args ...any) { b.l.Warnf(f, args...) }
func (b badgerLogger) Infof(f string, args ...any)    { b.l.Debugf(f, args...) }
func (b badgerLogger) Debugf(f string, args ...any)   { b.l.Debugf(f, args...) }

// OpenBadger opens or creates a badger database in dir. An empty dir
// keeps everything in memory.
func OpenBadger(dir string, logger *log.Logger) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, storeErr(err, "create %s", dir)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storeErr(err, "open badger")
	}
	return &Badger{db: db}, nil
}

func markerKey(graphID string) []byte { return []byte("g/" + graphID) }

func triplePrefix(graphID string) []byte { return []byte("t/" + graphID + "/") }

func tripleKey(graphID string, seq int) []byte {
	k := triplePrefix(graphID)
	return binary.BigEndian.AppendUint64(k, uint64(seq))
}

// deletePrefix removes every key starting with prefix.
func (b *Badger) deletePrefix(prefix []byte) error {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Put replaces the triples stored under graphID.
func (b *Badger) Put(ctx context.Context, graphID string, triples []kg.Triple) error {
	if err := checkPut(graphID, triples); err != nil {
		return err
	}
	if err := b.deletePrefix(triplePrefix(graphID)); err != nil {
		return storeErr(err, "clear %s", graphID)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for i, t := range triples {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := json.Marshal(t)
		if err != nil {
			return storeErr(err, "encode triple")
		}
		if err := wb.Set(tripleKey(graphID, i), v); err != nil {
			return storeErr(err, "write %s", graphID)
		}
	}
	if err := wb.Set(markerKey(graphID), nil); err != nil {
		return storeErr(err, "write %s", graphID)
	}
	if err := wb.Flush(); err != nil {
		return storeErr(err, "flush %s", graphID)
	}
	return nil
}

// Scan calls fn for every triple of graphID.
func (b *Badger) Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(markerKey(graphID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(graphID)
			}
			return storeErr(err, "read %s", graphID)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = triplePrefix(graphID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t kg.Triple
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &t)
			})
			if err != nil {
				return storeErr(err, "decode triple of %s", graphID)
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes graphID.
func (b *Badger) Delete(ctx context.Context, graphID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(markerKey(graphID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(graphID)
			}
			return err
		}
		return txn.Delete(markerKey(graphID))
	})
	if err != nil {
		if apperr.Is(err, apperr.ErrCodeGraphNotFound) {
			return err
		}
		return storeErr(err, "delete %s", graphID)
	}
	if err := b.deletePrefix(triplePrefix(graphID)); err != nil {
		return storeErr(err, "delete %s", graphID)
	}
	return nil
}

// List returns the stored graph ids.
func (b *Badger) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("g/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len("g/"):]))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "list graphs")
	}
	return sorted(ids), nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

var _ Store = (*Badger)(nil)
