package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Redis is a Store keeping each graph as one list of JSON triples, plus a
// set of graph ids.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to cfg.RedisAddr and checks the connection.
func OpenRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	err := withRetry(ctx, func() error {
		return retryable(client.Ping(ctx).Err())
	})
	if err != nil {
		client.Close()
		return nil, storeErr(err, "connect to redis at %s", cfg.RedisAddr)
	}
	return &Redis{client: client, prefix: cfg.KeyPrefix}, nil
}

func (r *Redis) graphKey(id string) string { return r.prefix + ":graph:" + id }

func (r *Redis) indexKey() string { return r.prefix + ":graphs" }

// Put replaces the triples stored under graphID in one MULTI block.
func (r *Redis) Put(ctx context.Context, graphID string, triples []kg.Triple) error {
	if err := checkPut(graphID, triples); err != nil {
		return err
	}
	values := make([]any, len(triples))
	for i, t := range triples {
		v, err := json.Marshal(t)
		if err != nil {
			return storeErr(err, "encode triple")
		}
		values[i] = v
	}
	key := r.graphKey(graphID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.RPush(ctx, key, values...)
		p.SAdd(ctx, r.indexKey(), graphID)
		return nil
	})
	if err != nil {
		return storeErr(err, "put %s", graphID)
	}
	return nil
}

// Scan calls fn for every triple of graphID.
func (r *Redis) Scan(ctx context.Context, graphID string, fn func(kg.Triple) error) error {
	if err := apperr.ValidateGraphID(graphID); err != nil {
		return err
	}
	values, err := r.client.LRange(ctx, r.graphKey(graphID), 0, -1).Result()
	if err != nil {
		return storeErr(err, "read %s", graphID)
	}
	if len(values) == 0 {
		return notFound(graphID)
	}
	for _, v := range values {
		var t kg.Triple
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return storeErr(err, "decode triple of %s", graphID)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes graphID.
func (r *Redis) Delete(ctx context.Context, graphID string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.graphKey(graphID))
		p.SRem(ctx, r.indexKey(), graphID)
		return nil
	})
	if err != nil {
		return storeErr(err, "delete %s", graphID)
	}
	if del.Val() == 0 {
		return notFound(graphID)
	}
	return nil
}

// List returns the stored graph ids.
func (r *Redis) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, storeErr(err, "list graphs")
	}
	return sorted(ids), nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
