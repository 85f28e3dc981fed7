package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/recall/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
	// TTL is applied to every key of a session on each write. Zero disables expiry.
	TTL time.Duration
}

// storeTermsScript appends the terms not yet in the session's term set.
// KEYS[1] = term list, KEYS[2] = term set, ARGV[1] = ttl in ms, ARGV[2:] = terms.
var storeTermsScript = redis.NewScript(`
local ttl = tonumber(ARGV[1])
for i = 2, #ARGV do
	if redis.call("SADD", KEYS[2], ARGV[i]) == 1 then
		redis.call("RPUSH", KEYS[1], ARGV[i])
	end
end
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return redis.status_reply("OK")
`)

// RedisStore keeps sessions in Redis so they survive restarts and can be
// shared between processes.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "recall:session:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: opts.TTL}, nil
}

func (r *RedisStore) queriesKey(id string) string {
	return r.prefix + id + ":queries"
}

func (r *RedisStore) termsKey(id string) string {
	return r.prefix + id + ":terms"
}

func (r *RedisStore) termSetKey(id string) string {
	return r.prefix + id + ":termset"
}

// StoreQuery implements Store.
func (r *RedisStore) StoreQuery(ctx context.Context, sessionID, query string) error {
	key := r.queriesKey(orDefault(sessionID))
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, query)
		if r.ttl > 0 {
			p.PExpire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing query: %w", err)
	}
	return nil
}

// StoreTerms implements Store.
func (r *RedisStore) StoreTerms(ctx context.Context, sessionID string, terms []string) error {
	args := make([]interface{}, 0, len(terms)+1)
	args = append(args, r.ttl.Milliseconds())
	for _, t := range terms {
		if t != "" {
			args = append(args, t)
		}
	}
	if len(args) == 1 {
		return nil
	}
	id := orDefault(sessionID)
	keys := []string{r.termsKey(id), r.termSetKey(id)}
	if err := storeTermsScript.Run(ctx, r.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("storing terms: %w", err)
	}
	return nil
}

// Terms implements Store.
func (r *RedisStore) Terms(ctx context.Context, sessionID string) ([]string, error) {
	terms, err := r.rdb.LRange(ctx, r.termsKey(orDefault(sessionID)), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading terms: %w", err)
	}
	if terms == nil {
		terms = []string{}
	}
	return terms, nil
}

// Queries implements Store.
func (r *RedisStore) Queries(ctx context.Context, sessionID string) ([]string, error) {
	queries, err := r.rdb.LRange(ctx, r.queriesKey(orDefault(sessionID)), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	if queries == nil {
		queries = []string{}
	}
	return queries, nil
}

// BuildEnhancedQuery implements Store.
func (r *RedisStore) BuildEnhancedQuery(ctx context.Context, sessionID, current string) (string, error) {
	terms, err := r.Terms(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return EnhanceTerms(current, terms), nil
}

// Snapshot implements Store.
func (r *RedisStore) Snapshot(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	id := orDefault(sessionID)
	queries, err := r.Queries(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	terms, err := r.Terms(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return models.SessionSnapshot{ID: id, Queries: queries, Terms: terms}, nil
}

// Delete removes every key of a session.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	id := orDefault(sessionID)
	return r.rdb.Del(ctx, r.queriesKey(id), r.termsKey(id), r.termSetKey(id)).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
