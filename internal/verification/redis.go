package verification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON strings with a native Redis TTL, so
// every instance of the service sees the same passcodes.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore namespaces its keys under prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k Key) string { return s.prefix + ":" + k.String() }

func (s *RedisStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	rec.ExpiresAt = time.Now().Add(ttl).UTC()
	bs, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), bs, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key Key) (Record, error) {
	bs, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, errNoRecord
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(bs, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// attemptScript bumps the attempt counter inside the stored JSON and keeps
// the key's TTL. It returns the new value, or nil when the key is gone.
var attemptScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return false
end
local rec = cjson.decode(v)
rec.attempts = (tonumber(rec.attempts) or 0) + 1
local out = cjson.encode(rec)
redis.call('SET', KEYS[1], out, 'KEEPTTL')
return out
`)

func (s *RedisStore) Attempt(ctx context.Context, key Key) (Record, error) {
	out, err := attemptScript.Run(ctx, s.rdb, []string{s.key(key)}).Text()
	if errors.Is(err, redis.Nil) {
		return Record{}, errNoRecord
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
