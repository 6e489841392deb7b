package sessionxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/sessionx"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every session key.
const DefaultPrefix = "docfill:session:"

// RedisStore implements sessionx.Store. Each snapshot lives in a hash
// holding the JSON document and its revision.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

type Option func(*RedisStore)

// WithTTL expires snapshots d after their last save. Zero keeps them
// forever.
func WithTTL(d time.Duration) Option {
	return func(s *RedisStore) { s.ttl = d }
}

func WithPrefix(prefix string) Option {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(rdb redis.Cmdable, opts ...Option) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id kernel.SessionID) string { return s.prefix + id.String() }

// saveScript writes the snapshot only when its revision is not older than
// the stored one, so a slow writer cannot roll a session back.
var saveScript = redis.NewScript(`
local key = KEYS[1]
local rev = tonumber(ARGV[1])
local cur = tonumber(redis.call('HGET', key, 'rev') or '-1')
if cur > rev then
    return 0
end
redis.call('HSET', key, 'rev', ARGV[1], 'data', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
end
return 1
`)

func (s *RedisStore) Save(ctx context.Context, snap sessionx.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	err = saveScript.Run(ctx, s.rdb,
		[]string{s.key(snap.ID)},
		strconv.FormatUint(snap.Revision, 10),
		data,
		strconv.FormatInt(s.ttl.Milliseconds(), 10),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return redisErrors.NewWithCause(ErrSave, err).WithDetail("session_id", snap.ID.String())
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id kernel.SessionID) (*sessionx.Snapshot, error) {
	data, err := s.rdb.HGet(ctx, s.key(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sessionx.ErrSessionNotFound().WithDetail("session_id", id.String())
		}
		return nil, redisErrors.NewWithCause(ErrLoad, err).WithDetail("session_id", id.String())
	}
	return Decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, id kernel.SessionID) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return redisErrors.NewWithCause(ErrDelete, err).WithDetail("session_id", id.String())
	}
	return nil
}

// Encode renders a snapshot the way RedisStore stores it.
func Encode(snap sessionx.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrMarshal, err).WithDetail("session_id", snap.ID.String())
	}
	return data, nil
}

func Decode(data []byte) (*sessionx.Snapshot, error) {
	var snap sessionx.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err)
	}
	return &snap, nil
}

var _ sessionx.Store = (*RedisStore)(nil)
