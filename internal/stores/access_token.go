package stores

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const accessTokenRecordVersionV1 = 1

var (
	ErrAccessTokenRedisUnavailable = errors.New("access token redis unavailable")
	errAccessTokenRecordCorrupt    = errors.New("access token record corrupt")
)

type accessTokenRecord struct {
	Token     string
	ExpiresAt int64
}

func encodeAccessTokenRecord(r accessTokenRecord) []byte {
	buf := make([]byte, 1+8+len(r.Token))
	buf[0] = accessTokenRecordVersionV1
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.ExpiresAt))
	copy(buf[9:], r.Token)
	return buf
}

func decodeAccessTokenRecord(data []byte) (accessTokenRecord, error) {
	if len(data) < 10 || data[0] != accessTokenRecordVersionV1 {
		return accessTokenRecord{}, errAccessTokenRecordCorrupt
	}
	return accessTokenRecord{
		ExpiresAt: int64(binary.BigEndian.Uint64(data[1:9])),
		Token:     string(data[9:]),
	}, nil
}

// RedisAccessTokenStore shares one access token across processes.
type RedisAccessTokenStore struct {
	redis redis.UniversalClient
	key   string
	now   func() time.Time
}

// NewRedisAccessTokenStore keys the cached token by the service account
// identity so several accounts can share a Redis instance.
func NewRedisAccessTokenStore(redisClient redis.UniversalClient, prefix, identity string) *RedisAccessTokenStore {
	if prefix == "" {
		prefix = "gi:at"
	}
	return &RedisAccessTokenStore{
		redis: redisClient,
		key:   prefix + ":" + strings.ToLower(identity),
		now:   time.Now,
	}
}

// Get returns the cached token if it has not expired.
func (s *RedisAccessTokenStore) Get(ctx context.Context) (string, bool, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrAccessTokenRedisUnavailable, err)
	}
	record, err := decodeAccessTokenRecord(data)
	if err != nil || s.now().Unix() >= record.ExpiresAt {
		return "", false, nil
	}
	return record.Token, true, nil
}

// Set stores token for ttl.
func (s *RedisAccessTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	record := accessTokenRecord{Token: token, ExpiresAt: s.now().Add(ttl).Unix()}
	if err := s.redis.Set(ctx, s.key, encodeAccessTokenRecord(record), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAccessTokenRedisUnavailable, err)
	}
	return nil
}

// MemoryAccessTokenStore keeps the token in process memory.
type MemoryAccessTokenStore struct {
	current atomic.Pointer[accessTokenRecord]
	now     func() time.Time
}

// NewMemoryAccessTokenStore returns an empty in-memory store.
func NewMemoryAccessTokenStore() *MemoryAccessTokenStore {
	return &MemoryAccessTokenStore{now: time.Now}
}

// Get returns the cached token if it has not expired.
func (s *MemoryAccessTokenStore) Get(context.Context) (string, bool, error) {
	record := s.current.Load()
	if record == nil || s.now().Unix() >= record.ExpiresAt {
		return "", false, nil
	}
	return record.Token, true, nil
}

// Set stores token for ttl.
func (s *MemoryAccessTokenStore) Set(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.current.Store(&accessTokenRecord{Token: token, ExpiresAt: s.now().Add(ttl).Unix()})
	return nil
}
