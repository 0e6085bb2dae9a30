package abcxyz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	"github.com/angelmondragon/abcxyz-forecast/pkg/redis"
)

// ErrResultNotFound is returned when no stored result matches a lookup.
var ErrResultNotFound = errors.New("classification result not found")

// ResultStore keeps classification results addressable by id, plus a latest pointer overall and
// per source. An empty source in Latest means any source.
type ResultStore interface {
	Save(ctx context.Context, result *Result) error
	Get(ctx context.Context, id string) (*Result, error)
	Latest(ctx context.Context, source enums.ResultSource) (*Result, error)
}

// MemoryResultStore keeps a bounded history in process memory.
type MemoryResultStore struct {
	mu     sync.RWMutex
	limit  int
	order  []string
	byID   map[string]*Result
	latest *Result
	bySrc  map[enums.ResultSource]*Result
}

// NewMemoryResultStore keeps at most limit results (minimum 1).
func NewMemoryResultStore(limit int) *MemoryResultStore {
	if limit < 1 {
		limit = 1
	}
	return &MemoryResultStore{
		limit: limit,
		byID:  map[string]*Result{},
		bySrc: map[enums.ResultSource]*Result{},
	}
}

func (s *MemoryResultStore) Save(_ context.Context, result *Result) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("result id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[result.ID]; !exists {
		s.order = append(s.order, result.ID)
	}
	s.byID[result.ID] = result
	s.latest = result
	s.bySrc[result.Source] = result

	for len(s.order) > s.limit {
		evicted := s.byID[s.order[0]]
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
		if evicted != nil && s.bySrc[evicted.Source] == evicted {
			s.repointSource(evicted.Source)
		}
	}
	return nil
}

// repointSource moves the per-source pointer to the newest retained result of that source.
func (s *MemoryResultStore) repointSource(source enums.ResultSource) {
	delete(s.bySrc, source)
	for i := len(s.order) - 1; i >= 0; i-- {
		if r := s.byID[s.order[i]]; r != nil && r.Source == source {
			s.bySrc[source] = r
			return
		}
	}
}

func (s *MemoryResultStore) Get(_ context.Context, id string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byID[id]; ok {
		return r, nil
	}
	return nil, ErrResultNotFound
}

func (s *MemoryResultStore) Latest(_ context.Context, source enums.ResultSource) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.latest
	if source != "" {
		r = s.bySrc[source]
	}
	if r == nil {
		return nil, ErrResultNotFound
	}
	return r, nil
}

type redisKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	ResultKey(id string) string
	LatestResultKey(source string) string
}

// RedisResultStore serialises results as JSON with a TTL so every API replica sees them.
type RedisResultStore struct {
	kv  redisKV
	ttl time.Duration
}

// NewRedisResultStore builds a store on top of the shared redis client.
func NewRedisResultStore(kv redisKV, ttl time.Duration) (*RedisResultStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisResultStore{kv: kv, ttl: ttl}, nil
}

func (s *RedisResultStore) Save(ctx context.Context, result *Result) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("result id required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.ResultKey(result.ID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	for _, key := range []string{s.kv.LatestResultKey(""), s.kv.LatestResultKey(string(result.Source))} {
		if err := s.kv.Set(ctx, key, result.ID, s.ttl); err != nil {
			return fmt.Errorf("update latest pointer: %w", err)
		}
	}
	return nil
}

func (s *RedisResultStore) Get(ctx context.Context, id string) (*Result, error) {
	raw, err := s.kv.Get(ctx, s.kv.ResultKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

func (s *RedisResultStore) Latest(ctx context.Context, source enums.ResultSource) (*Result, error) {
	id, err := s.kv.Get(ctx, s.kv.LatestResultKey(string(source)))
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest pointer: %w", err)
	}
	return s.Get(ctx, id)
}
