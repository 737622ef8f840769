package pricelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UploadState is the lifecycle of one upload.
type UploadState string

const (
	StateProcessing UploadState = "processing"
	StateCompleted  UploadState = "completed"
	StateError      UploadState = "error"
)

// RecentUploads is the listing size for the upload history.
const RecentUploads = 10

// UploadStatus tracks an upload while and after it is processed.
type UploadStatus struct {
	ID                string      `json:"id"`
	Filename          string      `json:"filename"`
	Supplier          string      `json:"supplier"`
	State             UploadState `json:"status"`
	Progress          int         `json:"progress"`
	ProductsProcessed int         `json:"products_processed"`
	TotalProducts     int         `json:"total_products"`
	AIEnhancements    int         `json:"ai_enhancements_applied"`
	Error             string      `json:"error,omitempty"`
	Summary           *Summary    `json:"summary,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// StatusStore keeps upload statuses. Get returns ErrNotFound for unknown ids.
type StatusStore interface {
	Get(ctx context.Context, id string) (UploadStatus, error)
	Put(ctx context.Context, status UploadStatus) error
	Recent(ctx context.Context, limit int) ([]UploadStatus, error)
	Purge(ctx context.Context, before time.Time) (int, error)
}

const (
	statusKeyPrefix = "pricelist:upload:"
	statusIndexKey  = "pricelist:uploads"
)

// RedisStatusStore shares statuses between API and worker processes.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStatusStore builds a store whose entries expire after ttl.
func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger for index maintenance warnings.
func (s *RedisStatusStore) WithLogger(logger *slog.Logger) *RedisStatusStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Get implements StatusStore.
func (s *RedisStatusStore) Get(ctx context.Context, id string) (UploadStatus, error) {
	payload, err := s.client.Get(ctx, statusKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return UploadStatus{}, ErrNotFound
	}
	if err != nil {
		return UploadStatus{}, fmt.Errorf("pricelist: get status: %w", err)
	}
	var st UploadStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return UploadStatus{}, fmt.Errorf("pricelist: decode status: %w", err)
	}
	return st, nil
}

// Put implements StatusStore.
func (s *RedisStatusStore) Put(ctx context.Context, status UploadStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, statusKeyPrefix+status.ID, raw, s.ttl)
		pipe.ZAdd(ctx, statusIndexKey, redis.Z{Score: float64(status.CreatedAt.UnixMilli()), Member: status.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("pricelist: put status: %w", err)
	}
	return nil
}

// Recent implements StatusStore, newest first. The index is read page by
// page until limit live statuses are found; entries whose status already
// expired are dropped from it.
func (s *RedisStatusStore) Recent(ctx context.Context, limit int) ([]UploadStatus, error) {
	if limit <= 0 {
		limit = RecentUploads
	}
	page := int64(limit * 2)
	out := make([]UploadStatus, 0, limit)
	for start := int64(0); len(out) < limit; {
		ids, err := s.client.ZRevRange(ctx, statusIndexKey, start, start+page-1).Result()
		if err != nil {
			return nil, fmt.Errorf("pricelist: recent statuses: %w", err)
		}
		removed := 0
		for _, id := range ids {
			if len(out) == limit {
				break
			}
			st, err := s.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				if err := s.client.ZRem(ctx, statusIndexKey, id).Err(); err != nil {
					s.logger.Warn("expired upload not removed from index",
						slog.String("upload_id", id), slog.Any("error", err))
				} else {
					removed++
				}
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
		if int64(len(ids)) < page {
			break
		}
		start += int64(len(ids) - removed)
	}
	return out, nil
}

// Purge implements StatusStore.
func (s *RedisStatusStore) Purge(ctx context.Context, before time.Time) (int, error) {
	upper := strconv.FormatInt(before.UnixMilli(), 10)
	ids, err := s.client.ZRangeByScore(ctx, statusIndexKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("pricelist: purge statuses: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = statusKeyPrefix + id
		members[i] = id
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, statusIndexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pricelist: purge statuses: %w", err)
	}
	return len(ids), nil
}

// MemoryStatusStore keeps statuses in process memory. It is meant for tests
// and single-process runs: API and worker processes do not see each other's
// entries.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]UploadStatus
}

// NewMemoryStatusStore returns an empty store.
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]UploadStatus)}
}

// Get implements StatusStore.
func (s *MemoryStatusStore) Get(_ context.Context, id string) (UploadStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	if !ok {
		return UploadStatus{}, ErrNotFound
	}
	return st, nil
}

// Put implements StatusStore.
func (s *MemoryStatusStore) Put(_ context.Context, status UploadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.ID] = status
	return nil
}

// Recent implements StatusStore, newest first.
func (s *MemoryStatusStore) Recent(_ context.Context, limit int) ([]UploadStatus, error) {
	if limit <= 0 {
		limit = RecentUploads
	}
	s.mu.RLock()
	out := make([]UploadStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Purge implements StatusStore.
func (s *MemoryStatusStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.statuses {
		if st.CreatedAt.Before(before) {
			delete(s.statuses, id)
			n++
		}
	}
	return n, nil
}
