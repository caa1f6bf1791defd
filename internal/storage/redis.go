package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	preferencesPrefix = "prefs:"
	transcriptPrefix  = "transcript:"
	scanBatch         = 100
)

// RedisStorage stores records as JSON strings. Preferences and transcripts
// expire after their TTL; a zero TTL keeps them forever.
type RedisStorage struct {
	rdb           *redis.Client
	prefix        string
	preferenceTTL time.Duration
	transcriptTTL time.Duration
	timeout       time.Duration
}

type RedisOptions struct {
	URL           string
	KeyPrefix     string
	PreferenceTTL time.Duration
	TranscriptTTL time.Duration
	// Timeout bounds Init and Backup, which run without a caller context.
	Timeout time.Duration
}

func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", ErrStorageInit, err)
	}
	return NewRedisStorageWithClient(redis.NewClient(ropts), opts), nil
}

// NewRedisStorageWithClient wraps an existing client. Close closes it.
func NewRedisStorageWithClient(rdb *redis.Client, opts RedisOptions) *RedisStorage {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisStorage{
		rdb:           rdb,
		prefix:        opts.KeyPrefix,
		preferenceTTL: opts.PreferenceTTL,
		transcriptTTL: opts.TranscriptTTL,
		timeout:       timeout,
	}
}

func (r *RedisStorage) preferencesKey(visitorID string) string {
	return r.prefix + preferencesPrefix + visitorID
}

func (r *RedisStorage) transcriptKey(sessionID string) string {
	return r.prefix + transcriptPrefix + sessionID
}

func (r *RedisStorage) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	logger.Info("Redis storage initialized successfully")
	return nil
}

func (r *RedisStorage) Close() error {
	return r.rdb.Close()
}

// Backup asks the server for a background snapshot.
func (r *RedisStorage) Backup() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.rdb.BgSave(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	logger.Info("Redis background save requested")
	return nil
}

func (r *RedisStorage) get(ctx context.Context, key string, v interface{}) error {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

func (r *RedisStorage) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if err := r.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisStorage) del(ctx context.Context, key string) error {
	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStorage) GetPreferences(ctx context.Context, visitorID string) (*model.Preferences, error) {
	if !ValidID(visitorID) {
		return nil, ErrNotFound
	}
	var prefs model.Preferences
	if err := r.get(ctx, r.preferencesKey(visitorID), &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *RedisStorage) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	if prefs == nil || !ValidID(prefs.VisitorID) {
		return ErrInvalidData
	}
	return r.set(ctx, r.preferencesKey(prefs.VisitorID), prefs, r.preferenceTTL)
}

func (r *RedisStorage) DeletePreferences(ctx context.Context, visitorID string) error {
	if !ValidID(visitorID) {
		return ErrNotFound
	}
	return r.del(ctx, r.preferencesKey(visitorID))
}

func (r *RedisStorage) GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	if !ValidID(sessionID) {
		return nil, ErrNotFound
	}
	var t model.Transcript
	if err := r.get(ctx, r.transcriptKey(sessionID), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RedisStorage) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	if transcript == nil || !ValidID(transcript.SessionID) {
		return ErrInvalidData
	}
	return r.set(ctx, r.transcriptKey(transcript.SessionID), transcript, r.transcriptTTL)
}

func (r *RedisStorage) DeleteTranscript(ctx context.Context, sessionID string) error {
	if !ValidID(sessionID) {
		return ErrNotFound
	}
	return r.del(ctx, r.transcriptKey(sessionID))
}

// ListTranscripts walks the keyspace with SCAN so it never blocks the server.
func (r *RedisStorage) ListTranscripts(ctx context.Context) ([]*model.Transcript, error) {
	pattern := r.transcriptKey("*")
	var list []*model.Transcript

	iter := r.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var t model.Transcript
		if err := r.get(ctx, key, &t); err != nil {
			// Expired between SCAN and GET.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if t.SessionID == "" {
			t.SessionID = strings.TrimPrefix(key, r.transcriptKey(""))
		}
		list = append(list, header(&t))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}
