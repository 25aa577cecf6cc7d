// Package info manages the shared configuration entries the dapp
// frontend loads at startup.
package info

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yangsenessa/univoice-dapp/internal/domain/info"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arena"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// maxContentLen leaves room for the entry envelope inside the storage
// record bound.
const maxContentLen = arena.MaxInfoSize - 256

// cacheTTL bounds how stale a cached read may be after a write from
// another process.
const cacheTTL = 5 * time.Minute

// Item is one key/content pair submitted by the controller.
type Item struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// Service manages configuration entries with an optional read cache.
type Service struct {
	store storage.InfoStore
	cache *redis.Client
	log   *logger.Logger
}

// New constructs an info service. cache may be nil.
func New(store storage.InfoStore, cache *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("info")
	}
	return &Service{store: store, cache: cache, log: log}
}

func validateItem(item Item) (Item, error) {
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return Item{}, fmt.Errorf("key is required")
	}
	if len(item.Content) > maxContentLen {
		return Item{}, fmt.Errorf("content for key %s is %d bytes, limit %d", item.Key, len(item.Content), maxContentLen)
	}
	return item, nil
}

// AddInfoItem inserts or updates one entry. Updates bump the patch
// version; inserts start at the initial version.
func (s *Service) AddInfoItem(ctx context.Context, item Item) (info.Entry, error) {
	item, err := validateItem(item)
	if err != nil {
		return info.Entry{}, err
	}

	now := time.Now().UTC()
	entry, err := s.store.GetInfo(ctx, item.Key)
	switch {
	case err == nil:
		entry.Content = item.Content
		entry.Version = info.NextPatch(entry.Version)
		entry.Valid = true
		entry.UpdatedAt = now
	case errors.Is(err, storage.ErrNotFound):
		entry = info.Entry{
			Key:       item.Key,
			Content:   item.Content,
			Version:   info.InitialVersion,
			Valid:     true,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		return info.Entry{}, err
	}

	if err := s.store.PutInfo(ctx, entry); err != nil {
		return info.Entry{}, err
	}
	s.dropCached(ctx, entry.Key)
	s.log.WithField("key", entry.Key).
		WithField("version", entry.Version).
		Info("info entry stored")
	return entry, nil
}

// BatchAddInfoItems applies AddInfoItem to each item in order. The
// first failure stops the batch; earlier items stay applied.
func (s *Service) BatchAddInfoItems(ctx context.Context, items []Item) error {
	for i, item := range items {
		if _, err := s.AddInfoItem(ctx, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// UpdateInfoItem replaces the content of an existing valid entry and
// bumps its patch version.
func (s *Service) UpdateInfoItem(ctx context.Context, item Item) (info.Entry, error) {
	item, err := validateItem(item)
	if err != nil {
		return info.Entry{}, err
	}

	entry, err := s.store.GetInfo(ctx, item.Key)
	if err != nil {
		return info.Entry{}, err
	}
	if !entry.Valid {
		return info.Entry{}, fmt.Errorf("entry %s is invalidated: %w", item.Key, storage.ErrNotFound)
	}

	entry.Content = item.Content
	entry.Version = info.NextPatch(entry.Version)
	entry.UpdatedAt = time.Now().UTC()
	if err := s.store.PutInfo(ctx, entry); err != nil {
		return info.Entry{}, err
	}
	s.dropCached(ctx, entry.Key)
	s.log.WithField("key", entry.Key).
		WithField("version", entry.Version).
		Info("info entry updated")
	return entry, nil
}

// InvalidateInfoItem retires an entry. The record stays in storage but
// no read returns it again.
func (s *Service) InvalidateInfoItem(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	entry, err := s.store.GetInfo(ctx, key)
	if err != nil {
		return err
	}
	if !entry.Valid {
		return nil
	}
	entry.Valid = false
	entry.UpdatedAt = time.Now().UTC()
	if err := s.store.PutInfo(ctx, entry); err != nil {
		return err
	}
	s.dropCached(ctx, key)
	s.log.WithField("key", key).Info("info entry invalidated")
	return nil
}

// GetInfoByKey returns a valid entry, consulting the cache first.
func (s *Service) GetInfoByKey(ctx context.Context, key string) (info.Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return info.Entry{}, fmt.Errorf("key is required")
	}

	if entry, ok := s.cachedEntry(ctx, key); ok {
		return entry, nil
	}

	entry, err := s.store.GetInfo(ctx, key)
	if err != nil {
		return info.Entry{}, err
	}
	if !entry.Valid {
		return info.Entry{}, storage.ErrNotFound
	}
	s.putCached(ctx, entry)
	return entry, nil
}

// BatchGetInfo returns one slot per requested key, in input order.
// Missing and invalidated keys yield a nil slot.
func (s *Service) BatchGetInfo(ctx context.Context, keys []string) ([]*info.Entry, error) {
	out := make([]*info.Entry, len(keys))
	for i, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		entry, err := s.GetInfoByKey(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e := entry
		out[i] = &e
	}
	return out, nil
}

func cacheKey(key string) string { return "info:" + key }

func (s *Service) cachedEntry(ctx context.Context, key string) (info.Entry, bool) {
	if s.cache == nil {
		return info.Entry{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.WithError(err).Warn("info cache read failed")
		}
		return info.Entry{}, false
	}
	var entry info.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.log.WithError(err).Warn("info cache entry corrupt")
		return info.Entry{}, false
	}
	return entry, true
}

func (s *Service) putCached(ctx context.Context, entry info.Entry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(entry.Key), raw, cacheTTL).Err(); err != nil {
		s.log.WithError(err).Warn("info cache write failed")
	}
}

func (s *Service) dropCached(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(key)).Err(); err != nil {
		s.log.WithError(err).Warn("info cache invalidation failed")
	}
}
