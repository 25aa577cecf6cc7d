// Package voice manages uploaded voice assets with soft deletion.
package voice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arena"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// maxContentLen leaves room for the asset envelope and base64 inflation
// inside the storage record bound.
const maxContentLen = (arena.MaxVoiceSize - 512) * 3 / 4

// defaultTake bounds a listing when the caller gives no page size.
const defaultTake = 50

// Service manages voice assets.
type Service struct {
	store storage.VoiceStore
	log   *logger.Logger
}

// New constructs a voice service.
func New(store storage.VoiceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("voice")
	}
	return &Service{store: store, log: log}
}

func numericID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := strconv.ParseUint(v, 10, 64); err != nil {
		return fmt.Errorf("%s must be numeric, got %q", field, v)
	}
	return nil
}

// UploadVoiceFile stores one asset and returns its index.
func (s *Service) UploadVoiceFile(ctx context.Context, a voice.Asset) (uint64, error) {
	a.Principal = strings.TrimSpace(a.Principal)
	if a.Principal == "" {
		return 0, fmt.Errorf("principal is required")
	}
	if err := numericID("folder_id", a.FolderID); err != nil {
		return 0, err
	}
	if err := numericID("file_id", a.FileID); err != nil {
		return 0, err
	}
	if len(a.Content) > maxContentLen {
		return 0, fmt.Errorf("content is %d bytes, limit %d", len(a.Content), maxContentLen)
	}

	now := time.Now().UTC()
	a.Status = voice.StatusActive
	a.CreatedAt = now
	a.UpdatedAt = now

	index, err := s.store.AppendAsset(ctx, a)
	if err != nil {
		return 0, err
	}
	s.log.WithField("principal", a.Principal).
		WithField("folder_id", a.FolderID).
		WithField("file_id", a.FileID).
		WithField("index", index).
		Info("voice file stored")
	return index, nil
}

// DeleteVoiceFile soft deletes one asset. Deleting an already deleted
// asset is a no-op.
func (s *Service) DeleteVoiceFile(ctx context.Context, index uint64) error {
	a, err := s.store.GetAsset(ctx, index)
	if err != nil {
		return err
	}
	if a.Deleted() {
		return nil
	}
	a.Status = voice.StatusDeleted
	a.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateAsset(ctx, a); err != nil {
		return err
	}
	s.log.WithField("index", index).Info("voice file soft deleted")
	return nil
}

// ListVoiceFiles returns active assets matching the filter.
func (s *Service) ListVoiceFiles(ctx context.Context, f voice.ListFilter) ([]voice.Asset, error) {
	if f.Take <= 0 {
		f.Take = defaultTake
	}
	return s.store.ListAssets(ctx, f)
}

// GetVoiceFile reads one asset by index, deleted or not.
func (s *Service) GetVoiceFile(ctx context.Context, index uint64) (voice.Asset, error) {
	return s.store.GetAsset(ctx, index)
}
