// Package license exposes NFT license collections: collaborator
// metadata, user holdings and the purchase flow.
package license

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/chain"
	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/services/info"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Config key suffixes and prefixes consulted per collection.
const (
	collectionKeyPrefix   = "nft_"
	expiredDurationSuffix = "_expired_duration"
	minterSuffix          = "_minter"
)

// ErrNoTokensAvailable is returned when a collection's minting account
// has nothing left to sell.
var ErrNoTokensAvailable = errors.New("no tokens available in collection")

// Service manages license collections and purchases.
type Service struct {
	store    storage.LicenseStore
	infos    *info.Service
	registry chain.NFTRegistry
	log      *logger.Logger
}

// New constructs a license service.
func New(store storage.LicenseStore, infos *info.Service, registry chain.NFTRegistry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("license")
	}
	return &Service{store: store, infos: infos, registry: registry, log: log}
}

// GetNFTCollection fetches collaborator metadata for one collection.
func (s *Service) GetNFTCollection(ctx context.Context, collectionID string) (license.Collection, error) {
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		return license.Collection{}, fmt.Errorf("collection id is required")
	}
	return s.registry.CollectionInfo(ctx, collectionID)
}

// GetUserNFTs resolves the user's holdings for each configured license.
// Licenses whose collection is unconfigured or unreachable are skipped.
func (s *Service) GetUserNFTs(ctx context.Context, principal string, licenseIDs []string) ([]license.Holding, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, fmt.Errorf("principal is required")
	}

	holdings := []license.Holding{}
	for _, id := range licenseIDs {
		entry, err := s.infos.GetInfoByKey(ctx, collectionKeyPrefix+id)
		if err != nil {
			s.log.WithError(err).
				WithField("license_id", id).
				Warn("license collection unconfigured, skipping")
			continue
		}
		tokens, err := s.registry.TokensOf(ctx, entry.Content, principal)
		if err != nil {
			s.log.WithError(err).
				WithField("collection", entry.Content).
				Warn("holdings lookup failed, skipping")
			continue
		}
		holdings = append(holdings, license.Holding{CollectionID: entry.Content, TokenIDs: tokens})
	}
	return holdings, nil
}

// BuyNFTLicense transfers quantity tokens from the collection's minting
// account to the buyer, recording one license per unit. A failed unit
// stops the purchase; records for units already transferred are
// returned alongside the error.
func (s *Service) BuyNFTLicense(ctx context.Context, buyer, collectionID string, quantity int) ([]license.Record, error) {
	buyer = strings.TrimSpace(buyer)
	collectionID = strings.TrimSpace(collectionID)
	if buyer == "" || collectionID == "" {
		return nil, fmt.Errorf("buyer and collection id are required")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	minter, err := s.infos.GetInfoByKey(ctx, collectionID+minterSuffix)
	if err != nil {
		return nil, fmt.Errorf("minting account for %s: %w", collectionID, err)
	}
	duration, err := s.expiredDuration(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	available, err := s.registry.TokensOf(ctx, collectionID, minter.Content)
	if err != nil {
		return nil, fmt.Errorf("available tokens: %w", err)
	}
	if len(available) < quantity {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrNoTokensAvailable, quantity, len(available))
	}

	records := []license.Record{}
	for i := 0; i < quantity; i++ {
		tokenID := available[i]
		if err := s.registry.TransferFrom(ctx, collectionID, minter.Content, buyer, tokenID); err != nil {
			return records, fmt.Errorf("transfer token %d: %w", tokenID, err)
		}

		now := time.Now().UTC()
		rec := license.Record{
			Buyer:        buyer,
			CollectionID: collectionID,
			TokenID:      tokenID,
			PurchaseTime: now.Unix(),
			ExpireTime:   now.Unix() + duration,
			CreatedAt:    now,
		}
		if err := s.store.CreateLicense(ctx, rec); err != nil {
			return records, fmt.Errorf("record license for token %d: %w", tokenID, err)
		}
		records = append(records, rec)
	}

	s.log.WithField("buyer", buyer).
		WithField("collection", collectionID).
		WithField("quantity", quantity).
		Info("license purchase completed")
	return records, nil
}

func (s *Service) expiredDuration(ctx context.Context, collectionID string) (int64, error) {
	entry, err := s.infos.GetInfoByKey(ctx, collectionID+expiredDurationSuffix)
	if err != nil {
		return 0, fmt.Errorf("expiry duration for %s: %w", collectionID, err)
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(entry.Content), 10, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("expiry duration for %s is not a positive integer: %q", collectionID, entry.Content)
	}
	return seconds, nil
}

// ListUserLicenses returns the purchase records for one buyer.
func (s *Service) ListUserLicenses(ctx context.Context, buyer string) ([]license.Record, error) {
	return s.store.ListLicensesByBuyer(ctx, strings.TrimSpace(buyer))
}
