// Package profile manages user profile records and invite code
// assignment.
package profile

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// codeAttempts bounds invite-code regeneration before giving up on a
// collision streak.
const codeAttempts = 8

// maxPageSize caps one listing page.
const maxPageSize = 100

// ErrInviteCodeAlreadyUsed is returned when a profile that already
// redeemed a code tries to redeem another.
var ErrInviteCodeAlreadyUsed = errors.New("profile already redeemed an invite code")

// Service manages profiles.
type Service struct {
	store storage.ProfileStore
	log   *logger.Logger
}

// New constructs a profile service.
func New(store storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profile")
	}
	return &Service{store: store, log: log}
}

// AddCustomInfo inserts a profile or merges non-empty fields into an
// existing one. Identity fields and the invite code are first-write-wins.
func (s *Service) AddCustomInfo(ctx context.Context, in profile.Profile) (profile.Profile, error) {
	in.DappPrincipal = strings.TrimSpace(in.DappPrincipal)
	in.WalletPrincipal = strings.TrimSpace(in.WalletPrincipal)
	if in.DappPrincipal == "" && in.WalletPrincipal == "" {
		return profile.Profile{}, fmt.Errorf("at least one principal is required")
	}

	now := time.Now().UTC()
	existing, err := s.store.FindProfile(ctx, in.DappPrincipal, in.WalletPrincipal)
	switch {
	case err == nil:
		merged := mergeProfile(existing, in, now)
		if err := s.store.UpdateProfile(ctx, merged); err != nil {
			return profile.Profile{}, err
		}
		s.log.WithField("principal", merged.Key()).Info("profile merged")
		return merged, nil
	case errors.Is(err, storage.ErrNotFound):
		// fall through to create
	default:
		return profile.Profile{}, err
	}

	if in.Nickname == "" {
		in.Nickname = fmt.Sprintf("univoice_%06d", rand.Intn(1000000))
	}
	if in.InviteCode == "" {
		code, err := s.generateInviteCode(ctx)
		if err != nil {
			return profile.Profile{}, err
		}
		in.InviteCode = code
	}
	if in.UsedInviteCode != "" {
		in.InviteCodeFilled = true
	}
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.store.CreateProfile(ctx, in); err != nil {
		return profile.Profile{}, err
	}
	s.log.WithField("principal", in.Key()).
		WithField("invite_code", in.InviteCode).
		Info("profile created")
	return in, nil
}

func mergeProfile(existing, in profile.Profile, now time.Time) profile.Profile {
	if existing.DappPrincipal == "" {
		existing.DappPrincipal = in.DappPrincipal
	}
	if existing.WalletPrincipal == "" {
		existing.WalletPrincipal = in.WalletPrincipal
	}
	if in.Nickname != "" {
		existing.Nickname = in.Nickname
	}
	if in.Logo != "" {
		existing.Logo = in.Logo
	}
	if existing.InviteCode == "" && in.InviteCode != "" {
		existing.InviteCode = in.InviteCode
	}
	if !existing.InviteCodeFilled && existing.UsedInviteCode == "" && in.UsedInviteCode != "" {
		existing.UsedInviteCode = in.UsedInviteCode
		existing.InviteCodeFilled = true
	}
	if existing.TotalRewards == 0 && in.TotalRewards != 0 {
		existing.TotalRewards = in.TotalRewards
	}
	existing.UpdatedAt = now
	return existing
}

func (s *Service) generateInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%06d", rand.Intn(1000000))
		_, err := s.store.GetProfileByInviteCode(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free invite code after %d attempts", codeAttempts)
}

// UpdateCustomInfo changes the display fields of an existing profile.
func (s *Service) UpdateCustomInfo(ctx context.Context, dapp, wallet, nickname, logo string) (profile.Profile, error) {
	p, err := s.store.FindProfile(ctx, strings.TrimSpace(dapp), strings.TrimSpace(wallet))
	if err != nil {
		return profile.Profile{}, err
	}
	if nickname != "" {
		p.Nickname = nickname
	}
	if logo != "" {
		p.Logo = logo
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return profile.Profile{}, err
	}
	s.log.WithField("principal", p.Key()).Info("profile display updated")
	return p, nil
}

// GetCustomInfo resolves a profile by either principal.
func (s *Service) GetCustomInfo(ctx context.Context, dapp, wallet string) (profile.Profile, error) {
	return s.store.FindProfile(ctx, strings.TrimSpace(dapp), strings.TrimSpace(wallet))
}

// GetByPrincipal resolves a profile by a single identifier of either kind.
func (s *Service) GetByPrincipal(ctx context.Context, principal string) (profile.Profile, error) {
	return s.store.GetProfileByPrincipal(ctx, strings.TrimSpace(principal))
}

// ListCustomInfo returns one zero-based page of profiles. A start
// beyond the end yields an empty page with the true total.
func (s *Service) ListCustomInfo(ctx context.Context, page, pageSize int) (profile.Page, error) {
	if page < 0 {
		return profile.Page{}, fmt.Errorf("page must not be negative")
	}
	if pageSize <= 0 {
		return profile.Page{}, fmt.Errorf("page_size must be positive")
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.store.ListProfiles(ctx, page, pageSize)
}

// SetUsedInviteCode records the code a wallet-identified user redeemed.
// The field is written at most once.
func (s *Service) SetUsedInviteCode(ctx context.Context, wallet, code string) (profile.Profile, error) {
	wallet = strings.TrimSpace(wallet)
	code = strings.TrimSpace(code)
	if wallet == "" || code == "" {
		return profile.Profile{}, fmt.Errorf("wallet principal and code are required")
	}

	p, err := s.store.GetProfileByWallet(ctx, wallet)
	if err != nil {
		return profile.Profile{}, err
	}
	if p.InviteCodeFilled || p.UsedInviteCode != "" {
		return profile.Profile{}, ErrInviteCodeAlreadyUsed
	}
	p.UsedInviteCode = code
	p.InviteCodeFilled = true
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return profile.Profile{}, err
	}
	s.log.WithField("principal", p.Key()).
		WithField("code", code).
		Info("invite code redemption recorded")
	return p, nil
}

// CreditRewards adds amount to a profile's running reward total.
func (s *Service) CreditRewards(ctx context.Context, principal string, amount uint64) (profile.Profile, error) {
	p, err := s.store.GetProfileByPrincipal(ctx, strings.TrimSpace(principal))
	if err != nil {
		return profile.Profile{}, err
	}
	p.TotalRewards += amount
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}
