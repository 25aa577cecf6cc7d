// Package reward keeps the invite ledger and orchestrates token claims
// against the external ledger canister.
package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yangsenessa/univoice-dapp/internal/chain"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/metrics"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// ErrUnknownInviteCode is returned when a redemption names a code no
// profile owns.
var ErrUnknownInviteCode = errors.New("invite code does not exist")

// ErrSelfReferral is returned when a user redeems their own code.
var ErrSelfReferral = errors.New("cannot redeem own invite code")

// ErrCodeAlreadyUsed is returned when the redeeming profile already
// used a code.
var ErrCodeAlreadyUsed = errors.New("profile already redeemed an invite code")

// Item is one reward entry as seen by its holder, with the holder's
// effective share already applied.
type Item struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Amount    uint64    `json:"amount"`
	Claimed   bool      `json:"claimed"`
	CreatedAt time.Time `json:"created_at"`
}

// InvitedUsers is the owner-side view of their redemptions.
type InvitedUsers struct {
	Items        []reward.FriendInfo `json:"items"`
	TotalInvited int                 `json:"total_invited"`
	TotalRewards uint64              `json:"total_rewards"`
}

// ClaimResult reports what one claim transferred.
type ClaimResult struct {
	Amount     uint64 `json:"amount"`
	BlockIndex uint64 `json:"block_index,omitempty"`
}

// Service manages the reward ledgers.
type Service struct {
	rewards  storage.RewardStore
	profiles storage.ProfileStore
	ledger   chain.Ledger
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// New constructs a reward service. ledger may be nil when claims are
// disabled.
func New(rewards storage.RewardStore, profiles storage.ProfileStore, ledger chain.Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reward")
	}
	return &Service{rewards: rewards, profiles: profiles, ledger: ledger, log: log}
}

// SetMetrics enables reward counters. Call before serving requests.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// UseInviteCode redeems a code for a wallet-identified new user. The
// redemption is recorded on the profile first; only then is the ledger
// record written, so a rejected redemption persists nothing.
func (s *Service) UseInviteCode(ctx context.Context, code, newUserWallet string) (reward.InviteRecord, error) {
	code = strings.TrimSpace(code)
	newUserWallet = strings.TrimSpace(newUserWallet)
	if code == "" || newUserWallet == "" {
		return reward.InviteRecord{}, fmt.Errorf("code and wallet principal are required")
	}

	owner, err := s.profiles.GetProfileByInviteCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return reward.InviteRecord{}, ErrUnknownInviteCode
	}
	if err != nil {
		return reward.InviteRecord{}, err
	}
	if owner.Matches(newUserWallet) {
		return reward.InviteRecord{}, ErrSelfReferral
	}

	newUser, err := s.profiles.GetProfileByWallet(ctx, newUserWallet)
	if err != nil {
		return reward.InviteRecord{}, fmt.Errorf("resolve redeeming profile: %w", err)
	}
	if newUser.InviteCodeFilled || newUser.UsedInviteCode != "" {
		return reward.InviteRecord{}, ErrCodeAlreadyUsed
	}
	newUser.UsedInviteCode = code
	newUser.InviteCodeFilled = true
	newUser.UpdatedAt = time.Now().UTC()
	if err := s.profiles.UpdateProfile(ctx, newUser); err != nil {
		return reward.InviteRecord{}, fmt.Errorf("record redemption: %w", err)
	}

	rec := reward.InviteRecord{
		ID:               fmt.Sprintf("%s_%d", code, time.Now().UnixNano()),
		Code:             code,
		OwnerPrincipal:   owner.Key(),
		NewUserPrincipal: newUser.Key(),
		Amount:           reward.BaseInviteAmount,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.rewards.CreateInviteRecord(ctx, rec); err != nil {
		return reward.InviteRecord{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordRewardIssued("invite")
	}
	s.log.WithField("code", code).
		WithField("owner", rec.OwnerPrincipal).
		WithField("new_user", rec.NewUserPrincipal).
		Info("invite code redeemed")
	return rec, nil
}

// GetUserRewards lists every reward entry touching the user with the
// user's effective share applied.
func (s *Service) GetUserRewards(ctx context.Context, principal string) ([]Item, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, fmt.Errorf("principal is required")
	}

	invites, err := s.rewards.ListInviteRecordsByUser(ctx, principal)
	if err != nil {
		return nil, err
	}
	tasks, err := s.rewards.ListTaskRecordsByUser(ctx, principal)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(invites)+len(tasks))
	for _, rec := range invites {
		items = append(items, Item{
			ID:        rec.ID,
			Kind:      "invite",
			Source:    rec.Code,
			Amount:    rec.ShareFor(principal),
			Claimed:   rec.Claimed,
			CreatedAt: rec.CreatedAt,
		})
	}
	for _, rec := range tasks {
		items = append(items, Item{
			ID:        rec.ID,
			Kind:      "task",
			Source:    rec.TaskID,
			Amount:    rec.Amount,
			Claimed:   rec.Claimed,
			CreatedAt: rec.CreatedAt,
		})
	}
	return items, nil
}

// GetUnclaimedRewards sums the user's unclaimed shares.
func (s *Service) GetUnclaimedRewards(ctx context.Context, principal string) (uint64, error) {
	items, err := s.GetUserRewards(ctx, principal)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, item := range items {
		if !item.Claimed {
			total += item.Amount
		}
	}
	return total, nil
}

// markClaimed flips every unclaimed record touching the user and stamps
// the claim time.
func (s *Service) markClaimed(ctx context.Context, principal string) error {
	now := time.Now().UTC()

	invites, err := s.rewards.ListInviteRecordsByUser(ctx, principal)
	if err != nil {
		return err
	}
	for _, rec := range invites {
		if rec.Claimed {
			continue
		}
		rec.Claimed = true
		rec.ClaimedAt = now
		if err := s.rewards.UpdateInviteRecord(ctx, rec); err != nil {
			return fmt.Errorf("mark invite record %s: %w", rec.ID, err)
		}
	}

	tasks, err := s.rewards.ListTaskRecordsByUser(ctx, principal)
	if err != nil {
		return err
	}
	for _, rec := range tasks {
		if rec.Claimed {
			continue
		}
		rec.Claimed = true
		rec.ClaimedAt = now
		if err := s.rewards.UpdateTaskRecord(ctx, rec); err != nil {
			return fmt.Errorf("mark task record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// ClaimTokens transfers the user's unclaimed total and then marks the
// records claimed. A failed transfer leaves every record untouched, so
// the claim can be retried. If the process dies between transfer and
// mark the records stay claimable; that window is accepted.
func (s *Service) ClaimTokens(ctx context.Context, principal string) (ClaimResult, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return ClaimResult{}, fmt.Errorf("principal is required")
	}
	if s.ledger == nil {
		return ClaimResult{}, fmt.Errorf("token ledger is not configured")
	}

	amount, err := s.GetUnclaimedRewards(ctx, principal)
	if err != nil {
		return ClaimResult{}, err
	}
	if amount == 0 {
		return ClaimResult{}, nil
	}

	blockIndex, err := s.ledger.Transfer(ctx, principal, amount)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordClaim("transfer_failed")
		}
		return ClaimResult{}, fmt.Errorf("ledger transfer: %w", err)
	}
	if err := s.markClaimed(ctx, principal); err != nil {
		s.log.WithError(err).
			WithField("principal", principal).
			Error("transfer succeeded but records not marked claimed")
		return ClaimResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordClaim("claimed")
	}
	s.log.WithField("principal", principal).
		WithField("amount", amount).
		WithField("block_index", blockIndex).
		Info("rewards claimed")
	return ClaimResult{Amount: amount, BlockIndex: blockIndex}, nil
}

// GetFriendInfos lists the profiles a user's code brought in, with the
// owner's share per redemption. Redemptions whose profile cannot be
// resolved are skipped.
func (s *Service) GetFriendInfos(ctx context.Context, principal string) ([]reward.FriendInfo, error) {
	recs, err := s.rewards.ListInviteRecordsByOwner(ctx, strings.TrimSpace(principal))
	if err != nil {
		return nil, err
	}

	out := []reward.FriendInfo{}
	for _, rec := range recs {
		p, err := s.profiles.GetProfileByPrincipal(ctx, rec.NewUserPrincipal)
		if err != nil {
			s.log.WithError(err).
				WithField("record_id", rec.ID).
				Warn("redemption profile unresolved, skipping")
			continue
		}
		out = append(out, friendInfo(rec, p))
	}
	return out, nil
}

// GetInvitedUsers returns the owner's redemption list plus totals.
func (s *Service) GetInvitedUsers(ctx context.Context, principal string) (InvitedUsers, error) {
	recs, err := s.rewards.ListInviteRecordsByOwner(ctx, strings.TrimSpace(principal))
	if err != nil {
		return InvitedUsers{}, err
	}

	result := InvitedUsers{Items: []reward.FriendInfo{}, TotalInvited: len(recs)}
	for _, rec := range recs {
		result.TotalRewards += rec.OwnerShare()
		p, err := s.profiles.GetProfileByPrincipal(ctx, rec.NewUserPrincipal)
		if err != nil {
			s.log.WithError(err).
				WithField("record_id", rec.ID).
				Warn("redemption profile unresolved, skipping")
			continue
		}
		result.Items = append(result.Items, friendInfo(rec, p))
	}
	return result, nil
}

func friendInfo(rec reward.InviteRecord, p profile.Profile) reward.FriendInfo {
	return reward.FriendInfo{
		Principal:    p.Key(),
		Nickname:     p.Nickname,
		Logo:         p.Logo,
		RewardAmount: rec.OwnerShare(),
	}
}
