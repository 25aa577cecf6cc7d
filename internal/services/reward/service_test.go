package reward

import (
	"context"
	"errors"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/reward"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
)

type fakeLedger struct {
	calls []uint64
	fail  error
}

func (f *fakeLedger) Transfer(_ context.Context, _ string, amount uint64) (uint64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	f.calls = append(f.calls, amount)
	return uint64(len(f.calls)), nil
}

func seedProfiles(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	owner := profile.Profile{
		DappPrincipal:   "owner-dapp",
		WalletPrincipal: "owner-wallet",
		Nickname:        "owner",
		InviteCode:      "OWNER1",
	}
	newUser := profile.Profile{
		DappPrincipal:   "new-dapp",
		WalletPrincipal: "new-wallet",
		Nickname:        "newbie",
	}
	if err := store.CreateProfile(ctx, owner); err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := store.CreateProfile(ctx, newUser); err != nil {
		t.Fatalf("create new user: %v", err)
	}
}

func TestService_UseInviteCode(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	svc := New(store, store, nil, nil)
	ctx := context.Background()

	rec, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet")
	if err != nil {
		t.Fatalf("use invite code: %v", err)
	}
	if rec.Amount != reward.BaseInviteAmount {
		t.Fatalf("amount: %d", rec.Amount)
	}
	if rec.OwnerPrincipal != "owner-dapp" || rec.NewUserPrincipal != "new-dapp" {
		t.Fatalf("principals: %+v", rec)
	}

	// The redeeming profile remembers the code.
	p, err := store.GetProfileByWallet(ctx, "new-wallet")
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if p.UsedInviteCode != "OWNER1" {
		t.Fatalf("used code not recorded: %q", p.UsedInviteCode)
	}
	if !p.InviteCodeFilled {
		t.Fatal("invite-code-filled flag not latched")
	}

	// A second redemption by the same profile is rejected.
	if _, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet"); !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("expected already used, got %v", err)
	}
}

func TestService_UseInviteCodeRejections(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	svc := New(store, store, nil, nil)
	ctx := context.Background()

	if _, err := svc.UseInviteCode(ctx, "NOPE", "new-wallet"); !errors.Is(err, ErrUnknownInviteCode) {
		t.Fatalf("expected unknown code, got %v", err)
	}
	if _, err := svc.UseInviteCode(ctx, "OWNER1", "owner-wallet"); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected self referral, got %v", err)
	}

	// Rejections persist nothing.
	recs, err := store.ListInviteRecordsByOwner(ctx, "owner-dapp")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("rejected redemption persisted: %+v", recs)
	}
}

func TestService_RewardSplit(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	svc := New(store, store, nil, nil)
	ctx := context.Background()

	if _, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet"); err != nil {
		t.Fatalf("use invite code: %v", err)
	}

	ownerItems, err := svc.GetUserRewards(ctx, "owner-dapp")
	if err != nil {
		t.Fatalf("owner rewards: %v", err)
	}
	if len(ownerItems) != 1 || ownerItems[0].Amount != 300 {
		t.Fatalf("owner share: %+v", ownerItems)
	}

	newItems, err := svc.GetUserRewards(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("new user rewards: %v", err)
	}
	if len(newItems) != 1 || newItems[0].Amount != 700 {
		t.Fatalf("new user share: %+v", newItems)
	}

	unclaimed, err := svc.GetUnclaimedRewards(ctx, "owner-dapp")
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if unclaimed != 300 {
		t.Fatalf("unclaimed owner total: %d", unclaimed)
	}
}

func TestService_ClaimTokens(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	ledger := &fakeLedger{}
	svc := New(store, store, ledger, nil)
	ctx := context.Background()

	if _, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet"); err != nil {
		t.Fatalf("use invite code: %v", err)
	}

	res, err := svc.ClaimTokens(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Amount != 700 {
		t.Fatalf("claim amount: %d", res.Amount)
	}
	if len(ledger.calls) != 1 || ledger.calls[0] != 700 {
		t.Fatalf("ledger calls: %v", ledger.calls)
	}

	// The claimed record carries the claim time.
	recs, err := store.ListInviteRecordsByUser(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(recs) != 1 || !recs[0].Claimed {
		t.Fatalf("record not marked claimed: %+v", recs)
	}
	if recs[0].ClaimedAt.IsZero() {
		t.Fatal("claimed record missing claim time")
	}

	// Claiming again transfers nothing.
	res, err = svc.ClaimTokens(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.Amount != 0 || len(ledger.calls) != 1 {
		t.Fatalf("second claim moved tokens: %+v %v", res, ledger.calls)
	}
}

func TestService_ClaimTokensStampsTaskRecords(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	ledger := &fakeLedger{}
	svc := New(store, store, ledger, nil)
	ctx := context.Background()

	if err := store.CreateTaskRecord(ctx, reward.TaskRecord{
		ID: "Follow_X_1", Principal: "new-dapp", TaskID: "Follow_X", Amount: 5000,
	}); err != nil {
		t.Fatalf("seed task record: %v", err)
	}

	if _, err := svc.ClaimTokens(ctx, "new-dapp"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	recs, err := store.ListTaskRecordsByUser(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || !recs[0].Claimed || recs[0].ClaimedAt.IsZero() {
		t.Fatalf("task record not stamped: %+v", recs)
	}
}

func TestService_ClaimTokensTransferFailure(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	ledger := &fakeLedger{fail: errors.New("canister unreachable")}
	svc := New(store, store, ledger, nil)
	ctx := context.Background()

	if _, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet"); err != nil {
		t.Fatalf("use invite code: %v", err)
	}
	if _, err := svc.ClaimTokens(ctx, "new-dapp"); err == nil {
		t.Fatal("expected claim to fail")
	}

	// A failed transfer leaves everything claimable.
	unclaimed, err := svc.GetUnclaimedRewards(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if unclaimed != 700 {
		t.Fatalf("unclaimed after failed claim: %d", unclaimed)
	}

	ledger.fail = nil
	res, err := svc.ClaimTokens(ctx, "new-dapp")
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if res.Amount != 700 {
		t.Fatalf("retry amount: %d", res.Amount)
	}
}

func TestService_GetInvitedUsers(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store)
	svc := New(store, store, nil, nil)
	ctx := context.Background()

	if _, err := svc.UseInviteCode(ctx, "OWNER1", "new-wallet"); err != nil {
		t.Fatalf("use invite code: %v", err)
	}

	invited, err := svc.GetInvitedUsers(ctx, "owner-dapp")
	if err != nil {
		t.Fatalf("invited users: %v", err)
	}
	if invited.TotalInvited != 1 || invited.TotalRewards != 300 {
		t.Fatalf("totals: %+v", invited)
	}
	if len(invited.Items) != 1 || invited.Items[0].Nickname != "newbie" {
		t.Fatalf("items: %+v", invited.Items)
	}

	friends, err := svc.GetFriendInfos(ctx, "owner-dapp")
	if err != nil {
		t.Fatalf("friend infos: %v", err)
	}
	if len(friends) != 1 || friends[0].RewardAmount != 300 {
		t.Fatalf("friends: %+v", friends)
	}
}
