package arenastore

import (
	"context"
	"errors"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/domain/task"
	"github.com/yangsenessa/univoice-dapp/internal/domain/voice"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arena"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	a, err := arena.Open(dir)
	if err != nil {
		t.Fatalf("open arena: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	s, err := Open(a)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestStore_ProfilesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	p := profile.Profile{
		DappPrincipal:   "dapp-1",
		WalletPrincipal: "wallet-1",
		Nickname:        "alice",
		InviteCode:      "CODE01",
	}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	s2 := openStore(t, dir)
	got, err := s2.GetProfileByPrincipal(ctx, "dapp-1")
	if err != nil || got.Nickname != "alice" {
		t.Fatalf("by principal after reopen: %+v %v", got, err)
	}
	got, err = s2.GetProfileByWallet(ctx, "wallet-1")
	if err != nil || got.Nickname != "alice" {
		t.Fatalf("wallet index not rebuilt: %+v %v", got, err)
	}
	got, err = s2.GetProfileByInviteCode(ctx, "CODE01")
	if err != nil || got.Nickname != "alice" {
		t.Fatalf("invite code index not rebuilt: %+v %v", got, err)
	}
}

func TestStore_QuestOneShotAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	if err := s.PutQuest(ctx, task.Quest{ID: 1, Reward: 5000, Completed: true, ClaimedBy: "dapp-1"}); err != nil {
		t.Fatalf("put quest: %v", err)
	}

	s2 := openStore(t, dir)
	q, err := s2.GetQuest(ctx, 1)
	if err != nil {
		t.Fatalf("get quest after reopen: %v", err)
	}
	if !q.Completed || q.ClaimedBy != "dapp-1" {
		t.Fatalf("completion lost across reopen: %+v", q)
	}
	if _, err := s2.GetQuest(ctx, 2); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for unseeded quest, got %v", err)
	}
}

func TestStore_VoiceAppendUpdateList(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	idx, err := s.AppendAsset(ctx, voice.Asset{Principal: "p1", FolderID: "1", FileID: "10"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendAsset(ctx, voice.Asset{Principal: "p1", FolderID: "1", FileID: "11"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := s.GetAsset(ctx, idx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	a.Status = voice.StatusDeleted
	if err := s.UpdateAsset(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	s2 := openStore(t, dir)
	got, err := s2.ListAssets(ctx, voice.ListFilter{Principal: "p1"})
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(got) != 1 || got[0].FileID != "11" {
		t.Fatalf("soft delete not replayed: %+v", got)
	}
	raw, err := s2.GetAsset(ctx, idx)
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if !raw.Deleted() {
		t.Fatalf("raw get should expose the deleted asset: %+v", raw)
	}
	if n := s2.DegradedVoiceAssets(); n != 0 {
		t.Fatalf("degraded count on clean log: %d", n)
	}
}

func TestStore_CheckpointPreservesState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	for i := 0; i < 5; i++ {
		if err := s.PutMapping(ctx, registry.Mapping{Name: "token_ledger", CanisterID: "aaaaa-aa"}); err != nil {
			t.Fatalf("put mapping: %v", err)
		}
	}
	if err := s.CreateProfile(ctx, profile.Profile{DappPrincipal: "dapp-1", Nickname: "alice"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if err := s.Checkpoint(); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	s2 := openStore(t, dir)
	if _, err := s2.GetMapping(ctx, "token_ledger"); err != nil {
		t.Fatalf("mapping lost by checkpoint: %v", err)
	}
	if got, err := s2.GetProfileByPrincipal(ctx, "dapp-1"); err != nil || got.Nickname != "alice" {
		t.Fatalf("profile lost by checkpoint: %+v %v", got, err)
	}
}
