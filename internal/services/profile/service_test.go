package profile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
)

func TestService_AddCustomInfoCreates(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	p, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: "dapp-1"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(p.Nickname, "univoice_") {
		t.Fatalf("nickname not assigned: %q", p.Nickname)
	}
	if len(p.InviteCode) != 6 {
		t.Fatalf("invite code not assigned: %q", p.InviteCode)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", p)
	}
}

func TestService_AddCustomInfoRequiresPrincipal(t *testing.T) {
	svc := New(memory.New(), nil)
	if _, err := svc.AddCustomInfo(context.Background(), profile.Profile{Nickname: "x"}); err == nil {
		t.Fatal("expected error without a principal")
	}
}

func TestService_AddCustomInfoMerges(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	first, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: "dapp-1", Nickname: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	merged, err := svc.AddCustomInfo(ctx, profile.Profile{
		DappPrincipal:   "dapp-1",
		WalletPrincipal: "wallet-1",
		Logo:            "logo.png",
		InviteCode:      "STOLEN",
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.WalletPrincipal != "wallet-1" {
		t.Fatalf("empty identity not filled: %+v", merged)
	}
	if merged.Nickname != "alice" {
		t.Fatalf("nickname overwritten by empty input: %q", merged.Nickname)
	}
	if merged.Logo != "logo.png" {
		t.Fatalf("logo not merged: %q", merged.Logo)
	}
	if merged.InviteCode != first.InviteCode {
		t.Fatalf("invite code is first-write-wins: got %q want %q", merged.InviteCode, first.InviteCode)
	}

	// Non-empty display fields do overwrite.
	merged, err = svc.AddCustomInfo(ctx, profile.Profile{WalletPrincipal: "wallet-1", Nickname: "alicia"})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if merged.Nickname != "alicia" {
		t.Fatalf("nickname not updated: %q", merged.Nickname)
	}
}

func TestService_UpdateCustomInfo(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: "dapp-1", Nickname: "alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := svc.UpdateCustomInfo(ctx, "dapp-1", "", "bob", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Nickname != "bob" {
		t.Fatalf("nickname: %q", p.Nickname)
	}

	if _, err := svc.UpdateCustomInfo(ctx, "missing", "", "x", ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ListCustomInfo(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	for _, d := range []string{"a", "b", "c"} {
		if _, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: d}); err != nil {
			t.Fatalf("create %s: %v", d, err)
		}
	}

	page, err := svc.ListCustomInfo(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("page: total=%d items=%d", page.Total, len(page.Items))
	}

	if _, err := svc.ListCustomInfo(ctx, -1, 2); err == nil {
		t.Fatal("expected error for negative page")
	}
	if _, err := svc.ListCustomInfo(ctx, 0, 0); err == nil {
		t.Fatal("expected error for zero page size")
	}
}

func TestService_SetUsedInviteCodeOnce(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.AddCustomInfo(ctx, profile.Profile{WalletPrincipal: "wallet-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := svc.SetUsedInviteCode(ctx, "wallet-1", "ABC123")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if p.UsedInviteCode != "ABC123" {
		t.Fatalf("code not set: %q", p.UsedInviteCode)
	}
	if !p.InviteCodeFilled {
		t.Fatal("invite-code-filled flag not latched")
	}

	if _, err := svc.SetUsedInviteCode(ctx, "wallet-1", "OTHER1"); !errors.Is(err, ErrInviteCodeAlreadyUsed) {
		t.Fatalf("expected already used, got %v", err)
	}
}

func TestService_CreditRewards(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: "dapp-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := svc.CreditRewards(ctx, "dapp-1", 5000)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if p.TotalRewards != 5000 {
		t.Fatalf("total: %d", p.TotalRewards)
	}
	p, err = svc.CreditRewards(ctx, "dapp-1", 3000)
	if err != nil {
		t.Fatalf("credit again: %v", err)
	}
	if p.TotalRewards != 8000 {
		t.Fatalf("total after second credit: %d", p.TotalRewards)
	}
}

func TestService_InviteCodesUnique(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p, err := svc.AddCustomInfo(ctx, profile.Profile{DappPrincipal: strings.Repeat("x", i+1)})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[p.InviteCode] {
			t.Fatalf("duplicate invite code %q", p.InviteCode)
		}
		seen[p.InviteCode] = true
	}
}
