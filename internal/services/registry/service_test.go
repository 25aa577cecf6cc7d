package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
)

func TestService_AddCanisterMapping(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	m, err := svc.AddCanisterMapping(ctx, registry.NameTokenLedger, "aaaaa-aa")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.CanisterID != "aaaaa-aa" || m.UpdatedAt.IsZero() {
		t.Fatalf("mapping: %+v", m)
	}

	// Remapping the same name replaces the target.
	m, err = svc.AddCanisterMapping(ctx, registry.NameTokenLedger, "bbbbb-bb")
	if err != nil {
		t.Fatalf("remap: %v", err)
	}
	if m.CanisterID != "bbbbb-bb" {
		t.Fatalf("remap target: %q", m.CanisterID)
	}

	id, err := svc.GetCanisterID(ctx, registry.NameTokenLedger)
	if err != nil || id != "bbbbb-bb" {
		t.Fatalf("get: %q %v", id, err)
	}

	all, err := svc.GetAllCanisterMappings(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list: %+v %v", all, err)
	}
}

func TestService_AddCanisterMappingValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.AddCanisterMapping(ctx, "", "aaaaa-aa"); err == nil {
		t.Fatal("expected error for blank name")
	}
	if _, err := svc.AddCanisterMapping(ctx, "ledger", ""); err == nil {
		t.Fatal("expected error for blank canister id")
	}
}

func TestService_Endpoint(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Endpoint(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.AddCanisterMapping(ctx, registry.NameNFTRegistry, "ccccc-cc"); err != nil {
		t.Fatalf("add: %v", err)
	}
	ep, err := svc.Endpoint(ctx, registry.NameNFTRegistry)
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if ep == "" {
		t.Fatal("empty endpoint")
	}
}
