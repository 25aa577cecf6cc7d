package license

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	infosvc "github.com/yangsenessa/univoice-dapp/internal/services/info"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
)

type fakeNFTRegistry struct {
	tokens    map[string][]uint64 // "<collection>/<owner>" -> token ids
	transfers int
	failAfter int // fail the transfer once this many succeeded; 0 disables
}

func ownerKey(collection, owner string) string { return collection + "/" + owner }

func (f *fakeNFTRegistry) CollectionInfo(_ context.Context, id string) (license.Collection, error) {
	return license.Collection{ID: id, Name: "Pioneer", Symbol: "PNR", TotalSupply: 100}, nil
}

func (f *fakeNFTRegistry) TokensOf(_ context.Context, collection, owner string) ([]uint64, error) {
	return f.tokens[ownerKey(collection, owner)], nil
}

func (f *fakeNFTRegistry) TransferFrom(_ context.Context, collection, from, to string, tokenID uint64) error {
	if f.failAfter > 0 && f.transfers >= f.failAfter {
		return fmt.Errorf("transfer rejected")
	}
	f.transfers++
	fromKey := ownerKey(collection, from)
	remaining := make([]uint64, 0, len(f.tokens[fromKey]))
	for _, id := range f.tokens[fromKey] {
		if id != tokenID {
			remaining = append(remaining, id)
		}
	}
	f.tokens[fromKey] = remaining
	toKey := ownerKey(collection, to)
	f.tokens[toKey] = append(f.tokens[toKey], tokenID)
	return nil
}

func setup(t *testing.T, registry *fakeNFTRegistry) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	infos := infosvc.New(store, nil, nil)
	ctx := context.Background()
	items := []infosvc.Item{
		{Key: "nft_basic", Content: "coll-1"},
		{Key: "coll-1_minter", Content: "minter-principal"},
		{Key: "coll-1_expired_duration", Content: "86400"},
	}
	for _, item := range items {
		if _, err := infos.AddInfoItem(ctx, item); err != nil {
			t.Fatalf("seed config %s: %v", item.Key, err)
		}
	}
	return New(store, infos, registry, nil), store
}

func TestService_BuyNFTLicense(t *testing.T) {
	registry := &fakeNFTRegistry{tokens: map[string][]uint64{
		ownerKey("coll-1", "minter-principal"): {7, 8, 9},
	}}
	svc, store := setup(t, registry)
	ctx := context.Background()

	records, err := svc.BuyNFTLicense(ctx, "buyer-1", "coll-1", 2)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: %+v", records)
	}
	for _, rec := range records {
		if rec.ExpireTime != rec.PurchaseTime+86400 {
			t.Fatalf("expiry not applied: %+v", rec)
		}
	}

	got, err := store.ListLicensesByBuyer(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].TokenID != 7 || got[1].TokenID != 8 {
		t.Fatalf("persisted records: %+v", got)
	}

	tokens := registry.tokens[ownerKey("coll-1", "buyer-1")]
	if len(tokens) != 2 {
		t.Fatalf("buyer tokens: %v", tokens)
	}
}

func TestService_BuyNFTLicenseInsufficientTokens(t *testing.T) {
	registry := &fakeNFTRegistry{tokens: map[string][]uint64{
		ownerKey("coll-1", "minter-principal"): {7},
	}}
	svc, store := setup(t, registry)
	ctx := context.Background()

	if _, err := svc.BuyNFTLicense(ctx, "buyer-1", "coll-1", 2); !errors.Is(err, ErrNoTokensAvailable) {
		t.Fatalf("expected no tokens available, got %v", err)
	}
	if registry.transfers != 0 {
		t.Fatalf("tokens moved on rejected purchase: %d", registry.transfers)
	}
	got, _ := store.ListLicensesByBuyer(ctx, "buyer-1")
	if len(got) != 0 {
		t.Fatalf("records persisted on rejected purchase: %+v", got)
	}
}

func TestService_BuyNFTLicensePartialFailure(t *testing.T) {
	registry := &fakeNFTRegistry{
		tokens:    map[string][]uint64{ownerKey("coll-1", "minter-principal"): {7, 8, 9}},
		failAfter: 1,
	}
	svc, store := setup(t, registry)
	ctx := context.Background()

	records, err := svc.BuyNFTLicense(ctx, "buyer-1", "coll-1", 3)
	if err == nil {
		t.Fatal("expected partial failure")
	}
	if len(records) != 1 || records[0].TokenID != 7 {
		t.Fatalf("completed units: %+v", records)
	}

	// Units transferred before the failure stay recorded.
	got, _ := store.ListLicensesByBuyer(ctx, "buyer-1")
	if len(got) != 1 {
		t.Fatalf("persisted records: %+v", got)
	}
}

func TestService_BuyNFTLicenseUnconfiguredCollection(t *testing.T) {
	registry := &fakeNFTRegistry{tokens: map[string][]uint64{}}
	svc, _ := setup(t, registry)

	if _, err := svc.BuyNFTLicense(context.Background(), "buyer-1", "coll-unknown", 1); err == nil {
		t.Fatal("expected error for unconfigured collection")
	}
}

func TestService_GetUserNFTs(t *testing.T) {
	registry := &fakeNFTRegistry{tokens: map[string][]uint64{
		ownerKey("coll-1", "user-1"): {3, 4},
	}}
	svc, _ := setup(t, registry)

	holdings, err := svc.GetUserNFTs(context.Background(), "user-1", []string{"basic", "unknown"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("unconfigured license not skipped: %+v", holdings)
	}
	if holdings[0].CollectionID != "coll-1" || len(holdings[0].TokenIDs) != 2 {
		t.Fatalf("holding: %+v", holdings[0])
	}
}

func TestService_GetNFTCollection(t *testing.T) {
	registry := &fakeNFTRegistry{tokens: map[string][]uint64{}}
	svc, _ := setup(t, registry)

	coll, err := svc.GetNFTCollection(context.Background(), "coll-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if coll.Symbol != "PNR" {
		t.Fatalf("collection: %+v", coll)
	}
	if _, err := svc.GetNFTCollection(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank id")
	}
}
