package chain

import (
	"context"
	"fmt"

	"github.com/yangsenessa/univoice-dapp/internal/domain/license"
	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
)

// NFTRegistry exposes the license collection canister operations the
// purchase and holdings flows need.
type NFTRegistry interface {
	CollectionInfo(ctx context.Context, collectionID string) (license.Collection, error)
	TokensOf(ctx context.Context, collectionID, owner string) ([]uint64, error)
	TransferFrom(ctx context.Context, collectionID, from, to string, tokenID uint64) error
}

// RPCNFTRegistry is the NFT registry canister reached over JSON-RPC.
type RPCNFTRegistry struct {
	client *Client
}

// NewRPCNFTRegistry wraps a client as the registry collaborator.
func NewRPCNFTRegistry(client *Client) *RPCNFTRegistry {
	return &RPCNFTRegistry{client: client}
}

var _ NFTRegistry = (*RPCNFTRegistry)(nil)

type collectionArgs struct {
	Collection string `json:"collection"`
}

// CollectionInfo invokes icrc7_collection_metadata for one collection.
func (r *RPCNFTRegistry) CollectionInfo(ctx context.Context, collectionID string) (license.Collection, error) {
	res, err := r.client.Call(ctx, registry.NameNFTRegistry, "icrc7_collection_metadata", collectionArgs{Collection: collectionID})
	if err != nil {
		return license.Collection{}, err
	}
	return license.Collection{
		ID:          collectionID,
		Name:        res.Get("name").String(),
		Symbol:      res.Get("symbol").String(),
		Description: res.Get("description").String(),
		TotalSupply: res.Get("total_supply").Uint(),
	}, nil
}

type tokensOfArgs struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
}

// TokensOf invokes icrc7_tokens_of and returns the owner's token ids.
func (r *RPCNFTRegistry) TokensOf(ctx context.Context, collectionID, owner string) ([]uint64, error) {
	res, err := r.client.Call(ctx, registry.NameNFTRegistry, "icrc7_tokens_of", tokensOfArgs{Collection: collectionID, Owner: owner})
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("tokens_of returned non-array: %s", res.Raw)
	}
	var tokens []uint64
	for _, t := range res.Array() {
		tokens = append(tokens, t.Uint())
	}
	return tokens, nil
}

type transferFromArgs struct {
	Collection string `json:"collection"`
	From       string `json:"from"`
	To         string `json:"to"`
	TokenID    uint64 `json:"token_id"`
}

// TransferFrom invokes icrc37_transfer_from for one token.
func (r *RPCNFTRegistry) TransferFrom(ctx context.Context, collectionID, from, to string, tokenID uint64) error {
	res, err := r.client.Call(ctx, registry.NameNFTRegistry, "icrc37_transfer_from", transferFromArgs{
		Collection: collectionID,
		From:       from,
		To:         to,
		TokenID:    tokenID,
	})
	if err != nil {
		return err
	}
	if errRes := res.Get("Err"); errRes.Exists() {
		return fmt.Errorf("registry rejected transfer of token %d: %s", tokenID, errRes.Raw)
	}
	return nil
}
