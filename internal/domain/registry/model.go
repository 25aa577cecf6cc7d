// Package registry defines the logical-name to canister-id directory.
package registry

import "time"

// Well-known logical names consulted by the claim and license flows.
const (
	NameTokenLedger = "token_ledger"
	NameNFTRegistry = "nft_registry"
)

// Mapping binds a logical collaborator name to its canister id.
type Mapping struct {
	Name       string    `json:"name"`
	CanisterID string    `json:"canister_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}
