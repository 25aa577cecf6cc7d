// Package license defines NFT license collections and purchase records.
package license

import "time"

// Collection is the registry-side metadata for one license collection.
type Collection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	TotalSupply uint64 `json:"total_supply"`
}

// Holding is a user's token ids within one collection.
type Holding struct {
	CollectionID string   `json:"collection_id"`
	TokenIDs     []uint64 `json:"token_ids"`
}

// Record is one purchased license unit. ExpireTime derives from the
// collection's configured expiry duration at purchase time.
type Record struct {
	Buyer        string    `json:"buyer"`
	CollectionID string    `json:"collection_id"`
	TokenID      uint64    `json:"token_id"`
	PurchaseTime int64     `json:"purchase_time"`
	ExpireTime   int64     `json:"expire_time"`
	CreatedAt    time.Time `json:"created_at"`
}
