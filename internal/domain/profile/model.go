// Package profile defines user profile records. A user is addressed by
// either of two principals: the dapp identity or the wallet identity.
package profile

import "time"

// Profile is one user record. InviteCode is the code this user hands out;
// UsedInviteCode is the code they redeemed at signup, written at most
// once, with InviteCodeFilled latched alongside it.
type Profile struct {
	DappPrincipal    string    `json:"dapp_principal"`
	WalletPrincipal  string    `json:"wallet_principal"`
	Nickname         string    `json:"nickname"`
	Logo             string    `json:"logo"`
	InviteCode       string    `json:"invite_code"`
	UsedInviteCode   string    `json:"used_invite_code"`
	InviteCodeFilled bool      `json:"is_invite_code_filled"`
	TotalRewards     uint64    `json:"total_rewards"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Key returns the identity a profile is primarily indexed by. Records
// created from a wallet session may carry only the wallet principal.
func (p Profile) Key() string {
	if p.DappPrincipal != "" {
		return p.DappPrincipal
	}
	return p.WalletPrincipal
}

// Matches reports whether the given principal is one of the profile's
// identities.
func (p Profile) Matches(principal string) bool {
	return principal != "" && (p.DappPrincipal == principal || p.WalletPrincipal == principal)
}

// Page is one page of profiles plus the total record count.
type Page struct {
	Items []Profile `json:"items"`
	Total int       `json:"total"`
}
