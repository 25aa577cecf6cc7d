// Package reward defines the invite and task reward ledger records.
package reward

import "time"

// BaseInviteAmount is the total token amount minted for one successful
// invite-code redemption, split between the code owner and the new user.
const BaseInviteAmount uint64 = 1000

// Split percentages applied to BaseInviteAmount at read time.
const (
	OwnerSharePercent   uint64 = 30
	NewUserSharePercent uint64 = 70
)

// InviteRecord is written once per successful redemption. The stored
// amount is the undivided base; each side's share is derived on read.
type InviteRecord struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	OwnerPrincipal   string    `json:"owner_principal"`
	NewUserPrincipal string    `json:"new_user_principal"`
	Amount           uint64    `json:"amount"`
	Claimed          bool      `json:"claimed"`
	ClaimedAt        time.Time `json:"claimed_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// OwnerShare is the code owner's cut of the record amount, rounded down.
func (r InviteRecord) OwnerShare() uint64 {
	return r.Amount * OwnerSharePercent / 100
}

// NewUserShare is the redeeming user's cut, rounded down.
func (r InviteRecord) NewUserShare() uint64 {
	return r.Amount * NewUserSharePercent / 100
}

// ShareFor returns the principal's cut of the record, zero when the
// principal is on neither side.
func (r InviteRecord) ShareFor(principal string) uint64 {
	switch principal {
	case r.OwnerPrincipal:
		return r.OwnerShare()
	case r.NewUserPrincipal:
		return r.NewUserShare()
	default:
		return 0
	}
}

// TaskRecord is written once per completed task, full amount to one user.
type TaskRecord struct {
	ID        string    `json:"id"`
	Principal string    `json:"principal"`
	TaskID    string    `json:"task_id"`
	Amount    uint64    `json:"amount"`
	Claimed   bool      `json:"claimed"`
	ClaimedAt time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendInfo pairs an invited user's profile data with the reward their
// redemption produced for the code owner.
type FriendInfo struct {
	Principal    string `json:"principal"`
	Nickname     string `json:"nickname"`
	Logo         string `json:"logo"`
	RewardAmount uint64 `json:"reward_amount"`
}

// Summary aggregates the reward amounts visible to one user.
type Summary struct {
	Total     uint64 `json:"total"`
	Unclaimed uint64 `json:"unclaimed"`
}
