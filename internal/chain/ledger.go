package chain

import (
	"context"
	"fmt"

	"github.com/yangsenessa/univoice-dapp/internal/domain/registry"
)

// Ledger transfers tokens from the minting account to a user.
type Ledger interface {
	// Transfer moves amount to the given account and returns the
	// ledger block index of the transfer.
	Transfer(ctx context.Context, to string, amount uint64) (uint64, error)
}

// RPCLedger is the token ledger canister reached over JSON-RPC.
type RPCLedger struct {
	client *Client
}

// NewRPCLedger wraps a client as the ledger collaborator.
func NewRPCLedger(client *Client) *RPCLedger {
	return &RPCLedger{client: client}
}

var _ Ledger = (*RPCLedger)(nil)

type transferArgs struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Transfer invokes icrc1_transfer on the ledger. The result is either
// {"Ok": <block index>} or {"Err": {...}}.
func (l *RPCLedger) Transfer(ctx context.Context, to string, amount uint64) (uint64, error) {
	res, err := l.client.Call(ctx, registry.NameTokenLedger, "icrc1_transfer", transferArgs{To: to, Amount: amount})
	if err != nil {
		return 0, err
	}
	if errRes := res.Get("Err"); errRes.Exists() {
		return 0, fmt.Errorf("ledger rejected transfer: %s", errRes.Raw)
	}
	ok := res.Get("Ok")
	if !ok.Exists() {
		return 0, fmt.Errorf("ledger returned neither Ok nor Err: %s", res.Raw)
	}
	return ok.Uint(), nil
}
