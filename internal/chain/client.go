// Package chain talks to the external token ledger and NFT registry
// canisters over JSON-RPC.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Resolver maps a logical collaborator name to its endpoint URL. The
// canister directory backs it in production, so remappings take effect
// on the next call.
type Resolver interface {
	Endpoint(ctx context.Context, name string) (string, error)
}

// Client issues JSON-RPC 2.0 calls to endpoints resolved per call.
type Client struct {
	httpClient *http.Client
	resolver   Resolver
}

// Config holds client configuration.
type Config struct {
	Timeout time.Duration
}

// NewClient creates a client over the given endpoint resolver.
func NewClient(resolver Resolver, cfg Config) (*Client, error) {
	if resolver == nil {
		return nil, fmt.Errorf("endpoint resolver required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		resolver:   resolver,
	}, nil
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call resolves the named collaborator and invokes one method on it.
func (c *Client) Call(ctx context.Context, canister, method string, params interface{}) (gjson.Result, error) {
	endpoint, err := c.resolver.Endpoint(ctx, canister)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("resolve %s: %w", canister, err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("call %s.%s: %w", canister, method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return gjson.Result{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return gjson.Result{}, fmt.Errorf("%s.%s: %w", canister, method, rpcResp.Error)
	}
	return gjson.ParseBytes(rpcResp.Result), nil
}
