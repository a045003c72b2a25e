// Package nearrpc is the concrete dex.Client/wallet.Wallet adapter: it
// speaks the NEAR JSON-RPC "query" surface over internal/rpc.Transport,
// the way internal/clients/tradernet once spoke a REST microservice's
// envelope over plain net/http. View calls (query/call_function) need no
// key material; the mutating calls (function-call transactions) delegate
// signing to a Signer supplied by the deployment, since transaction
// signing is explicitly out of scope for this module (spec.md §1).
package nearrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/rpc"
)

// Signer submits a signed function-call transaction and returns its
// successful return value (already base64-decoded). Implementations own
// key material and nonce/block-hash bookkeeping; none is provided here.
type Signer interface {
	SignAndSendFunctionCall(ctx context.Context, contractID string, methodName string, args interface{}, depositYocto *big.Int, gasTeraGas uint64) (json.RawMessage, error)
}

// Client implements dex.Client against one NEAR contract account (the
// DEX). Wallet (wallet.go) implements wallet.Wallet for the agent's own
// account, reusing a Client's transport and signer.
type Client struct {
	transport  *rpc.Transport
	signer     Signer
	exchangeID string
	accountID  string
	log        zerolog.Logger
}

// NewClient creates a new NEAR RPC adapter. signer may be nil; in that
// case every mutating call returns an error identifying the missing
// collaborator rather than panicking.
func NewClient(transport *rpc.Transport, signer Signer, exchangeID, accountID string, log zerolog.Logger) *Client {
	return &Client{
		transport:  transport,
		signer:     signer,
		exchangeID: exchangeID,
		accountID:  accountID,
		log:        log.With().Str("component", "nearrpc_client").Logger(),
	}
}

var _ dex.Client = (*Client)(nil)

// queryParams is the "query" RPC method's call_function request shape.
type queryParams struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountID   string `json:"account_id"`
	MethodName  string `json:"method_name"`
	ArgsBase64  string `json:"args_base64"`
}

// queryResult is the subset of the call_function response this adapter
// needs: the UTF-8 JSON return value, delivered as a byte array.
type queryResult struct {
	Result []byte `json:"result"`
}

// viewCall performs a read-only call_function query against contractID
// and unmarshals its JSON return value into out.
func (c *Client) viewCall(ctx context.Context, contractID, methodName string, args interface{}, out interface{}) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args for %s.%s: %w", contractID, methodName, err)
	}

	raw, err := c.transport.Call(ctx, "query", queryParams{
		RequestType: "call_function",
		Finality:    "final",
		AccountID:   contractID,
		MethodName:  methodName,
		ArgsBase64:  base64.StdEncoding.EncodeToString(argsJSON),
	})
	if err != nil {
		return fmt.Errorf("view %s.%s: %w", contractID, methodName, err)
	}

	var qr queryResult
	if err := json.Unmarshal(raw, &qr); err != nil {
		return fmt.Errorf("parse view result for %s.%s: %w", contractID, methodName, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(qr.Result, out); err != nil {
		return fmt.Errorf("parse return value for %s.%s: %w", contractID, methodName, err)
	}
	return nil
}

// call performs a signed function-call transaction via the configured
// Signer.
func (c *Client) call(ctx context.Context, contractID, methodName string, args interface{}, depositYocto *big.Int, out interface{}) error {
	if c.signer == nil {
		return fmt.Errorf("call %s.%s: no signer configured", contractID, methodName)
	}
	raw, err := c.signer.SignAndSendFunctionCall(ctx, contractID, methodName, args, depositYocto, defaultGas)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", contractID, methodName, err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// defaultGas is the attached gas for exchange function calls, in TGas.
const defaultGas = 100

// GetNumberOfPools implements dex.Client.
func (c *Client) GetNumberOfPools(ctx context.Context) (uint32, error) {
	var n uint32
	err := c.viewCall(ctx, c.exchangeID, "get_number_of_pools", struct{}{}, &n)
	return n, err
}

// poolView is the exchange contract's on-chain pool representation.
type poolView struct {
	PoolKind          string   `json:"pool_kind"`
	TokenAccountIDs   []string `json:"token_account_ids"`
	Amounts           []string `json:"amounts"`
	TotalFee          uint32   `json:"total_fee"`
	SharesTotalSupply string   `json:"shares_total_supply"`
	Amp               uint64   `json:"amp,omitempty"`
}

// GetPools implements dex.Client.
func (c *Client) GetPools(ctx context.Context, from, limit uint32) ([]*dex.Pool, error) {
	var views []poolView
	args := struct {
		FromIndex uint32 `json:"from_index"`
		Limit     uint32 `json:"limit"`
	}{FromIndex: from, Limit: limit}

	if err := c.viewCall(ctx, c.exchangeID, "get_pools", args, &views); err != nil {
		return nil, err
	}

	pools := make([]*dex.Pool, 0, len(views))
	for i, v := range views {
		tokens := make([]dex.TokenAccount, len(v.TokenAccountIDs))
		for j, t := range v.TokenAccountIDs {
			tokens[j] = dex.TokenAccount(t)
		}
		reserves := make([]*big.Int, len(v.Amounts))
		for j, a := range v.Amounts {
			n, ok := new(big.Int).SetString(a, 10)
			if !ok {
				return nil, fmt.Errorf("parse pool %d reserve %q", from+uint32(i), a)
			}
			reserves[j] = n
		}
		shares, _ := new(big.Int).SetString(v.SharesTotalSupply, 10)

		pools = append(pools, &dex.Pool{
			ID:                from + uint32(i),
			Kind:              dex.PoolKind(v.PoolKind),
			Tokens:            tokens,
			Reserves:          reserves,
			TotalFee:          v.TotalFee,
			SharesTotalSupply: shares,
			Amp:               v.Amp,
		})
	}
	return pools, nil
}

// GetReturn implements dex.Client.
func (c *Client) GetReturn(ctx context.Context, poolID uint32, tokenIn dex.TokenAccount, amountIn *big.Int, tokenOut dex.TokenAccount) (*big.Int, error) {
	var out string
	args := struct {
		PoolID   uint32 `json:"pool_id"`
		TokenIn  string `json:"token_in"`
		AmountIn string `json:"amount_in"`
		TokenOut string `json:"token_out"`
	}{poolID, string(tokenIn), amountIn.String(), string(tokenOut)}

	if err := c.viewCall(ctx, c.exchangeID, "get_return", args, &out); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(out, 10)
	if !ok {
		return nil, fmt.Errorf("parse get_return result %q", out)
	}
	return n, nil
}

// GetDeposits implements dex.Client.
func (c *Client) GetDeposits(ctx context.Context, accountID dex.TokenAccount) (map[dex.TokenAccount]*big.Int, error) {
	var raw map[string]string
	args := struct {
		AccountID string `json:"account_id"`
	}{string(accountID)}

	if err := c.viewCall(ctx, c.exchangeID, "get_deposits", args, &raw); err != nil {
		return nil, err
	}

	out := make(map[dex.TokenAccount]*big.Int, len(raw))
	for token, amount := range raw {
		n, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("parse deposit amount %q for %s", amount, token)
		}
		out[dex.TokenAccount(token)] = n
	}
	return out, nil
}

// RegisterTokens implements dex.Client.
func (c *Client) RegisterTokens(ctx context.Context, accountID dex.TokenAccount, tokens []dex.TokenAccount) error {
	args := struct {
		AccountID *string  `json:"account_id"`
		TokenIDs  []string `json:"token_ids"`
	}{stringPtr(string(accountID)), tokenAccountsToStrings(tokens)}
	return c.call(ctx, c.exchangeID, "register_tokens", args, big.NewInt(1), nil)
}

// UnregisterTokens implements dex.Client.
func (c *Client) UnregisterTokens(ctx context.Context, accountID dex.TokenAccount, tokens []dex.TokenAccount) error {
	args := struct {
		TokenIDs []string `json:"token_ids"`
	}{tokenAccountsToStrings(tokens)}
	return c.call(ctx, c.exchangeID, "unregister_tokens", args, big.NewInt(1), nil)
}

// Withdraw implements dex.Client.
func (c *Client) Withdraw(ctx context.Context, accountID dex.TokenAccount, token dex.TokenAccount, amount *big.Int) error {
	args := struct {
		TokenID string `json:"token_id"`
		Amount  string `json:"amount"`
	}{string(token), amount.String()}
	return c.call(ctx, c.exchangeID, "withdraw", args, big.NewInt(1), nil)
}

// Swap implements dex.Client.
func (c *Client) Swap(ctx context.Context, accountID dex.TokenAccount, actions []dex.SwapAction, minAmountOut *big.Int) (*big.Int, error) {
	type swapActionWire struct {
		PoolID   uint32  `json:"pool_id"`
		TokenIn  string  `json:"token_in"`
		TokenOut string  `json:"token_out"`
		AmountIn *string `json:"amount_in,omitempty"`
		MinAmountOut string `json:"min_amount_out"`
	}

	wire := make([]swapActionWire, len(actions))
	for i, a := range actions {
		minOut := "0"
		if i == len(actions)-1 {
			minOut = minAmountOut.String()
		}
		var amountIn *string
		if a.AmountIn != nil {
			s := a.AmountIn.String()
			amountIn = &s
		}
		wire[i] = swapActionWire{
			PoolID:       a.PoolID,
			TokenIn:      string(a.TokenIn),
			TokenOut:     string(a.TokenOut),
			AmountIn:     amountIn,
			MinAmountOut: minOut,
		}
	}

	args := struct {
		Actions []swapActionWire `json:"actions"`
	}{wire}

	var out string
	if err := c.call(ctx, c.exchangeID, "swap", args, big.NewInt(1), &out); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(out, 10)
	if !ok {
		return nil, fmt.Errorf("parse swap result %q", out)
	}
	return n, nil
}

// FtTransferCall implements dex.Client.
func (c *Client) FtTransferCall(ctx context.Context, accountID dex.TokenAccount, token dex.TokenAccount, amount *big.Int) error {
	args := struct {
		ReceiverID string `json:"receiver_id"`
		Amount     string `json:"amount"`
		Msg        string `json:"msg"`
	}{c.exchangeID, amount.String(), ""}
	return c.call(ctx, string(token), "ft_transfer_call", args, big.NewInt(1), nil)
}

// FtMetadata implements dex.Client.
func (c *Client) FtMetadata(ctx context.Context, token dex.TokenAccount) (*dex.TokenMetadata, error) {
	var meta struct {
		Decimals uint8  `json:"decimals"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
	}
	if err := c.viewCall(ctx, string(token), "ft_metadata", struct{}{}, &meta); err != nil {
		return nil, err
	}
	return &dex.TokenMetadata{Token: token, Decimals: meta.Decimals, Symbol: meta.Symbol, Name: meta.Name}, nil
}

func tokenAccountsToStrings(tokens []dex.TokenAccount) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	return out
}

func stringPtr(s string) *string { return &s }
