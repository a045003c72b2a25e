package dex

import (
	"context"
	"math/big"
)

// Client is the external collaborator the agent calls into to read pool
// state and submit swaps (spec.md §6). This package only describes the
// shape of that collaboration; internal/clients/nearrpc implements it over
// NEAR JSON-RPC.
type Client interface {
	// GetNumberOfPools returns the total pool count, used to paginate
	// GetPools over the full range (spec.md §4.2).
	GetNumberOfPools(ctx context.Context) (uint32, error)

	// GetPools returns pools in [from, from+limit), in on-chain index
	// order. The agent enumerates the whole range in fixed-size batches.
	GetPools(ctx context.Context, from, limit uint32) ([]*Pool, error)

	// GetReturn performs a read-only quote for swapping amountIn of tokenIn
	// for tokenOut through pool poolID, without mutating any state.
	GetReturn(ctx context.Context, poolID uint32, tokenIn TokenAccount, amountIn *big.Int, tokenOut TokenAccount) (*big.Int, error)

	// GetDeposits returns the registered, unswapped token balances the
	// agent's account holds inside the exchange contract (spec.md §4.8,
	// harvest skim source).
	GetDeposits(ctx context.Context, accountID TokenAccount) (map[TokenAccount]*big.Int, error)

	// RegisterTokens registers accountID to hold balances of tokens inside
	// the exchange contract; a no-op for already-registered tokens.
	RegisterTokens(ctx context.Context, accountID TokenAccount, tokens []TokenAccount) error

	// UnregisterTokens releases storage for tokens no longer held.
	UnregisterTokens(ctx context.Context, accountID TokenAccount, tokens []TokenAccount) error

	// Withdraw moves amount of token from the exchange-internal balance of
	// accountID out to the token's own NEP-141 contract.
	Withdraw(ctx context.Context, accountID TokenAccount, token TokenAccount, amount *big.Int) error

	// Swap executes a multi-hop swap along actions in a single transaction,
	// returning the amount of the final output token received.
	Swap(ctx context.Context, accountID TokenAccount, actions []SwapAction, minAmountOut *big.Int) (*big.Int, error)

	// FtTransferCall deposits amount of token into the exchange contract on
	// behalf of accountID, the entry point used before a Swap can draw on
	// that balance.
	FtTransferCall(ctx context.Context, accountID TokenAccount, token TokenAccount, amount *big.Int) error

	// FtMetadata returns the NEP-148 metadata (decimals, symbol, name) for
	// token, used to seed the token_metadata cache (spec.md §4.8).
	FtMetadata(ctx context.Context, token TokenAccount) (*TokenMetadata, error)
}

// SwapAction is one hop of a multi-hop Swap call: swap amountIn (or, if
// nil, the previous hop's full output) of tokenIn for tokenOut through
// pool poolID.
type SwapAction struct {
	PoolID   uint32
	TokenIn  TokenAccount
	TokenOut TokenAccount
	AmountIn *big.Int // nil defers to the prior hop's output
}

// TokenMetadata is the subset of NEP-148 metadata the agent persists.
type TokenMetadata struct {
	Token    TokenAccount
	Decimals uint8
	Symbol   string
	Name     string
}
