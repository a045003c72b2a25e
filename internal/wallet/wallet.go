// Package wallet defines the signing/transaction-submission abstraction
// this agent delegates to (spec.md §1: "transaction signing, fee
// estimation, and gas accounting — delegated to a wallet/signer
// abstraction"). No implementation lives here; this package only
// describes the boundary.
package wallet

import (
	"context"
	"math/big"

	"github.com/nearswap/agent/internal/dex"
)

// Wallet is the external collaborator responsible for native NEAR
// balance queries, wNEAR wrap/unwrap, and transfers. Every call that
// mutates chain state returns once the underlying transaction has
// reached finality (spec.md §4.7 step 3: "wait for finality").
type Wallet interface {
	// AccountID is this wallet's NEAR account identifier.
	AccountID() string

	// NativeBalance returns the account's native NEAR balance in
	// yoctoNEAR.
	NativeBalance(ctx context.Context) (*big.Int, error)

	// FtBalanceOf returns token's balance held directly by this wallet
	// (not the DEX deposit balance), in token smallest units.
	FtBalanceOf(ctx context.Context, token dex.TokenAccount) (*big.Int, error)

	// NearDeposit wraps amountYocto of native NEAR into wNEAR
	// (near_deposit, with amountYocto attached as the deposit).
	NearDeposit(ctx context.Context, amountYocto *big.Int) error

	// NearWithdraw unwraps amountYocto of wNEAR back to native NEAR
	// (near_withdraw, 1 yocto attached).
	NearWithdraw(ctx context.Context, amountYocto *big.Int) error

	// Transfer sends amount of token to receiverID. For the native
	// token this is a plain transfer; for fungible tokens it is
	// ft_transfer.
	Transfer(ctx context.Context, token dex.TokenAccount, receiverID string, amount *big.Int) error
}
