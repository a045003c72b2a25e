package nearrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/nearswap/agent/internal/dex"
	"github.com/nearswap/agent/internal/rpc"
	"github.com/nearswap/agent/internal/wallet"
)

// Wallet implements wallet.Wallet atop the same NEAR RPC transport and
// signer as Client, scoped to the agent's own account rather than the
// exchange contract.
type Wallet struct {
	transport *rpc.Transport
	signer    Signer
	wrapToken dex.TokenAccount
	accountID string
}

var _ wallet.Wallet = (*Wallet)(nil)

// NewWallet creates a wallet.Wallet adapter for accountID, wrapping the
// same transport/signer pair a Client uses for exchange calls.
func NewWallet(c *Client, wrapToken dex.TokenAccount) *Wallet {
	return &Wallet{
		transport: c.transport,
		signer:    c.signer,
		wrapToken: wrapToken,
		accountID: c.accountID,
	}
}

func (w *Wallet) AccountID() string { return w.accountID }

// accountView is the NEAR "view_account" query result shape.
type accountView struct {
	Amount string `json:"amount"`
}

// NativeBalance implements wallet.Wallet.
func (w *Wallet) NativeBalance(ctx context.Context) (*big.Int, error) {
	raw, err := w.transport.Call(ctx, "query", struct {
		RequestType string `json:"request_type"`
		Finality    string `json:"finality"`
		AccountID   string `json:"account_id"`
	}{"view_account", "final", w.accountID})
	if err != nil {
		return nil, fmt.Errorf("view_account %s: %w", w.accountID, err)
	}

	var av accountView
	if err := json.Unmarshal(raw, &av); err != nil {
		return nil, fmt.Errorf("parse view_account result: %w", err)
	}
	n, ok := new(big.Int).SetString(av.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("parse native balance %q", av.Amount)
	}
	return n, nil
}

// FtBalanceOf implements wallet.Wallet.
func (w *Wallet) FtBalanceOf(ctx context.Context, token dex.TokenAccount) (*big.Int, error) {
	client := &Client{transport: w.transport, signer: w.signer, accountID: w.accountID}
	var out string
	if err := client.viewCall(ctx, string(token), "ft_balance_of", struct {
		AccountID string `json:"account_id"`
	}{w.accountID}, &out); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(out, 10)
	if !ok {
		return nil, fmt.Errorf("parse ft_balance_of result %q", out)
	}
	return n, nil
}

// NearDeposit implements wallet.Wallet (near_deposit, amountYocto attached).
func (w *Wallet) NearDeposit(ctx context.Context, amountYocto *big.Int) error {
	if w.signer == nil {
		return fmt.Errorf("near_deposit: no signer configured")
	}
	_, err := w.signer.SignAndSendFunctionCall(ctx, string(w.wrapToken), "near_deposit", struct{}{}, amountYocto, defaultGas)
	return err
}

// NearWithdraw implements wallet.Wallet (near_withdraw, 1 yocto attached).
func (w *Wallet) NearWithdraw(ctx context.Context, amountYocto *big.Int) error {
	if w.signer == nil {
		return fmt.Errorf("near_withdraw: no signer configured")
	}
	args := struct {
		Amount string `json:"amount"`
	}{amountYocto.String()}
	_, err := w.signer.SignAndSendFunctionCall(ctx, string(w.wrapToken), "near_withdraw", args, big.NewInt(1), defaultGas)
	return err
}

// Transfer implements wallet.Wallet. For the wrap token (and any other
// NEP-141) this is ft_transfer; a plain native transfer has no contract
// method, so the Signer submits it directly against receiverID with no
// args and the amount as the attached deposit.
func (w *Wallet) Transfer(ctx context.Context, token dex.TokenAccount, receiverID string, amount *big.Int) error {
	if w.signer == nil {
		return fmt.Errorf("transfer: no signer configured")
	}
	if token == nativeTokenTag {
		_, err := w.signer.SignAndSendFunctionCall(ctx, receiverID, "", nil, amount, 0)
		return err
	}
	args := struct {
		ReceiverID string `json:"receiver_id"`
		Amount     string `json:"amount"`
	}{receiverID, amount.String()}
	_, err := w.signer.SignAndSendFunctionCall(ctx, string(token), "ft_transfer", args, big.NewInt(1), defaultGas)
	return err
}

// nativeTokenTag matches internal/harvest's pseudo-account used to tag
// native-NEAR trade records and transfers.
const nativeTokenTag dex.TokenAccount = "near"
