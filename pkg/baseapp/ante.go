// Copyright 2025 Certen Protocol
//
// Ante pipeline: an ordered, short-circuiting list of decorators run
// before message dispatch, each charging gas as it works.

package baseapp

import (
	"crypto/ed25519"
	"encoding/json"
	"math/big"
)

// Account is the minimal per-account state the ante pipeline reads and
// advances. Concrete accounts (x/auth.BaseAccount) satisfy this
// structurally.
type Account interface {
	GetAddress() Address
	GetAccountNumber() uint64
	GetSequence() uint64
	GetPubKey() []byte
}

// AccountKeeper is the account-lookup surface the ante pipeline depends
// on, implemented by x/auth so baseapp never imports it directly.
type AccountKeeper interface {
	GetAccount(ctx *Context, addr Address) (Account, bool, error)
	NewAccount(ctx *Context, addr Address) (Account, error)
	SetAccount(ctx *Context, acc Account) error
	IncrementSequence(ctx *Context, acc Account) error
	// BindPubKey records pubKey on an account that has none yet, the
	// first signed transaction being the moment an address and its key
	// become linked on chain.
	BindPubKey(ctx *Context, acc Account, pubKey []byte) error
}

// BankKeeper is the fee-transfer surface the ante pipeline depends on,
// implemented by x/bank.
type BankKeeper interface {
	SendCoins(ctx *Context, from, to Address, amount []Coin) error
}

// FeeCollectorName is the module account every collected fee is
// transferred to.
const FeeCollectorName = "fee_collector"

// AnteParams are the chain-wide ante configuration values, normally
// sourced from pkg/params.
type AnteParams struct {
	MaxTxBytes       int
	MaxMemoCharacters int
	MinGasPrices     []Coin // price per unit gas, one per denom
	TxSigLimit       int
	MinGasLimit      uint64
}

// VerifyFunc checks that sig is a valid signature of signBytes under
// pubKey. The default implementation is ed25519, matching the signing
// scheme the node's own validator keys use.
type VerifyFunc func(pubKey, signBytes, sig []byte) bool

// Ed25519Verify is the default VerifyFunc.
func Ed25519Verify(pubKey, signBytes, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pubKey, signBytes, sig)
}

// AnteHandler runs the ordered decorator chain over one decoded,
// basic-validated Tx.
type AnteHandler struct {
	Params  AnteParams
	Accounts AccountKeeper
	Bank     BankKeeper
	ModuleAccounts *AccountRegistry
	Verify   VerifyFunc
}

// NewAnteHandler returns a handler with the ed25519 verifier wired by
// default.
func NewAnteHandler(params AnteParams, accounts AccountKeeper, bank BankKeeper, moduleAccounts *AccountRegistry) *AnteHandler {
	return &AnteHandler{Params: params, Accounts: accounts, Bank: bank, ModuleAccounts: moduleAccounts, Verify: Ed25519Verify}
}

// AnteResult reports how far the pipeline progressed, which the caller
// (DeliverTx) needs to classify the outcome: anything at or after
// signature verification still charges fees.
type AnteResult struct {
	PastSignatureVerify bool
	Signers             []Address
}

// Run executes every decorator in order, short-circuiting on the first
// failure. ctx must be a Tx context (live gas meter).
func (h *AnteHandler) Run(ctx *Context, tx *Tx, msgs []Msg) (AnteResult, error) {
	var result AnteResult

	// 1. Size.
	if len(tx.Bytes()) > h.Params.MaxTxBytes {
		return result, NewCoded(CodespaceCore, CodeTxLen, "tx size %d exceeds max %d", len(tx.Bytes()), h.Params.MaxTxBytes)
	}

	// 2. Memo length.
	if len(tx.Memo) > h.Params.MaxMemoCharacters {
		return result, NewCoded(CodespaceCore, CodeMemo, "memo length %d exceeds max %d", len(tx.Memo), h.Params.MaxMemoCharacters)
	}

	// 3. Timeout-height.
	if tx.TimeoutHeight != 0 && ctx.Header().Height > tx.TimeoutHeight {
		return result, NewCoded(CodespaceCore, CodeTimeout, "block height %d exceeds tx timeout %d", ctx.Header().Height, tx.TimeoutHeight)
	}

	// 4. ValidateBasic already ran before the pipeline was entered.

	// 5. Fee/gas.
	if tx.Fee.GasLimit < h.Params.MinGasLimit {
		return result, NewCoded(CodespaceCore, CodeInsufficientFees, "gas limit %d below minimum %d", tx.Fee.GasLimit, h.Params.MinGasLimit)
	}
	if err := checkMinFee(tx.Fee, h.Params.MinGasPrices); err != nil {
		return result, err
	}

	signers := Signers(msgs)
	result.Signers = signers

	// 6. Account lookup.
	accounts := make([]Account, len(signers))
	for i, addr := range signers {
		if err := ctx.GasMeter().Consume(100, "AccountLookup"); err != nil {
			return result, err
		}
		acc, found, err := h.Accounts.GetAccount(ctx, addr)
		if err != nil {
			return result, err
		}
		if !found {
			acc, err = h.Accounts.NewAccount(ctx, addr)
			if err != nil {
				return result, err
			}
		}
		if len(acc.GetPubKey()) == 0 && i < len(tx.SignerInfos) && len(tx.SignerInfos[i].PubKey) > 0 {
			if err := h.Accounts.BindPubKey(ctx, acc, tx.SignerInfos[i].PubKey); err != nil {
				return result, err
			}
		}
		accounts[i] = acc
	}

	// 7. Signature count.
	if len(tx.Signatures) != len(signers) {
		return result, NewCoded(CodespaceCore, CodeSigning, "signature count %d does not match signer count %d", len(tx.Signatures), len(signers))
	}
	if h.Params.TxSigLimit > 0 && len(tx.Signatures) > h.Params.TxSigLimit {
		return result, NewCoded(CodespaceCore, CodeSigning, "signature count %d exceeds tx_sig_limit %d", len(tx.Signatures), h.Params.TxSigLimit)
	}

	// 8. Sequence.
	for i, info := range tx.SignerInfos {
		if info.Sequence != accounts[i].GetSequence() {
			return result, NewCoded(CodespaceCore, CodeAccountSequence, "signer %s: expected sequence %d, got %d", signers[i].String(), accounts[i].GetSequence(), info.Sequence)
		}
	}

	// 9. Signature verify.
	for i, sig := range tx.Signatures {
		signBytes, err := canonicalSignBytes(tx, ctx.Header().ChainID, accounts[i].GetAccountNumber(), accounts[i].GetSequence(), tx.SignerInfos[i].SignMode)
		if err != nil {
			return result, err
		}
		if err := ctx.GasMeter().Consume(uint64(len(signBytes))+500, "SignatureVerify"); err != nil {
			return result, err
		}
		if !h.Verify(accounts[i].GetPubKey(), signBytes, sig) {
			return result, NewCoded(CodespaceCore, CodeSigning, "signer %s: signature verification failed", signers[i].String())
		}
	}
	result.PastSignatureVerify = true

	// 10. Fee deduct.
	payer, err := tx.FeePayer(signers)
	if err != nil {
		return result, err
	}
	if len(tx.Fee.Amount) > 0 {
		collector, _ := h.ModuleAccounts.GetModuleAccount(FeeCollectorName)
		if err := h.Bank.SendCoins(ctx, payer, collector.Address, tx.Fee.Amount); err != nil {
			return result, NewCoded(CodespaceCore, CodeInsufficientFees, "fee deduct: %v", err)
		}
	}

	// 11. Sequence increment.
	for _, acc := range accounts {
		if err := h.Accounts.IncrementSequence(ctx, acc); err != nil {
			return result, err
		}
	}

	return result, nil
}

// checkMinFee verifies fee covers gasLimit*minGasPrice per denom named in
// minGasPrices. A denom absent from minGasPrices is unconstrained.
func checkMinFee(fee Fee, minGasPrices []Coin) error {
	for _, price := range minGasPrices {
		var paid string
		for _, c := range fee.Amount {
			if c.Denom == price.Denom {
				paid = c.Amount
			}
		}
		if paid == "" {
			return NewCoded(CodespaceCore, CodeMissingFee, "tx missing required fee denom %q", price.Denom)
		}
		ok, err := feeCovers(paid, price.Amount, fee.GasLimit)
		if err != nil {
			return NewCoded(CodespaceCore, CodeInsufficientFees, "fee denom %q: %v", price.Denom, err)
		}
		if !ok {
			return NewCoded(CodespaceCore, CodeInsufficientFees, "fee %s%s insufficient for gas limit %d at min price %s", paid, price.Denom, fee.GasLimit, price.Amount)
		}
	}
	return nil
}

// feeCovers reports whether paid (an integer decimal amount) is at least
// price (a possibly-fractional decimal per unit gas) times gasLimit.
func feeCovers(paidStr, priceStr string, gasLimit uint64) (bool, error) {
	paid, ok := new(big.Int).SetString(paidStr, 10)
	if !ok {
		return false, NewCoded(CodespaceCore, CodeInsufficientFees, "invalid fee amount %q", paidStr)
	}
	price, ok := new(big.Rat).SetString(priceStr)
	if !ok {
		return false, NewCoded(CodespaceCore, CodeInsufficientFees, "invalid min gas price %q", priceStr)
	}
	required := new(big.Rat).Mul(price, new(big.Rat).SetInt64(int64(gasLimit)))
	paidRat := new(big.Rat).SetInt(paid)
	return paidRat.Cmp(required) >= 0, nil
}

// canonicalSignBytes reproduces the deterministic bytes a signer must
// have signed: the tx's messages, fee, memo, timeout, and the binding
// SignDoc (chain id, account number, sequence, sign mode), as canonical
// JSON so both signer and verifier derive identical bytes.
func canonicalSignBytes(tx *Tx, chainID string, accountNumber, sequence uint64, signMode string) ([]byte, error) {
	doc := struct {
		Messages      []RawMsg `json:"messages"`
		Fee           Fee      `json:"fee"`
		Memo          string   `json:"memo"`
		TimeoutHeight int64    `json:"timeout_height"`
		SignDoc       SignDoc  `json:"sign_doc"`
	}{
		Messages:      tx.Messages,
		Fee:           tx.Fee,
		Memo:          tx.Memo,
		TimeoutHeight: tx.TimeoutHeight,
		SignDoc: SignDoc{
			ChainID:       chainID,
			AccountNumber: accountNumber,
			Sequence:      sequence,
			SignMode:      signMode,
		},
	}
	return json.Marshal(doc)
}
