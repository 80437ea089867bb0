// Copyright 2025 Certen Protocol
//
// Package bank implements the minimal coin keeper surface — send,
// balance lookup, mint, burn — plus the MsgSend handler and the balance
// query every wallet-facing client depends on.
package bank

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/nodalchain/baseapp/pkg/baseapp"
)

// StoreKey is the bank name this module owns in the MultiStore.
const StoreKey = "bank"

// balancePrefix is the fixed leading byte of every balance key:
// [0x02] || len(address) || address || denom.
const balancePrefix = 0x02

// BalanceKey builds the persisted balance key for addr/denom. Exported
// over raw address bytes, not the fixed-length baseapp.Address, so the
// layout is checkable independent of this framework's address length.
func BalanceKey(addr []byte, denom string) []byte {
	key := make([]byte, 0, 1+1+len(addr)+len(denom))
	key = append(key, balancePrefix, byte(len(addr)))
	key = append(key, addr...)
	key = append(key, denom...)
	return key
}

func balanceKey(addr baseapp.Address, denom string) []byte {
	return BalanceKey(addr.Bytes(), denom)
}

// GenesisBalance seeds one address's starting balance at InitChain.
type GenesisBalance struct {
	Address string        `json:"address"` // hex
	Coins   []baseapp.Coin `json:"coins"`
}

// GenesisState is x/bank's InitGenesis payload.
type GenesisState struct {
	Balances []GenesisBalance `json:"balances"`
}

// Keeper implements baseapp.BankKeeper plus the mint/burn surface the
// module-account registry's permission checks gate.
type Keeper struct {
	accounts *baseapp.AccountRegistry
}

// NewKeeper returns a bank keeper, consulting accounts for permission
// checks on MintCoins/BurnCoins.
func NewKeeper(accounts *baseapp.AccountRegistry) *Keeper {
	return &Keeper{accounts: accounts}
}

// GetBalance returns addr's balance of denom as UTF-8 decimal text,
// "0" if unset. A balance that reaches zero is stored as "0", not
// deleted.
func (k *Keeper) GetBalance(ctx *baseapp.Context, addr baseapp.Address, denom string) (string, error) {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return "", err
	}
	raw, err := store.Get(balanceKey(addr, denom))
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "0", nil
	}
	return string(raw), nil
}

func (k *Keeper) setBalance(ctx *baseapp.Context, addr baseapp.Address, denom, amount string) error {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return err
	}
	return store.Set(balanceKey(addr, denom), []byte(amount))
}

func addAmounts(a, b string) (string, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return "", fmt.Errorf("bank: invalid amount %q", a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return "", fmt.Errorf("bank: invalid amount %q", b)
	}
	return new(big.Int).Add(x, y).String(), nil
}

func subAmounts(a, b string) (string, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return "", fmt.Errorf("bank: invalid amount %q", a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return "", fmt.Errorf("bank: invalid amount %q", b)
	}
	if x.Cmp(y) < 0 {
		return "", baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodeInvalidRequest, "insufficient funds: have %s, need %s", a, b)
	}
	return new(big.Int).Sub(x, y).String(), nil
}

// SendCoins transfers amount from from to to, one denom at a time,
// satisfying baseapp.BankKeeper for the ante pipeline's fee-deduct step
// and x/bank's own MsgSend handler alike.
func (k *Keeper) SendCoins(ctx *baseapp.Context, from, to baseapp.Address, amount []baseapp.Coin) error {
	for _, coin := range amount {
		fromBal, err := k.GetBalance(ctx, from, coin.Denom)
		if err != nil {
			return err
		}
		newFrom, err := subAmounts(fromBal, coin.Amount)
		if err != nil {
			return err
		}
		toBal, err := k.GetBalance(ctx, to, coin.Denom)
		if err != nil {
			return err
		}
		newTo, err := addAmounts(toBal, coin.Amount)
		if err != nil {
			return err
		}
		if err := k.setBalance(ctx, from, coin.Denom, newFrom); err != nil {
			return err
		}
		if err := k.setBalance(ctx, to, coin.Denom, newTo); err != nil {
			return err
		}
	}
	return nil
}

// MintCoins credits module's own account with amount, requiring the
// minter permission.
func (k *Keeper) MintCoins(ctx *baseapp.Context, module string, amount []baseapp.Coin) error {
	acc, _ := k.accounts.GetModuleAccount(module)
	if err := baseapp.RequirePermission(acc, baseapp.PermMinter); err != nil {
		return err
	}
	for _, coin := range amount {
		bal, err := k.GetBalance(ctx, acc.Address, coin.Denom)
		if err != nil {
			return err
		}
		newBal, err := addAmounts(bal, coin.Amount)
		if err != nil {
			return err
		}
		if err := k.setBalance(ctx, acc.Address, coin.Denom, newBal); err != nil {
			return err
		}
	}
	return nil
}

// BurnCoins debits module's own account by amount, requiring the burner
// permission.
func (k *Keeper) BurnCoins(ctx *baseapp.Context, module string, amount []baseapp.Coin) error {
	acc, _ := k.accounts.GetModuleAccount(module)
	if err := baseapp.RequirePermission(acc, baseapp.PermBurner); err != nil {
		return err
	}
	for _, coin := range amount {
		bal, err := k.GetBalance(ctx, acc.Address, coin.Denom)
		if err != nil {
			return err
		}
		newBal, err := subAmounts(bal, coin.Amount)
		if err != nil {
			return err
		}
		if err := k.setBalance(ctx, acc.Address, coin.Denom, newBal); err != nil {
			return err
		}
	}
	return nil
}

// MsgSend is the one message x/bank's Module routes: a simple transfer.
type MsgSend struct {
	FromAddress string         `json:"from_address"`
	ToAddress   string         `json:"to_address"`
	Amount      []baseapp.Coin `json:"amount"`
}

func (m *MsgSend) Route() string { return "bank/send" }
func (m *MsgSend) Type() string  { return "bank/send" }

func (m *MsgSend) ValidateBasic() error {
	if m.FromAddress == "" || m.ToAddress == "" {
		return baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodeTxValidation, "send: from/to address required")
	}
	if len(m.Amount) == 0 {
		return baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodeTxValidation, "send: amount required")
	}
	return nil
}

func (m *MsgSend) GetSigners() []baseapp.Address {
	addr, err := baseapp.ParseAddress(m.FromAddress)
	if err != nil {
		return nil
	}
	return []baseapp.Address{addr}
}

func decodeMsgSend(body []byte) (baseapp.Msg, error) {
	var m MsgSend
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodeTxParseError, "decode MsgSend: %v", err)
	}
	return &m, nil
}

// Module implements baseapp.Module for x/bank.
type Module struct {
	Keeper *Keeper
}

// NewModule returns the bank module wired with keeper. It registers its
// own message type on registry so ValidateBasic/DecodeMsg can resolve it.
func NewModule(keeper *Keeper, registry *baseapp.ModuleRegistry) *Module {
	registry.RegisterMsgType("bank/send", "bank/send", decodeMsgSend)
	return &Module{Keeper: keeper}
}

func (m *Module) StoreKey() string { return StoreKey }

func (m *Module) Permissions() []baseapp.Permission { return nil }

func (m *Module) InitGenesis(ctx *baseapp.Context, genesisBytes []byte) ([]baseapp.ValidatorUpdate, error) {
	if len(genesisBytes) == 0 {
		return nil, nil
	}
	var gen GenesisState
	if err := json.Unmarshal(genesisBytes, &gen); err != nil {
		return nil, fmt.Errorf("bank: decode genesis: %w", err)
	}
	for _, gb := range gen.Balances {
		addr, err := baseapp.ParseAddress(gb.Address)
		if err != nil {
			return nil, err
		}
		for _, coin := range gb.Coins {
			if err := m.Keeper.setBalance(ctx, addr, coin.Denom, coin.Amount); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (m *Module) BeginBlock(ctx *baseapp.Context) error { return nil }

func (m *Module) EndBlock(ctx *baseapp.Context) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) HandleMsg(ctx *baseapp.Context, msg baseapp.Msg) (*baseapp.MsgResult, error) {
	send, ok := msg.(*MsgSend)
	if !ok {
		return nil, baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodeInvalidRequest, "bank module given non-MsgSend")
	}
	from, err := baseapp.ParseAddress(send.FromAddress)
	if err != nil {
		return nil, err
	}
	to, err := baseapp.ParseAddress(send.ToAddress)
	if err != nil {
		return nil, err
	}
	if err := m.Keeper.SendCoins(ctx, from, to, send.Amount); err != nil {
		return nil, err
	}
	event := baseapp.NewEvent("transfer").
		WithAttr("sender", send.FromAddress).
		WithAttr("recipient", send.ToAddress)
	return &baseapp.MsgResult{Events: []baseapp.Event{event}}, nil
}

// balanceResponse is the JSON shape the balance query returns.
type balanceResponse struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// Query answers "balance/<hex-address>/<denom>" (the tail after the
// "bank" module segment).
func (m *Module) Query(ctx *baseapp.Context, pathTail string, data []byte) ([]byte, error) {
	const prefix = "balance/"
	if len(pathTail) <= len(prefix) || pathTail[:len(prefix)] != prefix {
		return nil, baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodePathNotFound, "bank query expects balance/<address>/<denom>, got %q", pathTail)
	}
	segs := splitTwo(pathTail[len(prefix):])
	if len(segs) != 2 {
		return nil, baseapp.NewCoded(baseapp.CodespaceBank, baseapp.CodePathNotFound, "bank query expects balance/<address>/<denom>, got %q", pathTail)
	}
	addr, err := baseapp.ParseAddress(segs[0])
	if err != nil {
		return nil, err
	}
	amount, err := m.Keeper.GetBalance(ctx, addr, segs[1])
	if err != nil {
		return nil, err
	}
	return json.Marshal(balanceResponse{Amount: amount, Denom: segs[1]})
}

func splitTwo(s string) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
