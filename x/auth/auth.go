// Copyright 2025 Certen Protocol
//
// Package auth implements the account-keeper module the ante pipeline's
// account-lookup, sequence, and sequence-increment steps depend on.
package auth

import (
	"encoding/json"
	"fmt"

	"github.com/nodalchain/baseapp/pkg/baseapp"
)

// StoreKey is the bank name this module owns in the MultiStore.
const StoreKey = "acc"

const accountNumberKey = "next_account_number"

// BaseAccount is the minimal per-account state: address, a monotonically
// assigned account number, a replay-preventing sequence, and the public
// key bound to it once first seen on a signed tx.
type BaseAccount struct {
	Address       baseapp.Address `json:"address"`
	AccountNumber uint64          `json:"account_number"`
	Sequence      uint64          `json:"sequence"`
	PubKey        []byte          `json:"pub_key,omitempty"`
}

func (a *BaseAccount) GetAddress() baseapp.Address { return a.Address }
func (a *BaseAccount) GetAccountNumber() uint64     { return a.AccountNumber }
func (a *BaseAccount) GetSequence() uint64          { return a.Sequence }
func (a *BaseAccount) GetPubKey() []byte            { return a.PubKey }

// GenesisAccount seeds one account at InitChain.
type GenesisAccount struct {
	Address       string `json:"address"` // hex
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
}

// GenesisState is x/auth's InitGenesis payload.
type GenesisState struct {
	Accounts []GenesisAccount `json:"accounts"`
}

func accountKey(addr baseapp.Address) []byte {
	return append([]byte("acc/"), addr.Bytes()...)
}

// Keeper implements baseapp.AccountKeeper over this module's store.
type Keeper struct{}

// NewKeeper returns an account keeper. It carries no state of its own:
// every lookup reads through the Context's KVStore(StoreKey), matching
// how every other keeper in this framework is a thin stateless facade
// over the multi-store.
func NewKeeper() *Keeper { return &Keeper{} }

func (k *Keeper) GetAccount(ctx *baseapp.Context, addr baseapp.Address) (baseapp.Account, bool, error) {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return nil, false, err
	}
	raw, err := store.Get(accountKey(addr))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var acc BaseAccount
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, false, baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodeInvalidRequest, "corrupt account %s: %v", addr.String(), err)
	}
	return &acc, true, nil
}

func (k *Keeper) NewAccount(ctx *baseapp.Context, addr baseapp.Address) (baseapp.Account, error) {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return nil, err
	}
	next, err := k.nextAccountNumber(store)
	if err != nil {
		return nil, err
	}
	acc := &BaseAccount{Address: addr, AccountNumber: next}
	if err := k.SetAccount(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (k *Keeper) SetAccount(ctx *baseapp.Context, acc baseapp.Account) error {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return err
	}
	ba, ok := acc.(*BaseAccount)
	if !ok {
		return baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodeInvalidRequest, "auth keeper given a non-BaseAccount")
	}
	raw, err := json.Marshal(ba)
	if err != nil {
		return err
	}
	return store.Set(accountKey(ba.Address), raw)
}

func (k *Keeper) BindPubKey(ctx *baseapp.Context, acc baseapp.Account, pubKey []byte) error {
	ba, ok := acc.(*BaseAccount)
	if !ok {
		return baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodeInvalidRequest, "auth keeper given a non-BaseAccount")
	}
	ba.PubKey = append([]byte(nil), pubKey...)
	return k.SetAccount(ctx, ba)
}

func (k *Keeper) IncrementSequence(ctx *baseapp.Context, acc baseapp.Account) error {
	ba, ok := acc.(*BaseAccount)
	if !ok {
		return baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodeInvalidRequest, "auth keeper given a non-BaseAccount")
	}
	ba.Sequence++
	return k.SetAccount(ctx, ba)
}

func (k *Keeper) nextAccountNumber(store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}) (uint64, error) {
	raw, err := store.Get([]byte(accountNumberKey))
	if err != nil {
		return 0, err
	}
	var n uint64
	if raw != nil {
		n = bytesToUint64(raw)
	}
	if err := store.Set([]byte(accountNumberKey), uint64ToBytes(n+1)); err != nil {
		return 0, err
	}
	return n, nil
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(n >> (56 - 8*i))
	}
	return b
}

func bytesToUint64(b []byte) uint64 {
	var n uint64
	for i := 0; i < 8 && i < len(b); i++ {
		n = n<<8 | uint64(b[i])
	}
	return n
}

// Module implements baseapp.Module for x/auth. It carries no messages of
// its own (MsgSend lives in x/bank); it exists to host the account
// keeper's state and satisfy the Module-Account Registry's "every module
// is a compile-time handler trio" shape uniformly.
type Module struct {
	Keeper *Keeper
}

// NewModule returns the auth module wired with keeper.
func NewModule(keeper *Keeper) *Module {
	return &Module{Keeper: keeper}
}

func (m *Module) StoreKey() string                { return StoreKey }
func (m *Module) Permissions() []baseapp.Permission { return nil }

func (m *Module) InitGenesis(ctx *baseapp.Context, genesisBytes []byte) ([]baseapp.ValidatorUpdate, error) {
	if len(genesisBytes) == 0 {
		return nil, nil
	}
	var gen GenesisState
	if err := json.Unmarshal(genesisBytes, &gen); err != nil {
		return nil, fmt.Errorf("auth: decode genesis: %w", err)
	}
	for _, ga := range gen.Accounts {
		addr, err := baseapp.ParseAddress(ga.Address)
		if err != nil {
			return nil, err
		}
		acc := &BaseAccount{Address: addr, AccountNumber: ga.AccountNumber, Sequence: ga.Sequence}
		if err := m.Keeper.SetAccount(ctx, acc); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (m *Module) BeginBlock(ctx *baseapp.Context) error { return nil }

func (m *Module) EndBlock(ctx *baseapp.Context) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) HandleMsg(ctx *baseapp.Context, msg baseapp.Msg) (*baseapp.MsgResult, error) {
	return nil, baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodePathNotFound, "auth module has no messages")
}

// Query answers "account/<hex-address>" with the account's JSON encoding.
func (m *Module) Query(ctx *baseapp.Context, pathTail string, data []byte) ([]byte, error) {
	addr, err := baseapp.ParseAddress(pathTail)
	if err != nil {
		return nil, err
	}
	acc, found, err := m.Keeper.GetAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, baseapp.NewCoded(baseapp.CodespaceAuth, baseapp.CodeInvalidRequest, "account %s not found", pathTail)
	}
	return json.Marshal(acc)
}
