// Copyright 2025 Certen Protocol

package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/nodalchain/baseapp/pkg/baseapp"
	"github.com/nodalchain/baseapp/pkg/kvdb"
	"github.com/nodalchain/baseapp/pkg/ledger"
	"github.com/nodalchain/baseapp/pkg/merkle"
)

func TestBalanceKeyLayout(t *testing.T) {
	got := BalanceKey([]byte("abcd"), "coinA")
	want := []byte{0x02, 0x04, 0x61, 0x62, 0x63, 0x64, 0x63, 0x6F, 0x69, 0x6E, 0x41}
	if !bytes.Equal(got, want) {
		t.Errorf("balance key = %v, want %v", got, want)
	}
}

func newTestStores(t *testing.T) *ledger.MultiStore {
	t.Helper()
	ndb, err := kvdb.NewNodeDB(dbm.NewMemDB(), 100)
	if err != nil {
		t.Fatalf("new node db: %v", err)
	}
	stores := ledger.NewMultiStore()
	stores.Register(ledger.NewBank(StoreKey, merkle.NewTree(ndb)))
	return stores
}

func testAddr(b byte) baseapp.Address {
	var addr baseapp.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func TestSendCoins(t *testing.T) {
	stores := newTestStores(t)
	ctx := baseapp.NewInitContext(context.Background(), stores, "test", 1)
	keeper := NewKeeper(baseapp.NewAccountRegistry())

	from, to := testAddr(1), testAddr(2)
	if err := keeper.setBalance(ctx, from, "uatom", "30"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := keeper.SendCoins(ctx, from, to, []baseapp.Coin{{Denom: "uatom", Amount: "10"}}); err != nil {
		t.Fatalf("send: %v", err)
	}

	fromBal, err := keeper.GetBalance(ctx, from, "uatom")
	if err != nil {
		t.Fatalf("get from: %v", err)
	}
	if fromBal != "20" {
		t.Errorf("from = %s, want 20", fromBal)
	}
	toBal, err := keeper.GetBalance(ctx, to, "uatom")
	if err != nil {
		t.Fatalf("get to: %v", err)
	}
	if toBal != "10" {
		t.Errorf("to = %s, want 10", toBal)
	}
}

func TestSendCoinsInsufficientFunds(t *testing.T) {
	stores := newTestStores(t)
	ctx := baseapp.NewInitContext(context.Background(), stores, "test", 1)
	keeper := NewKeeper(baseapp.NewAccountRegistry())

	from, to := testAddr(1), testAddr(2)
	if err := keeper.setBalance(ctx, from, "uatom", "5"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := keeper.SendCoins(ctx, from, to, []baseapp.Coin{{Denom: "uatom", Amount: "10"}})
	if err == nil {
		t.Fatal("overdraft send succeeded")
	}
}

func TestMintBurnPermissions(t *testing.T) {
	stores := newTestStores(t)
	ctx := baseapp.NewInitContext(context.Background(), stores, "test", 1)

	registry := baseapp.NewAccountRegistry()
	registry.CheckCreateNewModuleAccount("mint", []baseapp.Permission{baseapp.PermMinter, baseapp.PermBurner})
	registry.CheckCreateNewModuleAccount("gov", nil)
	keeper := NewKeeper(registry)

	coins := []baseapp.Coin{{Denom: "uatom", Amount: "100"}}
	if err := keeper.MintCoins(ctx, "mint", coins); err != nil {
		t.Fatalf("mint: %v", err)
	}
	mintAcc, _ := registry.GetModuleAccount("mint")
	bal, err := keeper.GetBalance(ctx, mintAcc.Address, "uatom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bal != "100" {
		t.Errorf("minted balance = %s, want 100", bal)
	}

	if err := keeper.BurnCoins(ctx, "mint", []baseapp.Coin{{Denom: "uatom", Amount: "40"}}); err != nil {
		t.Fatalf("burn: %v", err)
	}
	bal, _ = keeper.GetBalance(ctx, mintAcc.Address, "uatom")
	if bal != "60" {
		t.Errorf("balance after burn = %s, want 60", bal)
	}

	if err := keeper.MintCoins(ctx, "gov", coins); err == nil {
		t.Error("unprivileged module minted")
	}
	if err := keeper.BurnCoins(ctx, "gov", coins); err == nil {
		t.Error("unprivileged module burned")
	}
}

func TestBalanceQuery(t *testing.T) {
	stores := newTestStores(t)
	initCtx := baseapp.NewInitContext(context.Background(), stores, "test", 1)
	keeper := NewKeeper(baseapp.NewAccountRegistry())
	module := NewModule(keeper, baseapp.NewModuleRegistry())

	addr := testAddr(3)
	if err := keeper.setBalance(initCtx, addr, "coinA", "123"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := stores.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	queryCtx := baseapp.NewQueryContext(context.Background(), stores, 0)
	raw, err := module.Query(queryCtx, "balance/"+addr.String()+"/coinA", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var resp struct {
		Amount string `json:"amount"`
		Denom  string `json:"denom"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Amount != "123" || resp.Denom != "coinA" {
		t.Errorf("response = %+v, want {123 coinA}", resp)
	}
}
