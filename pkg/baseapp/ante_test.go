// Copyright 2025 Certen Protocol

package baseapp

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nodalchain/baseapp/pkg/gas"
	"github.com/nodalchain/baseapp/pkg/ledger"
)

// fakeAccounts is an in-memory AccountKeeper: accounts live outside any
// store so the pipeline's own gas charges are the only consumption.
type fakeAccounts struct {
	accounts map[Address]*fakeAccount
	nextNum  uint64
}

type fakeAccount struct {
	addr     Address
	number   uint64
	sequence uint64
	pubKey   []byte
}

func (a *fakeAccount) GetAddress() Address      { return a.addr }
func (a *fakeAccount) GetAccountNumber() uint64 { return a.number }
func (a *fakeAccount) GetSequence() uint64      { return a.sequence }
func (a *fakeAccount) GetPubKey() []byte        { return a.pubKey }

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[Address]*fakeAccount{}}
}

func (f *fakeAccounts) GetAccount(ctx *Context, addr Address) (Account, bool, error) {
	acc, ok := f.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acc, true, nil
}

func (f *fakeAccounts) NewAccount(ctx *Context, addr Address) (Account, error) {
	acc := &fakeAccount{addr: addr, number: f.nextNum}
	f.nextNum++
	f.accounts[addr] = acc
	return acc, nil
}

func (f *fakeAccounts) SetAccount(ctx *Context, acc Account) error { return nil }

func (f *fakeAccounts) BindPubKey(ctx *Context, acc Account, pubKey []byte) error {
	f.accounts[acc.GetAddress()].pubKey = pubKey
	return nil
}

func (f *fakeAccounts) IncrementSequence(ctx *Context, acc Account) error {
	f.accounts[acc.GetAddress()].sequence++
	return nil
}

// fakeBank records fee transfers.
type fakeBank struct {
	transfers []struct {
		from, to Address
		amount   []Coin
	}
	failSend error
}

func (f *fakeBank) SendCoins(ctx *Context, from, to Address, amount []Coin) error {
	if f.failSend != nil {
		return f.failSend
	}
	f.transfers = append(f.transfers, struct {
		from, to Address
		amount   []Coin
	}{from, to, amount})
	return nil
}

// testMsg is a minimal routed message for pipeline tests.
type testMsg struct {
	signer Address
}

func (m *testMsg) Route() string          { return "test/noop" }
func (m *testMsg) Type() string           { return "test/noop" }
func (m *testMsg) ValidateBasic() error   { return nil }
func (m *testMsg) GetSigners() []Address  { return []Address{m.signer} }

type anteFixture struct {
	handler  *AnteHandler
	accounts *fakeAccounts
	bank     *fakeBank
	registry *AccountRegistry
	priv     ed25519.PrivateKey
	signer   Address
}

func newAnteFixture(t *testing.T) *anteFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var signer Address
	copy(signer[:], pub[:AddressLength])

	accounts := newFakeAccounts()
	acc, _ := accounts.NewAccount(nil, signer)
	acc.(*fakeAccount).pubKey = pub

	registry := NewAccountRegistry()
	registry.CheckCreateNewModuleAccount(FeeCollectorName, nil)

	bank := &fakeBank{}
	params := AnteParams{
		MaxTxBytes:        4096,
		MaxMemoCharacters: 64,
		MinGasPrices:      []Coin{{Denom: "uatom", Amount: "0.001"}},
		TxSigLimit:        4,
		MinGasLimit:       1000,
	}
	return &anteFixture{
		handler:  NewAnteHandler(params, accounts, bank, registry),
		accounts: accounts,
		bank:     bank,
		registry: registry,
		priv:     priv,
		signer:   signer,
	}
}

// buildTx assembles and signs a one-message Tx for the fixture's signer.
func (f *anteFixture) buildTx(t *testing.T, mutate func(*Tx)) (*Tx, []Msg) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{})
	tx := &Tx{
		Messages: []RawMsg{{Type: "test/noop", Body: body}},
		SignerInfos: []SignerInfo{{
			Address:  f.signer.String(),
			PubKey:   f.accounts.accounts[f.signer].pubKey,
			Sequence: f.accounts.accounts[f.signer].sequence,
			SignMode: "direct",
		}},
		Fee:  Fee{Amount: []Coin{{Denom: "uatom", Amount: "300"}}, GasLimit: 200_000},
		Memo: "",
	}
	if mutate != nil {
		mutate(tx)
	}

	acc := f.accounts.accounts[f.signer]
	signBytes, err := canonicalSignBytes(tx, "test-chain", acc.number, tx.SignerInfos[0].Sequence, "direct")
	if err != nil {
		t.Fatalf("sign bytes: %v", err)
	}
	tx.Signatures = [][]byte{ed25519.Sign(f.priv, signBytes)}

	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	tx.raw = raw
	return tx, []Msg{&testMsg{signer: f.signer}}
}

func (f *anteFixture) run(t *testing.T, tx *Tx, msgs []Msg) (AnteResult, error) {
	t.Helper()
	ctx := NewTxContext(context.Background(), ledger.NewMultiStore(), Header{Height: 10, ChainID: "test-chain"}, tx.Bytes(), tx.Fee.GasLimit, gas.DefaultConfig())
	return f.handler.Run(ctx, tx, msgs)
}

func TestAnteHappyPath(t *testing.T) {
	f := newAnteFixture(t)
	tx, msgs := f.buildTx(t, nil)

	result, err := f.run(t, tx, msgs)
	if err != nil {
		t.Fatalf("ante: %v", err)
	}
	if !result.PastSignatureVerify {
		t.Error("signature verification not reached")
	}
	if len(f.bank.transfers) != 1 {
		t.Fatalf("fee transfers = %d, want 1", len(f.bank.transfers))
	}
	collector, _ := f.registry.GetModuleAccount(FeeCollectorName)
	if f.bank.transfers[0].to != collector.Address {
		t.Error("fee not transferred to the fee collector")
	}
	if f.accounts.accounts[f.signer].sequence != 1 {
		t.Errorf("sequence = %d, want 1", f.accounts.accounts[f.signer].sequence)
	}
}

func TestAnteRejections(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Tx)
		wantCode uint32
	}{
		{"memo too long", func(tx *Tx) { tx.Memo = strings.Repeat("m", 65) }, CodeMemo},
		{"timeout exceeded", func(tx *Tx) { tx.TimeoutHeight = 5 }, CodeTimeout},
		{"gas below minimum", func(tx *Tx) { tx.Fee.GasLimit = 100 }, CodeInsufficientFees},
		{"fee denom missing", func(tx *Tx) { tx.Fee.Amount = []Coin{{Denom: "other", Amount: "999"}} }, CodeMissingFee},
		{"fee too small", func(tx *Tx) { tx.Fee.Amount = []Coin{{Denom: "uatom", Amount: "1"}} }, CodeInsufficientFees},
		{"wrong sequence", func(tx *Tx) { tx.SignerInfos[0].Sequence = 7 }, CodeAccountSequence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAnteFixture(t)
			tx, msgs := f.buildTx(t, tc.mutate)
			result, err := f.run(t, tx, msgs)
			if err == nil {
				t.Fatal("ante passed, want rejection")
			}
			if _, code, _ := AsCoded(err); code != tc.wantCode {
				t.Errorf("code = %d, want %d (%v)", code, tc.wantCode, err)
			}
			if result.PastSignatureVerify {
				t.Error("rejection reported as past signature verification")
			}
			if len(f.bank.transfers) != 0 {
				t.Error("rejected tx still transferred a fee")
			}
		})
	}
}

func TestAnteBadSignature(t *testing.T) {
	f := newAnteFixture(t)
	tx, msgs := f.buildTx(t, nil)
	tx.Signatures[0][0] ^= 0xFF

	result, err := f.run(t, tx, msgs)
	if err == nil {
		t.Fatal("ante accepted a corrupted signature")
	}
	if _, code, _ := AsCoded(err); code != CodeSigning {
		t.Errorf("code = %d, want CodeSigning", code)
	}
	if result.PastSignatureVerify {
		t.Error("failed verification reported as past")
	}
}

func TestAnteOversizedTx(t *testing.T) {
	f := newAnteFixture(t)
	tx, msgs := f.buildTx(t, func(tx *Tx) { tx.Memo = "" })
	tx.raw = make([]byte, 5000)

	_, err := f.run(t, tx, msgs)
	if err == nil {
		t.Fatal("oversized tx passed")
	}
	if _, code, _ := AsCoded(err); code != CodeTxLen {
		t.Errorf("code = %d, want CodeTxLen", code)
	}
}
