// Copyright 2025 Certen Protocol
//
// End-to-end block lifecycle tests: genesis, signed transfers, gas
// exhaustion, and cross-run hash determinism, driven through the same
// ABCI surface pkg/node exposes to the consensus engine.

package baseapp_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/nodalchain/baseapp/pkg/baseapp"
	"github.com/nodalchain/baseapp/pkg/gas"
	"github.com/nodalchain/baseapp/pkg/kvdb"
	"github.com/nodalchain/baseapp/pkg/ledger"
	"github.com/nodalchain/baseapp/pkg/merkle"
	"github.com/nodalchain/baseapp/x/auth"
	"github.com/nodalchain/baseapp/x/bank"
)

const testChainID = "test-chain"

var blockTime = time.Unix(1_700_000_000, 0).UTC()

// signer is one test identity: a deterministic ed25519 key and a fixed
// address.
type signer struct {
	addr baseapp.Address
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	seq  uint64
}

func newSigner(seed byte) *signer {
	seedBytes := bytes.Repeat([]byte{seed}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seedBytes)
	var addr baseapp.Address
	copy(addr[:], bytes.Repeat([]byte{seed}, baseapp.AddressLength))
	return &signer{addr: addr, priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// newChain stands up a full application over in-memory storage: auth and
// bank modules, ante pipeline, genesis balances per seeds.
func newChain(t *testing.T, seeds map[*signer]string) *baseapp.App {
	t.Helper()

	stores := ledger.NewMultiStore()
	for _, name := range []string{auth.StoreKey, bank.StoreKey} {
		ndb, err := kvdb.NewNodeDB(dbm.NewMemDB(), 1000)
		if err != nil {
			t.Fatalf("new node db: %v", err)
		}
		stores.Register(ledger.NewBank(name, merkle.NewTree(ndb)))
	}

	modules := baseapp.NewModuleRegistry()
	moduleAccounts := baseapp.NewAccountRegistry()

	authKeeper := auth.NewKeeper()
	modules.Register(auth.StoreKey, "", auth.NewModule(authKeeper))
	bankKeeper := bank.NewKeeper(moduleAccounts)
	modules.Register(bank.StoreKey, "bank/send", bank.NewModule(bankKeeper, modules))

	ante := baseapp.NewAnteHandler(baseapp.AnteParams{
		MaxTxBytes:        1 << 20,
		MaxMemoCharacters: 256,
		TxSigLimit:        8,
		MinGasLimit:       1000,
	}, authKeeper, bankKeeper, moduleAccounts)

	app := baseapp.NewApp(stores, modules, ante, moduleAccounts, gas.DefaultConfig())

	var authGen auth.GenesisState
	var bankGen bank.GenesisState
	for s, amount := range seeds {
		authGen.Accounts = append(authGen.Accounts, auth.GenesisAccount{Address: s.addr.String()})
		bankGen.Balances = append(bankGen.Balances, bank.GenesisBalance{
			Address: s.addr.String(),
			Coins:   []baseapp.Coin{{Denom: "uatom", Amount: amount}},
		})
	}
	authBytes, _ := json.Marshal(authGen)
	bankBytes, _ := json.Marshal(bankGen)

	if _, err := app.InitChain(baseapp.GenesisDoc{
		ChainID:       testChainID,
		InitialHeight: 1,
		AppState:      map[string][]byte{auth.StoreKey: authBytes, bank.StoreKey: bankBytes},
	}); err != nil {
		t.Fatalf("init chain: %v", err)
	}
	return app
}

// sendTx builds and signs a one-message bank send from s.
func sendTx(t *testing.T, s *signer, to baseapp.Address, amount, feeAmount string, gasLimit uint64) []byte {
	t.Helper()

	body, _ := json.Marshal(bank.MsgSend{
		FromAddress: s.addr.String(),
		ToAddress:   to.String(),
		Amount:      []baseapp.Coin{{Denom: "uatom", Amount: amount}},
	})
	messages := []baseapp.RawMsg{{Type: "bank/send", Body: body}}
	fee := baseapp.Fee{GasLimit: gasLimit}
	if feeAmount != "" {
		fee.Amount = []baseapp.Coin{{Denom: "uatom", Amount: feeAmount}}
	}

	signDoc := struct {
		Messages      []baseapp.RawMsg `json:"messages"`
		Fee           baseapp.Fee      `json:"fee"`
		Memo          string           `json:"memo"`
		TimeoutHeight int64            `json:"timeout_height"`
		SignDoc       baseapp.SignDoc  `json:"sign_doc"`
	}{
		Messages: messages,
		Fee:      fee,
		SignDoc: baseapp.SignDoc{
			ChainID:  testChainID,
			Sequence: s.seq,
			SignMode: "direct",
		},
	}
	signBytes, err := json.Marshal(signDoc)
	if err != nil {
		t.Fatalf("sign bytes: %v", err)
	}

	tx := baseapp.Tx{
		Messages: messages,
		SignerInfos: []baseapp.SignerInfo{{
			Address:  s.addr.String(),
			PubKey:   s.pub,
			Sequence: s.seq,
			SignMode: "direct",
		}},
		Signatures: [][]byte{ed25519.Sign(s.priv, signBytes)},
		Fee:        fee,
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	return raw
}

func runBlock(t *testing.T, app *baseapp.App, height int64, txs ...[]byte) ([]baseapp.DeliverResult, []byte) {
	t.Helper()
	if _, err := app.BeginBlock(baseapp.Header{Height: height, Time: blockTime}); err != nil {
		t.Fatalf("begin block %d: %v", height, err)
	}
	results := make([]baseapp.DeliverResult, len(txs))
	for i, tx := range txs {
		results[i] = app.DeliverTx(tx)
	}
	if _, _, err := app.EndBlock(); err != nil {
		t.Fatalf("end block %d: %v", height, err)
	}
	appHash, _, err := app.Commit()
	if err != nil {
		t.Fatalf("commit %d: %v", height, err)
	}
	return results, appHash
}

func queryBalance(t *testing.T, app *baseapp.App, addr baseapp.Address, denom string) string {
	t.Helper()
	result := app.Query("bank/balance/"+addr.String()+"/"+denom, nil, 0)
	if result.Code != baseapp.CodeOK {
		t.Fatalf("balance query: code %d, log %s", result.Code, result.Log)
	}
	var resp struct {
		Amount string `json:"amount"`
		Denom  string `json:"denom"`
	}
	if err := json.Unmarshal(result.Value, &resp); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	return resp.Amount
}

func querySequence(t *testing.T, app *baseapp.App, addr baseapp.Address) uint64 {
	t.Helper()
	result := app.Query("acc/"+addr.String(), nil, 0)
	if result.Code != baseapp.CodeOK {
		t.Fatalf("account query: code %d, log %s", result.Code, result.Log)
	}
	var acc struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := json.Unmarshal(result.Value, &acc); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	return acc.Sequence
}

func hasEvent(results []baseapp.DeliverResult, eventType string) bool {
	for _, r := range results {
		for _, e := range r.Events {
			if e.Type == eventType {
				return true
			}
		}
	}
	return false
}

func TestSimpleSend(t *testing.T) {
	runOnce := func() ([]byte, *baseapp.App, []baseapp.DeliverResult, *signer, *signer) {
		a := newSigner(0x0A)
		b := newSigner(0x0B)
		app := newChain(t, map[*signer]string{a: "30"})
		tx := sendTx(t, a, b.addr, "10", "1", 200_000)
		results, appHash := runBlock(t, app, 2, tx)
		return appHash, app, results, a, b
	}

	appHash, app, results, a, b := runOnce()
	if results[0].Code != baseapp.CodeOK {
		t.Fatalf("deliver: code %d, log %s", results[0].Code, results[0].Log)
	}
	if got := queryBalance(t, app, a.addr, "uatom"); got != "19" {
		t.Errorf("sender balance = %s, want 19", got)
	}
	if got := queryBalance(t, app, b.addr, "uatom"); got != "10" {
		t.Errorf("recipient balance = %s, want 10", got)
	}
	collector := baseapp.ModuleAddress(baseapp.FeeCollectorName)
	if got := queryBalance(t, app, collector, "uatom"); got != "1" {
		t.Errorf("fee collector balance = %s, want 1", got)
	}
	if got := querySequence(t, app, a.addr); got != 1 {
		t.Errorf("sender sequence = %d, want 1", got)
	}
	if !hasEvent(results, "transfer") {
		t.Error("no transfer event emitted")
	}

	// Identical inputs must reproduce the identical application hash.
	appHash2, _, _, _, _ := runOnce()
	if !bytes.Equal(appHash, appHash2) {
		t.Errorf("app hash not deterministic: %x != %x", appHash, appHash2)
	}
}

func TestOutOfGasKeepsAnteEffects(t *testing.T) {
	a := newSigner(0x0A)
	b := newSigner(0x0B)

	// Calibrate: a generous limit measures the full-tx cost, and a
	// CheckTx on a second identical chain measures the ante-only cost.
	calApp := newChain(t, map[*signer]string{a: "30"})
	calResults, _ := runBlock(t, calApp, 2, sendTx(t, a, b.addr, "10", "1", 400_000))
	if calResults[0].Code != baseapp.CodeOK {
		t.Fatalf("calibration deliver failed: %s", calResults[0].Log)
	}
	fullCost := calResults[0].GasUsed

	checkApp := newChain(t, map[*signer]string{a: "30"})
	if _, err := checkApp.BeginBlock(baseapp.Header{Height: 2, Time: blockTime}); err != nil {
		t.Fatalf("begin block: %v", err)
	}
	check := checkApp.CheckTx(sendTx(t, a, b.addr, "10", "1", 400_000))
	if check.Code != baseapp.CodeOK {
		t.Fatalf("calibration check failed: %s", check.Log)
	}
	anteCost := check.GasUsed
	if anteCost >= fullCost {
		t.Fatalf("ante cost %d not below full cost %d", anteCost, fullCost)
	}

	// A limit between the two passes ante and dies mid-message.
	limit := anteCost + (fullCost-anteCost)/2
	app := newChain(t, map[*signer]string{a: "30"})
	results, _ := runBlock(t, app, 2, sendTx(t, a, b.addr, "10", "1", limit))

	r := results[0]
	if r.Code == baseapp.CodeOK {
		t.Fatal("expected out-of-gas failure")
	}
	if r.Codespace != "gas" {
		t.Errorf("codespace = %q, want gas", r.Codespace)
	}
	// Ante effects survive: fee charged, sequence advanced.
	if got := queryBalance(t, app, a.addr, "uatom"); got != "29" {
		t.Errorf("sender balance = %s, want 29 (fee only)", got)
	}
	collector := baseapp.ModuleAddress(baseapp.FeeCollectorName)
	if got := queryBalance(t, app, collector, "uatom"); got != "1" {
		t.Errorf("fee collector balance = %s, want 1", got)
	}
	if got := querySequence(t, app, a.addr); got != 1 {
		t.Errorf("sender sequence = %d, want 1", got)
	}
	// Message effects discarded.
	if got := queryBalance(t, app, b.addr, "uatom"); got != "0" {
		t.Errorf("recipient balance = %s, want 0", got)
	}
	if hasEvent(results, "transfer") {
		t.Error("transfer event survived a rolled-back message phase")
	}
}

func TestIndependentSendsCommute(t *testing.T) {
	build := func(flip bool) []byte {
		a := newSigner(0x0A)
		b := newSigner(0x0B)
		c := newSigner(0x0C)
		d := newSigner(0x0D)
		app := newChain(t, map[*signer]string{a: "30", c: "30"})
		tx1 := sendTx(t, a, b.addr, "10", "1", 200_000)
		tx2 := sendTx(t, c, d.addr, "5", "1", 200_000)
		var results []baseapp.DeliverResult
		var appHash []byte
		if flip {
			results, appHash = runBlock(t, app, 2, tx2, tx1)
		} else {
			results, appHash = runBlock(t, app, 2, tx1, tx2)
		}
		for i, r := range results {
			if r.Code != baseapp.CodeOK {
				t.Fatalf("deliver %d: code %d, log %s", i, r.Code, r.Log)
			}
		}
		return appHash
	}

	h1 := build(false)
	h2 := build(true)
	if !bytes.Equal(h1, h2) {
		t.Errorf("delivery order of independent txs changed the app hash: %x != %x", h1, h2)
	}
}

func TestMalformedTxLeavesNoTrace(t *testing.T) {
	a := newSigner(0x0A)

	withGarbage := newChain(t, map[*signer]string{a: "30"})
	results, hashWith := runBlock(t, withGarbage, 2, []byte("{not json"))
	if results[0].Code != baseapp.CodeTxParseError {
		t.Errorf("code = %d, want CodeTxParseError", results[0].Code)
	}

	clean := newChain(t, map[*signer]string{a: "30"})
	_, hashClean := runBlock(t, clean, 2)
	if !bytes.Equal(hashWith, hashClean) {
		t.Errorf("rejected tx altered state: %x != %x", hashWith, hashClean)
	}
}

func TestWrongSequenceRejected(t *testing.T) {
	a := newSigner(0x0A)
	b := newSigner(0x0B)
	app := newChain(t, map[*signer]string{a: "30"})

	a.seq = 5 // on-chain sequence is 0
	results, _ := runBlock(t, app, 2, sendTx(t, a, b.addr, "10", "1", 200_000))
	if results[0].Code != baseapp.CodeAccountSequence {
		t.Errorf("code = %d, want CodeAccountSequence (log %s)", results[0].Code, results[0].Log)
	}
	// Not included: nothing charged.
	if got := queryBalance(t, app, a.addr, "uatom"); got != "30" {
		t.Errorf("sender balance = %s, want 30", got)
	}
}

func TestQueryUnknownPath(t *testing.T) {
	a := newSigner(0x0A)
	app := newChain(t, map[*signer]string{a: "30"})
	result := app.Query("nosuchmodule/thing", nil, 0)
	if result.Code != baseapp.CodePathNotFound {
		t.Errorf("code = %d, want CodePathNotFound", result.Code)
	}
}

func TestQueryHistoricalVersion(t *testing.T) {
	a := newSigner(0x0A)
	b := newSigner(0x0B)
	app := newChain(t, map[*signer]string{a: "30"})

	runBlock(t, app, 2, sendTx(t, a, b.addr, "10", "1", 200_000))
	runBlock(t, app, 3, func() []byte { a.seq = 1; return sendTx(t, a, b.addr, "5", "1", 200_000) }())

	// Head sees both sends.
	if got := queryBalance(t, app, b.addr, "uatom"); got != "15" {
		t.Errorf("head balance = %s, want 15", got)
	}

	// Version 1 (after the first block) sees only the first.
	result := app.Query("bank/balance/"+b.addr.String()+"/uatom", nil, 1)
	if result.Code != baseapp.CodeOK {
		t.Fatalf("historical query: code %d, log %s", result.Code, result.Log)
	}
	var resp struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(result.Value, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Amount != "10" {
		t.Errorf("balance@1 = %s, want 10", resp.Amount)
	}
}
