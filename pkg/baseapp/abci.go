// Copyright 2025 Certen Protocol
//
// ABCI handler: the per-block state machine driving
// InitChain -> BeginBlock -> (CheckTx|DeliverTx)* -> EndBlock -> Commit.
// This package never imports a consensus-engine's wire types; pkg/node
// adapts cometbft's abcitypes.Application on top of this.

package baseapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nodalchain/baseapp/pkg/gas"
	"github.com/nodalchain/baseapp/pkg/ledger"
	"github.com/nodalchain/baseapp/pkg/metrics"
)

// State names the ABCI handler's position in the block state machine.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateBlockOpen
	StateBlockClosed
	StateHalted
)

// GenesisDoc is the decoded genesis envelope: one app-state payload
// per module, plus the fixed chain-level fields.
type GenesisDoc struct {
	ChainID       string
	InitialHeight int64
	AppState      map[string][]byte // module name -> that module's GenesisState bytes
}

// DeliverResult is what DeliverTx returns.
type DeliverResult struct {
	Code      uint32
	Data      []byte
	Log       string
	GasWanted uint64
	GasUsed   uint64
	Events    []Event
	Codespace string
	TxID      string // uuid correlation id, stamped on every DeliverTx/CheckTx log line
}

// CheckResult is what CheckTx returns.
type CheckResult struct {
	Code      uint32
	GasWanted uint64
	GasUsed   uint64
	Log       string
	TxID      string
}

// QueryResult is what Query returns.
type QueryResult struct {
	Code   uint32
	Value  []byte
	Height int64
	Log    string
}

// App is the ABCI Handler: it owns the multi-store, the module registry,
// the ante pipeline, and the module-account registry, and drives every
// ABCI call against them under a single exclusive handle: the driver
// serializes calls, and the mutex asserts it.
type App struct {
	mu sync.Mutex

	state   State
	stores  *ledger.MultiStore
	modules *ModuleRegistry
	ante    *AnteHandler
	router  *QueryRouter
	moduleAccounts *AccountRegistry
	gasCfg  gas.Config
	collector *metrics.Collector

	chainID string
	height  int64
	header  Header

	blockGasUsed uint64
	lastAppHash  []byte
}

// NewApp wires an ABCI Handler over stores/modules/ante, starting
// Uninitialized.
func NewApp(stores *ledger.MultiStore, modules *ModuleRegistry, ante *AnteHandler, moduleAccounts *AccountRegistry, gasCfg gas.Config) *App {
	return &App{
		state:          StateUninitialized,
		stores:         stores,
		modules:        modules,
		ante:           ante,
		router:         NewQueryRouter(modules),
		moduleAccounts: moduleAccounts,
		gasCfg:         gasCfg,
	}
}

// State reports the handler's current position in the state machine, for
// callers (pkg/node) that need to gate requests the ABCI driver itself
// should never send out of order.
func (a *App) State() State { return a.state }

// SetMetrics attaches a collector; DeliverTx and Commit report into it.
// Must be called before the first ABCI call, never after.
func (a *App) SetMetrics(c *metrics.Collector) { a.collector = c }

// LastAppHash returns the application hash of the most recent Commit,
// and the current height — what Info reports back to the engine.
func (a *App) LastAppHash() ([]byte, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAppHash, a.height
}

// InitChain registers every module's declared module account, runs each
// module's genesis, sets the chain to its initial height, and transitions
// Uninitialized -> Initialized.
func (a *App) InitChain(genesis GenesisDoc) ([]ValidatorUpdate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateUninitialized {
		return nil, NewCoded(CodespaceCore, CodeInvalidRequest, "InitChain called outside Uninitialized state")
	}

	for _, name := range a.modules.Names() {
		module, _ := a.modules.Module(name)
		a.moduleAccounts.CheckCreateNewModuleAccount(name, module.Permissions())
	}
	a.moduleAccounts.CheckCreateNewModuleAccount(FeeCollectorName, nil)

	ctx := NewInitContext(context.Background(), a.stores, genesis.ChainID, genesis.InitialHeight)
	var updates []ValidatorUpdate
	for _, name := range a.modules.Names() {
		module, _ := a.modules.Module(name)
		state := genesis.AppState[name]
		vu, err := module.InitGenesis(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("init genesis %q: %w", name, err)
		}
		updates = append(updates, vu...)
	}

	a.chainID = genesis.ChainID
	a.height = genesis.InitialHeight
	a.state = StateInitialized
	return updates, nil
}

// BeginBlock sets the block header, increments height, invokes every
// module's begin hook in a Block context, and opens the block
// (Initialized|BlockClosed -> BlockOpen).
func (a *App) BeginBlock(header Header) ([]Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateInitialized && a.state != StateBlockClosed {
		return nil, NewCoded(CodespaceCore, CodeInvalidRequest, "BeginBlock called outside Initialized/BlockClosed state")
	}

	if header.ChainID == "" {
		header.ChainID = a.chainID
	}
	a.height = header.Height
	a.header = header
	a.blockGasUsed = 0
	ctx := NewBlockContext(context.Background(), a.stores, header)
	events := NewEventManager()
	for _, name := range a.modules.Names() {
		module, _ := a.modules.Module(name)
		subCtx := ctx.WithEventManager(events)
		if err := module.BeginBlock(&subCtx); err != nil {
			return nil, fmt.Errorf("begin block %q: %w", name, err)
		}
	}
	a.state = StateBlockOpen
	return events.Events(), nil
}

// CheckTx decodes and runs the ante pipeline only, in an isolated cache
// that is always discarded: it never affects block state.
func (a *App) CheckTx(raw []byte) CheckResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	txID := uuid.New().String()
	if a.state != StateBlockOpen && a.state != StateBlockClosed {
		return CheckResult{Code: CodeInvalidRequest, Log: "CheckTx called outside an open block", TxID: txID}
	}

	tx, err := DecodeTx(raw)
	if err != nil {
		cs, code, log := AsCoded(err)
		return CheckResult{Code: code, Log: fmt.Sprintf("[%s] %s: %s", cs, txID, log), TxID: txID}
	}
	msgs, err := tx.ValidateBasic(a.modules)
	if err != nil {
		cs, code, log := AsCoded(err)
		return CheckResult{Code: code, Log: fmt.Sprintf("[%s] %s: %s", cs, txID, log), TxID: txID}
	}

	a.stores.BeginTx()
	defer a.stores.DiscardTx()
	ctx := NewTxContext(context.Background(), a.stores, a.header, raw, tx.Fee.GasLimit, a.gasCfg)
	_, err = a.ante.Run(ctx, tx, msgs)
	gasUsed := ctx.GasMeter().Consumed()
	if err != nil {
		cs, code, log := AsCoded(err)
		return CheckResult{Code: code, GasWanted: tx.Fee.GasLimit, GasUsed: gasUsed, Log: fmt.Sprintf("[%s] %s: %s", cs, txID, log), TxID: txID}
	}
	return CheckResult{Code: CodeOK, GasWanted: tx.Fee.GasLimit, GasUsed: gasUsed, TxID: txID}
}

// DeliverTx runs decode, ValidateBasic, ante (its own promoted tx-cache
// phase), then message dispatch (a second tx-cache phase), guaranteeing
// exactly one of three outcomes: rejected with no state change, included
// fee-only, or included with full effects.
func (a *App) DeliverTx(raw []byte) DeliverResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	txID := uuid.New().String()
	if a.state != StateBlockOpen {
		return DeliverResult{Code: CodeInvalidRequest, Log: "DeliverTx called outside an open block", TxID: txID}
	}

	tx, err := DecodeTx(raw)
	if err != nil {
		cs, code, log := AsCoded(err)
		return DeliverResult{Code: code, Codespace: string(cs), Log: fmt.Sprintf("%s: %s", txID, log), TxID: txID}
	}
	msgs, err := tx.ValidateBasic(a.modules)
	if err != nil {
		cs, code, log := AsCoded(err)
		return DeliverResult{Code: code, Codespace: string(cs), Log: fmt.Sprintf("%s: %s", txID, log), TxID: txID}
	}

	// Ante phase, in its own tx-cache layer. A failure before signature
	// verification discards everything: not included, no fee. A failure
	// at-or-after verification (other than an insufficient/missing fee)
	// keeps whatever the ante already wrote — exactly the fee-deduct and
	// sequence-increment effects — and the tx is included fee-only.
	a.stores.BeginTx()
	txCtx := NewTxContext(context.Background(), a.stores, a.header, raw, tx.Fee.GasLimit, a.gasCfg)
	anteResult, err := a.ante.Run(txCtx, tx, msgs)
	if err != nil {
		cs, code, log := AsCoded(err)
		feeOnly := anteResult.PastSignatureVerify && code != CodeInsufficientFees && code != CodeMissingFee
		if feeOnly {
			if cerr := a.stores.CommitTx(); cerr != nil {
				a.halt(cerr)
				return DeliverResult{Code: CodeInvalidRequest, Codespace: string(CodespaceCore), Log: fmt.Sprintf("%s: commit ante: %v", txID, cerr), TxID: txID}
			}
		} else {
			a.stores.DiscardTx()
		}
		gasUsed := txCtx.GasMeter().Consumed()
		a.blockGasUsed += gasUsed
		a.observeTx(false, gasUsed)
		return DeliverResult{Code: code, Codespace: string(cs), Log: fmt.Sprintf("%s: %s", txID, log), GasWanted: tx.Fee.GasLimit, GasUsed: gasUsed, TxID: txID}
	}
	if err := a.stores.CommitTx(); err != nil {
		a.halt(err)
		return DeliverResult{Code: CodeInvalidRequest, Codespace: string(CodespaceCore), Log: fmt.Sprintf("%s: commit ante: %v", txID, err), TxID: txID}
	}
	anteEvents := txCtx.EventManager().Events()

	// Message phase: a second tx-cache layer on top of the ante's
	// already-promoted writes, sharing the same gas meter. Any message
	// error discards only this phase's writes and events, keeping the
	// fee/sequence effects above.
	a.stores.BeginTx()
	msgCtx := txCtx.WithEventManager(NewEventManager())
	var msgEvents []Event
	var lastData []byte
	for i, msg := range msgs {
		module, ok := a.modules.Route(msg.Route())
		if !ok {
			a.stores.DiscardTx()
			gasUsed := msgCtx.GasMeter().Consumed()
			a.blockGasUsed += gasUsed
			a.observeTx(false, gasUsed)
			return DeliverResult{Code: CodePathNotFound, Codespace: string(CodespaceCore), Log: fmt.Sprintf("%s: message %d: no route %q", txID, i, msg.Route()), GasWanted: tx.Fee.GasLimit, GasUsed: gasUsed, Events: anteEvents, TxID: txID}
		}
		result, err := module.HandleMsg(&msgCtx, msg)
		if err != nil {
			a.stores.DiscardTx()
			msgCtx.EventManager().Clear()
			cs, code, log := AsCoded(err)
			gasUsed := msgCtx.GasMeter().Consumed()
			a.blockGasUsed += gasUsed
			a.observeTx(false, gasUsed)
			return DeliverResult{Code: code, Codespace: string(cs), Log: fmt.Sprintf("%s: message %d: %s", txID, i, log), GasWanted: tx.Fee.GasLimit, GasUsed: gasUsed, Events: anteEvents, TxID: txID}
		}
		lastData = result.Data
		msgEvents = append(msgEvents, result.Events...)
	}
	if err := a.stores.CommitTx(); err != nil {
		a.halt(err)
		return DeliverResult{Code: CodeInvalidRequest, Codespace: string(CodespaceCore), Log: fmt.Sprintf("%s: commit messages: %v", txID, err), TxID: txID}
	}

	gasUsed := msgCtx.GasMeter().Consumed()
	a.blockGasUsed += gasUsed
	a.observeTx(true, gasUsed)
	allEvents := append(append([]Event{}, anteEvents...), msgEvents...)
	return DeliverResult{
		Code:      CodeOK,
		Data:      lastData,
		GasWanted: tx.Fee.GasLimit,
		GasUsed:   gasUsed,
		Events:    allEvents,
		TxID:      txID,
	}
}

// halt transitions to Halted on an unrecoverable store error: a failed
// cache promotion means the multi-store's layers can no longer be trusted
// to agree across validators.
func (a *App) halt(err error) {
	a.state = StateHalted
}

func (a *App) observeTx(ok bool, gasUsed uint64) {
	if a.collector != nil {
		a.collector.ObserveDeliverTx(ok, gasUsed)
	}
}

// EndBlock invokes every module's end hook, collects validator-set
// updates, and closes the block (BlockOpen -> BlockClosed).
func (a *App) EndBlock() ([]ValidatorUpdate, []Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateBlockOpen {
		return nil, nil, NewCoded(CodespaceCore, CodeInvalidRequest, "EndBlock called outside BlockOpen state")
	}

	ctx := NewBlockContext(context.Background(), a.stores, a.header)
	events := NewEventManager()
	var updates []ValidatorUpdate
	for _, name := range a.modules.Names() {
		module, _ := a.modules.Module(name)
		subCtx := ctx.WithEventManager(events)
		vu, err := module.EndBlock(&subCtx)
		if err != nil {
			return nil, nil, fmt.Errorf("end block %q: %w", name, err)
		}
		updates = append(updates, vu...)
	}
	a.state = StateBlockClosed
	return updates, events.Events(), nil
}

// Commit flushes every bank, computes the application hash, and returns
// it. The block stays Closed until the next BeginBlock.
func (a *App) Commit() ([]byte, int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateBlockClosed {
		return nil, 0, NewCoded(CodespaceCore, CodeInvalidRequest, "Commit called outside BlockClosed state")
	}
	appHash, version, err := a.stores.Commit()
	if err != nil {
		// Storage corruption or a version overwrite surfacing from IAVL
		// is unrecoverable; the caller (pkg/node) must not retry.
		a.state = StateHalted
		return nil, 0, err
	}
	a.lastAppHash = appHash
	if a.collector != nil {
		a.collector.ObserveCommit(a.height, a.blockGasUsed)
	}
	return appHash, version, nil
}

// Query routes path to the owning module against an immutable Query
// context pinned to height (0 = head).
func (a *App) Query(path string, data []byte, height int64) QueryResult {
	ctx := NewQueryContext(context.Background(), a.stores, height)
	value, err := a.router.Route(ctx, path, data)
	if err != nil {
		_, code, log := AsCoded(err)
		return QueryResult{Code: code, Height: height, Log: log}
	}
	return QueryResult{Code: CodeOK, Value: value, Height: height}
}
