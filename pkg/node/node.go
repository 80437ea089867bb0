// Copyright 2025 Certen Protocol
//
// Package node wires the ABCI Handler (pkg/baseapp.App) to an in-process
// CometBFT node: an on-disk db provider, the file-backed private
// validator and node key, and proxy.NewLocalClientCreator handing the
// application straight to the consensus engine without a socket.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtcfg "github.com/cometbft/cometbft/config"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cryptoproto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"

	"github.com/nodalchain/baseapp/pkg/audit"
	"github.com/nodalchain/baseapp/pkg/baseapp"
)

// Adapter implements abcitypes.Application by delegating every call to a
// pkg/baseapp.App. It carries no consensus logic of its own — it only
// translates cometbft's wire-level request/response records into the
// application's decoded-record calls.
type Adapter struct {
	app      *baseapp.App
	auditLog *audit.Client
}

// NewAdapter wraps app as an abcitypes.Application.
func NewAdapter(app *baseapp.App) *Adapter {
	return &Adapter{app: app}
}

// SetAuditLog attaches an optional append-only block-audit sink. Audit
// failures are logged and swallowed: the audit trail is an operator
// convenience, never part of consensus.
func (a *Adapter) SetAuditLog(c *audit.Client) { a.auditLog = c }

func (a *Adapter) Info(_ context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	appHash, height := a.app.LastAppHash()
	return &abcitypes.ResponseInfo{
		Data:             "nodalchain-baseapp",
		Version:          req.Version,
		LastBlockHeight:  height,
		LastBlockAppHash: appHash,
	}, nil
}

func (a *Adapter) InitChain(_ context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	appState := map[string]json.RawMessage{}
	if len(req.AppStateBytes) > 0 {
		if err := json.Unmarshal(req.AppStateBytes, &appState); err != nil {
			return nil, fmt.Errorf("node: decode app_state: %w", err)
		}
	}
	byModule := make(map[string][]byte, len(appState))
	for name, raw := range appState {
		byModule[name] = raw
	}

	updates, err := a.app.InitChain(baseapp.GenesisDoc{
		ChainID:       req.ChainId,
		InitialHeight: req.InitialHeight,
		AppState:      byModule,
	})
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseInitChain{Validators: toABCIValidatorUpdates(updates)}, nil
}

func (a *Adapter) CheckTx(_ context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	result := a.app.CheckTx(req.Tx)
	return &abcitypes.ResponseCheckTx{
		Code:      result.Code,
		Log:       result.Log,
		GasWanted: int64(result.GasWanted),
		GasUsed:   int64(result.GasUsed),
	}, nil
}

func (a *Adapter) FinalizeBlock(_ context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	if _, err := a.app.BeginBlock(baseapp.Header{
		Height:  req.Height,
		Time:    req.Time,
		ChainID: "", // the bound chain id lives on the App from InitChain
	}); err != nil {
		return nil, err
	}

	txResults := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, tx := range req.Txs {
		r := a.app.DeliverTx(tx)
		txResults[i] = &abcitypes.ExecTxResult{
			Code:      r.Code,
			Data:      r.Data,
			Log:       r.Log,
			Codespace: r.Codespace,
			GasWanted: int64(r.GasWanted),
			GasUsed:   int64(r.GasUsed),
			Events:    toABCIEvents(r.Events),
		}
	}

	updates, _, err := a.app.EndBlock()
	if err != nil {
		return nil, err
	}

	appHash, _, err := a.app.Commit()
	if err != nil {
		return nil, fmt.Errorf("node: commit at finalize: %w", err)
	}

	if a.auditLog != nil {
		var gasUsed uint64
		for _, r := range txResults {
			gasUsed += uint64(r.GasUsed)
		}
		auditCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.auditLog.RecordBlock(auditCtx, req.Height, appHash, len(req.Txs), gasUsed); err != nil {
			log.Printf("audit: record block %d: %v", req.Height, err)
		}
		cancel()
	}

	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        txResults,
		ValidatorUpdates: toABCIValidatorUpdates(updates),
		AppHash:          appHash,
	}, nil
}

func (a *Adapter) Commit(_ context.Context, _ *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	// The actual flush already happened at the end of FinalizeBlock;
	// this call has nothing left to do but acknowledge.
	return &abcitypes.ResponseCommit{}, nil
}

func (a *Adapter) Query(_ context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	result := a.app.Query(req.Path, req.Data, req.Height)
	return &abcitypes.ResponseQuery{
		Code:   result.Code,
		Value:  result.Value,
		Height: result.Height,
		Log:    result.Log,
	}, nil
}

func (a *Adapter) PrepareProposal(_ context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

func (a *Adapter) ProcessProposal(_ context.Context, _ *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

func (a *Adapter) ExtendVote(_ context.Context, _ *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *Adapter) VerifyVoteExtension(_ context.Context, _ *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (a *Adapter) ListSnapshots(_ context.Context, _ *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *Adapter) OfferSnapshot(_ context.Context, _ *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *Adapter) LoadSnapshotChunk(_ context.Context, _ *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *Adapter) ApplySnapshotChunk(_ context.Context, _ *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

func toABCIValidatorUpdates(updates []baseapp.ValidatorUpdate) []abcitypes.ValidatorUpdate {
	if len(updates) == 0 {
		return nil
	}
	out := make([]abcitypes.ValidatorUpdate, len(updates))
	for i, u := range updates {
		out[i] = abcitypes.ValidatorUpdate{
			PubKey: cryptoproto.PublicKey{
				Sum: &cryptoproto.PublicKey_Ed25519{
					Ed25519: cmted25519.PubKey(u.PubKey),
				},
			},
			Power: u.Power,
		}
	}
	return out
}

func toABCIEvents(events []baseapp.Event) []abcitypes.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]abcitypes.Event, len(events))
	for i, e := range events {
		attrs := make([]abcitypes.EventAttribute, len(e.Attributes))
		for j, at := range e.Attributes {
			attrs[j] = abcitypes.EventAttribute{Key: at.Key, Value: at.Value, Index: true}
		}
		out[i] = abcitypes.Event{Type: e.Type, Attributes: attrs}
	}
	return out
}

// Engine owns the in-process CometBFT node plus an RPC client bound to
// it.
type Engine struct {
	cometCfg  *cmtcfg.Config
	app       abcitypes.Application
	logger    cmtlog.Logger
	node      *node.Node
	rpcClient *cmthttp.HTTP
	nodeID    string
	instanceID string
}

// NewEngine constructs the in-process node: an on-disk db provider from cometCfg's own
// DBBackend, the private validator and node key loaded from cometCfg's
// standard locations, and proxy.NewLocalClientCreator wrapping app.
func NewEngine(cometCfg *cmtcfg.Config, app abcitypes.Application, logger cmtlog.Logger) (*Engine, error) {
	if cometCfg == nil {
		return nil, fmt.Errorf("node: cometCfg must not be nil")
	}
	if app == nil {
		return nil, fmt.Errorf("node: abci app must not be nil")
	}

	dbProvider := cmtcfg.DBProvider(func(ctx *cmtcfg.DBContext) (dbm.DB, error) {
		return dbm.NewDB(ctx.ID, dbm.BackendType(cometCfg.DBBackend), filepath.Join(cometCfg.RootDir, "data"))
	})

	pv := privval.LoadFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	nodeKey, err := p2p.LoadNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("node: load node key: %w", err)
	}

	n, err := node.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		node.DefaultGenesisDocProviderFunc(cometCfg),
		dbProvider,
		node.DefaultMetricsProvider(cometCfg.Instrumentation),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("node: create cometbft node: %w", err)
	}

	rpcAddr := cometCfg.RPC.ListenAddress
	if rpcAddr == "" {
		rpcAddr = "tcp://127.0.0.1:26657"
	} else {
		rpcAddr = strings.Replace(rpcAddr, "0.0.0.0", "127.0.0.1", 1)
	}
	rpcClient, err := cmthttp.New(rpcAddr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("node: create rpc client: %w", err)
	}

	return &Engine{
		cometCfg:   cometCfg,
		app:        app,
		logger:     logger,
		node:       n,
		rpcClient:  rpcClient,
		nodeID:     string(nodeKey.ID()),
		instanceID: uuid.New().String(),
	}, nil
}

// Start starts the underlying CometBFT node, then the RPC client bound
// to it.
func (e *Engine) Start() error {
	if err := e.node.Start(); err != nil {
		return fmt.Errorf("node: start: %w", err)
	}
	if err := e.rpcClient.Start(); err != nil {
		return fmt.Errorf("node: start rpc client: %w", err)
	}
	return nil
}

// Stop tears the node down in reverse order of Start.
func (e *Engine) Stop() error {
	if err := e.rpcClient.Stop(); err != nil {
		e.logger.Error("stop rpc client", "err", err)
	}
	return e.node.Stop()
}

// NodeID returns this node's p2p identity.
func (e *Engine) NodeID() string { return e.nodeID }

// DefaultConfig returns a cometbft config rooted at homeDir, with RPC/P2P
// listen addresses and moniker set from the framework's own config
// fields.
func DefaultConfig(homeDir, moniker string, p2pPort, rpcPort int) *cmtcfg.Config {
	cfg := cmtcfg.DefaultConfig()
	cfg.SetRoot(homeDir)
	cfg.RootDir = homeDir
	cfg.P2P.ListenAddress = fmt.Sprintf("tcp://0.0.0.0:%d", p2pPort)
	cfg.RPC.ListenAddress = fmt.Sprintf("tcp://0.0.0.0:%d", rpcPort)
	cfg.Moniker = moniker
	cfg.DBBackend = "goleveldb"
	cfg.TxIndex.Indexer = "kv"
	return cfg
}

// EnsureHomeDir creates the standard CometBFT subdirectories under
// homeDir if missing.
func EnsureHomeDir(homeDir string) error {
	for _, sub := range []string{"config", "data"} {
		if err := os.MkdirAll(filepath.Join(homeDir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}
