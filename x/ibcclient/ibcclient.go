// Copyright 2025 Certen Protocol
//
// Package ibcclient implements the IBC client registry's storage
// pattern: opaque client-state/consensus-state blobs keyed by client
// id, with register/update/get and no proof checking whatsoever —
// light-client verification belongs to an external collaborator.
package ibcclient

import (
	"encoding/json"
	"fmt"

	"github.com/nodalchain/baseapp/pkg/baseapp"
)

// StoreKey is the bank name this module owns in the MultiStore.
const StoreKey = "ibcclient"

// ClientState is an opaque, module-defined blob: this module never
// parses it, let alone verifies it.
type ClientState struct {
	ClientType string `json:"client_type"`
	Blob       []byte `json:"blob"`
}

// ConsensusState is the per-height opaque blob associated with a client.
type ConsensusState struct {
	Height uint64 `json:"height"`
	Blob   []byte `json:"blob"`
}

func clientStateKey(clientID string) []byte {
	return append([]byte("client/state/"), clientID...)
}

func consensusStateKey(clientID string, height uint64) []byte {
	return []byte(fmt.Sprintf("client/consensus/%s/%020d", clientID, height))
}

// Keeper is the client-registry surface: register, update, get. No
// verification method exists here by design.
type Keeper struct{}

// NewKeeper returns a client-registry keeper.
func NewKeeper() *Keeper { return &Keeper{} }

// RegisterClient creates clientID's client state. Registering an existing
// id overwrites it — the registry does not arbitrate client governance,
// only storage.
func (k *Keeper) RegisterClient(ctx *baseapp.Context, clientID string, state ClientState) error {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return store.Set(clientStateKey(clientID), raw)
}

// UpdateClientState overwrites clientID's consensus state at height.
func (k *Keeper) UpdateClientState(ctx *baseapp.Context, clientID string, height uint64, cs ConsensusState) error {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return err
	}
	if _, err := store.Get(clientStateKey(clientID)); err != nil {
		return err
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return store.Set(consensusStateKey(clientID, height), raw)
}

// GetClientState returns clientID's registered client state.
func (k *Keeper) GetClientState(ctx *baseapp.Context, clientID string) (*ClientState, bool, error) {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return nil, false, err
	}
	raw, err := store.Get(clientStateKey(clientID))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var cs ClientState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodeInvalidRequest, "corrupt client state %q: %v", clientID, err)
	}
	return &cs, true, nil
}

// GetConsensusState returns clientID's consensus state at height.
func (k *Keeper) GetConsensusState(ctx *baseapp.Context, clientID string, height uint64) (*ConsensusState, bool, error) {
	store, err := ctx.KVStore(StoreKey)
	if err != nil {
		return nil, false, err
	}
	raw, err := store.Get(consensusStateKey(clientID, height))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var cs ConsensusState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodeInvalidRequest, "corrupt consensus state %q@%d: %v", clientID, height, err)
	}
	return &cs, true, nil
}

// MsgRegisterClient is the one message this module routes.
type MsgRegisterClient struct {
	Signer   string      `json:"signer"`
	ClientID string      `json:"client_id"`
	State    ClientState `json:"state"`
}

func (m *MsgRegisterClient) Route() string { return "ibcclient/register" }
func (m *MsgRegisterClient) Type() string  { return "ibcclient/register" }

func (m *MsgRegisterClient) ValidateBasic() error {
	if m.ClientID == "" {
		return baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodeTxValidation, "ibcclient: client_id required")
	}
	return nil
}

func (m *MsgRegisterClient) GetSigners() []baseapp.Address {
	addr, err := baseapp.ParseAddress(m.Signer)
	if err != nil {
		return nil
	}
	return []baseapp.Address{addr}
}

func decodeMsgRegisterClient(body []byte) (baseapp.Msg, error) {
	var m MsgRegisterClient
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodeTxParseError, "decode MsgRegisterClient: %v", err)
	}
	return &m, nil
}

// Module implements baseapp.Module for the IBC client registry.
type Module struct {
	Keeper *Keeper
}

// NewModule returns the ibcclient module, registering its message type.
func NewModule(keeper *Keeper, registry *baseapp.ModuleRegistry) *Module {
	registry.RegisterMsgType("ibcclient/register", "ibcclient/register", decodeMsgRegisterClient)
	return &Module{Keeper: keeper}
}

func (m *Module) StoreKey() string                  { return StoreKey }
func (m *Module) Permissions() []baseapp.Permission { return nil }

func (m *Module) InitGenesis(ctx *baseapp.Context, genesisBytes []byte) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) BeginBlock(ctx *baseapp.Context) error { return nil }

func (m *Module) EndBlock(ctx *baseapp.Context) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) HandleMsg(ctx *baseapp.Context, msg baseapp.Msg) (*baseapp.MsgResult, error) {
	register, ok := msg.(*MsgRegisterClient)
	if !ok {
		return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodeInvalidRequest, "ibcclient module given unknown message")
	}
	if err := m.Keeper.RegisterClient(ctx, register.ClientID, register.State); err != nil {
		return nil, err
	}
	event := baseapp.NewEvent("register_client").WithAttr("client_id", register.ClientID)
	return &baseapp.MsgResult{Events: []baseapp.Event{event}}, nil
}

// Query answers "client/<client-id>" (the tail after the "ibcclient"
// module segment) with the registered client state.
func (m *Module) Query(ctx *baseapp.Context, pathTail string, data []byte) ([]byte, error) {
	const prefix = "client/"
	if len(pathTail) <= len(prefix) || pathTail[:len(prefix)] != prefix {
		return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodePathNotFound, "ibcclient query expects client/<id>, got %q", pathTail)
	}
	clientID := pathTail[len(prefix):]
	cs, found, err := m.Keeper.GetClientState(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodePathNotFound, "client %q not registered", clientID)
	}
	return json.Marshal(cs)
}
