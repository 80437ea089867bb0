// Copyright 2025 Certen Protocol
//
// Package stubs supplies the chain modules that own a store but carry no
// message handling yet (staking, governance, distribution, slashing,
// evidence, mint, upgrade): a real store key, a no-op genesis, and empty
// begin/end hooks, so the multi-store and module-account registry run
// against a realistic module population.
package stubs

import "github.com/nodalchain/baseapp/pkg/baseapp"

// Module is a minimal baseapp.Module: a store key, a permission set, and
// no-op hooks. One instance per stub chain module.
type Module struct {
	storeKey string
	perms    []baseapp.Permission
}

// NewModule returns a stub module named storeKey carrying perms.
func NewModule(storeKey string, perms ...baseapp.Permission) *Module {
	return &Module{storeKey: storeKey, perms: perms}
}

func (m *Module) StoreKey() string                  { return m.storeKey }
func (m *Module) Permissions() []baseapp.Permission { return m.perms }

func (m *Module) InitGenesis(ctx *baseapp.Context, genesisBytes []byte) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) BeginBlock(ctx *baseapp.Context) error { return nil }

func (m *Module) EndBlock(ctx *baseapp.Context) ([]baseapp.ValidatorUpdate, error) {
	return nil, nil
}

func (m *Module) HandleMsg(ctx *baseapp.Context, msg baseapp.Msg) (*baseapp.MsgResult, error) {
	return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodePathNotFound, "%s: no messages implemented", m.storeKey)
}

func (m *Module) Query(ctx *baseapp.Context, pathTail string, data []byte) ([]byte, error) {
	return nil, baseapp.NewCoded(baseapp.CodespaceCore, baseapp.CodePathNotFound, "%s: no queries implemented", m.storeKey)
}

// Standard stub module names and their declared permissions.
const (
	StakingStoreKey      = "staking"
	GovernanceStoreKey   = "gov"
	DistributionStoreKey = "distribution"
	SlashingStoreKey      = "slashing"
	EvidenceStoreKey      = "evidence"
	MintStoreKey          = "mint"
	UpgradeStoreKey       = "upgrade"
)

// NewStaking returns the staking stub, holding the staking permission for
// its bonded/unbonded pool accounts.
func NewStaking() *Module { return NewModule(StakingStoreKey, baseapp.PermStaking) }

// NewGovernance returns the governance stub.
func NewGovernance() *Module { return NewModule(GovernanceStoreKey) }

// NewDistribution returns the distribution stub (no mint/burn/staking
// permission of its own — it only redistributes what other modules
// already hold).
func NewDistribution() *Module { return NewModule(DistributionStoreKey) }

// NewSlashing returns the slashing stub.
func NewSlashing() *Module { return NewModule(SlashingStoreKey) }

// NewEvidence returns the evidence stub.
func NewEvidence() *Module { return NewModule(EvidenceStoreKey) }

// NewMint returns the mint stub, holding the minter permission.
func NewMint() *Module { return NewModule(MintStoreKey, baseapp.PermMinter) }

// NewUpgrade returns the upgrade stub.
func NewUpgrade() *Module { return NewModule(UpgradeStoreKey) }
