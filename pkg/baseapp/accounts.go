// Copyright 2025 Certen Protocol
//
// Module-account registry: deterministic pseudo-accounts owned by
// modules, address-derived by a domain-separated hash of the module
// name, carrying a fixed permission set checked before mint/burn
// operations.

package baseapp

import (
	"crypto/sha256"
)

// AddressLength is the fixed length of every account address, module or
// user-owned alike.
const AddressLength = 20

// Address is a fixed-length account identifier.
type Address [AddressLength]byte

// Bytes returns addr's raw bytes.
func (a Address) Bytes() []byte { return a[:] }

// moduleAddressDomain separates module-account address derivation from
// any other address space (e.g. user public-key hashes), so a module name
// can never collide with a user address by construction.
const moduleAddressDomain = "module-account/"

// ModuleAddress derives the deterministic address of the module account
// named name.
func ModuleAddress(name string) Address {
	sum := sha256.Sum256(append([]byte(moduleAddressDomain), name...))
	var addr Address
	copy(addr[:], sum[:AddressLength])
	return addr
}

// ModuleAccount is one registered module's on-chain pseudo-account.
type ModuleAccount struct {
	Name        string
	Address     Address
	Permissions map[Permission]bool
}

// HasPermission reports whether this module account may perform an
// operation gated by perm.
func (m *ModuleAccount) HasPermission(perm Permission) bool {
	return m.Permissions[perm]
}

// AccountRegistry tracks every module account the application has
// declared. It is populated once from the ModuleRegistry's declared
// permissions (normally during InitChain) and is afterward read-only
// except for idempotent re-creation checks.
type AccountRegistry struct {
	accounts map[string]*ModuleAccount
}

// NewAccountRegistry returns an empty registry.
func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{accounts: map[string]*ModuleAccount{}}
}

// GetModuleAccount returns the named module account, or ok=false if it
// has not been created yet.
func (r *AccountRegistry) GetModuleAccount(name string) (*ModuleAccount, bool) {
	acc, ok := r.accounts[name]
	return acc, ok
}

// CheckCreateNewModuleAccount ensures the named account exists with
// perms, creating it if absent. Calling this twice with the same
// arguments is a no-op the second time, matching InitChain's idempotent
// module-account bring-up.
func (r *AccountRegistry) CheckCreateNewModuleAccount(name string, perms []Permission) *ModuleAccount {
	if acc, ok := r.accounts[name]; ok {
		return acc
	}
	permSet := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		permSet[p] = true
	}
	acc := &ModuleAccount{Name: name, Address: ModuleAddress(name), Permissions: permSet}
	r.accounts[name] = acc
	return acc
}

// RequirePermission returns a Permission-codespace Coded error unless
// module holds perm — the single checkpoint every mint/burn path routes
// through.
func RequirePermission(acc *ModuleAccount, perm Permission) error {
	if acc != nil && acc.HasPermission(perm) {
		return nil
	}
	name := "<nil>"
	if acc != nil {
		name = acc.Name
	}
	return NewCoded(CodespaceCore, CodePermission, "module %q lacks permission %q", name, perm)
}
