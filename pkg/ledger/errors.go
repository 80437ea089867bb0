// Copyright 2025 Certen Protocol
//
// Package ledger provides sentinel errors for the versioned multi-store.

package ledger

import "errors"

var (
	// ErrEmptyKey is returned by Set when the key is the empty byte string,
	// the one key the store layer reserves and rejects.
	ErrEmptyKey = errors.New("ledger: key cannot be empty")

	// ErrUnknownBank is returned when a multi-store operation names a bank
	// that was not declared at construction time.
	ErrUnknownBank = errors.New("ledger: unknown bank")

	// ErrNoActiveTx names the condition of no transaction cache being open
	// on a bank. Bank.CommitTx and Bank.DiscardTx treat that condition as a
	// no-op and do not return this error.
	ErrNoActiveTx = errors.New("ledger: no active transaction cache")
)
