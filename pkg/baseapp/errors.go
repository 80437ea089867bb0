// Copyright 2025 Certen Protocol
//
// Error taxonomy: every surfaced failure carries a stable
// (codespace, code) pair in addition to a human-readable log string.

package baseapp

import (
	"errors"
	"fmt"

	"github.com/nodalchain/baseapp/pkg/gas"
)

// Codespace names the module responsible for a Coded error.
type Codespace string

const (
	CodespaceCore   Codespace = "core"
	CodespaceGas    Codespace = "gas"
	CodespaceAuth   Codespace = "auth"
	CodespaceBank   Codespace = "bank"
	CodespaceParams Codespace = "params"
)

// Core codes, stable across versions for a given semantic error.
const (
	CodeOK uint32 = 0

	CodeTxParseError uint32 = 1
	CodeTxValidation uint32 = 2

	CodeInsufficientFees uint32 = 10
	CodeMissingFee       uint32 = 11
	CodeMemo             uint32 = 12
	CodeTxLen            uint32 = 13
	CodeTimeout          uint32 = 14
	CodeAccountNotFound  uint32 = 15
	CodeAccountSequence  uint32 = 16
	CodeSigning          uint32 = 17

	CodeOutOfGas  uint32 = 20
	CodeOverflow  uint32 = 21

	CodePermission     uint32 = 30
	CodeInvalidRequest uint32 = 40
	CodePathNotFound   uint32 = 41
	CodeVersionNotFound uint32 = 42
	CodeOverwrite       uint32 = 43
)

// Coded is a surfaced, consensus-stable application error: its
// (Codespace, Code) pair is what ABCI responses key off of, never the
// Log string.
type Coded struct {
	Codespace Codespace
	Code      uint32
	Log       string
}

func (e *Coded) Error() string {
	return fmt.Sprintf("%s.%d: %s", e.Codespace, e.Code, e.Log)
}

// NewCoded wraps msg/err into a Coded error under codespace/code.
func NewCoded(codespace Codespace, code uint32, format string, args ...any) *Coded {
	return &Coded{Codespace: codespace, Code: code, Log: fmt.Sprintf(format, args...)}
}

// AsCoded extracts the (codespace, code, log) triple from err. Raw gas
// meter errors bubbling out of store access map to the gas codespace;
// anything else never wrapped in a Coded falls back to an
// undistinguished core/InvalidRequest classification — a handler bug,
// not an expected outcome, but one that must still surface rather than
// panic the process.
func AsCoded(err error) (Codespace, uint32, string) {
	var c *Coded
	if errors.As(err, &c) {
		return c.Codespace, c.Code, c.Log
	}
	if errors.Is(err, gas.ErrOutOfGas) {
		return CodespaceGas, CodeOutOfGas, err.Error()
	}
	if errors.Is(err, gas.ErrOverflow) {
		return CodespaceGas, CodeOverflow, err.Error()
	}
	return CodespaceCore, CodeInvalidRequest, err.Error()
}

// Outcome classifies where in the DeliverTx algorithm a failure
// landed, which determines whether fees were charged and state mutated.
type Outcome int

const (
	// OutcomeRejected: decode/validate_basic/pre-signature ante failure.
	// No state change, no fee.
	OutcomeRejected Outcome = iota
	// OutcomeFeeOnly: ante succeeded through signature verification but
	// a later ante step or the message phase failed. Fees charged,
	// sequence incremented, no message effects.
	OutcomeFeeOnly
	// OutcomeFull: every message executed without error.
	OutcomeFull
)
