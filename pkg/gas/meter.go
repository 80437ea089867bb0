// Package gas implements the per-transaction gas meter: an unsigned
// counter of consumed units bounded by a limit, with distinct OutOfGas
// and Overflow failure modes.
package gas

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Sentinel errors surfaced by the meter. Callers classify a failed Consume
// by errors.Is against these, never by inspecting Descriptor strings.
var (
	ErrOutOfGas  = errors.New("out of gas")
	ErrOverflow  = errors.New("gas overflow")
)

// OutOfGasError carries the descriptor of the operation that exhausted the
// meter, surfaced in DeliverTx/CheckTx logs.
type OutOfGasError struct {
	Descriptor string
	Consumed   uint64
	Limit      uint64
}

func (e *OutOfGasError) Error() string {
	return fmt.Sprintf("out of gas in location '%s': consumed %d, limit %d", e.Descriptor, e.Consumed, e.Limit)
}

func (e *OutOfGasError) Unwrap() error { return ErrOutOfGas }

// OverflowError reports an addition or multiplication that would wrap a
// uint64 gas counter. It is always fatal to the enclosing operation.
type OverflowError struct {
	Descriptor string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("gas overflow in location '%s'", e.Descriptor)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }

// Meter counts gas consumed against a fixed limit. It is not safe for
// concurrent use — a Meter is owned by exactly one Context for the lifetime
// of a single transaction.
type Meter struct {
	limit    uint64
	consumed *uint256.Int
	limitU   *uint256.Int
}

// NewMeter returns a Meter with the given limit. A limit of zero means no
// operation that consumes any gas at all can ever succeed.
func NewMeter(limit uint64) *Meter {
	return &Meter{
		limit:    limit,
		consumed: uint256.NewInt(0),
		limitU:   uint256.NewInt(limit),
	}
}

// NewInfiniteMeter returns a Meter that never runs out of gas: its limit
// is the largest uint64.
func NewInfiniteMeter() *Meter {
	return NewMeter(^uint64(0))
}

// Consumed returns the total gas consumed so far.
func (m *Meter) Consumed() uint64 {
	return m.consumed.Uint64()
}

// Limit returns the meter's configured limit.
func (m *Meter) Limit() uint64 {
	return m.limit
}

// IsPastLimit reports whether consumption has reached or exceeded the limit.
func (m *Meter) IsPastLimit() bool {
	return m.consumed.Cmp(m.limitU) >= 0 && m.limit != ^uint64(0)
}

// Consume charges n gas under descriptor. It returns *OverflowError if
// consumed+n would wrap a uint64, or *OutOfGasError if the new total would
// exceed the limit; in either case the meter's consumed value is left
// unchanged (the caller aborts the transaction).
func (m *Meter) Consume(n uint64, descriptor string) error {
	delta := uint256.NewInt(n)
	next := new(uint256.Int)
	_, overflow := next.AddOverflow(m.consumed, delta)
	if overflow || !next.IsUint64() {
		return &OverflowError{Descriptor: descriptor}
	}
	if next.Cmp(m.limitU) > 0 {
		return &OutOfGasError{Descriptor: descriptor, Consumed: m.consumed.Uint64(), Limit: m.limit}
	}
	m.consumed = next
	return nil
}

// Refund performs a saturating subtraction of n from the consumed total:
// it never drives Consumed() below zero.
func (m *Meter) Refund(n uint64) {
	delta := uint256.NewInt(n)
	if delta.Cmp(m.consumed) >= 0 {
		m.consumed = uint256.NewInt(0)
		return
	}
	next := new(uint256.Int).Sub(m.consumed, delta)
	m.consumed = next
}
