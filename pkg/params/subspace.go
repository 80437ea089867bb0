// Copyright 2025 Certen Protocol
//
// Parameter subspace: a typed, per-module view over a shared params
// bank.

package params

import (
	"errors"
	"fmt"

	"github.com/nodalchain/baseapp/pkg/ledger"
)

// ErrPartialFields is returned by Params when some but not all of a schema's
// declared fields are present in the bank — the subspace's own corruption
// condition: fields are either all present or all absent.
var ErrPartialFields = errors.New("params: partial parameter set (corruption)")

// ErrInvalidField is returned by ParamsSet when Validate rejects a field's
// encoded bytes.
type ErrInvalidField struct {
	Field string
}

func (e *ErrInvalidField) Error() string {
	return fmt.Sprintf("params: field %q failed validation", e.Field)
}

// Schema describes one module's typed parameter set: the finite field
// names it declares, how to serialize/deserialize the whole set, and how
// to validate one field's raw bytes before it is persisted.
type Schema interface {
	// Fields returns the schema's declared field names.
	Fields() []string
	// ToRaw serializes every declared field to its wire bytes.
	ToRaw() map[string][]byte
	// FromRaw reconstructs a parameter set from a complete field map. raw
	// is guaranteed to carry every field in Fields() when called.
	FromRaw(raw map[string][]byte) (Schema, error)
	// Validate reports whether value is an acceptable encoding for field.
	Validate(field string, value []byte) bool
	// Default returns the zero/default parameter set used when no value
	// has ever been written for this subspace.
	Default() Schema
}

// Subspace is a per-module prefixed view on a shared params Bank, storing
// each declared field under subspaceName ‖ 0x00 ‖ fieldName.
type Subspace struct {
	name string
	bank ledger.Store
}

// NewSubspace returns a Subspace named name over bank, the application's
// shared params store.
func NewSubspace(name string, bank ledger.Store) *Subspace {
	return &Subspace{name: name, bank: bank}
}

func (s *Subspace) fieldKey(field string) []byte {
	key := make([]byte, 0, len(s.name)+1+len(field))
	key = append(key, s.name...)
	key = append(key, 0)
	key = append(key, field...)
	return key
}

// Params reads every field the schema declares and reconstructs it via
// FromRaw. If no field is present, schema's Default is returned instead.
// If only some fields are present, ErrPartialFields is returned.
func (s *Subspace) Params(schema Schema) (Schema, error) {
	fields := schema.Fields()
	raw := make(map[string][]byte, len(fields))
	present := 0
	for _, field := range fields {
		value, err := s.bank.Get(s.fieldKey(field))
		if err != nil {
			return nil, err
		}
		if value != nil {
			raw[field] = value
			present++
		}
	}
	if present == 0 {
		return schema.Default(), nil
	}
	if present != len(fields) {
		return nil, ErrPartialFields
	}
	return schema.FromRaw(raw)
}

// ParamsSet validates and writes every field the schema declares.
func (s *Subspace) ParamsSet(schema Schema) error {
	raw := schema.ToRaw()
	for _, field := range schema.Fields() {
		value, ok := raw[field]
		if !ok {
			return fmt.Errorf("params: schema did not encode declared field %q", field)
		}
		if !schema.Validate(field, value) {
			return &ErrInvalidField{Field: field}
		}
	}
	for field, value := range raw {
		if err := s.bank.Set(s.fieldKey(field), value); err != nil {
			return err
		}
	}
	return nil
}

// ParamsField reads one field's raw bytes, or nil if unset.
func (s *Subspace) ParamsField(field string) ([]byte, error) {
	return s.bank.Get(s.fieldKey(field))
}
