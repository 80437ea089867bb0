// Copyright 2025 Certen Protocol
//
// AnteParamsSchema adapts AnteParams to pkg/params.Schema, so the
// chain-wide ante configuration lives in the Parameter Subspace like any
// other module's tunables instead of being hardcoded at application
// bring-up.

package baseapp

import (
	"encoding/json"
	"strconv"

	"github.com/nodalchain/baseapp/pkg/params"
)

// AnteParamsSchema is the params.Schema wrapper around AnteParams. Every
// field round-trips through a plain text encoding so arbitrary-width
// types (the MinGasPrices coin slice, via JSON) need no bespoke binary
// codec.
type AnteParamsSchema struct {
	Params AnteParams
}

var anteParamsFields = []string{
	"max_tx_bytes",
	"max_memo_characters",
	"min_gas_prices",
	"tx_sig_limit",
	"min_gas_limit",
}

// Fields implements params.Schema.
func (s AnteParamsSchema) Fields() []string { return anteParamsFields }

// ToRaw implements params.Schema.
func (s AnteParamsSchema) ToRaw() map[string][]byte {
	minGasPrices, _ := json.Marshal(s.Params.MinGasPrices)
	return map[string][]byte{
		"max_tx_bytes":        []byte(strconv.Itoa(s.Params.MaxTxBytes)),
		"max_memo_characters": []byte(strconv.Itoa(s.Params.MaxMemoCharacters)),
		"min_gas_prices":      minGasPrices,
		"tx_sig_limit":        []byte(strconv.Itoa(s.Params.TxSigLimit)),
		"min_gas_limit":       []byte(strconv.FormatUint(s.Params.MinGasLimit, 10)),
	}
}

// FromRaw implements params.Schema.
func (s AnteParamsSchema) FromRaw(raw map[string][]byte) (params.Schema, error) {
	maxTxBytes, err := strconv.Atoi(string(raw["max_tx_bytes"]))
	if err != nil {
		return nil, err
	}
	maxMemo, err := strconv.Atoi(string(raw["max_memo_characters"]))
	if err != nil {
		return nil, err
	}
	var minGasPrices []Coin
	if err := json.Unmarshal(raw["min_gas_prices"], &minGasPrices); err != nil {
		return nil, err
	}
	txSigLimit, err := strconv.Atoi(string(raw["tx_sig_limit"]))
	if err != nil {
		return nil, err
	}
	minGasLimit, err := strconv.ParseUint(string(raw["min_gas_limit"]), 10, 64)
	if err != nil {
		return nil, err
	}
	return AnteParamsSchema{Params: AnteParams{
		MaxTxBytes:        maxTxBytes,
		MaxMemoCharacters: maxMemo,
		MinGasPrices:      minGasPrices,
		TxSigLimit:        txSigLimit,
		MinGasLimit:       minGasLimit,
	}}, nil
}

// Validate implements params.Schema: every field here is a plain integer
// or a JSON coin slice, so validation only needs to check it parses.
func (s AnteParamsSchema) Validate(field string, value []byte) bool {
	switch field {
	case "max_tx_bytes", "max_memo_characters", "tx_sig_limit":
		_, err := strconv.Atoi(string(value))
		return err == nil
	case "min_gas_limit":
		_, err := strconv.ParseUint(string(value), 10, 64)
		return err == nil
	case "min_gas_prices":
		var coins []Coin
		return json.Unmarshal(value, &coins) == nil
	default:
		return false
	}
}

// Default implements params.Schema with the same conservative defaults
// NewAnteHandler's callers would otherwise hardcode.
func (s AnteParamsSchema) Default() params.Schema {
	return AnteParamsSchema{Params: AnteParams{
		MaxTxBytes:        1 << 20,
		MaxMemoCharacters: 256,
		MinGasPrices:      nil,
		TxSigLimit:        8,
		MinGasLimit:       1000,
	}}
}
