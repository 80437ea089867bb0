// Copyright 2025 Certen Protocol
//
// Tx envelope: decode and finite-schema basic validation for the
// structured transaction the ante pipeline and message dispatch operate
// on.

package baseapp

import (
	"encoding/hex"
	"encoding/json"
)

// Coin is a single denom/amount pair. Amount is UTF-8 decimal text, the
// same encoding the bank store persists balances in, not a binary
// integer.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Fee is the fee and gas envelope of a Tx.
type Fee struct {
	Amount   []Coin `json:"amount"`
	GasLimit uint64 `json:"gas_limit"`
	Payer    string `json:"payer,omitempty"` // hex address; defaults to first signer
}

// SignDoc is the canonical sign-bytes binding input: chain-id,
// account number, sequence, and signing mode bind a signature to exactly
// one account/sequence/chain, never replayable across any of those.
type SignDoc struct {
	ChainID       string `json:"chain_id"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
	SignMode      string `json:"sign_mode"`
}

// SignerInfo is the per-signer metadata carried alongside one Tx
// signature.
type SignerInfo struct {
	Address  string `json:"address"` // hex-encoded Address
	PubKey   []byte `json:"pub_key"`
	Sequence uint64 `json:"sequence"`
	SignMode string `json:"sign_mode"`
}

// RawMsg is one message as carried on the wire: a type discriminator plus
// its module-defined body, decoded into a concrete Msg via the
// ModuleRegistry's registered decoder for Type.
type RawMsg struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Tx is the decoded transaction envelope.
type Tx struct {
	Messages      []RawMsg     `json:"messages"`
	SignerInfos   []SignerInfo `json:"signer_infos"`
	Signatures    [][]byte     `json:"signatures"`
	Fee           Fee          `json:"fee"`
	Memo          string       `json:"memo"`
	TimeoutHeight int64        `json:"timeout_height"`

	raw []byte
}

// DecodeTx parses raw bytes into a Tx. Malformed bytes surface as a
// TxParseError with no state change and no fee charged.
func DecodeTx(raw []byte) (*Tx, error) {
	var tx Tx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, NewCoded(CodespaceCore, CodeTxParseError, "decode tx: %v", err)
	}
	tx.raw = raw
	return &tx, nil
}

// Bytes returns the tx's original encoded form (used by the Size ante
// decorator).
func (tx *Tx) Bytes() []byte { return tx.raw }

// ValidateBasic runs the finite-schema check over the envelope itself
// and, via the registry's decoders, every carried message.
// Failure is a TxValidation error; no fee is charged.
func (tx *Tx) ValidateBasic(registry *ModuleRegistry) ([]Msg, error) {
	if len(tx.Messages) == 0 {
		return nil, NewCoded(CodespaceCore, CodeTxValidation, "tx carries no messages")
	}
	if len(tx.Signatures) != len(tx.SignerInfos) {
		return nil, NewCoded(CodespaceCore, CodeTxValidation, "signature count %d does not match signer count %d", len(tx.Signatures), len(tx.SignerInfos))
	}

	msgs := make([]Msg, len(tx.Messages))
	for i, raw := range tx.Messages {
		msg, err := registry.DecodeMsg(raw.Type, raw.Body)
		if err != nil {
			return nil, NewCoded(CodespaceCore, CodeTxValidation, "message %d: %v", i, err)
		}
		if err := msg.ValidateBasic(); err != nil {
			return nil, NewCoded(CodespaceCore, CodeTxValidation, "message %d: %v", i, err)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// Signers returns the distinct signer addresses across every message, in
// first-seen order, mirroring how the ante pipeline resolves who must
// sign.
func Signers(msgs []Msg) []Address {
	seen := map[Address]bool{}
	var out []Address
	for _, msg := range msgs {
		for _, a := range msg.GetSigners() {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// FeePayer resolves the Tx's fee payer: the Fee's explicit payer if set,
// else the first signer.
func (tx *Tx) FeePayer(signers []Address) (Address, error) {
	if tx.Fee.Payer != "" {
		return ParseAddress(tx.Fee.Payer)
	}
	if len(signers) == 0 {
		return Address{}, NewCoded(CodespaceCore, CodeTxValidation, "tx has no signers to default the fee payer to")
	}
	return signers[0], nil
}

// ParseAddress decodes a hex-encoded address string.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressLength {
		return Address{}, NewCoded(CodespaceCore, CodeTxValidation, "invalid address %q", s)
	}
	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// String hex-encodes addr.
func (a Address) String() string { return hex.EncodeToString(a[:]) }
