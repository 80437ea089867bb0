// Copyright 2025 Certen Protocol
//
// Human-editable YAML snapshots of a Subspace's fields, for devnet
// genesis fixtures an operator can hand-edit before InitChain runs —
// the JSON the ABCI genesis envelope itself carries is machine-written,
// this format is not.

package params

import (
	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk shape of one schema's field snapshot: every
// field's raw bytes, represented as YAML strings so the file stays
// human-editable even for the JSON-encoded MinGasPrices-style fields.
type Fixture struct {
	Fields map[string]string `yaml:"fields"`
}

// DumpFixture renders schema's current field values as a YAML document.
func DumpFixture(schema Schema) ([]byte, error) {
	raw := schema.ToRaw()
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = string(v)
	}
	return yaml.Marshal(Fixture{Fields: fields})
}

// LoadFixture parses a YAML fixture back into the raw field map
// FromRaw expects.
func LoadFixture(data []byte) (map[string][]byte, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	raw := make(map[string][]byte, len(f.Fields))
	for k, v := range f.Fields {
		raw[k] = []byte(v)
	}
	return raw, nil
}
