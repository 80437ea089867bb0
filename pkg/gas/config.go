package gas

// Config holds the per-operation gas costs charged by a gas-wrapped
// store. Costs are configuration, never hardcoded into the store wrapper
// itself, so a chain can retune them via governance-controlled parameters
// (see pkg/params) without touching this package.
type Config struct {
	ReadFlat     uint64
	ReadPerByte  uint64
	WriteFlat    uint64
	WritePerByte uint64
	DeleteFlat   uint64
	IterNextFlat uint64
}

// DefaultConfig mirrors the Cosmos-SDK-style default KVGasConfig: cheap flat
// costs dominated by per-byte charges for anything that moves real data.
func DefaultConfig() Config {
	return Config{
		ReadFlat:     1000,
		ReadPerByte:  3,
		WriteFlat:    2000,
		WritePerByte: 30,
		DeleteFlat:   1000,
		IterNextFlat: 30,
	}
}

// mulPerByte computes perByte*length, reporting an OverflowError under
// descriptor if the multiplication would wrap a uint64.
func mulPerByte(perByte uint64, length int, descriptor string) (uint64, error) {
	if perByte == 0 || length == 0 {
		return 0, nil
	}
	n := uint64(length)
	product := perByte * n
	if perByte != 0 && product/perByte != n {
		return 0, &OverflowError{Descriptor: descriptor}
	}
	return product, nil
}

// accessCost computes and, on overflow, reports the total flat+per-byte cost
// for an access touching keyLen+valueLen bytes.
func (c Config) accessCost(flat, perByte uint64, keyLen, valueLen int, descriptor string) (uint64, error) {
	perByteCost, err := mulPerByte(perByte, keyLen+valueLen, descriptor)
	if err != nil {
		return 0, err
	}
	total := flat + perByteCost
	if total < flat {
		return 0, &OverflowError{Descriptor: descriptor}
	}
	return total, nil
}

// ReadCost returns the cost of a get whose key has length keyLen and whose
// resolved value (zero-length if absent) has length valueLen.
func (c Config) ReadCost(keyLen, valueLen int) (uint64, error) {
	return c.accessCost(c.ReadFlat, c.ReadPerByte, keyLen, valueLen, "ReadPerByte")
}

// WriteCost returns the cost of a set.
func (c Config) WriteCost(keyLen, valueLen int) (uint64, error) {
	return c.accessCost(c.WriteFlat, c.WritePerByte, keyLen, valueLen, "WritePerByte")
}

// DeleteCost returns the flat cost of a delete.
func (c Config) DeleteCost() uint64 {
	return c.DeleteFlat
}

// IterStepCost returns the cost of yielding one (key, value) pair during
// range iteration.
func (c Config) IterStepCost(keyLen, valueLen int) (uint64, error) {
	return c.accessCost(c.IterNextFlat, c.ReadPerByte, keyLen, valueLen, "IterNextFlat")
}
