package block_exec

import (
	"encoding/binary"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// DeltaOp is a deferred numeric adjustment against an aggregator value.
// It cannot be finalized without reading the target key through a concrete
// view, which happens at materialization time.
type DeltaOp struct {
	Key   Key
	Delta sdkmath.Int
}

func AddDelta(key Key, amount uint64) DeltaOp {
	return DeltaOp{Key: key, Delta: sdkmath.NewIntFromUint64(amount)}
}

func SubDelta(key Key, amount uint64) DeltaOp {
	return DeltaOp{Key: key, Delta: sdkmath.NewIntFromUint64(amount).Neg()}
}

// ApplyTo resolves the delta against the base value bytes, returning the
// concrete resulting value. The base value must exist and be a big-endian
// u64, anything else is a contract violation of the view's ordering
// guarantees, reported to the caller to escalate.
func (d DeltaOp) ApplyTo(base Value) (uint64, error) {
	if base == nil {
		return 0, fmt.Errorf("delta target %q has no base value", d.Key)
	}
	if len(base) != 8 {
		return 0, fmt.Errorf("delta target %q has malformed base value of %d bytes", d.Key, len(base))
	}
	result := sdkmath.NewIntFromUint64(binary.BigEndian.Uint64(base)).Add(d.Delta)
	if result.IsNegative() || !result.IsUint64() {
		return 0, fmt.Errorf("delta on %q out of range: %s", d.Key, result)
	}
	return result.Uint64(), nil
}
