package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode so that a program always encodes to the
// same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a CompiledNetwork to CBOR bytes.
func MarshalProgram(p *CompiledNetwork) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a CompiledNetwork from CBOR bytes.
func UnmarshalProgram(data []byte) (*CompiledNetwork, error) {
	var p CompiledNetwork
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: program version %d is newer than supported version %d", p.Version, BytecodeVersion)
	}
	return &p, nil
}
