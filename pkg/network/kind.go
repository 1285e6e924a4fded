package network

import "fmt"

// Kind identifies what a node computes. The catalog is closed: adding a
// kind means updating the port table here, code generation and the VM's
// node dispatch.
type Kind uint8

// Kind values double as the operand byte of CALL_NODE, so they must stay
// stable.
const (
	KindInt    Kind = 1
	KindAdd    Kind = 2
	KindNegate Kind = 3
	KindSwitch Kind = 4
	KindFrame  Kind = 5
)

// SwitchCandidates is the number of inN candidate ports on a Switch node.
const SwitchCandidates = 4

// kindInfo holds the static description of a node kind.
type kindInfo struct {
	name          string
	inputs        []string
	timeDependent bool
}

var kindTable = map[Kind]kindInfo{
	KindInt:    {"Int", []string{"v"}, false},
	KindAdd:    {"Add", []string{"a", "b"}, false},
	KindNegate: {"Negate", []string{"v"}, false},
	KindSwitch: {"Switch", []string{"index", "in0", "in1", "in2", "in3"}, false},
	KindFrame:  {"Frame", nil, true},
}

// AllKinds returns every node kind in tag order.
func AllKinds() []Kind {
	return []Kind{KindInt, KindAdd, KindNegate, KindSwitch, KindFrame}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// String returns the kind's tag name, e.g. "Add".
func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Inputs returns the kind's input port names in evaluation order.
func (k Kind) Inputs() []string {
	return append([]string(nil), kindTable[k].inputs...)
}

// PortIndex returns the position of port in the kind's input list.
func (k Kind) PortIndex(port string) (int, bool) {
	for i, p := range kindTable[k].inputs {
		if p == port {
			return i, true
		}
	}
	return 0, false
}

// IsTimeDependent reports whether the kind's output can change between
// evaluations of the same network.
func (k Kind) IsTimeDependent() bool {
	return kindTable[k].timeDependent
}

// ParseKind returns the kind with the given tag name.
func ParseKind(name string) (Kind, error) {
	for _, k := range AllKinds() {
		if kindTable[k].name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown node kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
