package bytecode

import (
	"fmt"

	"github.com/chazu/ndbx/pkg/value"
)

// ============================================================================
// Compile errors
// ============================================================================

// CompileErrorKind classifies a compilation failure.
type CompileErrorKind int

const (
	// UnresolvedNode: a connection names a source node that does not exist.
	UnresolvedNode CompileErrorKind = iota + 1
	// MissingPortValue: an unconnected port has no default value.
	MissingPortValue
	// CyclicNetwork: a node was reached again while compiling its own inputs.
	CyclicNetwork
	// AddressOverflow: a jump target lies beyond MaxAddress.
	AddressOverflow
	// UnresolvedLabel: a branch names a node whose code was never emitted.
	UnresolvedLabel
	// InvalidKind: a node's kind is not in the node catalog.
	InvalidKind
)

func (k CompileErrorKind) String() string {
	switch k {
	case UnresolvedNode:
		return "unresolved node"
	case MissingPortValue:
		return "missing port value"
	case CyclicNetwork:
		return "cyclic network"
	case AddressOverflow:
		return "address overflow"
	case UnresolvedLabel:
		return "unresolved label"
	case InvalidKind:
		return "invalid kind"
	default:
		return fmt.Sprintf("CompileErrorKind(%d)", int(k))
	}
}

// CompileError reports why a network could not be compiled. Node and
// Offset locate the failure: the node being compiled and the code offset
// reached at that point.
type CompileError struct {
	Kind    CompileErrorKind
	Node    string
	Offset  int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s at node %q (offset %d): %s", e.Kind, e.Node, e.Offset, e.Message)
}

// Is matches another *CompileError of the same kind, so the sentinels below
// work with errors.Is.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnresolvedNode   = &CompileError{Kind: UnresolvedNode}
	ErrMissingPortValue = &CompileError{Kind: MissingPortValue}
	ErrCyclicNetwork    = &CompileError{Kind: CyclicNetwork}
	ErrAddressOverflow  = &CompileError{Kind: AddressOverflow}
	ErrUnresolvedLabel  = &CompileError{Kind: UnresolvedLabel}
	ErrInvalidKind      = &CompileError{Kind: InvalidKind}
)

// ============================================================================
// Runtime errors
// ============================================================================

// RuntimeErrorKind classifies a VM failure.
type RuntimeErrorKind int

const (
	// StackUnderflow: an instruction popped from an empty stack.
	StackUnderflow RuntimeErrorKind = iota + 1
	// TypeMismatch: an operand had a variant the instruction cannot use.
	TypeMismatch
	// InvalidConstantIndex: VALUE_LOAD named an index outside the pool.
	InvalidConstantIndex
	// UnknownOpcode: the byte at ip is not an opcode. Compiler-produced
	// programs never trigger this; it means a version mismatch or corrupt code.
	UnknownOpcode
	// UnknownNodeKind: CALL_NODE carried a tag outside the node catalog.
	UnknownNodeKind
	// InvalidNodeCall: CALL_NODE named a kind that is never called at
	// runtime (Switch is lowered to branches by the compiler).
	InvalidNodeCall
	// TruncatedCode: an operand or the END instruction is missing, or a jump
	// leaves the code section.
	TruncatedCode
	// StepLimitExceeded: the VM executed MaxSteps instructions without
	// reaching END.
	StepLimitExceeded
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case StackUnderflow:
		return "stack underflow"
	case TypeMismatch:
		return "type mismatch"
	case InvalidConstantIndex:
		return "invalid constant index"
	case UnknownOpcode:
		return "unknown opcode"
	case UnknownNodeKind:
		return "unknown node kind"
	case InvalidNodeCall:
		return "invalid node call"
	case TruncatedCode:
		return "truncated code"
	case StepLimitExceeded:
		return "step limit exceeded"
	default:
		return fmt.Sprintf("RuntimeErrorKind(%d)", int(k))
	}
}

// RuntimeError is returned by VM.Run. IP is the offset of the failing
// instruction and Op its opcode. For TypeMismatch, Expected and Actual
// name the wanted and received variants.
type RuntimeError struct {
	Kind     RuntimeErrorKind
	IP       int
	Op       Opcode
	Expected string
	Actual   value.Kind
	Message  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s at %04X (%s): %s", e.Kind, e.IP, e.Op, e.Message)
}

// Is matches another *RuntimeError of the same kind.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrStackUnderflow       = &RuntimeError{Kind: StackUnderflow}
	ErrTypeMismatch         = &RuntimeError{Kind: TypeMismatch}
	ErrInvalidConstantIndex = &RuntimeError{Kind: InvalidConstantIndex}
	ErrUnknownOpcode        = &RuntimeError{Kind: UnknownOpcode}
	ErrUnknownNodeKind      = &RuntimeError{Kind: UnknownNodeKind}
	ErrInvalidNodeCall      = &RuntimeError{Kind: InvalidNodeCall}
	ErrTruncatedCode        = &RuntimeError{Kind: TruncatedCode}
	ErrStepLimitExceeded    = &RuntimeError{Kind: StepLimitExceeded}
)
