// Package bytecode compiles node networks to a compact stack bytecode and
// executes it.
//
// The format is designed for:
//   - Compact representation (1-5 bytes per instruction)
//   - Fast decoding (single-byte opcodes, fixed-width big-endian operands)
//   - Easy storage (the "NDBC" binary format, or CBOR for the program cache)
//
// # Architecture Overview
//
//   - Opcodes: nine stack instructions covering constants, stack shuffling,
//     node calls and branching
//
//   - CompiledNetwork: the code section plus a constant pool for values too
//     large to inline. Int and Float immediates live in the code; strings are
//     interned and lists are appended to the pool and loaded with VALUE_LOAD.
//
//   - Compiler: walks a network depth-first from its rendered node, emitting
//     each node's inputs in port order followed by CALL_NODE. A node reachable
//     along several paths is compiled once per path. Switch nodes become a
//     compare-and-branch chain whose addresses are patched after emission.
//
//   - VM: executes a CompiledNetwork until END and leaves the result on top
//     of the operand stack. All failures are returned as *RuntimeError.
//
// # Values
//
// Every value behaves as a list: scalars have length one and indexing wraps
// modulo the length. Add broadcasts its operands to the longer length, so
// Add(100, [1, 2, 3]) is [101, 102, 103].
package bytecode
