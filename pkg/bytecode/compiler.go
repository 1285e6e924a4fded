package bytecode

import (
	"fmt"
	"maps"

	"github.com/tliron/commonlog"

	"github.com/chazu/ndbx/pkg/network"
	"github.com/chazu/ndbx/pkg/value"
)

var log = commonlog.GetLogger("ndbx.bytecode")

// fixup is a branch whose address operand is patched once the named
// node's code has been emitted.
type fixup struct {
	offset int    // Offset of the 2-byte address operand
	target string // Node whose label the branch jumps to
}

// Compiler generates bytecode for one network. A Compiler is single-use:
// its label table, string intern table and DFS path are scoped to one
// Compile call.
type Compiler struct {
	network *network.Network
	program *CompiledNetwork

	// Node name -> offset where that node's code begins. A node reachable
	// along several paths is compiled once per path; the latest offset wins.
	labels map[string]int

	// String constant -> pool index (deduplication)
	strings map[string]int

	// Nodes on the current DFS path, for cycle detection
	path map[string]bool
}

// NewCompiler creates a compiler for n.
func NewCompiler(n *network.Network) *Compiler {
	return &Compiler{
		network: n,
		program: NewCompiledNetwork(),
		labels:  make(map[string]int),
		strings: make(map[string]int),
		path:    make(map[string]bool),
	}
}

// Compile compiles the network rooted at its rendered node.
// This is the main entry point for compilation.
func Compile(n *network.Network) (*CompiledNetwork, error) {
	return NewCompiler(n).Compile()
}

// Compile generates code for the rendered node and its inputs, followed
// by END. A network without a resolvable rendered node compiles to a
// program consisting of END alone.
func (c *Compiler) Compile() (*CompiledNetwork, error) {
	root := c.network.Rendered()
	if root == nil {
		log.Debugf("network %q has no rendered node %q; emitting empty program", c.network.Name, c.network.RenderedNode)
		c.program.Emit(OpEnd)
		return c.program, nil
	}

	if err := c.visit(root); err != nil {
		return nil, err
	}
	c.program.Emit(OpEnd)

	log.Debugf("compiled network %q: %d bytes, %d constants", c.network.Name, c.program.CodeLen(), c.program.ConstantCount())
	return c.program, nil
}

// Labels returns a copy of the label table built by Compile.
func (c *Compiler) Labels() map[string]int {
	return maps.Clone(c.labels)
}

func (c *Compiler) fail(kind CompileErrorKind, node *network.Node, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:    kind,
		Node:    node.Name,
		Offset:  c.program.CurrentOffset(),
		Message: fmt.Sprintf(format, args...),
	}
}

// visit emits code that leaves node's result on top of the stack.
func (c *Compiler) visit(node *network.Node) error {
	if c.path[node.Name] {
		return c.fail(CyclicNetwork, node, "node %q depends on its own result", node.Name)
	}
	if !node.Kind.Valid() {
		return c.fail(InvalidKind, node, "kind %d is not a node kind", uint8(node.Kind))
	}
	c.path[node.Name] = true
	defer delete(c.path, node.Name)

	c.labels[node.Name] = c.program.CurrentOffset()

	if node.Kind == network.KindSwitch {
		return c.visitSwitch(node)
	}

	// Stack after the loop: inputs in port order, last port on top
	for _, port := range node.Kind.Inputs() {
		if err := c.emitInput(node, port); err != nil {
			return err
		}
	}
	c.program.EmitCallNode(node.Kind)
	return nil
}

// source resolves the node driving port, or nil if the port is unconnected.
func (c *Compiler) source(node *network.Node, port string) (*network.Node, error) {
	conn := c.network.ConnectionTo(node, port)
	if conn == nil {
		return nil, nil
	}
	src := c.network.FindNodeByName(conn.Output)
	if src == nil {
		return nil, c.fail(UnresolvedNode, node, "port %q is connected to unknown node %q", port, conn.Output)
	}
	return src, nil
}

// emitInput pushes the value of one input port: the result of the node
// driving it, or the port's default.
func (c *Compiler) emitInput(node *network.Node, port string) error {
	src, err := c.source(node, port)
	if err != nil {
		return err
	}
	if src != nil {
		return c.visit(src)
	}

	v, ok := node.Value(port)
	if !ok || !v.IsValid() {
		return c.fail(MissingPortValue, node, "port %q is unconnected and has no value", port)
	}
	c.emitValue(v)
	return nil
}

// emitValue pushes a constant. Int and Float are inlined as immediates;
// everything else goes through the constant pool.
func (c *Compiler) emitValue(v value.Value) {
	switch v.Kind() {
	case value.KindInt:
		c.program.EmitInt32(v.GetInt(0))
	case value.KindFloat:
		c.program.EmitFloat32(v.GetFloat(0))
	case value.KindString:
		c.emitLoad(c.internString(v.GetString(0)))
	default:
		c.emitLoad(c.program.AddConstant(v))
	}
}

func (c *Compiler) emitLoad(index int) {
	c.program.EmitInt32(int32(index))
	c.program.Emit(OpValueLoad)
}

// internString returns the pool index of s, adding it on first use.
func (c *Compiler) internString(s string) int {
	if idx, ok := c.strings[s]; ok {
		return idx
	}
	idx := c.program.AddConstant(value.String(s))
	c.strings[s] = idx
	return idx
}

// visitSwitch lowers a Switch node to a compare-and-branch chain:
//
//	<index>
//	DUP; CONST_I32 k; IF_EQ_I32 <label of candidate k>   ; per connected inK
//	POP; JMP <end>
//	<candidate k>; JMP <end>                              ; per connected inK
//	end:
//
// Branch addresses are unknown while emitting, so they are recorded as
// fixups and patched once every candidate has been emitted.
func (c *Compiler) visitSwitch(node *network.Node) error {
	if err := c.emitInput(node, "index"); err != nil {
		return err
	}

	var candidates []*network.Node
	var fixups []fixup
	var endFixups []int

	for k := 0; k < network.SwitchCandidates; k++ {
		src, err := c.source(node, fmt.Sprintf("in%d", k))
		if err != nil {
			return err
		}
		if src == nil {
			continue
		}
		c.program.Emit(OpDup)
		c.program.EmitInt32(int32(k))
		fixups = append(fixups, fixup{offset: c.program.EmitJump(OpIfEqI32), target: src.Name})
		candidates = append(candidates, src)
	}

	c.program.Emit(OpPop)
	endFixups = append(endFixups, c.program.EmitJump(OpJump))

	// A later candidate may recompile an earlier one inside its own
	// subgraph, moving that node's label. Each branch must land on the copy
	// emitted for it, so capture the label right after each candidate.
	entries := make([]int, len(candidates))
	for i, src := range candidates {
		if err := c.visit(src); err != nil {
			return err
		}
		entry, ok := c.labels[src.Name]
		if !ok {
			return c.fail(UnresolvedLabel, node, "candidate %q has no label", src.Name)
		}
		entries[i] = entry
		endFixups = append(endFixups, c.program.EmitJump(OpJump))
	}

	end := c.program.CurrentOffset()
	for _, offset := range endFixups {
		if err := c.patch(node, offset, end); err != nil {
			return err
		}
	}
	for i, f := range fixups {
		if err := c.patch(node, f.offset, entries[i]); err != nil {
			return err
		}
		log.Debugf("switch %q: branch at %04X -> %q at %04X", node.Name, f.offset-1, f.target, entries[i])
	}
	return nil
}

func (c *Compiler) patch(node *network.Node, offset, target int) error {
	if target > MaxAddress {
		return c.fail(AddressOverflow, node, "jump target %d exceeds %d", target, MaxAddress)
	}
	if err := c.program.PatchAddress(offset, target); err != nil {
		return c.fail(AddressOverflow, node, "%v", err)
	}
	return nil
}
