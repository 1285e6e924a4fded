// Package network models a dataflow graph: named nodes with typed input
// ports, connections feeding one node's result into another node's port,
// and a rendered node that designates the evaluation root.
//
// A Network is built once (usually by Load) and is read-only afterwards.
package network

import (
	"github.com/chazu/ndbx/pkg/value"
)

// Node is a named unit of computation.
type Node struct {
	Name string `json:"name" yaml:"name" cbor:"name"`
	// X and Y position the node on the layout grid. They do not affect
	// evaluation.
	X    int  `json:"x" yaml:"x" cbor:"x"`
	Y    int  `json:"y" yaml:"y" cbor:"y"`
	Kind Kind `json:"kind" yaml:"kind" cbor:"kind"`
	// Values holds the default for each port, used when the port has no
	// incoming connection.
	Values map[string]value.Value `json:"values" yaml:"values" cbor:"values"`
}

// Value returns the default value of port.
func (n *Node) Value(port string) (value.Value, bool) {
	v, ok := n.Values[port]
	return v, ok
}

// Connection feeds the result of the Output node into Port on the Input
// node.
type Connection struct {
	Output string `json:"output" yaml:"output" cbor:"output"`
	Input  string `json:"input" yaml:"input" cbor:"input"`
	Port   string `json:"port" yaml:"port" cbor:"port"`
}

// Network is a named collection of nodes and connections.
type Network struct {
	Name         string       `json:"name" yaml:"name" cbor:"name"`
	RenderedNode string       `json:"rendered_node" yaml:"rendered_node" cbor:"rendered_node"`
	Nodes        []*Node      `json:"nodes" yaml:"nodes" cbor:"nodes"`
	Connections  []Connection `json:"connections" yaml:"connections" cbor:"connections"`
}

// FindNodeByName returns the node called name, or nil.
func (n *Network) FindNodeByName(name string) *Node {
	for _, node := range n.Nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}

// Rendered returns the evaluation root, or nil if RenderedNode is empty or
// names no node.
func (n *Network) Rendered() *Node {
	if n.RenderedNode == "" {
		return nil
	}
	return n.FindNodeByName(n.RenderedNode)
}

// ConnectionTo returns the connection driving port on node, or nil if the
// port is unconnected.
func (n *Network) ConnectionTo(node *Node, port string) *Connection {
	for i := range n.Connections {
		c := &n.Connections[i]
		if c.Input == node.Name && c.Port == port {
			return c
		}
	}
	return nil
}

// FindOutputNode returns the node whose result feeds port on node. A nil
// result means the port uses its default value (or that the connection
// names a node that does not exist; Validate reports that case).
func (n *Network) FindOutputNode(node *Node, port string) *Node {
	c := n.ConnectionTo(node, port)
	if c == nil {
		return nil
	}
	return n.FindNodeByName(c.Output)
}

// InputNodes returns every node directly feeding one of node's ports, in
// connection order. Connections naming unknown nodes are skipped.
func (n *Network) InputNodes(node *Node) []*Node {
	var inputs []*Node
	for _, c := range n.Connections {
		if c.Input != node.Name {
			continue
		}
		if src := n.FindNodeByName(c.Output); src != nil {
			inputs = append(inputs, src)
		}
	}
	return inputs
}

// IsTimeDependent reports whether node's result can change between
// evaluations: either its kind is time-dependent or some node feeding it,
// directly or transitively, is.
func (n *Network) IsTimeDependent(node *Node) bool {
	return n.isTimeDependent(node, make(map[string]bool))
}

func (n *Network) isTimeDependent(node *Node, seen map[string]bool) bool {
	if node.Kind.IsTimeDependent() {
		return true
	}
	if seen[node.Name] {
		return false
	}
	seen[node.Name] = true
	for _, input := range n.InputNodes(node) {
		if n.isTimeDependent(input, seen) {
			return true
		}
	}
	return false
}
