package network

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by the problems Validate reports.
var (
	ErrDuplicateNode   = errors.New("duplicate node name")
	ErrUnknownKind     = errors.New("unknown node kind")
	ErrUnknownNode     = errors.New("unknown node")
	ErrUnknownPort     = errors.New("unknown port")
	ErrMultipleDrivers = errors.New("port has more than one driver")
	ErrCycle           = errors.New("cycle")
)

// Validate checks the structural invariants that compilation relies on:
// node names are unique, kinds are known, every connection names existing
// nodes and a port the input node's kind declares, no port has more than
// one driver, and the connections form no cycle. All problems found are
// returned together.
func (n *Network) Validate() error {
	var errs []error

	names := make(map[string]bool, len(n.Nodes))
	for _, node := range n.Nodes {
		if names[node.Name] {
			errs = append(errs, fmt.Errorf("node %q: %w", node.Name, ErrDuplicateNode))
		}
		names[node.Name] = true
		if !node.Kind.Valid() {
			errs = append(errs, fmt.Errorf("node %q: %w %d", node.Name, ErrUnknownKind, uint8(node.Kind)))
		}
	}

	type target struct{ node, port string }
	drivers := make(map[target]string)
	for _, c := range n.Connections {
		if n.FindNodeByName(c.Output) == nil {
			errs = append(errs, fmt.Errorf("connection %s -> %s.%s: output %w %q", c.Output, c.Input, c.Port, ErrUnknownNode, c.Output))
		}
		input := n.FindNodeByName(c.Input)
		if input == nil {
			errs = append(errs, fmt.Errorf("connection %s -> %s.%s: input %w %q", c.Output, c.Input, c.Port, ErrUnknownNode, c.Input))
		} else if _, ok := input.Kind.PortIndex(c.Port); !ok {
			errs = append(errs, fmt.Errorf("connection %s -> %s.%s: %w for kind %s", c.Output, c.Input, c.Port, ErrUnknownPort, input.Kind))
		}
		key := target{c.Input, c.Port}
		if prev, ok := drivers[key]; ok {
			errs = append(errs, fmt.Errorf("%s.%s driven by %q and %q: %w", c.Input, c.Port, prev, c.Output, ErrMultipleDrivers))
		} else {
			drivers[key] = c.Output
		}
	}

	if cycle := n.findCycle(); cycle != nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> ")))
	}

	return errors.Join(errs...)
}

// findCycle returns the node names along one cycle (first name repeated at
// the end), or nil if the graph is acyclic.
func (n *Network) findCycle() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(n.Nodes))
	var path []string

	var visit func(node *Node) []string
	visit = func(node *Node) []string {
		switch state[node.Name] {
		case onPath:
			for i, name := range path {
				if name == node.Name {
					return append(append([]string(nil), path[i:]...), node.Name)
				}
			}
		case done:
			return nil
		}
		state[node.Name] = onPath
		path = append(path, node.Name)
		for _, input := range n.InputNodes(node) {
			if cycle := visit(input); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[node.Name] = done
		return nil
	}

	for _, node := range n.Nodes {
		if state[node.Name] == unvisited {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
