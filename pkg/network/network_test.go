package network

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/ndbx/pkg/value"
)

// node is a test helper building a node with the given port defaults.
func node(name string, kind Kind, values map[string]value.Value) *Node {
	if values == nil {
		values = map[string]value.Value{}
	}
	return &Node{Name: name, Kind: kind, Values: values}
}

// chain builds int1 -> add1.a, frame1 -> add1.b, add1 -> negate1.v.
func chain() *Network {
	return &Network{
		Name:         "chain",
		RenderedNode: "negate1",
		Nodes: []*Node{
			node("int1", KindInt, map[string]value.Value{"v": value.Int(1)}),
			node("frame1", KindFrame, nil),
			node("add1", KindAdd, nil),
			node("negate1", KindNegate, nil),
			node("lonely", KindInt, map[string]value.Value{"v": value.Int(9)}),
		},
		Connections: []Connection{
			{Output: "int1", Input: "add1", Port: "a"},
			{Output: "frame1", Input: "add1", Port: "b"},
			{Output: "add1", Input: "negate1", Port: "v"},
		},
	}
}

// ============ Kinds ============

func TestKindInputs(t *testing.T) {
	tests := []struct {
		kind Kind
		want []string
	}{
		{KindInt, []string{"v"}},
		{KindAdd, []string{"a", "b"}},
		{KindNegate, []string{"v"}},
		{KindSwitch, []string{"index", "in0", "in1", "in2", "in3"}},
		{KindFrame, nil},
	}
	for _, tt := range tests {
		if got := tt.kind.Inputs(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s.Inputs() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestKindPortIndex(t *testing.T) {
	if i, ok := KindSwitch.PortIndex("in2"); !ok || i != 3 {
		t.Errorf("PortIndex(in2) = %d, %v", i, ok)
	}
	if _, ok := KindAdd.PortIndex("v"); ok {
		t.Error("Add should not have port v")
	}
}

func TestKindTimeDependence(t *testing.T) {
	for _, k := range AllKinds() {
		if got, want := k.IsTimeDependent(), k == KindFrame; got != want {
			t.Errorf("%s.IsTimeDependent() = %v", k, got)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds() {
		parsed, err := ParseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), parsed, err)
		}
	}
	if _, err := ParseKind("Multiply"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

// ============ Queries ============

func TestFindNodeByName(t *testing.T) {
	n := chain()
	if got := n.FindNodeByName("add1"); got == nil || got.Kind != KindAdd {
		t.Fatalf("FindNodeByName(add1) = %v", got)
	}
	if got := n.FindNodeByName("missing"); got != nil {
		t.Errorf("FindNodeByName(missing) = %v", got)
	}
}

func TestRendered(t *testing.T) {
	n := chain()
	if got := n.Rendered(); got == nil || got.Name != "negate1" {
		t.Fatalf("Rendered() = %v", got)
	}
	n.RenderedNode = "nowhere"
	if got := n.Rendered(); got != nil {
		t.Errorf("dangling rendered node resolved to %v", got)
	}
	n.RenderedNode = ""
	if got := n.Rendered(); got != nil {
		t.Errorf("empty rendered node resolved to %v", got)
	}
}

func TestFindOutputNode(t *testing.T) {
	n := chain()
	add := n.FindNodeByName("add1")
	if got := n.FindOutputNode(add, "b"); got == nil || got.Name != "frame1" {
		t.Errorf("FindOutputNode(add1, b) = %v", got)
	}
	lonely := n.FindNodeByName("lonely")
	if got := n.FindOutputNode(lonely, "v"); got != nil {
		t.Errorf("unconnected port resolved to %v", got)
	}
}

func TestInputNodes(t *testing.T) {
	n := chain()
	inputs := n.InputNodes(n.FindNodeByName("add1"))
	if len(inputs) != 2 || inputs[0].Name != "int1" || inputs[1].Name != "frame1" {
		t.Errorf("InputNodes(add1) = %v", inputs)
	}
}

func TestIsTimeDependent(t *testing.T) {
	n := chain()
	tests := map[string]bool{
		"frame1":  true,
		"add1":    true,
		"negate1": true,
		"int1":    false,
		"lonely":  false,
	}
	for name, want := range tests {
		if got := n.IsTimeDependent(n.FindNodeByName(name)); got != want {
			t.Errorf("IsTimeDependent(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestIsTimeDependentTerminatesOnCycle(t *testing.T) {
	n := &Network{
		Nodes: []*Node{node("a", KindNegate, nil), node("b", KindNegate, nil)},
		Connections: []Connection{
			{Output: "a", Input: "b", Port: "v"},
			{Output: "b", Input: "a", Port: "v"},
		},
	}
	if n.IsTimeDependent(n.FindNodeByName("a")) {
		t.Error("cycle without Frame reported as time-dependent")
	}
}

// ============ Validation ============

func TestValidateAcceptsWellFormedNetwork(t *testing.T) {
	if err := chain().Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *Network)
		want   error
	}{
		{"duplicate", func(n *Network) {
			n.Nodes = append(n.Nodes, node("int1", KindInt, nil))
		}, ErrDuplicateNode},
		{"unknown kind", func(n *Network) {
			n.Nodes = append(n.Nodes, node("odd", Kind(77), nil))
		}, ErrUnknownKind},
		{"unknown output", func(n *Network) {
			n.Connections = append(n.Connections, Connection{Output: "ghost", Input: "lonely", Port: "v"})
		}, ErrUnknownNode},
		{"unknown port", func(n *Network) {
			n.Connections = append(n.Connections, Connection{Output: "int1", Input: "lonely", Port: "zz"})
		}, ErrUnknownPort},
		{"two drivers", func(n *Network) {
			n.Connections = append(n.Connections, Connection{Output: "lonely", Input: "add1", Port: "a"})
		}, ErrMultipleDrivers},
		{"cycle", func(n *Network) {
			n.Connections = append(n.Connections, Connection{Output: "negate1", Input: "lonely", Port: "v"},
				Connection{Output: "lonely", Input: "lonely", Port: "v"})
		}, ErrCycle},
	}
	for _, tt := range tests {
		n := chain()
		tt.mutate(n)
		err := n.Validate()
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestValidateCycleNamesPath(t *testing.T) {
	n := &Network{
		Nodes: []*Node{node("a", KindNegate, nil), node("b", KindNegate, nil)},
		Connections: []Connection{
			{Output: "a", Input: "b", Port: "v"},
			{Output: "b", Input: "a", Port: "v"},
		},
	}
	err := n.Validate()
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Validate() = %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("cycle message %q does not name the path", err)
	}
}

// ============ Files ============

func TestLoadJSON(t *testing.T) {
	n, err := Load(filepath.Join("testdata", "graph1.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n.Name != "root" || n.RenderedNode != "negate1" {
		t.Errorf("header = %q, %q", n.Name, n.RenderedNode)
	}
	if len(n.Nodes) != 5 || len(n.Connections) != 3 {
		t.Fatalf("got %d nodes, %d connections", len(n.Nodes), len(n.Connections))
	}
	int2 := n.FindNodeByName("int2")
	if v, _ := int2.Value("v"); !v.Equal(value.IntList(1, 2, 3)) {
		t.Errorf("int2.v = %v", v)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	n, err := Load(filepath.Join("testdata", "switch.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sw := n.Rendered()
	if sw == nil || sw.Kind != KindSwitch {
		t.Fatalf("Rendered() = %v", sw)
	}
	if v, _ := sw.Value("index"); !v.Equal(value.Int(1)) {
		t.Errorf("index = %v", v)
	}
	if v, _ := n.FindNodeByName("ten").Value("v"); !v.Equal(value.Int(10)) {
		t.Errorf("ten.v = %v", v)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	if _, err := Load("graph.txt"); err == nil {
		t.Error("expected error for .txt")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	src := `{"name":"x","rendered_node":"a","nodes":[{"name":"a","x":0,"y":0,"kind":"Multiply","values":{}}],"connections":[]}`
	if _, err := Decode(strings.NewReader(src), FormatJSON); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestEncodeDecodeYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, chain(), FormatYAML); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	n, err := Decode(&buf, FormatYAML)
	if err != nil {
		t.Fatalf("Decode failed: %v\n%s", err, buf.String())
	}
	if got := n.FindNodeByName("int1"); got == nil || got.Kind != KindInt {
		t.Fatalf("int1 = %v", got)
	}
	if v, _ := n.FindNodeByName("int1").Value("v"); !v.Equal(value.Int(1)) {
		t.Errorf("int1.v = %v", v)
	}
}

// ============ Hashing ============

func TestHashIsStableAndContentSensitive(t *testing.T) {
	a, err := chain().Hash()
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, _ := chain().Hash()
	if a != b {
		t.Fatal("equal networks hash differently")
	}

	changed := chain()
	changed.Nodes[0].Values["v"] = value.Int(2)
	c, _ := changed.Hash()
	if a == c {
		t.Error("changing a port value did not change the hash")
	}
}
