// Package svg draws a network as an SVG diagram. Nodes sit on a grid of
// RowWidth x ColumnHeight cells; input ports run along the top edge of a
// node and the output port sits at the bottom left.
package svg

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/chazu/ndbx/pkg/network"
)

// Layout constants, in SVG user units.
const (
	RowWidth     = 80
	ColumnHeight = 20
	PortWidth    = 10
)

// Document canvas size.
const (
	Width  = 800
	Height = 600
)

// Render returns the network as a <g class="network"> group.
func Render(n *network.Network) string {
	var sb strings.Builder
	writeNetwork(&sb, n)
	return sb.String()
}

// Document returns the network as a standalone SVG document.
func Document(n *network.Network) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, Width, Height, Width, Height)
	writeNetwork(&sb, n)
	sb.WriteString("</svg>\n")
	return sb.String()
}

// WriteDocument writes Document(n) to w.
func WriteDocument(w io.Writer, n *network.Network) error {
	_, err := io.WriteString(w, Document(n))
	return err
}

func writeNetwork(sb *strings.Builder, n *network.Network) {
	fmt.Fprintf(sb, `<g class="network" id="%s">`, html.EscapeString(n.Name))
	for _, node := range n.Nodes {
		writeNode(sb, n, node)
	}
	for _, c := range n.Connections {
		writeConnection(sb, n, c)
	}
	sb.WriteString("</g>")
}

func writeNode(sb *strings.Builder, n *network.Network, node *network.Node) {
	name := html.EscapeString(node.Name)
	fmt.Fprintf(sb, `<g class="node" id="%s" transform="translate(%d, %d)">`, name, node.X*RowWidth, node.Y*ColumnHeight)
	fmt.Fprintf(sb, `<rect class="node__rect" x="2" y="2" width="%d" height="%d" fill="none" stroke="black"/>`, RowWidth-4, ColumnHeight-4)
	fmt.Fprintf(sb, `<text class="node__name" x="5" y="14" font-size="12">%s</text>`, name)

	for i := range node.Kind.Inputs() {
		fmt.Fprintf(sb, `<rect class="node__port" x="%d" y="0" width="%d" height="2" fill="black"/>`, 2+i*PortWidth, PortWidth-2)
	}
	fmt.Fprintf(sb, `<rect class="node__output" x="2" y="%d" width="%d" height="2" fill="black"/>`, ColumnHeight-2, PortWidth-2)

	// Filled: the node itself varies per frame. Outlined: something upstream does.
	switch {
	case node.Kind.IsTimeDependent():
		fmt.Fprintf(sb, `<circle class="node__time" cx="%d" cy="%d" r="3" fill="red"/>`, RowWidth-10, ColumnHeight/2)
	case n.IsTimeDependent(node):
		fmt.Fprintf(sb, `<circle class="node__time" cx="%d" cy="%d" r="3" fill="none" stroke="red"/>`, RowWidth-10, ColumnHeight/2)
	}

	sb.WriteString("</g>")
}

// writeConnection draws a line from the output port of the source node to
// the target port. Connections naming unknown nodes or ports are skipped.
func writeConnection(sb *strings.Builder, n *network.Network, c network.Connection) {
	out := n.FindNodeByName(c.Output)
	in := n.FindNodeByName(c.Input)
	if out == nil || in == nil {
		return
	}
	port, ok := in.Kind.PortIndex(c.Port)
	if !ok {
		return
	}
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`,
		out.X*RowWidth+7,
		(out.Y+1)*ColumnHeight,
		in.X*RowWidth+7+port*PortWidth,
		in.Y*ColumnHeight,
	)
}
