package cryxml

import (
	"bufio"
	"encoding/xml"
	"io"
	"strings"
)

// Attribute is one key/value pair on a node.
type Attribute struct {
	Key   string
	Value string
}

// Node is one element of a decoded markup tree. Children keep the order
// the node table declared them in.
type Node struct {
	Tag        string
	Attributes []Attribute
	Content    string
	Children   []*Node
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first child with the given tag, or nil.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Find walks a chain of child tags and returns the node at the end of the
// path, or nil when any step is missing.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, tag := range path {
		cur = cur.Child(tag)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// WriteXML re-emits the tree as indented XML with escaped text. The output
// is a structural rendering, not a byte-exact reconstruction of the
// original document.
func (n *Node) WriteXML(w io.Writer) error {
	bw := bufio.NewWriter(w)
	n.write(bw, 0)
	return bw.Flush()
}

// String renders the tree as indented XML.
func (n *Node) String() string {
	var sb strings.Builder
	_ = n.WriteXML(&sb)
	return sb.String()
}

func (n *Node) write(bw *bufio.Writer, depth int) {
	indent := strings.Repeat("  ", depth)
	bw.WriteString(indent)
	bw.WriteByte('<')
	bw.WriteString(n.Tag)
	for _, a := range n.Attributes {
		bw.WriteByte(' ')
		bw.WriteString(a.Key)
		bw.WriteString(`="`)
		escape(bw, a.Value)
		bw.WriteByte('"')
	}

	if len(n.Children) == 0 && n.Content == "" {
		bw.WriteString("/>\n")
		return
	}

	bw.WriteByte('>')
	if len(n.Children) == 0 {
		escape(bw, n.Content)
		bw.WriteString("</")
		bw.WriteString(n.Tag)
		bw.WriteString(">\n")
		return
	}

	bw.WriteByte('\n')
	if n.Content != "" {
		bw.WriteString(indent)
		bw.WriteString("  ")
		escape(bw, n.Content)
		bw.WriteByte('\n')
	}
	for _, c := range n.Children {
		c.write(bw, depth+1)
	}
	bw.WriteString(indent)
	bw.WriteString("</")
	bw.WriteString(n.Tag)
	bw.WriteString(">\n")
}

func escape(w io.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}
