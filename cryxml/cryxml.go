// Package cryxml decodes binary-encoded markup blobs into element trees.
//
// The binary form is three fixed-width tables (nodes, attributes, child
// links) plus a string table, preceded by a NUL-terminated magic and a
// nine-field header. Some assets ship as plain text instead; Parse signals
// those with ErrPlainXML so callers can pass the bytes through unchanged.
package cryxml

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/stardec/stardec/internal/bin"
)

// Format classifies a markup blob.
type Format int

const (
	// FormatBinary is the table-encoded binary form.
	FormatBinary Format = iota
	// FormatPlain is already plain-text markup.
	FormatPlain
)

// Known magic variants of the binary form, each NUL-terminated on disk.
var magics = [][]byte{
	[]byte("CryXmlB"),
	[]byte("CryXml"),
	[]byte("CRY3SDK"),
}

const (
	rootParentID   = 0xFFFFFFFF
	nodeEntrySize  = 28
	attrEntrySize  = 8
	headerSize     = 36 // nine 32-bit fields
	maxMagicLength = 16
)

// Detect classifies the blob by its leading bytes. A leading '<' is plain
// markup; a recognized magic is the binary form; anything else is a hard
// format error.
func Detect(data []byte) (Format, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrFormat)
	}
	if data[0] == '<' {
		return FormatPlain, nil
	}
	if _, ok := readMagic(data); ok {
		return FormatBinary, nil
	}
	return 0, fmt.Errorf("%w: unrecognized leading byte 0x%02x", ErrFormat, data[0])
}

// readMagic matches the NUL-terminated magic and returns the header start.
func readMagic(data []byte) (int, bool) {
	limit := len(data)
	if limit > maxMagicLength {
		limit = maxMagicLength
	}
	nul := bytes.IndexByte(data[:limit], 0)
	if nul < 0 {
		return 0, false
	}
	for _, m := range magics {
		if bytes.Equal(data[:nul], m) {
			return nul + 1, true
		}
	}
	return 0, false
}

// Option configures parsing.
type Option func(*parser)

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *parser) {
		p.logger = logger
	}
}

type parser struct {
	data   []byte
	logger *slog.Logger
	order  binary.ByteOrder

	nodeTableOffset   int
	nodeCount         int
	attrTableOffset   int
	attrCount         int
	childTableOffset  int
	childCount        int
	stringTableOffset int
	stringTableLen    int
}

// Parse decodes a binary markup blob into its element tree. Plain-text
// input returns a nil tree and ErrPlainXML.
func Parse(data []byte, opts ...Option) (*Node, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if format == FormatPlain {
		return nil, ErrPlainXML
	}

	p := &parser{data: data}
	for _, opt := range opts {
		opt(p)
	}

	headerStart, _ := readMagic(data)
	if err := p.parseHeader(headerStart); err != nil {
		return nil, err
	}
	return p.parseTree()
}

// parseHeader reads the nine 32-bit header fields. The declared file length
// comes first; a big-endian trial read of it against the actual buffer
// length is the only byte-order signal the format offers.
func (p *parser) parseHeader(headerStart int) error {
	if headerStart+headerSize > len(p.data) {
		return fmt.Errorf("%w: truncated header", ErrFormat)
	}

	p.order = binary.BigEndian
	cur := bin.NewCursorOrder(p.data, p.order)
	cur.Seek(headerStart)
	if length := cur.U32(); int(length) != len(p.data) {
		p.order = binary.LittleEndian
		cur.SetOrder(p.order)
		cur.Seek(headerStart)
		if length := cur.U32(); int(length) != len(p.data) {
			p.log().Debug("declared length disagrees with buffer in both byte orders",
				"declared", length, "actual", len(p.data))
		}
	}

	p.nodeTableOffset = int(cur.U32())
	p.nodeCount = int(cur.U32())
	p.attrTableOffset = int(cur.U32())
	p.attrCount = int(cur.U32())
	p.childTableOffset = int(cur.U32())
	p.childCount = int(cur.U32())
	p.stringTableOffset = int(cur.U32())
	p.stringTableLen = int(cur.U32())
	if err := cur.Err(); err != nil {
		return fmt.Errorf("%w: truncated header: %v", ErrFormat, err)
	}

	if p.nodeTableOffset+p.nodeCount*nodeEntrySize > len(p.data) {
		return fmt.Errorf("%w: node table exceeds buffer", ErrFormat)
	}
	if p.attrTableOffset+p.attrCount*attrEntrySize > len(p.data) {
		return fmt.Errorf("%w: attribute table exceeds buffer", ErrFormat)
	}
	if p.stringTableOffset > len(p.data) {
		return fmt.Errorf("%w: string table exceeds buffer", ErrFormat)
	}
	return nil
}

// parseTree decodes the node table in order, assigning attributes through
// one global running cursor over the attribute table: node i consumes
// exactly the next attributeCount entries after the cursor position node
// i-1 left behind. firstAttributeIndex exists in the entry but is never
// used for lookup; random access through it desynchronizes keys from
// values whenever any count is inaccurate.
func (p *parser) parseTree() (*Node, error) {
	nodes := make([]*Node, 0, p.nodeCount)
	parents := make([]uint32, 0, p.nodeCount)

	nodeCur := bin.NewCursorOrder(p.data, p.order)
	nodeCur.Seek(p.nodeTableOffset)
	attrCur := bin.NewCursorOrder(p.data, p.order)
	attrCur.Seek(p.attrTableOffset)

	for i := 0; i < p.nodeCount; i++ {
		nameOffset := nodeCur.U32()
		contentOffset := nodeCur.U32()
		attrCount := nodeCur.U16()
		nodeCur.Skip(2) // childCount, redundant with parent links
		parentID := nodeCur.U32()
		nodeCur.Skip(12) // firstAttributeIndex, firstChildIndex, reserved

		n := &Node{Tag: p.stringAt(nameOffset)}
		if content := strings.TrimSpace(p.stringAt(contentOffset)); content != "" {
			n.Content = content
		}
		for a := 0; a < int(attrCount); a++ {
			n.Attributes = append(n.Attributes, Attribute{
				Key:   p.stringAt(attrCur.U32()),
				Value: p.stringAt(attrCur.U32()),
			})
		}
		nodes = append(nodes, n)
		parents = append(parents, parentID)
	}
	if err := nodeCur.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated node table: %v", ErrFormat, err)
	}
	if err := attrCur.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated attribute table: %v", ErrFormat, err)
	}

	// Attach in table order so sibling order matches the table.
	var root *Node
	for i, n := range nodes {
		pid := parents[i]
		if pid == rootParentID {
			if root == nil {
				root = n
			} else {
				p.log().Warn("multiple root nodes, keeping the first", "extra", n.Tag)
			}
			continue
		}
		if int(pid) >= len(nodes) || int(pid) == i {
			p.log().Warn("node has invalid parent", "node", n.Tag, "parent", pid)
			continue
		}
		parent := nodes[pid]
		parent.Children = append(parent.Children, n)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root node", ErrFormat)
	}
	return root, nil
}

// stringAt resolves an offset relative to the string-table start. The
// declared table length may under-report the true extent, so the scan is
// bounded by the buffer, not the header field.
func (p *parser) stringAt(offset uint32) string {
	start := p.stringTableOffset + int(offset)
	if start >= len(p.data) {
		p.log().Warn("string offset out of range", "offset", offset)
		return ""
	}
	end := bytes.IndexByte(p.data[start:], 0)
	if end < 0 {
		return string(p.data[start:])
	}
	return string(p.data[start : start+end])
}

func (p *parser) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.logger
}
