package cryxml

import "encoding/binary"

// xmlNode is one fixture node. parent indexes the builder's node list;
// parentRoot marks the root.
type xmlNode struct {
	tag     string
	content string
	attrs   [][2]string
	parent  uint32

	// Written to the entry's firstAttributeIndex field. The decoder must
	// ignore it, so tests can fill it with garbage.
	firstAttr uint32
}

const parentRoot = rootParentID

// xmlBuilder assembles a binary markup blob in either byte order.
type xmlBuilder struct {
	order binary.AppendByteOrder
	magic string
	nodes []xmlNode

	// declaredStringLen overrides the header's string-table length when
	// nonzero, for under-report tolerance tests.
	declaredStringLen uint32
}

func newXMLBuilder(order binary.AppendByteOrder) *xmlBuilder {
	return &xmlBuilder{order: order, magic: "CryXmlB"}
}

func (b *xmlBuilder) build() []byte {
	strTable := make([]byte, 0, 64)
	strIdx := make(map[string]uint32)
	intern := func(s string) uint32 {
		if off, ok := strIdx[s]; ok {
			return off
		}
		off := uint32(len(strTable))
		strTable = append(strTable, s...)
		strTable = append(strTable, 0)
		strIdx[s] = off
		return off
	}

	// Intern in a stable order before laying out the tables.
	type nodeOffsets struct {
		name, content uint32
		attrs         [][2]uint32
	}
	offs := make([]nodeOffsets, len(b.nodes))
	totalAttrs := 0
	totalChildren := 0
	for i, n := range b.nodes {
		offs[i].name = intern(n.tag)
		offs[i].content = intern(n.content)
		for _, kv := range n.attrs {
			offs[i].attrs = append(offs[i].attrs, [2]uint32{intern(kv[0]), intern(kv[1])})
		}
		totalAttrs += len(n.attrs)
		if n.parent != parentRoot {
			totalChildren++
		}
	}

	headerStart := len(b.magic) + 1
	nodeTableOffset := headerStart + headerSize
	attrTableOffset := nodeTableOffset + len(b.nodes)*nodeEntrySize
	childTableOffset := attrTableOffset + totalAttrs*attrEntrySize
	stringTableOffset := childTableOffset + totalChildren*4
	total := stringTableOffset + len(strTable)

	out := make([]byte, 0, total)
	out = append(out, b.magic...)
	out = append(out, 0)

	u16 := func(v uint16) { out = b.order.AppendUint16(out, v) }
	u32 := func(v uint32) { out = b.order.AppendUint32(out, v) }

	declaredStrLen := uint32(len(strTable))
	if b.declaredStringLen != 0 {
		declaredStrLen = b.declaredStringLen
	}

	u32(uint32(total))
	u32(uint32(nodeTableOffset))
	u32(uint32(len(b.nodes)))
	u32(uint32(attrTableOffset))
	u32(uint32(totalAttrs))
	u32(uint32(childTableOffset))
	u32(uint32(totalChildren))
	u32(uint32(stringTableOffset))
	u32(declaredStrLen)

	// Node table. firstChildIndex is left zero; the decoder rebuilds the
	// tree from parent links alone.
	attrCursor := uint32(0)
	for i, n := range b.nodes {
		u32(offs[i].name)
		u32(offs[i].content)
		u16(uint16(len(n.attrs)))
		childCount := uint16(0)
		for _, m := range b.nodes {
			if m.parent == uint32(i) {
				childCount++
			}
		}
		u16(childCount)
		u32(n.parent)
		first := n.firstAttr
		if first == 0 {
			first = attrCursor
		}
		u32(first)
		u32(0)
		u32(0)
		attrCursor += uint32(len(n.attrs))
	}

	// Attribute table.
	for i := range b.nodes {
		for _, kv := range offs[i].attrs {
			u32(kv[0])
			u32(kv[1])
		}
	}

	// Child table, in parent-major order.
	for parent := range b.nodes {
		for child, n := range b.nodes {
			if n.parent == uint32(parent) {
				u32(uint32(child))
			}
		}
	}

	out = append(out, strTable...)
	return out
}
