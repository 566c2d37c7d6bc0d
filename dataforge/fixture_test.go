package dataforge

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// forgeWriter accumulates little-endian fixture bytes.
type forgeWriter struct{ buf []byte }

func (w *forgeWriter) u8(v uint8)     { w.buf = append(w.buf, v) }
func (w *forgeWriter) u16(v uint16)   { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *forgeWriter) u32(v uint32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *forgeWriter) u64(v uint64)   { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *forgeWriter) f32(v float32)  { w.u32(math.Float32bits(v)) }
func (w *forgeWriter) f64(v float64)  { w.u64(math.Float64bits(v)) }
func (w *forgeWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

// textTable interns NUL-terminated strings and hands out their offsets.
type textTable struct {
	buf []byte
	idx map[string]uint32
}

func newTextTable() *textTable {
	return &textTable{idx: make(map[string]uint32)}
}

func (t *textTable) intern(s string) uint32 {
	if off, ok := t.idx[s]; ok {
		return off
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	t.idx[s] = off
	return off
}

type fxStruct struct {
	name      string
	parent    uint32
	attrCount uint16
	firstAttr uint16
	size      uint32
}

type fxProp struct {
	name        string
	structIndex uint16
	typ         DataType
	conv        ConversionType
}

type fxEnum struct {
	name  string
	count uint16
	first uint16
}

type fxRecord struct {
	name     string
	fileName string
	sIndex   uint32
	id       uuid.UUID
	instance uint16
	size     uint16
}

// forgeBuilder assembles a synthetic schema blob. Only the value-array
// kinds the tests exercise are supported; the rest serialize with zero
// counts. Tests fill the DATA section through a forgeWriter and assign it
// to data.
type forgeBuilder struct {
	version uint32

	structs  []fxStruct
	props    []fxProp
	enums    []fxEnum
	mappings []DataMapping
	records  []fxRecord

	int32Vals      []int32
	stringVals     []string
	enumOptionVals []string

	names  *textTable
	values *textTable

	data []byte
}

func newForgeBuilder(version uint32) *forgeBuilder {
	b := &forgeBuilder{version: version, values: newTextTable()}
	if version >= twoTableVersion {
		b.names = newTextTable()
	} else {
		b.names = b.values
	}
	return b
}

// valueOff interns s in the path/value table so DATA-section bytes can
// refer to it.
func (b *forgeBuilder) valueOff(s string) uint32 {
	return b.values.intern(s)
}

func (b *forgeBuilder) build() []byte {
	defs := &forgeWriter{}
	for _, s := range b.structs {
		defs.u32(b.names.intern(s.name))
		defs.u32(s.parent)
		defs.u16(s.attrCount)
		defs.u16(s.firstAttr)
		defs.u32(s.size)
	}
	for _, p := range b.props {
		defs.u32(b.names.intern(p.name))
		defs.u16(p.structIndex)
		defs.u16(uint16(p.typ))
		defs.u16(uint16(p.conv))
		defs.u16(0) // padding
	}
	for _, e := range b.enums {
		defs.u32(b.names.intern(e.name))
		defs.u16(e.count)
		defs.u16(e.first)
	}
	for _, m := range b.mappings {
		if b.version >= wideMappingVersion {
			defs.u32(m.Count)
			defs.u32(m.StructIndex)
		} else {
			defs.u16(uint16(m.Count))
			defs.u16(uint16(m.StructIndex))
		}
	}
	for _, r := range b.records {
		defs.u32(b.names.intern(r.name))
		defs.u32(b.values.intern(r.fileName))
		defs.u32(r.sIndex)
		defs.bytes(guidToBytes(r.id))
		defs.u16(r.instance)
		defs.u16(r.size)
	}

	// Value arrays in their fixed physical order; absent kinds are empty.
	arrays := &forgeWriter{}
	for _, v := range b.int32Vals {
		arrays.u32(uint32(v))
	}
	for _, s := range b.stringVals {
		arrays.u32(b.values.intern(s))
	}
	for _, s := range b.enumOptionVals {
		arrays.u32(b.values.intern(s))
	}

	out := &forgeWriter{}
	out.bytes(headerMagic)
	out.u32(b.version)
	out.u32(uint32(len(b.structs)))
	out.u32(uint32(len(b.props)))
	out.u32(uint32(len(b.enums)))
	out.u32(uint32(len(b.mappings)))
	out.u32(uint32(len(b.records)))

	out.u32(0) // bool
	out.u32(0) // int8
	out.u32(0) // int16
	out.u32(uint32(len(b.int32Vals)))
	out.u32(0) // int64
	out.u32(0) // uint8
	out.u32(0) // uint16
	out.u32(0) // uint32
	out.u32(0) // uint64
	out.u32(0) // single
	out.u32(0) // double
	out.u32(0) // guid
	out.u32(uint32(len(b.stringVals)))
	out.u32(0) // locale
	out.u32(0) // enum value
	out.u32(0) // strong
	out.u32(0) // weak
	out.u32(0) // reference
	out.u32(uint32(len(b.enumOptionVals)))

	out.u32(uint32(len(b.values.buf)))
	if b.version >= twoTableVersion {
		out.u32(uint32(len(b.names.buf)))
	}

	out.bytes(defs.buf)
	out.bytes(arrays.buf)
	out.bytes(b.values.buf)
	if b.version >= twoTableVersion {
		out.bytes(b.names.buf)
	}
	out.bytes(b.data)
	return out.buf
}
