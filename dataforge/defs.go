package dataforge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stardec/stardec/internal/bin"
)

// nullIndex is the sentinel for "no parent" and null pointer targets.
const nullIndex = 0xFFFFFFFF

// DataType identifies the wire type of a property.
type DataType uint16

const (
	TypeBoolean       DataType = 0x0001
	TypeSByte         DataType = 0x0002
	TypeInt16         DataType = 0x0003
	TypeInt32         DataType = 0x0004
	TypeInt64         DataType = 0x0005
	TypeByte          DataType = 0x0006
	TypeUInt16        DataType = 0x0007
	TypeUInt32        DataType = 0x0008
	TypeUInt64        DataType = 0x0009
	TypeString        DataType = 0x000A
	TypeSingle        DataType = 0x000B
	TypeDouble        DataType = 0x000C
	TypeLocale        DataType = 0x000D
	TypeGuid          DataType = 0x000E
	TypeEnum          DataType = 0x000F
	TypeClass         DataType = 0x0010
	TypeStrongPointer DataType = 0x0110
	TypeWeakPointer   DataType = 0x0210
	TypeReference     DataType = 0x0310
)

// String returns the schema name of the data type.
func (t DataType) String() string {
	switch t {
	case TypeBoolean:
		return "Boolean"
	case TypeSByte:
		return "SByte"
	case TypeInt16:
		return "Int16"
	case TypeInt32:
		return "Int32"
	case TypeInt64:
		return "Int64"
	case TypeByte:
		return "Byte"
	case TypeUInt16:
		return "UInt16"
	case TypeUInt32:
		return "UInt32"
	case TypeUInt64:
		return "UInt64"
	case TypeString:
		return "String"
	case TypeSingle:
		return "Single"
	case TypeDouble:
		return "Double"
	case TypeLocale:
		return "Locale"
	case TypeGuid:
		return "Guid"
	case TypeEnum:
		return "Enum"
	case TypeClass:
		return "Class"
	case TypeStrongPointer:
		return "StrongPointer"
	case TypeWeakPointer:
		return "WeakPointer"
	case TypeReference:
		return "Reference"
	default:
		return fmt.Sprintf("DataType(0x%04x)", uint16(t))
	}
}

// inlineWidth returns the byte width one inline value of this type consumes.
// Class widths depend on the target struct and are resolved by the reader;
// unknown types report 0.
func (t DataType) inlineWidth() int {
	switch t {
	case TypeBoolean, TypeSByte, TypeByte:
		return 1
	case TypeInt16, TypeUInt16:
		return 2
	case TypeInt32, TypeUInt32, TypeSingle, TypeString, TypeLocale, TypeEnum:
		return 4
	case TypeInt64, TypeUInt64, TypeDouble, TypeStrongPointer, TypeWeakPointer:
		return 8
	case TypeGuid:
		return 16
	case TypeReference:
		return 20
	default:
		return 0
	}
}

// ConversionType distinguishes inline scalar storage from value-array
// storage. Only the low byte is meaningful on disk.
type ConversionType uint16

// ConvAttribute marks a property stored inline; any other low-byte value
// marks a property stored in the typed value arrays.
const ConvAttribute ConversionType = 0

// IsArray reports whether the property is stored in value arrays.
func (c ConversionType) IsArray() bool { return byte(c) != 0 }

// StructDef describes one struct type. Structs form a tree via ParentIndex;
// a struct's full property set is its ancestors' properties (root first)
// concatenated with its own slice of the property table.
type StructDef struct {
	Name                string
	ParentIndex         uint32 // nullIndex = root
	AttributeCount      uint16
	FirstAttributeIndex uint16
	Size                uint32 // bytes per instance

	nameOffset uint32
}

const structDefSize = 16

// PropertyDef describes one named, typed field slot on a struct.
type PropertyDef struct {
	Name        string
	StructIndex uint16 // target struct for class/pointer-typed properties
	Type        DataType
	Conversion  ConversionType

	nameOffset uint32
}

const propertyDefSize = 12

// EnumDef describes one enum type; its options live in the enum-option
// value array at [FirstValueIndex, FirstValueIndex+ValueCount).
type EnumDef struct {
	Name            string
	ValueCount      uint16
	FirstValueIndex uint16

	nameOffset uint32
}

const enumDefSize = 8

// DataMapping is one (count, structIndex) pair. Mappings accumulate in
// declaration order to place each struct type's instances in the DATA
// section.
type DataMapping struct {
	Count       uint32
	StructIndex uint32
}

// RecordDef is a GUID-identified named instance of some struct type, the
// addressable unit of the schema.
type RecordDef struct {
	Name          string
	FileName      string
	StructIndex   uint32
	ID            uuid.UUID
	InstanceIndex uint16
	Size          uint16 // redundant copy of the struct size, kept for checks

	nameOffset     uint32
	fileNameOffset uint32
}

const recordDefSize = 32

func parseStructDefs(cur *bin.Cursor, count int) []StructDef {
	defs := make([]StructDef, count)
	for i := range defs {
		defs[i] = StructDef{
			nameOffset:          cur.U32(),
			ParentIndex:         cur.U32(),
			AttributeCount:      cur.U16(),
			FirstAttributeIndex: cur.U16(),
			Size:                cur.U32(),
		}
	}
	return defs
}

func parsePropertyDefs(cur *bin.Cursor, count int) []PropertyDef {
	defs := make([]PropertyDef, count)
	for i := range defs {
		defs[i] = PropertyDef{
			nameOffset:  cur.U32(),
			StructIndex: cur.U16(),
			Type:        DataType(cur.U16()),
			Conversion:  ConversionType(cur.U16()),
		}
		cur.Skip(2) // padding
	}
	return defs
}

func parseEnumDefs(cur *bin.Cursor, count int) []EnumDef {
	defs := make([]EnumDef, count)
	for i := range defs {
		defs[i] = EnumDef{
			nameOffset:      cur.U32(),
			ValueCount:      cur.U16(),
			FirstValueIndex: cur.U16(),
		}
	}
	return defs
}

// parseDataMappings reads (count, structIndex) pairs: 32-bit fields from
// format version 5 on, 16-bit before.
func parseDataMappings(cur *bin.Cursor, count int, version uint32) []DataMapping {
	mappings := make([]DataMapping, count)
	for i := range mappings {
		if version >= 5 {
			mappings[i] = DataMapping{Count: cur.U32(), StructIndex: cur.U32()}
		} else {
			mappings[i] = DataMapping{Count: uint32(cur.U16()), StructIndex: uint32(cur.U16())}
		}
	}
	return mappings
}

func parseRecordDefs(cur *bin.Cursor, count int) []RecordDef {
	defs := make([]RecordDef, count)
	for i := range defs {
		defs[i] = RecordDef{
			nameOffset:     cur.U32(),
			fileNameOffset: cur.U32(),
			StructIndex:    cur.U32(),
			ID:             guidFromBytes(cur.Bytes(guidSize)),
			InstanceIndex:  cur.U16(),
			Size:           cur.U16(),
		}
	}
	return defs
}
