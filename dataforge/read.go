package dataforge

import (
	"fmt"
	"math"

	"github.com/stardec/stardec/internal/bin"
)

// maxArrayElements caps one array property's element count. Counts above
// the cap are truncated rather than trusted.
const maxArrayElements = 0xFFFF

// ReadRecord deserializes a record into a Value graph. Strong pointers are
// resolved recursively up to maxDepth levels; at the bound they remain
// unresolved descriptors. maxDepth is the sole recursion guard.
func (df *DataForge) ReadRecord(recordIndex, maxDepth int) (Value, error) {
	rec, err := df.Record(recordIndex)
	if err != nil {
		return Value{}, err
	}
	if int(rec.StructIndex) >= len(df.structs) {
		return Value{}, fmt.Errorf("%w: record %q struct index %d out of range",
			ErrFormat, rec.Name, rec.StructIndex)
	}
	if def := df.structs[rec.StructIndex]; rec.Size != 0 && uint32(rec.Size) != def.Size {
		df.log().Warn("record size disagrees with struct definition",
			"record", rec.Name, "record_size", rec.Size, "struct_size", def.Size)
	}
	return df.readInstance(rec.StructIndex, uint32(rec.InstanceIndex), 0, maxDepth)
}

// readInstance locates instance instanceIndex of the given struct type in
// the DATA section and decodes it. Past the depth bound it returns an
// empty struct value without touching the data.
func (df *DataForge) readInstance(structIndex, instanceIndex uint32, depth, maxDepth int) (Value, error) {
	if int(structIndex) >= len(df.structs) {
		return nullValue(), fmt.Errorf("%w: struct index %d of %d", ErrFormat, structIndex, len(df.structs))
	}
	def := df.structs[structIndex]
	if depth > maxDepth {
		return structValue(def.Name, nil), nil
	}

	base, ok := df.baseOffset[structIndex]
	if !ok {
		df.log().Warn("struct type has no data mapping", "struct", def.Name)
		return nullValue(), nil
	}
	pos := df.dataStart + base + int(instanceIndex)*int(def.Size)
	if pos+int(def.Size) > len(df.data) {
		return nullValue(), fmt.Errorf("%w: instance %d of %q exceeds blob",
			ErrFormat, instanceIndex, def.Name)
	}
	return df.readStructAt(structIndex, pos, depth, maxDepth)
}

// readStructAt decodes one struct's bytes starting at pos, walking its
// full property hierarchy in order.
func (df *DataForge) readStructAt(structIndex uint32, pos, depth, maxDepth int) (Value, error) {
	def := df.structs[structIndex]
	props, err := df.StructProperties(int(structIndex))
	if err != nil {
		return nullValue(), err
	}

	cur := bin.NewCursor(df.data)
	cur.Seek(pos)
	fields := make([]Field, 0, len(props))
	for _, prop := range props {
		var v Value
		if prop.Conversion.IsArray() {
			v = df.readArray(cur, prop, depth, maxDepth)
		} else {
			v = df.readInline(cur, prop, depth, maxDepth)
		}
		fields = append(fields, Field{Name: prop.Name, Value: v})
	}
	if err := cur.Err(); err != nil {
		return nullValue(), fmt.Errorf("%w: decoding %q at offset %d: %v", ErrFormat, def.Name, pos, err)
	}
	return structValue(def.Name, fields), nil
}

// readInline decodes one inline attribute value at the cursor, advancing it
// by the value's width. The same dispatch serves value-array elements,
// whose layouts are identical for every non-class type.
func (df *DataForge) readInline(cur *bin.Cursor, prop PropertyDef, depth, maxDepth int) Value {
	switch prop.Type {
	case TypeBoolean:
		return boolValue(cur.U8() != 0)
	case TypeSByte:
		return intValue(int64(cur.I8()))
	case TypeInt16:
		return intValue(int64(cur.I16()))
	case TypeInt32:
		return intValue(int64(cur.I32()))
	case TypeInt64:
		return intValue(cur.I64())
	case TypeByte:
		return uintValue(uint64(cur.U8()))
	case TypeUInt16:
		return uintValue(uint64(cur.U16()))
	case TypeUInt32:
		return uintValue(uint64(cur.U32()))
	case TypeUInt64:
		return uintValue(cur.U64())
	case TypeSingle:
		return floatValue(roundFloat(float64(cur.F32())))
	case TypeDouble:
		return floatValue(roundFloat(cur.F64()))
	case TypeString, TypeLocale, TypeEnum:
		return stringValue(df.valueString(cur.U32()))
	case TypeGuid:
		return guidValue(guidFromBytes(cur.Bytes(guidSize)))
	case TypeClass:
		return df.readInlineClass(cur, prop, depth, maxDepth)
	case TypeStrongPointer:
		ptr := Pointer{StructIndex: cur.U32(), InstanceIndex: cur.U32()}
		if ptr.IsNull() || depth+1 > maxDepth {
			return strongRefValue(nil, ptr)
		}
		target, err := df.readInstance(ptr.StructIndex, ptr.InstanceIndex, depth+1, maxDepth)
		if err != nil {
			df.log().Warn("strong pointer target unreadable",
				"struct_index", ptr.StructIndex, "instance", ptr.InstanceIndex, "error", err)
			return strongRefValue(nil, ptr)
		}
		return strongRefValue(&target, ptr)
	case TypeWeakPointer:
		// Never auto-resolved: a weak pointer models a back-reference.
		return weakRefValue(Pointer{StructIndex: cur.U32(), InstanceIndex: cur.U32()})
	case TypeReference:
		cur.Skip(4) // instance index, unused: references resolve cross-file
		return referenceValue(guidFromBytes(cur.Bytes(guidSize)))
	default:
		df.log().Warn("unknown data type", "type", uint16(prop.Type), "property", prop.Name)
		// The width of an unknown type is unknowable; consume one dword.
		cur.Skip(4)
		return nullValue()
	}
}

// readInlineClass decodes a nested inline struct, consuming its full byte
// width at the current cursor position.
func (df *DataForge) readInlineClass(cur *bin.Cursor, prop PropertyDef, depth, maxDepth int) Value {
	nestedIdx := uint32(prop.StructIndex)
	if int(nestedIdx) >= len(df.structs) {
		df.log().Warn("class property targets unknown struct",
			"property", prop.Name, "struct_index", nestedIdx)
		return nullValue()
	}
	nested := df.structs[nestedIdx]
	start := cur.Pos()

	var v Value
	if depth+1 > maxDepth {
		v = structValue(nested.Name, nil)
	} else {
		inner, err := df.readStructAt(nestedIdx, start, depth+1, maxDepth)
		if err != nil {
			df.log().Warn("nested struct unreadable", "struct", nested.Name, "error", err)
			inner = nullValue()
		}
		v = inner
	}
	cur.Seek(start + int(nested.Size))
	return v
}

// readArray decodes an array property: an inline (count, firstIndex) pair
// followed by count elements of the matching value array. count = 0 yields
// an empty, non-nil sequence.
func (df *DataForge) readArray(cur *bin.Cursor, prop PropertyDef, depth, maxDepth int) Value {
	count := cur.U32()
	first := cur.U32()
	if count == 0 || cur.Err() != nil {
		return arrayValue(nil)
	}
	if count > maxArrayElements {
		df.log().Warn("array count above safety cap",
			"property", prop.Name, "count", count, "cap", maxArrayElements)
		count = maxArrayElements
	}

	elems := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		elems = append(elems, df.readArrayElement(prop, first+i, depth, maxDepth))
	}
	return arrayValue(elems)
}

// readArrayElement reads element idx of the value array serving the
// property's type. Class arrays have no value array; their elements are
// consecutive instances of the target struct type.
func (df *DataForge) readArrayElement(prop PropertyDef, idx uint32, depth, maxDepth int) Value {
	if prop.Type == TypeClass {
		v, err := df.readInstance(uint32(prop.StructIndex), idx, depth+1, maxDepth)
		if err != nil {
			df.log().Warn("class array element unreadable",
				"property", prop.Name, "index", idx, "error", err)
			return nullValue()
		}
		return v
	}

	span := df.arrays.span(prop.Type)
	if span == nil {
		df.log().Warn("unknown data type in array", "type", uint16(prop.Type), "property", prop.Name)
		return nullValue()
	}
	if idx >= span.count {
		df.log().Warn("array element index out of range",
			"property", prop.Name, "index", idx, "count", span.count)
		return nullValue()
	}

	cur := bin.NewCursor(df.data)
	cur.Seek(span.offset + int(idx)*span.width)
	v := df.readInline(cur, prop, depth, maxDepth)
	if cur.Err() != nil {
		df.log().Warn("array element unreadable", "property", prop.Name, "index", idx)
		return nullValue()
	}
	return v
}

// roundFloat quantizes to 1e-6 to suppress binary noise in decoded floats.
func roundFloat(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
