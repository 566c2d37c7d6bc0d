package dataforge

// Value-array element widths. String, locale, and enum arrays hold 32-bit
// text-table offsets; strong and weak pointer arrays hold (structIndex,
// instanceIndex) pairs; reference arrays hold (instanceIndex, GUID) pairs;
// enum-option arrays hold 32-bit text-table offsets.
const (
	widthBool       = 1
	widthInt8       = 1
	widthInt16      = 2
	widthInt32      = 4
	widthInt64      = 8
	widthSingle     = 4
	widthDouble     = 8
	widthGuid       = 16
	widthStringRef  = 4
	widthPointer    = 8
	widthReference  = 20
	widthEnumOption = 4
)

// arraySpan locates one typed value array within the blob.
type arraySpan struct {
	offset int
	count  uint32
	width  int
}

// end returns the byte offset one past the span.
func (s arraySpan) end() int { return s.offset + int(s.count)*s.width }

// valueArrays holds the physical location of every typed value array.
//
// The arrays are laid out back-to-back in one fixed declaration order;
// that order is the only description of the physical layout, so it must
// never be rearranged.
type valueArrays struct {
	bools       arraySpan
	int8s       arraySpan
	int16s      arraySpan
	int32s      arraySpan
	int64s      arraySpan
	uint8s      arraySpan
	uint16s     arraySpan
	uint32s     arraySpan
	uint64s     arraySpan
	singles     arraySpan
	doubles     arraySpan
	guids       arraySpan
	strings     arraySpan
	locales     arraySpan
	enums       arraySpan
	strongs     arraySpan
	weaks       arraySpan
	references  arraySpan
	enumOptions arraySpan
}

// computeValueArrayOffsets lays the arrays out starting at offset, in the
// fixed declaration order, and returns the offset one past the last array.
func computeValueArrayOffsets(offset int, h header) (valueArrays, int) {
	var va valueArrays
	place := func(span *arraySpan, count uint32, width int) {
		*span = arraySpan{offset: offset, count: count, width: width}
		offset += int(count) * width
	}

	place(&va.bools, h.boolCount, widthBool)
	place(&va.int8s, h.int8Count, widthInt8)
	place(&va.int16s, h.int16Count, widthInt16)
	place(&va.int32s, h.int32Count, widthInt32)
	place(&va.int64s, h.int64Count, widthInt64)
	place(&va.uint8s, h.uint8Count, widthInt8)
	place(&va.uint16s, h.uint16Count, widthInt16)
	place(&va.uint32s, h.uint32Count, widthInt32)
	place(&va.uint64s, h.uint64Count, widthInt64)
	place(&va.singles, h.singleCount, widthSingle)
	place(&va.doubles, h.doubleCount, widthDouble)
	place(&va.guids, h.guidCount, widthGuid)
	place(&va.strings, h.stringCount, widthStringRef)
	place(&va.locales, h.localeCount, widthStringRef)
	place(&va.enums, h.enumValueCount, widthStringRef)
	place(&va.strongs, h.strongCount, widthPointer)
	place(&va.weaks, h.weakCount, widthPointer)
	place(&va.references, h.referenceCount, widthReference)
	place(&va.enumOptions, h.enumOptionCount, widthEnumOption)

	return va, offset
}

// span returns the value array serving the given data type, or nil when the
// type has no array representation.
func (va *valueArrays) span(t DataType) *arraySpan {
	switch t {
	case TypeBoolean:
		return &va.bools
	case TypeSByte:
		return &va.int8s
	case TypeInt16:
		return &va.int16s
	case TypeInt32:
		return &va.int32s
	case TypeInt64:
		return &va.int64s
	case TypeByte:
		return &va.uint8s
	case TypeUInt16:
		return &va.uint16s
	case TypeUInt32:
		return &va.uint32s
	case TypeUInt64:
		return &va.uint64s
	case TypeSingle:
		return &va.singles
	case TypeDouble:
		return &va.doubles
	case TypeGuid:
		return &va.guids
	case TypeString:
		return &va.strings
	case TypeLocale:
		return &va.locales
	case TypeEnum:
		return &va.enums
	case TypeStrongPointer:
		return &va.strongs
	case TypeWeakPointer:
		return &va.weaks
	case TypeReference:
		return &va.references
	default:
		return nil
	}
}

// computeDataSectionLayout walks the data mappings in declaration order.
// The first mapping naming a struct index claims the running offset as that
// struct's base; every mapping advances the running total by
// count x structSize. A record instance then lives at
// dataSectionStart + base[structIndex] + instanceIndex x structSize.
func computeDataSectionLayout(mappings []DataMapping, structs []StructDef) (base map[uint32]int, total int) {
	base = make(map[uint32]int, len(mappings))
	for _, m := range mappings {
		if int(m.StructIndex) >= len(structs) {
			continue
		}
		if _, claimed := base[m.StructIndex]; !claimed {
			base[m.StructIndex] = total
		}
		total += int(m.Count) * int(structs[m.StructIndex].Size)
	}
	return base, total
}
