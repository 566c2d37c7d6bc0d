package dataforge

import (
	"bytes"
	"fmt"

	"github.com/stardec/stardec/internal/bin"
)

// headerMagic opens every schema blob.
var headerMagic = []byte("DFRG")

// twoTableVersion is the first format version carrying a second text table.
// From this version on, table 2 is authoritative for struct/property/enum/
// record names while table 1 holds file paths and inline string values;
// before it, table 1 serves both roles.
const twoTableVersion = 6

// wideMappingVersion is the first format version with 32-bit data-mapping
// fields.
const wideMappingVersion = 5

// header carries the signature-validated counts of every definition table
// and value array, plus the text-table byte lengths.
type header struct {
	version uint32

	structCount      uint32
	propertyCount    uint32
	enumCount        uint32
	dataMappingCount uint32
	recordCount      uint32

	boolCount       uint32
	int8Count       uint32
	int16Count      uint32
	int32Count      uint32
	int64Count      uint32
	uint8Count      uint32
	uint16Count     uint32
	uint32Count     uint32
	uint64Count     uint32
	singleCount     uint32
	doubleCount     uint32
	guidCount       uint32
	stringCount     uint32
	localeCount     uint32
	enumValueCount  uint32
	strongCount     uint32
	weakCount       uint32
	referenceCount  uint32
	enumOptionCount uint32

	text1Len uint32
	text2Len uint32
}

func parseHeader(cur *bin.Cursor) (header, error) {
	if magic := cur.Bytes(len(headerMagic)); !bytes.Equal(magic, headerMagic) {
		return header{}, fmt.Errorf("%w: bad signature", ErrFormat)
	}

	var h header
	h.version = cur.U32()

	h.structCount = cur.U32()
	h.propertyCount = cur.U32()
	h.enumCount = cur.U32()
	h.dataMappingCount = cur.U32()
	h.recordCount = cur.U32()

	h.boolCount = cur.U32()
	h.int8Count = cur.U32()
	h.int16Count = cur.U32()
	h.int32Count = cur.U32()
	h.int64Count = cur.U32()
	h.uint8Count = cur.U32()
	h.uint16Count = cur.U32()
	h.uint32Count = cur.U32()
	h.uint64Count = cur.U32()
	h.singleCount = cur.U32()
	h.doubleCount = cur.U32()
	h.guidCount = cur.U32()
	h.stringCount = cur.U32()
	h.localeCount = cur.U32()
	h.enumValueCount = cur.U32()
	h.strongCount = cur.U32()
	h.weakCount = cur.U32()
	h.referenceCount = cur.U32()
	h.enumOptionCount = cur.U32()

	h.text1Len = cur.U32()
	if h.version >= twoTableVersion {
		h.text2Len = cur.U32()
	}

	if err := cur.Err(); err != nil {
		return header{}, fmt.Errorf("%w: truncated header: %v", ErrFormat, err)
	}
	return h, nil
}
