// Package dataforge deserializes versioned binary schema blobs: a
// self-describing header of struct, property, enum, and record definitions
// followed by typed value arrays, text tables, and a DATA section of
// packed struct instances.
//
// Parse reads the header and all definition tables once; records are then
// deserialized on demand into generic Value graphs.
package dataforge

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/stardec/stardec/internal/bin"
)

// DataForge provides access to the records of a parsed schema blob.
//
// All state is built once by Parse and only read afterwards, so a DataForge
// is safe for concurrent use.
type DataForge struct {
	data   []byte
	logger *slog.Logger
	strict bool

	hdr      header
	structs  []StructDef
	props    []PropertyDef
	enums    []EnumDef
	mappings []DataMapping
	records  []RecordDef

	arrays     valueArrays
	text1Start int
	text2Start int
	dataStart  int
	baseOffset map[uint32]int

	byGUID   map[uuid.UUID]int
	warnings []string
}

// Option configures parsing.
type Option func(*DataForge)

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(df *DataForge) {
		df.logger = logger
	}
}

// WithStrict makes structural inconsistencies that are normally surfaced as
// warnings (notably a DATA-section length mismatch) fail the parse instead.
func WithStrict(strict bool) Option {
	return func(df *DataForge) {
		df.strict = strict
	}
}

// Parse reads the header and every definition table of a schema blob. The
// provided data is retained; callers must not modify it afterwards.
func Parse(data []byte, opts ...Option) (*DataForge, error) {
	df := &DataForge{data: data}
	for _, opt := range opts {
		opt(df)
	}

	cur := bin.NewCursor(data)
	hdr, err := parseHeader(cur)
	if err != nil {
		return nil, err
	}
	df.hdr = hdr

	df.structs = parseStructDefs(cur, int(hdr.structCount))
	df.props = parsePropertyDefs(cur, int(hdr.propertyCount))
	df.enums = parseEnumDefs(cur, int(hdr.enumCount))
	df.mappings = parseDataMappings(cur, int(hdr.dataMappingCount), hdr.version)
	df.records = parseRecordDefs(cur, int(hdr.recordCount))
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated definition tables: %v", ErrFormat, err)
	}

	var arraysEnd int
	df.arrays, arraysEnd = computeValueArrayOffsets(cur.Pos(), hdr)
	cur.Seek(arraysEnd)

	df.text1Start = arraysEnd
	df.text2Start = df.text1Start + int(hdr.text1Len)
	df.dataStart = df.text2Start + int(hdr.text2Len)
	cur.Skip(int(hdr.text1Len) + int(hdr.text2Len))
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: value arrays or text tables exceed blob: %v", ErrFormat, err)
	}

	df.resolveNames()

	var expected int
	df.baseOffset, expected = computeDataSectionLayout(df.mappings, df.structs)
	if actual := len(data) - df.dataStart; actual != expected {
		// The reference behavior reads on after this mismatch; whether
		// instance reads stay trustworthy past it is unverified, so it is
		// surfaced rather than swallowed.
		detail := fmt.Sprintf("data section length mismatch: computed %d bytes, actual %d", expected, actual)
		if df.strict {
			return nil, fmt.Errorf("%w: %s", ErrFormat, detail)
		}
		df.warnings = append(df.warnings, detail)
		df.log().Warn("schema blob inconsistent", "detail", detail)
	}

	df.byGUID = make(map[uuid.UUID]int, len(df.records))
	for i, rec := range df.records {
		df.byGUID[rec.ID] = i
	}
	return df, nil
}

func (df *DataForge) log() *slog.Logger {
	if df.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return df.logger
}

// resolveNames fills the Name fields of every definition from the text
// tables. From version 6 on, table 2 holds names while table 1 holds file
// paths and inline string values; before that, table 1 serves both roles.
func (df *DataForge) resolveNames() {
	for i := range df.structs {
		df.structs[i].Name = df.nameString(df.structs[i].nameOffset)
	}
	for i := range df.props {
		df.props[i].Name = df.nameString(df.props[i].nameOffset)
	}
	for i := range df.enums {
		df.enums[i].Name = df.nameString(df.enums[i].nameOffset)
	}
	for i := range df.records {
		df.records[i].Name = df.nameString(df.records[i].nameOffset)
		df.records[i].FileName = df.valueString(df.records[i].fileNameOffset)
	}
}

// nameString resolves an offset in the authoritative name table.
func (df *DataForge) nameString(offset uint32) string {
	start := df.text1Start
	limit := int(df.hdr.text1Len)
	if df.hdr.version >= twoTableVersion {
		start = df.text2Start
		limit = int(df.hdr.text2Len)
	}
	return df.tableString(start, limit, offset)
}

// valueString resolves an offset in the path/value table (always table 1).
func (df *DataForge) valueString(offset uint32) string {
	return df.tableString(df.text1Start, int(df.hdr.text1Len), offset)
}

func (df *DataForge) tableString(start, limit int, offset uint32) string {
	if int(offset) >= limit {
		df.log().Warn("text offset out of range", "offset", offset, "table_len", limit)
		return ""
	}
	cur := bin.NewCursor(df.data[start : start+limit])
	s, ok := cur.CString(int(offset))
	if !ok {
		return ""
	}
	return s
}

// Version returns the format version from the header.
func (df *DataForge) Version() uint32 { return df.hdr.version }

// Warnings returns structural inconsistencies noted during the parse.
func (df *DataForge) Warnings() []string { return df.warnings }

// Structs returns all struct definitions.
func (df *DataForge) Structs() []StructDef { return df.structs }

// Enums returns all enum definitions.
func (df *DataForge) Enums() []EnumDef { return df.enums }

// Records returns all record definitions.
func (df *DataForge) Records() []RecordDef { return df.records }

// Record returns the record definition at the given index.
func (df *DataForge) Record(i int) (RecordDef, error) {
	if i < 0 || i >= len(df.records) {
		return RecordDef{}, fmt.Errorf("%w: record index %d of %d", ErrNotFound, i, len(df.records))
	}
	return df.records[i], nil
}

// RecordByGUID returns the index of the record with the given identifier.
func (df *DataForge) RecordByGUID(id uuid.UUID) (int, bool) {
	i, ok := df.byGUID[id]
	return i, ok
}

// EnumOptions resolves an enum's options through the enum-option value
// array. Out-of-range indexes are skipped.
func (df *DataForge) EnumOptions(e EnumDef) []string {
	opts := make([]string, 0, e.ValueCount)
	for i := 0; i < int(e.ValueCount); i++ {
		idx := uint32(e.FirstValueIndex) + uint32(i)
		if idx >= df.arrays.enumOptions.count {
			df.log().Warn("enum option index out of range", "enum", e.Name, "index", idx)
			break
		}
		off := df.arrays.enumOptions.offset + int(idx)*widthEnumOption
		cur := bin.NewCursor(df.data)
		cur.Seek(off)
		opts = append(opts, df.valueString(cur.U32()))
	}
	return opts
}

// RecordInfo summarizes one record for search results.
type RecordInfo struct {
	Name       string
	FileName   string
	ID         uuid.UUID
	StructType string
	Index      int
}

// SearchRecords scans record definitions in table order and returns the
// first matches against name or file path, stopping early at limit.
// A limit <= 0 means no limit.
func (df *DataForge) SearchRecords(re *regexp.Regexp, limit int) []RecordInfo {
	var out []RecordInfo
	for i, rec := range df.records {
		if !re.MatchString(rec.Name) && !re.MatchString(rec.FileName) {
			continue
		}
		structType := ""
		if int(rec.StructIndex) < len(df.structs) {
			structType = df.structs[rec.StructIndex].Name
		}
		out = append(out, RecordInfo{
			Name:       rec.Name,
			FileName:   rec.FileName,
			ID:         rec.ID,
			StructType: structType,
			Index:      i,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// StructProperties returns the full property set of a struct: its
// ancestors' own slices root-first, ending with the struct's own slice.
// A cyclic parent chain fails rather than looping.
func (df *DataForge) StructProperties(structIndex int) ([]PropertyDef, error) {
	if structIndex < 0 || structIndex >= len(df.structs) {
		return nil, fmt.Errorf("%w: struct index %d of %d", ErrFormat, structIndex, len(df.structs))
	}

	chain := make([]int, 0, 8)
	for idx := structIndex; ; {
		if len(chain) > len(df.structs) {
			return nil, fmt.Errorf("%w: at struct %d", ErrCyclicHierarchy, structIndex)
		}
		chain = append(chain, idx)
		parent := df.structs[idx].ParentIndex
		if parent == nullIndex {
			break
		}
		if int(parent) >= len(df.structs) {
			return nil, fmt.Errorf("%w: parent index %d of struct %d out of range", ErrFormat, parent, idx)
		}
		idx = int(parent)
	}

	var props []PropertyDef
	for i := len(chain) - 1; i >= 0; i-- {
		def := df.structs[chain[i]]
		first, count := int(def.FirstAttributeIndex), int(def.AttributeCount)
		if first+count > len(df.props) {
			return nil, fmt.Errorf("%w: property slice [%d,%d) of struct %q out of range",
				ErrFormat, first, first+count, def.Name)
		}
		props = append(props, df.props[first:first+count]...)
	}
	return props, nil
}
