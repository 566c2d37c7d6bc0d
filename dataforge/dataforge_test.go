package dataforge

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsBadMagic(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("NOPE\x00\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Parse([]byte{0x44, 0x46})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestGUIDNormalization(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("deadbeef-1122-3344-5566-778899aabbcc")
	require.Equal(t, id, guidFromBytes(guidToBytes(id)))

	// First three fields are little-endian on disk, the rest raw.
	raw := guidToBytes(id)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde, 0x22, 0x11, 0x44, 0x33}, raw[:8])
	assert.Equal(t, []byte{0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc}, raw[8:])
}

func TestReadRecordHierarchy(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("5c89f3aa-0d10-4a2e-93b1-44d7e5c80001")

	b := newForgeBuilder(6)
	b.structs = []fxStruct{
		{name: "Base", parent: nullIndex, attrCount: 1, firstAttr: 0, size: 4},
		{name: "Mid", parent: 0, attrCount: 1, firstAttr: 1, size: 8},
		{name: "Leaf", parent: 1, attrCount: 2, firstAttr: 2, size: 13},
	}
	b.props = []fxProp{
		{name: "alpha", typ: TypeInt32},
		{name: "beta", typ: TypeString},
		{name: "gamma", typ: TypeBoolean},
		{name: "delta", typ: TypeSingle},
	}
	b.mappings = []DataMapping{{Count: 1, StructIndex: 2}}
	b.records = []fxRecord{{
		name: "leaf_rec", fileName: "libs/leaf.xml", sIndex: 2, id: id, size: 13,
	}}

	w := &forgeWriter{}
	alphaVal := int32(-7)
	w.u32(uint32(alphaVal)) // alpha, inherited from Base
	w.u32(b.valueOff("hello"))
	w.u8(1)
	w.f32(3.5)
	b.data = w.buf

	df, err := Parse(b.build())
	require.NoError(t, err)
	require.Empty(t, df.Warnings())
	assert.Equal(t, uint32(6), df.Version())

	rec, err := df.Record(0)
	require.NoError(t, err)
	assert.Equal(t, "leaf_rec", rec.Name)
	assert.Equal(t, "libs/leaf.xml", rec.FileName)
	assert.Equal(t, id, rec.ID)

	idx, ok := df.RecordByGUID(id)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	v, err := df.ReadRecord(0, 0)
	require.NoError(t, err)
	require.Equal(t, KindStruct, v.Kind())
	assert.Equal(t, "Leaf", v.StructName())

	// Inherited properties come first, root-most ancestor leading.
	fields := v.Fields()
	require.Len(t, fields, 4)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, names)

	alpha, ok := v.Field("alpha")
	require.True(t, ok)
	assert.Equal(t, int64(-7), alpha.Int())
	beta, _ := v.Field("beta")
	assert.Equal(t, "hello", beta.Str())
	gamma, _ := v.Field("gamma")
	assert.True(t, gamma.Bool())
	delta, _ := v.Field("delta")
	assert.InDelta(t, 3.5, delta.Float(), 1e-9)

	_, err = df.Record(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadRecordInlineClass(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(6)
	b.structs = []fxStruct{
		{name: "Vec2", parent: nullIndex, attrCount: 2, firstAttr: 0, size: 8},
		{name: "Sprite", parent: nullIndex, attrCount: 2, firstAttr: 2, size: 12},
	}
	b.props = []fxProp{
		{name: "x", typ: TypeSingle},
		{name: "y", typ: TypeSingle},
		{name: "pos", typ: TypeClass, structIndex: 0},
		{name: "z", typ: TypeInt32},
	}
	b.mappings = []DataMapping{{Count: 1, StructIndex: 1}}
	b.records = []fxRecord{{
		name: "sprite", fileName: "sprite.xml", sIndex: 1, id: uuid.New(), size: 12,
	}}

	w := &forgeWriter{}
	w.f32(1.25)
	w.f32(-2.5)
	w.u32(9)
	b.data = w.buf

	df, err := Parse(b.build())
	require.NoError(t, err)

	v, err := df.ReadRecord(0, 1)
	require.NoError(t, err)
	pos, ok := v.Field("pos")
	require.True(t, ok)
	require.Equal(t, KindStruct, pos.Kind())
	assert.Equal(t, "Vec2", pos.StructName())
	x, _ := pos.Field("x")
	assert.InDelta(t, 1.25, x.Float(), 1e-9)
	y, _ := pos.Field("y")
	assert.InDelta(t, -2.5, y.Float(), 1e-9)
	z, _ := v.Field("z")
	assert.Equal(t, int64(9), z.Int())

	// At the depth bound the nested struct stays empty but siblings after
	// it must still decode from the right offset.
	shallow, err := df.ReadRecord(0, 0)
	require.NoError(t, err)
	pos, _ = shallow.Field("pos")
	assert.Empty(t, pos.Fields())
	z, _ = shallow.Field("z")
	assert.Equal(t, int64(9), z.Int())
}

func TestReadRecordArrays(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(6)
	b.structs = []fxStruct{
		{name: "Bag", parent: nullIndex, attrCount: 4, firstAttr: 0, size: 32},
	}
	b.props = []fxProp{
		{name: "nums", typ: TypeInt32, conv: 1},
		{name: "tags", typ: TypeString, conv: 1},
		{name: "none", typ: TypeInt32, conv: 1},
		{name: "oob", typ: TypeInt32, conv: 1},
	}
	b.int32Vals = []int32{10, 20, 30}
	b.stringVals = []string{"red", "green"}
	b.mappings = []DataMapping{{Count: 1, StructIndex: 0}}
	b.records = []fxRecord{{
		name: "bag", fileName: "bag.xml", sIndex: 0, id: uuid.New(), size: 32,
	}}

	w := &forgeWriter{}
	w.u32(2)
	w.u32(1) // nums -> int32 values [20 30]
	w.u32(2)
	w.u32(0) // tags -> ["red" "green"]
	w.u32(0)
	w.u32(0) // none -> empty
	w.u32(1)
	w.u32(5) // oob -> index past the int32 array
	b.data = w.buf

	df, err := Parse(b.build())
	require.NoError(t, err)
	v, err := df.ReadRecord(0, 0)
	require.NoError(t, err)

	nums, ok := v.Field("nums")
	require.True(t, ok)
	require.Equal(t, KindArray, nums.Kind())
	require.Len(t, nums.Elems(), 2)
	assert.Equal(t, int64(20), nums.Elems()[0].Int())
	assert.Equal(t, int64(30), nums.Elems()[1].Int())

	tags, _ := v.Field("tags")
	require.Len(t, tags.Elems(), 2)
	assert.Equal(t, "red", tags.Elems()[0].Str())
	assert.Equal(t, "green", tags.Elems()[1].Str())

	none, _ := v.Field("none")
	require.Equal(t, KindArray, none.Kind())
	assert.NotNil(t, none.Elems())
	assert.Empty(t, none.Elems())

	oob, _ := v.Field("oob")
	require.Len(t, oob.Elems(), 1)
	assert.True(t, oob.Elems()[0].IsNull())
}

func TestReadRecordPointerDepth(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(6)
	b.structs = []fxStruct{
		{name: "Node", parent: nullIndex, attrCount: 2, firstAttr: 0, size: 12},
	}
	b.props = []fxProp{
		{name: "value", typ: TypeInt32},
		{name: "next", typ: TypeStrongPointer, structIndex: 0},
	}
	b.mappings = []DataMapping{{Count: 4, StructIndex: 0}}
	b.records = []fxRecord{
		{name: "head", fileName: "head.xml", sIndex: 0, id: uuid.New(), instance: 0, size: 12},
		{name: "tail", fileName: "tail.xml", sIndex: 0, id: uuid.New(), instance: 3, size: 12},
	}

	w := &forgeWriter{}
	for i := 0; i < 4; i++ {
		w.u32(uint32(i + 1))
		if i < 3 {
			w.u32(0)
			w.u32(uint32(i + 1))
		} else {
			w.u32(nullIndex)
			w.u32(nullIndex)
		}
	}
	b.data = w.buf

	df, err := Parse(b.build())
	require.NoError(t, err)

	root, err := df.ReadRecord(0, 2)
	require.NoError(t, err)

	next, ok := root.Field("next")
	require.True(t, ok)
	require.Equal(t, KindStrongRef, next.Kind())
	n1, ok := next.Target()
	require.True(t, ok)

	next, _ = n1.Field("next")
	n2, ok := next.Target()
	require.True(t, ok)
	val, _ := n2.Field("value")
	assert.Equal(t, int64(3), val.Int())

	// Depth budget spent: the chain stops as an unresolved descriptor.
	next, _ = n2.Field("next")
	_, ok = next.Target()
	assert.False(t, ok)
	assert.False(t, next.Pointer().IsNull())
	assert.Equal(t, uint32(3), next.Pointer().InstanceIndex)

	// Null pointers stay null regardless of remaining depth.
	tail, err := df.ReadRecord(1, 2)
	require.NoError(t, err)
	next, _ = tail.Field("next")
	_, ok = next.Target()
	assert.False(t, ok)
	assert.True(t, next.Pointer().IsNull())
}

func TestCyclicHierarchyRejected(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(6)
	b.structs = []fxStruct{{name: "Ouro", parent: 0}}
	b.mappings = []DataMapping{{Count: 1, StructIndex: 0}}
	b.records = []fxRecord{{name: "r", fileName: "r.xml", sIndex: 0, id: uuid.New()}}

	df, err := Parse(b.build())
	require.NoError(t, err)

	_, err = df.StructProperties(0)
	assert.ErrorIs(t, err, ErrCyclicHierarchy)

	_, err = df.ReadRecord(0, 1)
	assert.ErrorIs(t, err, ErrCyclicHierarchy)
}

func TestDataSectionMismatch(t *testing.T) {
	t.Parallel()

	build := func() []byte {
		b := newForgeBuilder(6)
		b.structs = []fxStruct{{name: "S", parent: nullIndex, attrCount: 1, firstAttr: 0, size: 4}}
		b.props = []fxProp{{name: "n", typ: TypeInt32}}
		b.mappings = []DataMapping{{Count: 2, StructIndex: 0}} // claims 8 bytes
		b.records = []fxRecord{{name: "r", fileName: "r.xml", sIndex: 0, id: uuid.New(), size: 4}}
		w := &forgeWriter{}
		w.u32(41) // only one instance present
		b.data = w.buf
		return b.build()
	}

	df, err := Parse(build())
	require.NoError(t, err)
	require.Len(t, df.Warnings(), 1)
	assert.Contains(t, df.Warnings()[0], "mismatch")

	// The instance that is present still decodes.
	v, err := df.ReadRecord(0, 0)
	require.NoError(t, err)
	n, _ := v.Field("n")
	assert.Equal(t, int64(41), n.Int())

	_, err = Parse(build(), WithStrict(true))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLegacyVersionSingleTable(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(4)
	b.structs = []fxStruct{{name: "S", parent: nullIndex, attrCount: 1, firstAttr: 0, size: 4}}
	b.props = []fxProp{{name: "msg", typ: TypeString}}
	b.mappings = []DataMapping{{Count: 1, StructIndex: 0}}
	b.records = []fxRecord{{name: "old", fileName: "old.xml", sIndex: 0, id: uuid.New(), size: 4}}

	w := &forgeWriter{}
	w.u32(b.valueOff("payload"))
	b.data = w.buf

	df, err := Parse(b.build())
	require.NoError(t, err)
	assert.Equal(t, uint32(4), df.Version())

	rec, err := df.Record(0)
	require.NoError(t, err)
	assert.Equal(t, "old", rec.Name)
	assert.Equal(t, "old.xml", rec.FileName)

	v, err := df.ReadRecord(0, 0)
	require.NoError(t, err)
	msg, _ := v.Field("msg")
	assert.Equal(t, "payload", msg.Str())
}

func TestEnumOptionsAndSearch(t *testing.T) {
	t.Parallel()

	b := newForgeBuilder(6)
	b.structs = []fxStruct{{name: "Empty", parent: nullIndex}}
	b.enums = []fxEnum{{name: "Color", count: 2, first: 0}}
	b.enumOptionVals = []string{"red", "blue"}
	b.mappings = []DataMapping{{Count: 3, StructIndex: 0}}
	b.records = []fxRecord{
		{name: "ship_a", fileName: "ships/a.xml", sIndex: 0, id: uuid.New(), instance: 0},
		{name: "ship_b", fileName: "ships/b.xml", sIndex: 0, id: uuid.New(), instance: 1},
		{name: "item_c", fileName: "items/c.xml", sIndex: 0, id: uuid.New(), instance: 2},
	}

	df, err := Parse(b.build())
	require.NoError(t, err)

	enums := df.Enums()
	require.Len(t, enums, 1)
	assert.Equal(t, "Color", enums[0].Name)
	assert.Equal(t, []string{"red", "blue"}, df.EnumOptions(enums[0]))

	ships := df.SearchRecords(regexp.MustCompile(`^ships/`), 0)
	require.Len(t, ships, 2)
	assert.Equal(t, "ship_a", ships[0].Name)
	assert.Equal(t, "Empty", ships[0].StructType)

	one := df.SearchRecords(regexp.MustCompile(`ship`), 1)
	require.Len(t, one, 1)
	assert.Equal(t, 0, one[0].Index)

	byName := df.SearchRecords(regexp.MustCompile(`item_c`), 0)
	require.Len(t, byName, 1)
	assert.Equal(t, 2, byName[0].Index)
}
