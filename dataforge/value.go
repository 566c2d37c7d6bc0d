package dataforge

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindGUID
	KindStruct
	KindArray
	KindStrongRef
	KindWeakRef
	KindReference
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindGUID:
		return "guid"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindStrongRef:
		return "strongref"
	case KindWeakRef:
		return "weakref"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Pointer is the raw (structIndex, instanceIndex) pair carried by pointer
// values. A StructIndex of nullIndex marks a null pointer.
type Pointer struct {
	StructIndex   uint32
	InstanceIndex uint32
}

// IsNull reports whether the pointer target is the null sentinel.
func (p Pointer) IsNull() bool { return p.StructIndex == nullIndex }

// Field is one named property of a struct value, in hierarchy order.
type Field struct {
	Name  string
	Value Value
}

// Value is a deserialized instance: a tagged union with one variant per
// schema data type. Values are created per read and never mutated.
//
// A strong pointer either resolves to its target struct (Target returns
// ok) or, once the recursion bound is hit, remains an unresolved
// descriptor. A weak pointer is always a bare descriptor; it models a
// back-reference, not an ownership edge. A reference carries only the
// target GUID and is never locally resolved.
type Value struct {
	kind       Kind
	b          bool
	i          int64
	u          uint64
	f          float64
	s          string
	g          uuid.UUID
	structName string
	fields     []Field
	elems      []Value
	target     *Value
	ptr        Pointer
}

func nullValue() Value            { return Value{} }
func boolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func intValue(i int64) Value      { return Value{kind: KindInt, i: i} }
func uintValue(u uint64) Value    { return Value{kind: KindUint, u: u} }
func floatValue(f float64) Value  { return Value{kind: KindFloat, f: f} }
func stringValue(s string) Value  { return Value{kind: KindString, s: s} }
func guidValue(g uuid.UUID) Value { return Value{kind: KindGUID, g: g} }

func structValue(name string, fields []Field) Value {
	return Value{kind: KindStruct, structName: name, fields: fields}
}

func arrayValue(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, elems: elems}
}

func strongRefValue(target *Value, ptr Pointer) Value {
	return Value{kind: KindStrongRef, target: target, ptr: ptr}
}

func weakRefValue(ptr Pointer) Value {
	return Value{kind: KindWeakRef, ptr: ptr}
}

func referenceValue(g uuid.UUID) Value {
	return Value{kind: KindReference, g: g}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Int returns the signed integer payload.
func (v Value) Int() int64 { return v.i }

// Uint returns the unsigned integer payload.
func (v Value) Uint() uint64 { return v.u }

// Float returns the floating-point payload.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload (string, locale, or enum values).
func (v Value) Str() string { return v.s }

// GUID returns the GUID payload (guid and reference values).
func (v Value) GUID() uuid.UUID { return v.g }

// StructName returns the struct type name of a struct value.
func (v Value) StructName() string { return v.structName }

// Fields returns the ordered fields of a struct value.
func (v Value) Fields() []Field { return v.fields }

// Field returns the named field of a struct value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Elems returns the elements of an array value. Empty arrays return an
// empty, non-nil slice.
func (v Value) Elems() []Value { return v.elems }

// Target returns the resolved target of a strong pointer. ok is false for
// null pointers and for pointers left unresolved by the recursion bound.
func (v Value) Target() (Value, bool) {
	if v.target == nil {
		return Value{}, false
	}
	return *v.target, true
}

// Pointer returns the raw descriptor of a strong or weak pointer value.
func (v Value) Pointer() Pointer { return v.ptr }

// String renders the value on one line, descending into nested values.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb, 0, false)
	return sb.String()
}

// Dump writes an indented multi-line rendering of the value tree.
func (v Value) Dump(w io.Writer) error {
	var sb strings.Builder
	v.write(&sb, 0, true)
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

func (v Value) write(sb *strings.Builder, depth int, indent bool) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		fmt.Fprintf(sb, "%t", v.b)
	case KindInt:
		fmt.Fprintf(sb, "%d", v.i)
	case KindUint:
		fmt.Fprintf(sb, "%d", v.u)
	case KindFloat:
		fmt.Fprintf(sb, "%g", v.f)
	case KindString:
		fmt.Fprintf(sb, "%q", v.s)
	case KindGUID:
		sb.WriteString(v.g.String())
	case KindStruct:
		sb.WriteString(v.structName)
		sb.WriteString(" {")
		for i, f := range v.fields {
			if indent {
				sb.WriteByte('\n')
				sb.WriteString(strings.Repeat("  ", depth+1))
			} else if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			f.Value.write(sb, depth+1, indent)
		}
		if indent && len(v.fields) > 0 {
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", depth))
		}
		sb.WriteByte('}')
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.write(sb, depth, indent)
		}
		sb.WriteByte(']')
	case KindStrongRef:
		if v.target != nil {
			sb.WriteString("-> ")
			v.target.write(sb, depth, indent)
		} else if v.ptr.IsNull() {
			sb.WriteString("-> null")
		} else {
			fmt.Fprintf(sb, "-> unresolved(%d:%d)", v.ptr.StructIndex, v.ptr.InstanceIndex)
		}
	case KindWeakRef:
		if v.ptr.IsNull() {
			sb.WriteString("~> null")
		} else {
			fmt.Fprintf(sb, "~> (%d:%d)", v.ptr.StructIndex, v.ptr.InstanceIndex)
		}
	case KindReference:
		sb.WriteString("ref ")
		sb.WriteString(v.g.String())
	}
}
