// Package bin provides a bounds-checked cursor for decoding fixed-layout
// binary data from in-memory blobs.
package bin

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrShortData is returned (wrapped) when a read would run past the end of
// the underlying data.
var ErrShortData = fmt.Errorf("bin: short data")

// Cursor reads scalar values from a byte slice, advancing an internal
// position and validating every access against the slice bounds.
//
// Errors are sticky: after the first failed read, every subsequent read
// returns the zero value and Err reports the original failure. This lets
// decoders issue a run of reads and check once at the end.
type Cursor struct {
	data  []byte
	pos   int
	order binary.ByteOrder
	err   error
}

// NewCursor returns a little-endian cursor over data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, order: binary.LittleEndian}
}

// NewCursorOrder returns a cursor over data using the given byte order.
func NewCursorOrder(data []byte, order binary.ByteOrder) *Cursor {
	return &Cursor{data: data, order: order}
}

// SetOrder changes the byte order for subsequent reads.
func (c *Cursor) SetOrder(order binary.ByteOrder) { c.order = order }

// Err returns the first error encountered, or nil.
func (c *Cursor) Err() error { return c.err }

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total length of the underlying data.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	if c.pos > len(c.data) {
		return 0
	}
	return len(c.data) - c.pos
}

// Seek moves the read position to an absolute offset.
func (c *Cursor) Seek(pos int) {
	if c.err != nil {
		return
	}
	if pos < 0 || pos > len(c.data) {
		c.fail(pos, 0)
		return
	}
	c.pos = pos
}

// Skip advances the read position by n bytes.
func (c *Cursor) Skip(n int) {
	if c.err != nil {
		return
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.fail(c.pos, n)
		return
	}
	c.pos += n
}

// Bytes returns the next n bytes. The returned slice aliases the
// underlying data and must not be modified.
func (c *Cursor) Bytes(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.fail(c.pos, n)
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

// U8 reads one unsigned byte.
func (c *Cursor) U8() uint8 {
	b := c.Bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads an unsigned 16-bit integer.
func (c *Cursor) U16() uint16 {
	b := c.Bytes(2)
	if b == nil {
		return 0
	}
	return c.order.Uint16(b)
}

// U32 reads an unsigned 32-bit integer.
func (c *Cursor) U32() uint32 {
	b := c.Bytes(4)
	if b == nil {
		return 0
	}
	return c.order.Uint32(b)
}

// U64 reads an unsigned 64-bit integer.
func (c *Cursor) U64() uint64 {
	b := c.Bytes(8)
	if b == nil {
		return 0
	}
	return c.order.Uint64(b)
}

// I8 reads a signed byte.
func (c *Cursor) I8() int8 { return int8(c.U8()) }

// I16 reads a signed 16-bit integer.
func (c *Cursor) I16() int16 { return int16(c.U16()) }

// I32 reads a signed 32-bit integer.
func (c *Cursor) I32() int32 { return int32(c.U32()) }

// I64 reads a signed 64-bit integer.
func (c *Cursor) I64() int64 { return int64(c.U64()) }

// F32 reads an IEEE 754 single-precision float.
func (c *Cursor) F32() float32 { return math.Float32frombits(c.U32()) }

// F64 reads an IEEE 754 double-precision float.
func (c *Cursor) F64() float64 { return math.Float64frombits(c.U64()) }

func (c *Cursor) fail(pos, n int) {
	c.err = fmt.Errorf("%w: read of %d bytes at offset %d (len %d)",
		ErrShortData, n, pos, len(c.data))
}

// CString reads bytes from an absolute offset up to (but not including) the
// first NUL byte. Reading does not move the cursor position. If no NUL is
// found the remainder of the data is returned. ok is false when the offset
// is out of range.
func (c *Cursor) CString(offset int) (s string, ok bool) {
	if offset < 0 || offset >= len(c.data) {
		return "", false
	}
	end := offset
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	return string(c.data[offset:end]), true
}
