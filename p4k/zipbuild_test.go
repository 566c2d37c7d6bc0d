package p4k

import (
	"bytes"
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// zipEntry describes one entry for the synthetic archive builder.
type zipEntry struct {
	name      string
	content   []byte
	method    Method
	useZip64  bool   // write sentinel size/offset fields plus a zip64 extra
	encrypted bool   // set bit 0 of the general-purpose flags
	badCRC    bool   // record a wrong checksum
	rawMethod uint16 // when nonzero, record this method code with stored bytes
}

type zipWriter struct {
	buf bytes.Buffer
}

func (w *zipWriter) u16(v uint16) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
}

func (w *zipWriter) u32(v uint32) {
	w.u16(uint16(v))
	w.u16(uint16(v >> 16))
}

func (w *zipWriter) u64(v uint64) {
	w.u32(uint32(v))
	w.u32(uint32(v >> 32))
}

func compressFor(t *testing.T, method Method, content []byte) []byte {
	t.Helper()
	switch method {
	case MethodStore:
		return content
	case MethodDeflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, fw.Close())
		return buf.Bytes()
	case MethodZstd, MethodZstdLegacy:
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = zw.Write(content)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	default:
		t.Fatalf("no compressor for method %d", method)
		return nil
	}
}

// buildZip assembles a well-formed archive from the given entries. When
// zip64EOCD is set, the end record carries sentinel values and the true
// counts live in a zip64 end record plus locator.
func buildZip(t *testing.T, entries []zipEntry, zip64EOCD bool) []byte {
	t.Helper()
	w := &zipWriter{}

	type placed struct {
		e      zipEntry
		comp   []byte
		crc    uint32
		offset uint64
		method uint16
	}
	placedEntries := make([]placed, 0, len(entries))

	for _, e := range entries {
		method := uint16(e.method)
		comp := e.content
		if e.rawMethod != 0 {
			method = e.rawMethod
		} else {
			comp = compressFor(t, e.method, e.content)
		}
		crc := crc32.ChecksumIEEE(e.content)
		if e.badCRC {
			crc ^= 0xdeadbeef
		}
		offset := uint64(w.buf.Len())

		var flags uint16
		if e.encrypted {
			flags |= flagEncrypted
		}

		// Local file header.
		w.u32(sigLocalHeader)
		w.u16(20) // version needed
		w.u16(flags)
		w.u16(method)
		w.u16(0) // mod time
		w.u16(0) // mod date
		w.u32(crc)
		w.u32(uint32(len(comp)))
		w.u32(uint32(len(e.content)))
		w.u16(uint16(len(e.name)))
		w.u16(0) // extra length
		w.buf.WriteString(e.name)
		w.buf.Write(comp)

		placedEntries = append(placedEntries, placed{
			e: e, comp: comp, crc: crc, offset: offset, method: method,
		})
	}

	cdOffset := uint64(w.buf.Len())
	for _, p := range placedEntries {
		var flags uint16
		if p.e.encrypted {
			flags |= flagEncrypted
		}

		var extra bytes.Buffer
		compField := uint32(len(p.comp))
		uncompField := uint32(len(p.e.content))
		offsetField := uint32(p.offset)
		if p.e.useZip64 {
			compField = sentinel32
			uncompField = sentinel32
			offsetField = sentinel32
			var ew zipWriter
			ew.u16(zip64ExtraID)
			ew.u16(24)
			ew.u64(uint64(len(p.e.content)))
			ew.u64(uint64(len(p.comp)))
			ew.u64(p.offset)
			extra.Write(ew.buf.Bytes())
		}

		w.u32(sigCentralDir)
		w.u16(20) // version made by
		w.u16(20) // version needed
		w.u16(flags)
		w.u16(p.method)
		w.u16(0) // mod time
		w.u16(0) // mod date
		w.u32(p.crc)
		w.u32(compField)
		w.u32(uncompField)
		w.u16(uint16(len(p.e.name)))
		w.u16(uint16(extra.Len()))
		w.u16(0) // comment length
		w.u16(0) // disk number start
		w.u16(0) // internal attributes
		w.u32(0) // external attributes
		w.u32(offsetField)
		w.buf.WriteString(p.e.name)
		w.buf.Write(extra.Bytes())
	}
	cdSize := uint64(w.buf.Len()) - cdOffset

	if zip64EOCD {
		zip64Offset := uint64(w.buf.Len())
		w.u32(sigZip64EOCD)
		w.u64(44) // record size
		w.u16(45) // version made by
		w.u16(45) // version needed
		w.u32(0)  // disk number
		w.u32(0)  // central directory start disk
		w.u64(uint64(len(placedEntries)))
		w.u64(uint64(len(placedEntries)))
		w.u64(cdSize)
		w.u64(cdOffset)

		w.u32(sigZip64Loc)
		w.u32(0) // end record start disk
		w.u64(zip64Offset)
		w.u32(1) // total disks

		w.u32(sigEOCD)
		w.u16(0)
		w.u16(0)
		w.u16(sentinel16)
		w.u16(sentinel16)
		w.u32(sentinel32)
		w.u32(sentinel32)
		w.u16(0)
	} else {
		w.u32(sigEOCD)
		w.u16(0) // disk number
		w.u16(0) // central directory start disk
		w.u16(uint16(len(placedEntries)))
		w.u16(uint16(len(placedEntries)))
		w.u32(uint32(cdSize))
		w.u32(uint32(cdOffset))
		w.u16(0) // comment length
	}

	return w.buf.Bytes()
}

// writeArchive writes data to a temp file and returns its path.
func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.p4k")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// openLoaded builds, writes, opens, and indexes an archive.
func openLoaded(t *testing.T, entries []zipEntry, zip64EOCD bool, opts ...Option) *Archive {
	t.Helper()
	a, err := Open(writeArchive(t, buildZip(t, entries, zip64EOCD)), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.LoadAllEntries(context.Background(), nil))
	return a
}
