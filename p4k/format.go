package p4k

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/stardec/stardec/internal/bin"
)

// ZIP wire-format signatures and sizes, per PKWARE APPNOTE.
const (
	sigLocalHeader uint32 = 0x04034b50
	sigCentralDir  uint32 = 0x02014b50
	sigEOCD        uint32 = 0x06054b50
	sigZip64EOCD   uint32 = 0x06064b50
	sigZip64Loc    uint32 = 0x07064b50

	eocdMinSize      = 22
	maxCommentSize   = 0xFFFF
	maxEOCDScan      = eocdMinSize + maxCommentSize
	zip64LocSize     = 20
	zip64EOCDMinSize = 56
	cdEntryFixedSize = 46
	localHeaderSize  = 30

	zip64ExtraID uint16 = 0x0001

	sentinel16 = 0xFFFF
	sentinel32 = 0xFFFFFFFF

	flagEncrypted uint16 = 0x0001
)

// directory describes the located central directory.
type directory struct {
	totalEntries uint64
	size         uint64
	offset       uint64
}

// findDirectory locates the end-of-central-directory record by scanning the
// archive tail backward for its signature, then follows the 64-bit locator
// when any EOCD field carries a sentinel value.
func findDirectory(r io.ReaderAt, fileSize int64) (directory, error) {
	scanLen := int64(maxEOCDScan)
	if fileSize < scanLen {
		scanLen = fileSize
	}
	if scanLen < eocdMinSize {
		return directory{}, fmt.Errorf("%w: file too small (%d bytes)", ErrFormat, fileSize)
	}

	tail := make([]byte, scanLen)
	if _, err := r.ReadAt(tail, fileSize-scanLen); err != nil {
		return directory{}, fmt.Errorf("p4k: reading archive tail: %w", err)
	}

	eocdIdx := -1
	for i := len(tail) - eocdMinSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:]) == sigEOCD {
			eocdIdx = i
			break
		}
	}
	if eocdIdx < 0 {
		return directory{}, fmt.Errorf("%w: end of central directory not found", ErrFormat)
	}
	eocdOffset := fileSize - scanLen + int64(eocdIdx)

	cur := bin.NewCursor(tail[eocdIdx:])
	cur.Skip(4) // signature
	cur.Skip(2) // disk number
	cur.Skip(2) // central directory start disk
	cur.Skip(2) // entries on this disk
	totalEntries := cur.U16()
	cdSize := cur.U32()
	cdOffset := cur.U32()
	if err := cur.Err(); err != nil {
		return directory{}, fmt.Errorf("%w: truncated end record: %v", ErrFormat, err)
	}

	dir := directory{
		totalEntries: uint64(totalEntries),
		size:         uint64(cdSize),
		offset:       uint64(cdOffset),
	}
	if totalEntries != sentinel16 && cdSize != sentinel32 && cdOffset != sentinel32 {
		return dir, nil
	}
	return findDirectory64(r, eocdOffset)
}

// findDirectory64 parses the 64-bit locator immediately preceding the EOCD
// record and the 64-bit end record it points to.
func findDirectory64(r io.ReaderAt, eocdOffset int64) (directory, error) {
	if eocdOffset < zip64LocSize {
		return directory{}, fmt.Errorf("%w: no room for zip64 locator", ErrFormat)
	}

	loc := make([]byte, zip64LocSize)
	if _, err := r.ReadAt(loc, eocdOffset-zip64LocSize); err != nil {
		return directory{}, fmt.Errorf("p4k: reading zip64 locator: %w", err)
	}
	cur := bin.NewCursor(loc)
	if cur.U32() != sigZip64Loc {
		return directory{}, fmt.Errorf("%w: zip64 locator signature mismatch", ErrFormat)
	}
	cur.Skip(4) // end record start disk
	endOffset := cur.U64()
	if err := cur.Err(); err != nil {
		return directory{}, fmt.Errorf("%w: truncated zip64 locator: %v", ErrFormat, err)
	}

	rec := make([]byte, zip64EOCDMinSize)
	if _, err := r.ReadAt(rec, int64(endOffset)); err != nil {
		return directory{}, fmt.Errorf("p4k: reading zip64 end record: %w", err)
	}
	cur = bin.NewCursor(rec)
	if cur.U32() != sigZip64EOCD {
		return directory{}, fmt.Errorf("%w: zip64 end record signature mismatch", ErrFormat)
	}
	cur.Skip(8) // record size
	cur.Skip(2) // version made by
	cur.Skip(2) // version needed
	cur.Skip(4) // disk number
	cur.Skip(4) // central directory start disk
	cur.Skip(8) // entries on this disk
	totalEntries := cur.U64()
	cdSize := cur.U64()
	cdOffset := cur.U64()
	if err := cur.Err(); err != nil {
		return directory{}, fmt.Errorf("%w: truncated zip64 end record: %v", ErrFormat, err)
	}

	return directory{totalEntries: totalEntries, size: cdSize, offset: cdOffset}, nil
}

// cdScanner streams the central directory in fixed-size chunks using a
// sliding buffer: unconsumed tail bytes are compacted to the buffer start
// before each refill, bounding memory regardless of directory size.
type cdScanner struct {
	r      io.ReaderAt
	next   int64 // file offset of the next unread directory byte
	end    int64 // file offset one past the central directory
	buf    []byte
	pos    int // consume position within buf
	filled int // valid bytes within buf
}

func newCDScanner(r io.ReaderAt, dir directory, chunkSize int) *cdScanner {
	return &cdScanner{
		r:    r,
		next: int64(dir.offset),
		end:  int64(dir.offset + dir.size),
		buf:  make([]byte, chunkSize),
	}
}

// ensure guarantees at least n unconsumed bytes are buffered, compacting and
// refilling as needed. The buffer grows for the rare entry larger than one
// chunk.
func (s *cdScanner) ensure(n int) error {
	if s.filled-s.pos >= n {
		return nil
	}
	if s.pos > 0 {
		copy(s.buf, s.buf[s.pos:s.filled])
		s.filled -= s.pos
		s.pos = 0
	}
	if n > len(s.buf) {
		grown := make([]byte, n)
		copy(grown, s.buf[:s.filled])
		s.buf = grown
	}
	for s.filled < n {
		want := int64(len(s.buf) - s.filled)
		if remain := s.end - s.next; remain < want {
			want = remain
		}
		if want <= 0 {
			return fmt.Errorf("%w: central directory truncated", ErrFormat)
		}
		read, err := s.r.ReadAt(s.buf[s.filled:s.filled+int(want)], s.next)
		s.filled += read
		s.next += int64(read)
		if err != nil && (err != io.EOF || s.filled < n) {
			return fmt.Errorf("p4k: reading central directory: %w", err)
		}
	}
	return nil
}

// scanEntry parses one central-directory entry at the current position.
func (s *cdScanner) scanEntry() (*Entry, error) {
	if err := s.ensure(cdEntryFixedSize); err != nil {
		return nil, err
	}

	cur := bin.NewCursor(s.buf[s.pos : s.pos+cdEntryFixedSize])
	if cur.U32() != sigCentralDir {
		return nil, fmt.Errorf("%w: central directory signature mismatch at offset %d",
			ErrFormat, s.next-int64(s.filled-s.pos))
	}
	cur.Skip(2) // version made by
	cur.Skip(2) // version needed
	flags := cur.U16()
	method := cur.U16()
	cur.Skip(2) // mod time
	cur.Skip(2) // mod date
	crc := cur.U32()
	compressed := uint64(cur.U32())
	uncompressed := uint64(cur.U32())
	nameLen := int(cur.U16())
	extraLen := int(cur.U16())
	commentLen := int(cur.U16())
	cur.Skip(2) // disk number start
	cur.Skip(2) // internal attributes
	cur.Skip(4) // external attributes
	localOffset := uint64(cur.U32())
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated central directory entry: %v", ErrFormat, err)
	}

	total := cdEntryFixedSize + nameLen + extraLen + commentLen
	if err := s.ensure(total); err != nil {
		return nil, err
	}
	name := string(s.buf[s.pos+cdEntryFixedSize : s.pos+cdEntryFixedSize+nameLen])
	extra := s.buf[s.pos+cdEntryFixedSize+nameLen : s.pos+cdEntryFixedSize+nameLen+extraLen]

	// Substitute zip64 values for any field that carries the 32-bit sentinel.
	if compressed == sentinel32 || uncompressed == sentinel32 || localOffset == sentinel32 {
		uncompressed, compressed, localOffset = applyZip64Extra(extra, uncompressed, compressed, localOffset)
	}

	s.pos += total

	name = strings.ReplaceAll(name, "\\", "/")
	return &Entry{
		Name:              name,
		UncompressedSize:  uncompressed,
		CompressedSize:    compressed,
		Method:            Method(method),
		IsDirectory:       strings.HasSuffix(name, "/"),
		IsEncrypted:       flags&flagEncrypted != 0,
		CRC32:             crc,
		LocalHeaderOffset: localOffset,
	}, nil
}

// done reports whether the whole central directory has been consumed.
func (s *cdScanner) done() bool {
	return s.filled-s.pos == 0 && s.next >= s.end
}

// applyZip64Extra scans an extra field for the zip64 info header and
// substitutes the wide values. Per the format, only fields whose 32-bit
// counterpart is the sentinel are present, in the fixed order uncompressed,
// compressed, local header offset.
func applyZip64Extra(extra []byte, uncompressed, compressed, localOffset uint64) (u, c, l uint64) {
	cur := bin.NewCursor(extra)
	for cur.Remaining() >= 4 {
		id := cur.U16()
		size := int(cur.U16())
		if id != zip64ExtraID {
			cur.Skip(size)
			continue
		}
		field := bin.NewCursor(cur.Bytes(size))
		if uncompressed == sentinel32 && field.Remaining() >= 8 {
			uncompressed = field.U64()
		}
		if compressed == sentinel32 && field.Remaining() >= 8 {
			compressed = field.U64()
		}
		if localOffset == sentinel32 && field.Remaining() >= 8 {
			localOffset = field.U64()
		}
		break
	}
	return uncompressed, compressed, localOffset
}

// localDataOffset reads an entry's local file header and returns the true
// offset of its data. The local header's own name and extra lengths are
// authoritative and can differ from the central directory copy.
func localDataOffset(r io.ReaderAt, entry *Entry) (int64, error) {
	hdr := make([]byte, localHeaderSize)
	if _, err := r.ReadAt(hdr, int64(entry.LocalHeaderOffset)); err != nil {
		return 0, fmt.Errorf("p4k: reading local header of %s: %w", entry.Name, err)
	}
	cur := bin.NewCursor(hdr)
	if cur.U32() != sigLocalHeader {
		return 0, fmt.Errorf("%w: local header signature mismatch for %s", ErrFormat, entry.Name)
	}
	cur.Skip(2)  // version needed
	cur.Skip(2)  // flags
	cur.Skip(2)  // method
	cur.Skip(4)  // mod time/date
	cur.Skip(4)  // crc32
	cur.Skip(4)  // compressed size
	cur.Skip(4)  // uncompressed size
	nameLen := int(cur.U16())
	extraLen := int(cur.U16())
	if err := cur.Err(); err != nil {
		return 0, fmt.Errorf("%w: truncated local header for %s: %v", ErrFormat, entry.Name, err)
	}
	return int64(entry.LocalHeaderOffset) + localHeaderSize + int64(nameLen) + int64(extraLen), nil
}
