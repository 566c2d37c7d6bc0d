package p4k

// Method identifies the compression method of an archive entry.
//
// Codes follow the ZIP APPNOTE registry. Game archives additionally use
// method 100 for Zstandard, predating the official assignment of 93.
type Method uint16

const (
	MethodStore      Method = 0
	MethodDeflate    Method = 8
	MethodZstd       Method = 93
	MethodZstdLegacy Method = 100
)

// String returns the human-readable name of the compression method.
func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd, MethodZstdLegacy:
		return "zstd"
	default:
		return "unknown"
	}
}

// Entry represents a file in the archive. Entries are immutable once the
// central directory has been indexed.
type Entry struct {
	// Name is the entry path with separators normalized to forward slashes.
	Name string

	// UncompressedSize is the size of the entry's content after decompression.
	UncompressedSize uint64

	// CompressedSize is the size of the entry's content as stored.
	CompressedSize uint64

	// Method is the compression method recorded in the central directory.
	Method Method

	// IsDirectory reports whether the entry is a directory marker.
	IsDirectory bool

	// IsEncrypted reports whether bit 0 of the general-purpose flags is set.
	// Encrypted entries cannot be read.
	IsEncrypted bool

	// CRC32 is the IEEE CRC-32 of the uncompressed content, as recorded in
	// the central directory. Zero when the archive did not record one.
	CRC32 uint32

	// LocalHeaderOffset is the byte offset of the entry's local file header.
	LocalHeaderOffset uint64
}
