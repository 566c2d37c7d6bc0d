package p4k

import "errors"

// Sentinel errors. Messages wrapped around these carry entry names, sizes,
// and method codes for diagnosis; match with errors.Is.
var (
	// ErrFormat is returned when the archive structure is malformed: missing
	// end-of-central-directory record, signature mismatch, or a bad 64-bit
	// locator/end record.
	ErrFormat = errors.New("p4k: invalid archive format")

	// ErrCompression is returned for an unsupported compression method or a
	// decode failure. Fatal for the affected entry only.
	ErrCompression = errors.New("p4k: decompression failed")

	// ErrEncrypted is returned when reading an entry whose encryption flag
	// is set.
	ErrEncrypted = errors.New("p4k: entry is encrypted")

	// ErrCRCMismatch is returned when CRC verification is enabled and the
	// decompressed content does not match the recorded checksum.
	ErrCRCMismatch = errors.New("p4k: crc32 mismatch")

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = errors.New("p4k: archive is closed")

	// ErrNotLoaded is returned when entry lookups are attempted before
	// LoadAllEntries has completed.
	ErrNotLoaded = errors.New("p4k: entries not loaded")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("p4k: size overflow")
)
