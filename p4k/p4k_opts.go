package p4k

import "log/slog"

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithDecompressor overrides the decompressor for a method code. Overrides
// are applied on top of the built-in store/deflate/zstd table, so a new
// method can be registered or an existing one replaced.
func WithDecompressor(method Method, d Decompressor) Option {
	return func(a *Archive) {
		if a.overrides == nil {
			a.overrides = make(map[Method]Decompressor)
		}
		a.overrides[method] = d
	}
}

// WithMaxDecoderMemory limits the memory used by the built-in zstd decoders.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(a *Archive) {
		a.maxDecoderMem = limit
	}
}

// WithVerifyCRC enables CRC-32 verification of decompressed content against
// the central directory record. Entries without a recorded checksum are not
// verified.
func WithVerifyCRC(enabled bool) Option {
	return func(a *Archive) {
		a.verifyCRC = enabled
	}
}

// WithChunkSize sets the central directory read chunk size in bytes.
// Values below one directory entry's maximum extent are raised as needed
// by the scanner.
func WithChunkSize(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}
