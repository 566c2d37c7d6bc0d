package p4k

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecoderMemory is the default memory cap for zstd decoders (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Decompressor decodes one entry's stored bytes into its original content.
//
// Implementations are constructed once per Archive and must be safe for
// concurrent use. src yields exactly the entry's compressed bytes; size is
// the expected uncompressed size.
type Decompressor interface {
	Decompress(ctx context.Context, src io.Reader, size int) ([]byte, error)
}

// ctxReader checks for cancellation on every Read so that decoding a huge
// entry can be abandoned mid-stream.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// readExact fills a buffer of the expected size and fails if the stream
// holds more data than declared.
func readExact(r io.Reader, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	var probe [1]byte
	n, err := r.Read(probe[:])
	if n != 0 {
		return nil, fmt.Errorf("stream longer than declared size %d", size)
	}
	if err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

// StoreDecompressor passes stored entries through unchanged.
type StoreDecompressor struct{}

// Decompress implements Decompressor.
func (StoreDecompressor) Decompress(ctx context.Context, src io.Reader, size int) ([]byte, error) {
	return readExact(&ctxReader{ctx: ctx, r: src}, size)
}

// DeflateDecompressor decodes raw (headerless) deflate streams.
type DeflateDecompressor struct{}

// Decompress implements Decompressor.
func (DeflateDecompressor) Decompress(ctx context.Context, src io.Reader, size int) ([]byte, error) {
	fr := flate.NewReader(&ctxReader{ctx: ctx, r: src})
	defer fr.Close()
	return readExact(fr, size)
}

// ZstdDecompressor decodes Zstandard streams using pooled decoders to avoid
// re-allocating decoder state per entry.
type ZstdDecompressor struct {
	pool      sync.Pool
	maxMemory uint64
}

// NewZstdDecompressor creates a pooled Zstandard decompressor.
// If maxMemory is 0, no memory limit is applied to decoders.
func NewZstdDecompressor(maxMemory uint64) *ZstdDecompressor {
	z := &ZstdDecompressor{maxMemory: maxMemory}
	z.pool.New = func() any {
		dec, err := z.newDecoder(nil)
		if err != nil {
			return nil
		}
		return dec
	}
	return z
}

// Decompress implements Decompressor.
func (z *ZstdDecompressor) Decompress(ctx context.Context, src io.Reader, size int) ([]byte, error) {
	reader := &ctxReader{ctx: ctx, r: src}
	dec, release, err := z.get(reader)
	if err != nil {
		return nil, err
	}
	defer release()
	return readExact(dec, size)
}

// get returns a decoder configured to read from r and a release function
// that returns it to the pool.
func (z *ZstdDecompressor) get(r io.Reader) (*zstd.Decoder, func(), error) {
	value := z.pool.Get()
	dec, ok := value.(*zstd.Decoder)
	if !ok {
		// Pool's New function failed, try directly.
		fresh, err := z.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}
	if err := dec.Reset(r); err != nil {
		dec.Close()
		fresh, err := z.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		z.pool.Put(dec)
	}, nil
}

func (z *ZstdDecompressor) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if z.maxMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(z.maxMemory))
	}
	return zstd.NewReader(r, opts...)
}

// defaultDecompressors builds the method table used when no overrides are
// configured. Both zstd method codes share one pooled decoder.
func defaultDecompressors(maxMemory uint64) map[Method]Decompressor {
	z := NewZstdDecompressor(maxMemory)
	return map[Method]Decompressor{
		MethodStore:      StoreDecompressor{},
		MethodDeflate:    DeflateDecompressor{},
		MethodZstd:       z,
		MethodZstdLegacy: z,
	}
}
