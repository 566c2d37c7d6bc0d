// Package p4k reads game-asset archives: ZIP-family containers with 64-bit
// extensions and Zstandard-compressed entries.
//
// An Archive is opened against a local file, indexes its central directory
// once via LoadAllEntries, and decompresses entries on demand. Entry reads
// are independent and may run concurrently.
package p4k

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/stardec/stardec/internal/sizing"
)

const defaultChunkSize = 1 << 20

// Progress reports central directory indexing progress.
type Progress struct {
	EntriesLoaded int
	EntriesTotal  int
}

// ProgressFunc receives progress updates during LoadAllEntries.
type ProgressFunc func(Progress)

// progressInterval is the entry count between progress notifications.
const progressInterval = 4096

// Archive provides indexed access to entries of an asset archive.
//
// The entry index is write-once: after LoadAllEntries completes it is only
// read, so lookups and entry reads are safe for concurrent use.
type Archive struct {
	path          string
	file          *os.File
	size          int64
	dir           directory
	logger        *slog.Logger
	decompressors map[Method]Decompressor
	overrides     map[Method]Decompressor
	maxDecoderMem uint64
	verifyCRC     bool
	chunkSize     int

	mu      sync.Mutex // guards loaded/closed transitions
	loaded  bool
	closed  bool
	entries []*Entry
	byName  map[string]*Entry
	byLower map[string]*Entry

	readGroup singleflight.Group
}

// Open stats and opens the archive file and locates its central directory.
// Entries are not indexed until LoadAllEntries is called.
func Open(path string, opts ...Option) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("p4k: stat %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("p4k: open %s: %w", path, err)
	}

	a := &Archive{
		path:          path,
		file:          f,
		size:          info.Size(),
		maxDecoderMem: DefaultMaxDecoderMemory,
		chunkSize:     defaultChunkSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.decompressors = defaultDecompressors(a.maxDecoderMem)
	for m, d := range a.overrides {
		a.decompressors[m] = d
	}

	dir, err := findDirectory(f, a.size)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.dir = dir
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

// Size returns the archive file size in bytes.
func (a *Archive) Size() int64 { return a.size }

// TotalEntries returns the entry count declared by the central directory.
func (a *Archive) TotalEntries() uint64 { return a.dir.totalEntries }

// LoadAllEntries streams the central directory and builds the name index.
// It is idempotent: after the first successful call it returns immediately.
// progress may be nil.
func (a *Archive) LoadAllEntries(ctx context.Context, progress ProgressFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.loaded {
		return nil
	}

	total64, err := sizing.ToInt(a.dir.totalEntries, ErrSizeOverflow)
	if err != nil {
		return err
	}

	entries := make([]*Entry, 0, total64)
	byName := make(map[string]*Entry, total64)
	byLower := make(map[string]*Entry, total64)

	scanner := newCDScanner(a.file, a.dir, a.chunkSize)
	for i := 0; i < total64; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := scanner.scanEntry()
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		byName[entry.Name] = entry
		byLower[strings.ToLower(entry.Name)] = entry

		if progress != nil && (i+1)%progressInterval == 0 {
			progress(Progress{EntriesLoaded: i + 1, EntriesTotal: total64})
		}
	}
	if !scanner.done() {
		a.log().Warn("central directory has trailing bytes",
			"archive", a.path, "entries", total64)
	}
	if progress != nil {
		progress(Progress{EntriesLoaded: total64, EntriesTotal: total64})
	}

	a.entries = entries
	a.byName = byName
	a.byLower = byLower
	a.loaded = true
	a.log().Debug("central directory loaded", "archive", a.path, "entries", total64)
	return nil
}

// Entries returns all entries in central-directory order.
func (a *Archive) Entries() []*Entry { return a.entries }

// FindFiles scans cached entries in central-directory order and returns the
// first matches, stopping early once limit entries are found. A limit <= 0
// means no limit.
func (a *Archive) FindFiles(re *regexp.Regexp, limit int) []*Entry {
	var out []*Entry
	for _, e := range a.entries {
		if !re.MatchString(e.Name) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetEntry looks up an entry by name. Path separators are normalized to
// forward slashes; the exact-case index is tried first, then the lowercase
// index. The second return value reports whether the entry was found.
func (a *Archive) GetEntry(name string) (*Entry, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if e, ok := a.byName[name]; ok {
		return e, true
	}
	e, ok := a.byLower[strings.ToLower(name)]
	return e, ok
}

// ReadFile reads and decompresses one entry's content.
//
// The entry's local header is consulted for the true data offset, which can
// differ from central-directory assumptions. Failures are scoped to the
// entry; the archive remains usable.
func (a *Archive) ReadFile(ctx context.Context, entry *Entry) ([]byte, error) {
	return a.readFrom(ctx, a.file, entry)
}

// readFrom reads an entry through the given handle, allowing batch
// extraction to use per-worker file handle duplicates.
func (a *Archive) readFrom(ctx context.Context, r io.ReaderAt, entry *Entry) ([]byte, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	if entry.IsEncrypted {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, entry.Name)
	}

	dec, ok := a.decompressors[entry.Method]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported method %d for %s",
			ErrCompression, uint16(entry.Method), entry.Name)
	}

	dataOffset, err := localDataOffset(r, entry)
	if err != nil {
		return nil, err
	}
	compLen, err := sizing.ToInt64(entry.CompressedSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("p4k: %s: %w", entry.Name, err)
	}
	size, err := sizing.ToInt(entry.UncompressedSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("p4k: %s: %w", entry.Name, err)
	}
	if end, ok := sizing.AddUint64(uint64(dataOffset), entry.CompressedSize); !ok || end > uint64(a.size) {
		return nil, fmt.Errorf("%w: data range of %s exceeds archive bounds", ErrFormat, entry.Name)
	}

	section := io.NewSectionReader(r, dataOffset, compLen)
	content, err := dec.Decompress(ctx, section, size)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s (method %d, %d -> %d bytes): %v",
			ErrCompression, entry.Name, uint16(entry.Method),
			entry.CompressedSize, entry.UncompressedSize, err)
	}

	if a.verifyCRC && entry.CRC32 != 0 {
		if sum := crc32.ChecksumIEEE(content); sum != entry.CRC32 {
			return nil, fmt.Errorf("%w: %s (got %08x, want %08x)",
				ErrCRCMismatch, entry.Name, sum, entry.CRC32)
		}
	}
	return content, nil
}

// ReadFileByName resolves name and reads its content. Concurrent calls for
// the same entry are deduplicated.
func (a *Archive) ReadFileByName(ctx context.Context, name string) ([]byte, error) {
	if !a.loaded {
		return nil, ErrNotLoaded
	}
	entry, ok := a.GetEntry(name)
	if !ok {
		return nil, fmt.Errorf("p4k: entry %q: %w", name, os.ErrNotExist)
	}
	content, err, _ := a.readGroup.Do(entry.Name, func() (any, error) {
		return a.ReadFile(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return content.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

func (a *Archive) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close releases the file handle and clears the entry index. It is safe to
// call multiple times.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.loaded = false
	a.entries = nil
	a.byName = nil
	a.byLower = nil
	return a.file.Close()
}
