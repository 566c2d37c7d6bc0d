package p4k

import (
	"path"
	"sort"
	"strings"
)

const statsTopN = 20

// NameCount pairs a directory or extension name with its file count.
type NameCount struct {
	Name  string
	Count int
}

// Stats aggregates size and composition statistics over the entry index.
type Stats struct {
	TotalEntries      int
	TotalFiles        int
	TotalUncompressed uint64
	TotalCompressed   uint64

	// CompressionRatio is compressed size over uncompressed size; 1.0 for
	// an empty archive.
	CompressionRatio float64

	// TopDirectories holds per-top-level-directory file counts, largest
	// first, capped at 20.
	TopDirectories []NameCount

	// TopExtensions holds per-extension file counts, largest first,
	// capped at 20.
	TopExtensions []NameCount
}

// Stats computes archive statistics from the cached entry index.
func (a *Archive) Stats() (*Stats, error) {
	if !a.loaded {
		return nil, ErrNotLoaded
	}

	s := &Stats{TotalEntries: len(a.entries), CompressionRatio: 1.0}
	dirs := make(map[string]int)
	exts := make(map[string]int)

	for _, e := range a.entries {
		if e.IsDirectory {
			continue
		}
		s.TotalFiles++
		s.TotalUncompressed += e.UncompressedSize
		s.TotalCompressed += e.CompressedSize

		top := "(root)"
		if idx := strings.IndexByte(e.Name, '/'); idx > 0 {
			top = e.Name[:idx]
		}
		dirs[top]++

		ext := strings.ToLower(path.Ext(e.Name))
		if ext == "" {
			ext = "(none)"
		}
		exts[ext]++
	}

	if s.TotalUncompressed > 0 {
		s.CompressionRatio = float64(s.TotalCompressed) / float64(s.TotalUncompressed)
	}
	s.TopDirectories = topCounts(dirs, statsTopN)
	s.TopExtensions = topCounts(exts, statsTopN)
	return s, nil
}

// topCounts sorts counts descending (name ascending on ties) and keeps n.
func topCounts(m map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(m))
	for name, count := range m {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
