package dataforge

import "errors"

var (
	// ErrFormat is returned when the schema blob is structurally
	// nonsensical: bad signature, truncated tables, or offsets that point
	// outside the buffer.
	ErrFormat = errors.New("dataforge: invalid schema format")

	// ErrNotFound is returned for record lookups that match nothing.
	ErrNotFound = errors.New("dataforge: record not found")

	// ErrCyclicHierarchy is returned when a struct's parent chain loops.
	ErrCyclicHierarchy = errors.New("dataforge: cyclic struct hierarchy")
)
