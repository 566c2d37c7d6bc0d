package cryxml

import "errors"

var (
	// ErrFormat is returned when the blob carries no recognized magic and
	// does not open with '<', or when a table lies outside the buffer.
	ErrFormat = errors.New("cryxml: invalid format")

	// ErrPlainXML signals that the input is already plain-text markup and
	// should be passed through unchanged. Callers branch on it with
	// errors.Is.
	ErrPlainXML = errors.New("cryxml: input is plain text markup")
)
