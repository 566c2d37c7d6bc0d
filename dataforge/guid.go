package dataforge

import "github.com/google/uuid"

// guidSize is the on-disk width of a record or value GUID.
const guidSize = 16

// guidFromBytes decodes a 16-byte on-disk GUID. The first three fields are
// stored little-endian; the remaining 8 bytes are raw. Normalizing the field
// order here means uuid.UUID renders the canonical hyphenated form directly,
// and the rendering is bit-for-bit reproducible for a given input.
func guidFromBytes(b []byte) uuid.UUID {
	var id uuid.UUID
	if len(b) < guidSize {
		return id
	}
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:guidSize])
	return id
}

// guidToBytes encodes a GUID back to its on-disk byte order. Used by test
// fixture builders; reading and writing must agree on the layout.
func guidToBytes(id uuid.UUID) []byte {
	b := make([]byte, guidSize)
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}
