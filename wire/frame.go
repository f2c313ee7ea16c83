// Package wire implements the Splice frame codec: a length-prefixed,
// typed binary framing over MessagePack payloads (spec.md §4.1, §6.1).
//
//	[ u32 BE length ][ u8 type ][ length bytes of payload ]
//
// The codec is resumable: Decode may be called repeatedly against a
// growable buffer and any prefix shorter than a full frame is left
// untouched for the next call (spec.md Invariant 2).
package wire

import "encoding/binary"

// HeaderSize is the fixed 5-byte frame header: 4-byte big-endian length
// followed by the 1-byte message type code.
const HeaderSize = 5

// DefaultMaxFrameSize is this implementation's default, smaller than
// spec.md's suggested 100 MiB: see SPEC_FULL.md Open Question decision
// D.2 — 100 MiB x a 4-slot pool risks pinning ~400 MiB of buffers under
// an adversarial payload. 16 MiB keeps the same worst case at 64 MiB
// for the default pool geometry. Each side's ceiling is set by its own
// MaxFrameSize config, up to the wire format's u32 ceiling; the value a
// peer sends in Handshake.max_frame_size is not applied.
const DefaultMaxFrameSize uint32 = 16 << 20

// PeekHeader reads the length and type out of buf's first HeaderSize
// bytes without validating or consuming anything. The caller must have
// already confirmed len(buf) >= HeaderSize.
func PeekHeader(buf []byte) (length uint32, typ byte) {
	return binary.BigEndian.Uint32(buf[:4]), buf[4]
}

func putHeader(buf []byte, length uint32, typ byte) {
	binary.BigEndian.PutUint32(buf[:4], length)
	buf[4] = typ
}
