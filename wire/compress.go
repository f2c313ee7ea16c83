package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v3"
)

// rawFlag/lz4Flag distinguish an incompressible fallback (stored raw)
// from a genuinely compressed block in the compressed payload layout:
// [1-byte flag][4-byte BE original length][body].
const (
	rawFlag byte = 0
	lz4Flag byte = 1
)

// compressPayload lz4-block-compresses src, falling back to storing it
// raw when lz4 reports the data didn't shrink (CompressBlock returns 0
// for incompressible input per pierrec/lz4's contract).
func compressPayload(src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	dst := make([]byte, 5+bound)
	dst[0] = lz4Flag
	binary.BigEndian.PutUint32(dst[1:5], uint32(len(src)))

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(src, dst[5:], ht[:])
	if err != nil {
		return nil, fmt.Errorf("wire: lz4 compress: %w", err)
	}
	if n == 0 || n >= len(src) {
		out := make([]byte, 5+len(src))
		out[0] = rawFlag
		binary.BigEndian.PutUint32(out[1:5], uint32(len(src)))
		copy(out[5:], src)
		return out, nil
	}
	return dst[:5+n], nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(src []byte) ([]byte, error) {
	if len(src) < 5 {
		return nil, fmt.Errorf("wire: compressed payload too short: %d bytes", len(src))
	}
	flag := src[0]
	origLen := binary.BigEndian.Uint32(src[1:5])
	body := src[5:]
	switch flag {
	case rawFlag:
		if uint32(len(body)) != origLen {
			return nil, fmt.Errorf("wire: raw payload length mismatch: got %d want %d", len(body), origLen)
		}
		return body, nil
	case lz4Flag:
		dst := make([]byte, origLen)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("wire: lz4 decompress: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("wire: unknown compression flag 0x%02x", flag)
	}
}
