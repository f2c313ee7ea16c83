package wire

import "github.com/splicehq/splice/proto"

// Codec encodes and decodes frames against a negotiated maximum frame
// size. Construct one with NewCodec: a zero Codec has a ceiling of 0
// and rejects every frame with a non-empty payload.
type Codec struct {
	maxFrameSize uint32
	compress     bool
}

// NewCodec returns a Codec bounded at maxFrameSize. A zero maxFrameSize
// falls back to DefaultMaxFrameSize.
func NewCodec(maxFrameSize uint32) *Codec {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Codec{maxFrameSize: maxFrameSize}
}

// MaxFrameSize reports the codec's configured ceiling.
func (c *Codec) MaxFrameSize() uint32 { return c.maxFrameSize }

// SetCompression enables or disables lz4 block compression of
// marshaled payloads, per the negotiated CapCompression bit
// (spec.md §5, SPEC_FULL.md §B).
func (c *Codec) SetCompression(on bool) { c.compress = on }

// Encode appends msg's frame (header + payload) to dst and returns the
// grown slice. Encoding is atomic: on error dst is returned unchanged.
func (c *Codec) Encode(dst []byte, msg proto.Message) ([]byte, error) {
	payload, err := msg.MarshalMsg(nil)
	if err != nil {
		return dst, &Serialization{Reason: err}
	}
	if c.compress {
		payload, err = compressPayload(payload)
		if err != nil {
			return dst, &Serialization{Reason: err}
		}
	}
	if uint32(len(payload)) > c.maxFrameSize {
		return dst, &FrameTooLarge{Length: uint32(len(payload)), Max: c.maxFrameSize}
	}
	typ := byte(msg.Type())
	if c.compress {
		typ |= compressedTypeBit
	}
	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	putHeader(out, uint32(len(payload)), typ)
	out = append(out, payload...)
	return append(dst, out...), nil
}

// DecodeResult is the outcome of a single Decode call.
type DecodeResult struct {
	Msg      proto.Message
	Consumed int // bytes of buf consumed by this frame; 0 if NeedMore
	NeedMore bool
	NeedLen  int // total bytes needed for NeedMore to succeed next call, when known
}

// Decode attempts to read exactly one frame from the head of buf.
//
// Per spec.md §4.1:
//   - fewer than HeaderSize bytes present: NeedMore, buf untouched
//   - declared length exceeds the codec's max: FrameTooLarge, fatal
//   - fewer than HeaderSize+length bytes present: NeedMore, buf untouched
//   - otherwise: split off the payload, deserialize, and report bytes
//     consumed so the caller can advance its buffer
func (c *Codec) Decode(buf []byte) (DecodeResult, error) {
	if len(buf) < HeaderSize {
		return DecodeResult{NeedMore: true}, nil
	}
	length, typ := PeekHeader(buf)
	if length > c.maxFrameSize {
		return DecodeResult{}, &FrameTooLarge{Length: length, Max: c.maxFrameSize}
	}
	total := HeaderSize + int(length)
	if len(buf) < total {
		return DecodeResult{NeedMore: true, NeedLen: total}, nil
	}
	payload := buf[HeaderSize:total]
	compressed := typ&compressedTypeBit != 0
	mt := proto.MsgType(typ &^ compressedTypeBit)
	var err error
	if compressed {
		payload, err = decompressPayload(payload)
		if err != nil {
			return DecodeResult{}, &Serialization{Reason: err}
		}
	}
	msg, err := proto.Decode(mt, payload)
	if err != nil {
		return DecodeResult{}, &Serialization{Reason: err}
	}
	return DecodeResult{Msg: msg, Consumed: total}, nil
}

// compressedTypeBit is OR'd into the on-wire type byte to flag that the
// payload is lz4-compressed. Spec's type enumeration only uses the low
// 7 bits (max observed 0x61), so the top bit is free for this purpose
// without colliding with any defined MsgType.
const compressedTypeBit = 0x80
