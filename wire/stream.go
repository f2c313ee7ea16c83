package wire

import (
	"io"

	"github.com/splicehq/splice/proto"
)

// FrameReader adapts Codec's resumable Decode to a blocking io.Reader,
// growing an internal buffer only as far as each frame demands.
type FrameReader struct {
	r     io.Reader
	codec *Codec
	buf   []byte
}

func NewFrameReader(r io.Reader, codec *Codec) *FrameReader {
	return &FrameReader{r: r, codec: codec}
}

// ReadMessage blocks until one full frame has arrived and returns its
// decoded message. A FrameTooLarge or Serialization error is fatal to
// the stream; the caller must stop using the reader.
func (fr *FrameReader) ReadMessage() (proto.Message, error) {
	for {
		res, err := fr.codec.Decode(fr.buf)
		if err != nil {
			return nil, err
		}
		if !res.NeedMore {
			fr.buf = append([]byte(nil), fr.buf[res.Consumed:]...)
			return res.Msg, nil
		}
		want := res.NeedLen
		if want <= len(fr.buf) {
			want = len(fr.buf) + 4096
		}
		chunk := make([]byte, want-len(fr.buf))
		n, err := io.ReadAtLeast(fr.r, chunk, 1)
		if n > 0 {
			fr.buf = append(fr.buf, chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

// FrameWriter serializes messages through a Codec directly onto w.
type FrameWriter struct {
	w     io.Writer
	codec *Codec
}

func NewFrameWriter(w io.Writer, codec *Codec) *FrameWriter {
	return &FrameWriter{w: w, codec: codec}
}

func (fw *FrameWriter) WriteMessage(msg proto.Message) error {
	buf, err := fw.codec.Encode(nil, msg)
	if err != nil {
		return err
	}
	_, err = fw.w.Write(buf)
	return err
}
