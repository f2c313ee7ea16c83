package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/splicehq/splice/proto"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec(0)
	msg := &proto.Cancel{RequestID: 99}
	buf, err := c.Encode(nil, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	res, err := c.Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.NeedMore {
		t.Fatal("unexpected NeedMore on a complete frame")
	}
	if res.Consumed != len(buf) {
		t.Fatalf("consumed %d, want %d", res.Consumed, len(buf))
	}
	got, ok := res.Msg.(*proto.Cancel)
	if !ok || got.RequestID != 99 {
		t.Fatalf("mismatch: %+v", res.Msg)
	}
}

func TestDecodeNeedsMoreOnShortHeader(t *testing.T) {
	c := NewCodec(0)
	buf := []byte{0x00, 0x00}
	res, err := c.Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NeedMore {
		t.Fatal("expected NeedMore for a short header")
	}
}

func TestDecodeNeedsMoreOnShortPayload(t *testing.T) {
	c := NewCodec(0)
	full, err := c.Encode(nil, &proto.Cancel{RequestID: 1})
	if err != nil {
		t.Fatal(err)
	}
	partial := full[:len(full)-1]
	res, err := c.Decode(partial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NeedMore {
		t.Fatal("expected NeedMore for a truncated payload")
	}
	if res.NeedLen != len(full) {
		t.Fatalf("NeedLen = %d, want %d", res.NeedLen, len(full))
	}
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	c := NewCodec(16)
	buf := make([]byte, HeaderSize)
	putHeader(buf, 17, byte(proto.TypeCancel))
	_, err := c.Decode(buf)
	var tooLarge *FrameTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FrameTooLarge, got %v", err)
	}
	if tooLarge.Length != 17 || tooLarge.Max != 16 {
		t.Fatalf("unexpected fields: %+v", tooLarge)
	}
}

func TestDecodeAcceptsExactlyMaxFrameSize(t *testing.T) {
	msg := &proto.Cancel{RequestID: 1}
	payload, err := msg.MarshalMsg(nil)
	if err != nil {
		t.Fatal(err)
	}
	small := NewCodec(uint32(len(payload)))
	buf := make([]byte, HeaderSize+len(payload))
	putHeader(buf, uint32(len(payload)), byte(proto.TypeCancel))
	copy(buf[HeaderSize:], payload)

	res, err := small.Decode(buf)
	if err != nil {
		t.Fatalf("exact-max frame should be accepted: %v", err)
	}
	if res.NeedMore {
		t.Fatal("exact-max frame should not need more")
	}

	buf2 := make([]byte, HeaderSize+len(payload)+1)
	putHeader(buf2, uint32(len(payload))+1, byte(proto.TypeCancel))
	_, err = small.Decode(buf2)
	if err == nil {
		t.Fatal("max+1 frame should be rejected")
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	c := NewCodec(4)
	_, err := c.Encode(nil, &proto.Cancel{RequestID: 1})
	var tooLarge *FrameTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FrameTooLarge, got %v", err)
	}
}

func TestEncodeLeavesDstUntouchedOnError(t *testing.T) {
	c := NewCodec(4)
	dst := []byte("prefix")
	out, err := c.Encode(dst, &proto.Cancel{RequestID: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Equal(out, dst) {
		t.Fatalf("dst mutated on error: %q", out)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	c := NewCodec(0)
	c.SetCompression(true)
	msg := &proto.LogEvent{
		Level:   proto.LogInfo,
		Message: "repeated repeated repeated repeated repeated repeated text",
		Fields:  map[string]string{"a": "1"},
	}
	buf, err := c.Encode(nil, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	res, err := c.Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := res.Msg.(*proto.LogEvent)
	if !ok || got.Message != msg.Message || got.Fields["a"] != "1" {
		t.Fatalf("mismatch: %+v", res.Msg)
	}
}

func TestCompressionIncompressibleFallsBackToRaw(t *testing.T) {
	tiny := &proto.Cancel{RequestID: 1}
	buf, err := compressPayload(mustMarshal(t, tiny))
	if err != nil {
		t.Fatal(err)
	}
	if buf[0] != rawFlag {
		t.Fatalf("expected raw fallback for tiny payload, got flag %d", buf[0])
	}
}

func mustMarshal(t *testing.T, msg proto.Message) []byte {
	t.Helper()
	b, err := msg.MarshalMsg(nil)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
