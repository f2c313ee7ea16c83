package proto

import "github.com/tinylib/msgp/msgp"

type StreamStart struct {
	RequestID uint64
	Window    uint32
}

func (StreamStart) Type() MsgType { return TypeStreamStart }

func (m *StreamStart) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "Window")
	b = msgp.AppendUint32(b, m.Window)
	return b, nil
}

func (m *StreamStart) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "Window":
			m.Window, bts, err = msgp.ReadUint32Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type StreamChunk struct {
	RequestID uint64
	Sequence  uint64
	Data      []byte
}

func (StreamChunk) Type() MsgType { return TypeStreamChunk }

func (m *StreamChunk) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "Sequence")
	b = msgp.AppendUint64(b, m.Sequence)
	b = msgp.AppendString(b, "Data")
	b = msgp.AppendBytes(b, m.Data)
	return b, nil
}

func (m *StreamChunk) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "Sequence":
			m.Sequence, bts, err = msgp.ReadUint64Bytes(bts)
		case "Data":
			m.Data, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type StreamEnd struct {
	RequestID   uint64
	TotalChunks uint64
}

func (StreamEnd) Type() MsgType { return TypeStreamEnd }

func (m *StreamEnd) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "TotalChunks")
	b = msgp.AppendUint64(b, m.TotalChunks)
	return b, nil
}

func (m *StreamEnd) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "TotalChunks":
			m.TotalChunks, bts, err = msgp.ReadUint64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type StreamError struct {
	RequestID uint64
	Code      uint16
	Message   string
}

func (StreamError) Type() MsgType { return TypeStreamError }

func (m *StreamError) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "Code")
	b = msgp.AppendUint16(b, m.Code)
	b = msgp.AppendString(b, "Message")
	b = msgp.AppendString(b, m.Message)
	return b, nil
}

func (m *StreamError) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "Code":
			m.Code, bts, err = msgp.ReadUint16Bytes(bts)
		case "Message":
			m.Message, bts, err = msgp.ReadStringBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type StreamAck struct {
	RequestID   uint64
	AckSequence uint64
	Window      uint32
}

func (StreamAck) Type() MsgType { return TypeStreamAck }

func (m *StreamAck) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	b = msgp.AppendString(b, "AckSequence")
	b = msgp.AppendUint64(b, m.AckSequence)
	b = msgp.AppendString(b, "Window")
	b = msgp.AppendUint32(b, m.Window)
	return b, nil
}

func (m *StreamAck) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch msgp.UnsafeString(field) {
		case "RequestID":
			m.RequestID, bts, err = msgp.ReadUint64Bytes(bts)
		case "AckSequence":
			m.AckSequence, bts, err = msgp.ReadUint64Bytes(bts)
		case "Window":
			m.Window, bts, err = msgp.ReadUint32Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
