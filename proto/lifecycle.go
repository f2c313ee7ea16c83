package proto

import "github.com/tinylib/msgp/msgp"

type Handshake struct {
	ProtocolVersion uint32
	Role            Role
	Capabilities    Capability
	MaxFrameSize    uint32
}

func (Handshake) Type() MsgType { return TypeHandshake }

func (m *Handshake) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "ProtocolVersion")
	b = msgp.AppendUint32(b, m.ProtocolVersion)
	b = msgp.AppendString(b, "Role")
	b = msgp.AppendUint8(b, uint8(m.Role))
	b = msgp.AppendString(b, "Capabilities")
	b = msgp.AppendUint32(b, uint32(m.Capabilities))
	b = msgp.AppendString(b, "MaxFrameSize")
	b = msgp.AppendUint32(b, m.MaxFrameSize)
	return b, nil
}

func (m *Handshake) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "ProtocolVersion":
			m.ProtocolVersion, bts, err = msgp.ReadUint32Bytes(bts)
		case "Role":
			var r uint8
			r, bts, err = msgp.ReadUint8Bytes(bts)
			m.Role = Role(r)
		case "Capabilities":
			var c uint32
			c, bts, err = msgp.ReadUint32Bytes(bts)
			m.Capabilities = Capability(c)
		case "MaxFrameSize":
			m.MaxFrameSize, bts, err = msgp.ReadUint32Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type HandshakeAck struct {
	ProtocolVersion uint32
	Capabilities    Capability
	ServerID        [16]byte
	ExportCount     uint32
}

func (HandshakeAck) Type() MsgType { return TypeHandshakeAck }

func (m *HandshakeAck) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "ProtocolVersion")
	b = msgp.AppendUint32(b, m.ProtocolVersion)
	b = msgp.AppendString(b, "Capabilities")
	b = msgp.AppendUint32(b, uint32(m.Capabilities))
	b = msgp.AppendString(b, "ServerID")
	b = msgp.AppendBytes(b, m.ServerID[:])
	b = msgp.AppendString(b, "ExportCount")
	b = msgp.AppendUint32(b, m.ExportCount)
	return b, nil
}

func (m *HandshakeAck) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "ProtocolVersion":
			m.ProtocolVersion, bts, err = msgp.ReadUint32Bytes(bts)
		case "Capabilities":
			var c uint32
			c, bts, err = msgp.ReadUint32Bytes(bts)
			m.Capabilities = Capability(c)
		case "ServerID":
			var raw []byte
			raw, bts, err = msgp.ReadBytesBytes(bts, nil)
			if err == nil {
				copy(m.ServerID[:], raw)
			}
		case "ExportCount":
			m.ExportCount, bts, err = msgp.ReadUint32Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

// Shutdown and ShutdownAck carry no fields; they still round-trip
// through an (empty) map so the wire format stays uniform across types.

type Shutdown struct{}

func (Shutdown) Type() MsgType                       { return TypeShutdown }
func (Shutdown) MarshalMsg(b []byte) ([]byte, error) { return msgp.AppendMapHeader(b, 0), nil }
func (*Shutdown) UnmarshalMsg(bts []byte) ([]byte, error) {
	return skipEmptyMap(bts)
}

type ShutdownAck struct{}

func (ShutdownAck) Type() MsgType                       { return TypeShutdownAck }
func (ShutdownAck) MarshalMsg(b []byte) ([]byte, error) { return msgp.AppendMapHeader(b, 0), nil }
func (*ShutdownAck) UnmarshalMsg(bts []byte) ([]byte, error) {
	return skipEmptyMap(bts)
}

// skipEmptyMap consumes a map header and any (unexpected) fields in it,
// shared by the handful of zero-field message variants.
func skipEmptyMap(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		_, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		bts, err = msgp.Skip(bts)
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
