package proto

import "github.com/tinylib/msgp/msgp"

type Cancel struct{ RequestID uint64 }

func (Cancel) Type() MsgType { return TypeCancel }

func (m *Cancel) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	return b, nil
}

func (m *Cancel) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type CancelAck struct{ RequestID uint64 }

func (CancelAck) Type() MsgType { return TypeCancelAck }

func (m *CancelAck) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "RequestID")
	b = msgp.AppendUint64(b, m.RequestID)
	return b, nil
}

func (m *CancelAck) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type LogEvent struct {
	Level   LogLevel
	Message string
	Fields  map[string]string
}

func (LogEvent) Type() MsgType { return TypeLogEvent }

func (m *LogEvent) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "Level")
	b = msgp.AppendUint8(b, uint8(m.Level))
	b = msgp.AppendString(b, "Message")
	b = msgp.AppendString(b, m.Message)
	b = msgp.AppendString(b, "Fields")
	b = msgp.AppendMapHeader(b, uint32(len(m.Fields)))
	for k, v := range m.Fields {
		b = msgp.AppendString(b, k)
		b = msgp.AppendString(b, v)
	}
	return b, nil
}

func (m *LogEvent) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "Level":
			var l uint8
			l, bts, err = msgp.ReadUint8Bytes(bts)
			m.Level = LogLevel(l)
		case "Message":
			m.Message, bts, err = msgp.ReadStringBytes(bts)
		case "Fields":
			var n uint32
			n, bts, err = msgp.ReadMapHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			m.Fields = make(map[string]string, n)
			for j := uint32(0); j < n; j++ {
				var k, v string
				k, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
				v, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
				m.Fields[k] = v
			}
			continue
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

type HealthCheck struct{}

func (HealthCheck) Type() MsgType                       { return TypeHealthCheck }
func (HealthCheck) MarshalMsg(b []byte) ([]byte, error) { return msgp.AppendMapHeader(b, 0), nil }
func (*HealthCheck) UnmarshalMsg(bts []byte) ([]byte, error) {
	return skipEmptyMap(bts)
}

type HealthStatus struct {
	UptimeMS       uint64
	ActiveRequests uint32
	TotalRequests  uint64
}

func (HealthStatus) Type() MsgType { return TypeHealthStatus }

func (m *HealthStatus) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "UptimeMS")
	b = msgp.AppendUint64(b, m.UptimeMS)
	b = msgp.AppendString(b, "ActiveRequests")
	b = msgp.AppendUint32(b, m.ActiveRequests)
	b = msgp.AppendString(b, "TotalRequests")
	b = msgp.AppendUint64(b, m.TotalRequests)
	return b, nil
}

func (m *HealthStatus) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "UptimeMS":
			m.UptimeMS, bts, err = msgp.ReadUint64Bytes(bts)
		case "ActiveRequests":
			m.ActiveRequests, bts, err = msgp.ReadUint32Bytes(bts)
		case "TotalRequests":
			m.TotalRequests, bts, err = msgp.ReadUint64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
