package proto

import "github.com/tinylib/msgp/msgp"

// Header is one name/value pair carried in a RequestContext, in onward
// order (spec.md §3 Request context: "an ordered sequence of header
// name/value pairs").
type Header struct {
	Name  string
	Value string
}

// AuthRecord is an optional, purely-informational authentication record
// threaded through an invocation. The core never interprets it (spec.md
// §1 Non-goals: no authZ/authN in the core); splice/authctx is the
// collaborator that may populate one at the boundary.
type AuthRecord struct {
	UserID string
	Roles  []string
}

// RequestContext is carried inside Invoke, passed through to the worker
// verbatim.
type RequestContext struct {
	TraceID string
	SpanID  string
	Headers []Header
	Auth    *AuthRecord // nil when absent
}

func (h *Header) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "Name")
	b = msgp.AppendString(b, h.Name)
	b = msgp.AppendString(b, "Value")
	b = msgp.AppendString(b, h.Value)
	return b, nil
}

func (h *Header) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "Name":
			h.Name, bts, err = msgp.ReadStringBytes(bts)
		case "Value":
			h.Value, bts, err = msgp.ReadStringBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func (a *AuthRecord) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "UserID")
	b = msgp.AppendString(b, a.UserID)
	b = msgp.AppendString(b, "Roles")
	b = msgp.AppendArrayHeader(b, uint32(len(a.Roles)))
	for _, r := range a.Roles {
		b = msgp.AppendString(b, r)
	}
	return b, nil
}

func (a *AuthRecord) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "UserID":
			a.UserID, bts, err = msgp.ReadStringBytes(bts)
		case "Roles":
			var n uint32
			n, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			a.Roles = make([]string, n)
			for j := uint32(0); j < n; j++ {
				a.Roles[j], bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
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

func (c *RequestContext) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	hasAuth := c.Auth != nil
	n := uint32(3)
	if hasAuth {
		n++
	}
	b = msgp.AppendMapHeader(b, n)

	b = msgp.AppendString(b, "TraceID")
	b = msgp.AppendString(b, c.TraceID)
	b = msgp.AppendString(b, "SpanID")
	b = msgp.AppendString(b, c.SpanID)

	b = msgp.AppendString(b, "Headers")
	b = msgp.AppendArrayHeader(b, uint32(len(c.Headers)))
	for i := range c.Headers {
		b, err = c.Headers[i].MarshalMsg(b)
		if err != nil {
			return b, err
		}
	}

	if hasAuth {
		b = msgp.AppendString(b, "Auth")
		b, err = c.Auth.MarshalMsg(b)
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

func (c *RequestContext) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "TraceID":
			c.TraceID, bts, err = msgp.ReadStringBytes(bts)
		case "SpanID":
			c.SpanID, bts, err = msgp.ReadStringBytes(bts)
		case "Headers":
			var n uint32
			n, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			c.Headers = make([]Header, n)
			for j := uint32(0); j < n; j++ {
				bts, err = c.Headers[j].UnmarshalMsg(bts)
				if err != nil {
					return bts, err
				}
			}
			continue
		case "Auth":
			c.Auth = new(AuthRecord)
			bts, err = c.Auth.UnmarshalMsg(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
