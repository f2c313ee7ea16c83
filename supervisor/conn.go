package supervisor

import (
	"net"

	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/wire"
)

// Conn is one handshaked connection to the worker process: either the
// supervisor's own control connection or one of the router pool's data
// connections (spec.md §4.5 treats both uniformly as "a connection to
// the worker socket").
type Conn struct {
	net.Conn
	Codec        *wire.Codec
	Reader       *wire.FrameReader
	Writer       *wire.FrameWriter
	Capabilities proto.Capability
}

// NewConn wraps an established net.Conn with a Codec sized to
// maxFrameSize, ready for framed reads/writes. Exported so tests and
// the worker runtime can construct one directly without going through
// the supervisor's own handshake accept path.
func NewConn(nc net.Conn, maxFrameSize uint32) *Conn {
	return newConn(nc, maxFrameSize)
}

func newConn(nc net.Conn, maxFrameSize uint32) *Conn {
	codec := wire.NewCodec(maxFrameSize)
	return &Conn{
		Conn:   nc,
		Codec:  codec,
		Reader: wire.NewFrameReader(nc, codec),
		Writer: wire.NewFrameWriter(nc, codec),
	}
}
