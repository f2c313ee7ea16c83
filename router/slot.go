package router

import (
	"sync"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
)

// slot is one pool connection. A mutex serializes its write path and
// metadata; the read path belongs to exactly one reader goroutine per
// generation, which demultiplexes frames into the pending table
// without contending for the slot lock (spec.md §5 "per slot" policy).
type slot struct {
	mu      sync.Mutex
	conn    *supervisor.Conn
	healthy bool
	lastUse time.Time
	gen     int
	errCh   chan struct{}
}

// snapshot is what Invoke needs to use a slot's current connection
// without holding the lock across a blocking write+wait.
type snapshot struct {
	conn  *supervisor.Conn
	errCh chan struct{}
	gen   int
}

// attach installs a fresh connection into the slot, superseding any
// prior generation's reader.
func (s *slot) attach(conn *supervisor.Conn) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.healthy = true
	s.gen++
	s.errCh = make(chan struct{})
	return snapshot{conn: conn, errCh: s.errCh, gen: s.gen}
}

// current returns the slot's live snapshot, or ok=false if no
// connection is attached or it is marked unhealthy.
func (s *slot) current() (snap snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.healthy {
		return snapshot{}, false
	}
	return snapshot{conn: s.conn, errCh: s.errCh, gen: s.gen}, true
}

// markUnhealthy flags the slot's connection as unusable if it is still
// the generation identified by gen (a later attach should not be
// undone by a stale failure report).
func (s *slot) markUnhealthy(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.healthy = false
	}
}

func (s *slot) touch() {
	s.mu.Lock()
	s.lastUse = time.Now()
	s.mu.Unlock()
}

// readerLoop owns a slot's connection exclusively: it decodes frames
// and demultiplexes them into the pending table by request id until
// the connection fails, at which point it marks the slot unhealthy and
// signals errCh so any Invoke waiting on this generation unblocks.
func readerLoop(s *slot, snap snapshot, pending *pendingTable) {
	defer func() {
		s.markUnhealthy(snap.gen)
		close(snap.errCh)
	}()
	for {
		msg, err := snap.conn.Reader.ReadMessage()
		if err != nil {
			return
		}
		id, ok := requestIDOf(msg)
		if !ok {
			if le, isLog := msg.(*proto.LogEvent); isLog {
				switch le.Level {
				case proto.LogWarn:
					nlog.Warningf("worker log: %s", le.Message)
				case proto.LogErr:
					nlog.Errorf("worker log: %s", le.Message)
				default:
					nlog.Infof("worker log: %s", le.Message)
				}
			}
			continue
		}
		if !pending.deliver(id, msg) {
			nlog.Warningf("router: discarding frame for unknown request id %d", id)
		}
	}
}

func requestIDOf(msg proto.Message) (uint64, bool) {
	switch m := msg.(type) {
	case *proto.InvokeResult:
		return m.RequestID, true
	case *proto.InvokeError:
		return m.RequestID, true
	case *proto.StreamStart:
		return m.RequestID, true
	case *proto.StreamChunk:
		return m.RequestID, true
	case *proto.StreamEnd:
		return m.RequestID, true
	case *proto.StreamError:
		return m.RequestID, true
	case *proto.CancelAck:
		return m.RequestID, true
	default:
		return 0, false
	}
}
