package router

import (
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/splicehq/splice/proto"
)

// pendingChannelCapacity bounds how many frames a single request's
// channel can hold before deliver blocks. It matches workerrt's
// default stream credit window (workerrt.Config.DefaultWindow) so a
// compliant worker — which never has more than window chunks
// unacked in flight — can never actually fill the buffer; the
// capacity exists to absorb bursts, not to cap real throughput.
const pendingChannelCapacity = 64

// pendingTable maps in-flight request ids to their one-shot delivery
// channel (spec.md §3 "Pending request table"). It is sharded by an
// xxhash of the request id rather than guarded by one global lock, so
// concurrent invocations on different ids rarely contend (spec.md §9
// "arena+index" design note).
type pendingTable struct {
	shards []pendingShard
}

type pendingShard struct {
	mu sync.Mutex
	m  map[uint64]chan proto.Message
}

func newPendingTable(shardCount int) *pendingTable {
	if shardCount <= 0 {
		shardCount = 16
	}
	t := &pendingTable{shards: make([]pendingShard, shardCount)}
	for i := range t.shards {
		t.shards[i].m = make(map[uint64]chan proto.Message)
	}
	return t
}

func (t *pendingTable) shardFor(id uint64) *pendingShard {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	h := xxhash.Checksum64S(b[:], 0)
	return &t.shards[h%uint64(len(t.shards))]
}

// insert registers a fresh one-shot channel for id. Panics if id is
// already registered: the router never reuses an id while it is live.
func (t *pendingTable) insert(id uint64) chan proto.Message {
	ch := make(chan proto.Message, pendingChannelCapacity)
	s := t.shardFor(id)
	s.mu.Lock()
	if _, dup := s.m[id]; dup {
		s.mu.Unlock()
		panic("router: pending request id registered twice")
	}
	s.m[id] = ch
	s.mu.Unlock()
	return ch
}

// deliver dispatches msg to id's channel, blocking if the channel is
// momentarily full. Returns false if id is unknown (orphaned frame —
// logged and discarded by caller). A request-scoped frame, once id is
// known, is never silently dropped: the stream credit window (spec.md
// §4.5, workerrt's ack-gated sender) keeps the worker from ever having
// more than pendingChannelCapacity chunks unacked, so this blocks in
// practice only against a misbehaving peer, at which point propagating
// backpressure onto that slot's reader is correct.
func (t *pendingTable) deliver(id uint64, msg proto.Message) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	ch, ok := s.m[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}

// remove removes id from the table. At most one remove per id wins
// (spec.md §3 invariant (c)); later callers observe false.
func (t *pendingTable) remove(id uint64) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	_, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	return ok
}

// len reports the total number of in-flight entries across all shards
// (router.PendingCount, consumed by the reload manager's drain poll).
func (t *pendingTable) len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].mu.Lock()
		n += len(t.shards[i].m)
		t.shards[i].mu.Unlock()
	}
	return n
}
