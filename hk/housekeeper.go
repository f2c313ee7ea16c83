// Package hk provides a mechanism for registering cleanup and
// maintenance callbacks invoked at specified intervals. The supervisor
// (health checks, circuit-breaker cooldown) and the reload manager
// (binary-hash polling) register their periodic work here instead of
// running their own tickers; all registered callbacks run on one
// goroutine.
package hk

import (
	"container/heap"
	"sync"
	"time"
)

// CB is a housekeeping callback. Its return value is the delay until
// its next run; a return of zero or less unregisters it.
type CB func() time.Duration

type item struct {
	name  string
	f     CB
	next  time.Time
	index int
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].next.Before(h[j].next) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *itemHeap) Push(x interface{}) { it := x.(*item); it.index = len(*h); *h = append(*h, it) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// HK runs registered callbacks on their own schedule off a single
// background goroutine.
type HK struct {
	mu       sync.Mutex
	byName   map[string]*item
	heap     itemHeap
	wake     chan struct{}
	stop     chan struct{}
	started  chan struct{}
	startOne sync.Once
	stopOne  sync.Once
}

// DefaultHK is the process-wide housekeeper. Supervisor and reload
// register against it unless a test substitutes its own via TestInit.
var DefaultHK = New()

// New returns a fresh, unstarted housekeeper.
func New() *HK {
	return &HK{
		byName:  make(map[string]*item),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		started: make(chan struct{}),
	}
}

// TestInit replaces DefaultHK with a fresh instance, for test isolation
// (each test gets its own timer heap rather than sharing process state
// across the suite).
func TestInit() {
	DefaultHK = New()
}

// Reg schedules f to run after interval; each later run comes after
// the delay f's previous run returned, until f returns <= 0 or name is
// unregistered. Re-registering an existing name replaces it.
func (h *HK) Reg(name string, f CB, interval time.Duration) {
	h.mu.Lock()
	if old, ok := h.byName[name]; ok {
		h.removeLocked(old)
	}
	it := &item{name: name, f: f, next: time.Now().Add(interval)}
	h.byName[name] = it
	heap.Push(&h.heap, it)
	h.mu.Unlock()
	h.nudge()
}

// Unreg cancels a previously registered callback. A no-op if name is
// not currently registered.
func (h *HK) Unreg(name string) {
	h.mu.Lock()
	if it, ok := h.byName[name]; ok {
		h.removeLocked(it)
	}
	h.mu.Unlock()
	h.nudge()
}

func (h *HK) removeLocked(it *item) {
	delete(h.byName, it.name)
	if it.index >= 0 && it.index < len(h.heap) && h.heap[it.index] == it {
		heap.Remove(&h.heap, it.index)
	}
}

func (h *HK) nudge() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Stop terminates Run. Safe to call more than once.
func (h *HK) Stop() {
	h.stopOne.Do(func() { close(h.stop) })
}

// WaitStarted blocks until Run has entered its loop. Tests call this
// right after spawning Run in a goroutine, so the first Reg in a spec
// race-frees against the scheduler actually being awake.
func (h *HK) WaitStarted() {
	<-h.started
}

// Run is the housekeeper's main loop; it blocks until Stop is called.
func (h *HK) Run() {
	h.startOne.Do(func() { close(h.started) })
	for {
		h.mu.Lock()
		var d time.Duration
		if len(h.heap) == 0 {
			d = time.Hour
		} else {
			d = time.Until(h.heap[0].next)
			if d < 0 {
				d = 0
			}
		}
		h.mu.Unlock()

		t := time.NewTimer(d)
		select {
		case <-h.stop:
			t.Stop()
			return
		case <-h.wake:
			t.Stop()
			continue
		case <-t.C:
		}
		h.fireDue()
	}
}

func (h *HK) fireDue() {
	now := time.Now()
	for {
		h.mu.Lock()
		if len(h.heap) == 0 || h.heap[0].next.After(now) {
			h.mu.Unlock()
			return
		}
		it := heap.Pop(&h.heap).(*item)
		delete(h.byName, it.name)
		h.mu.Unlock()

		next := it.f()
		if next <= 0 {
			continue
		}
		h.mu.Lock()
		it.next = now.Add(next)
		h.byName[it.name] = it
		heap.Push(&h.heap, it)
		h.mu.Unlock()
	}
}

// WaitStarted blocks until DefaultHK.Run has entered its loop.
func WaitStarted() { DefaultHK.WaitStarted() }

// Reg registers against DefaultHK.
func Reg(name string, f CB, interval time.Duration) { DefaultHK.Reg(name, f, interval) }

// Unreg unregisters from DefaultHK.
func Unreg(name string) { DefaultHK.Unreg(name) }
