// Package supervisor owns the worker child process's lifecycle: spawn,
// handshake, restart with backoff, circuit breaking, health checks, and
// graceful drain-shutdown (spec.md §4.3).
package supervisor

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/hk"
	"github.com/splicehq/splice/proto"
)

var (
	// ErrCircuitBreakerOpen is returned by Start/restart attempts while
	// the breaker is tripped (spec.md §4.3, error code Unavailable).
	ErrCircuitBreakerOpen = errors.New("supervisor: circuit breaker open")
)

// LogSink receives LogEvent frames forwarded from the worker
// (spec.md §6.3 "subscribe to log events"; SPEC_FULL.md §C).
type LogSink func(proto.LogEvent)

// Supervisor owns exactly one worker process generation at a time.
type Supervisor struct {
	cfg Config

	mu       sync.RWMutex
	state    State
	restarts int
	cbUntil  time.Time
	child    *childProcess
	startAt  time.Time
	serverID [16]byte
	caps     proto.Capability
	exports  []proto.ExportMetadata

	listener net.Listener
	poolCh   chan *Conn
	stopCh   chan struct{}
	stopOnce sync.Once

	control  *Conn
	healthCh chan *proto.HealthStatus

	LogSink LogSink
}

// New constructs a Supervisor. Call Start to spawn the first worker
// generation.
func New(cfg Config) *Supervisor {
	cfg.setDefaults()
	return &Supervisor{
		cfg:      cfg,
		state:    Starting,
		poolCh:   make(chan *Conn, cfg.PoolSize),
		stopCh:   make(chan struct{}),
		healthCh: make(chan *proto.HealthStatus, 1),
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		nlog.Infof("supervisor: %s -> %s", prev, st)
	}
}

// Exports returns the cached export snapshot from the worker's last
// ListExportsResult (spec.md §3 "Export metadata").
func (s *Supervisor) Exports() []proto.ExportMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]proto.ExportMetadata(nil), s.exports...)
}

// Pool yields handshaked connections as they arrive, up to PoolSize
// per worker generation; the router consumes this to fill pool slots.
func (s *Supervisor) Pool() <-chan *Conn { return s.poolCh }

// Start binds the listening socket and spawns the first worker
// generation. It returns once the listener is bound; readiness is
// asynchronous and observed via State()/Pool().
func (s *Supervisor) Start() error {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("supervisor: clear stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("supervisor: listen %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = ln

	go s.acceptLoop()
	if err := s.spawnGeneration(); err != nil {
		return err
	}
	hk.Reg("supervisor.healthcheck", s.healthCheckOnce, s.cfg.HealthCheckInterval)
	return nil
}

// Stop tears down the listener, kills the worker, and unregisters
// housekeeping. Safe to call once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		hk.Unreg("supervisor.healthcheck")
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		child := s.child
		s.mu.Unlock()
		if child != nil {
			child.kill()
		}
		os.Remove(s.cfg.SocketPath)
	})
}

func (s *Supervisor) acceptLoop() {
	first := true
	var lastChild *childProcess
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				nlog.Warningf("supervisor: accept: %v", err)
				return
			}
		}
		s.mu.RLock()
		child := s.child
		s.mu.RUnlock()
		isControl := first || child != lastChild
		first = false
		lastChild = child
		go s.onAccept(nc, isControl)
	}
}

func (s *Supervisor) onAccept(nc net.Conn, isControl bool) {
	conn, err := s.handshake(nc, isControl)
	if err != nil {
		nlog.Warningf("supervisor: handshake failed: %v", err)
		nc.Close()
		if isControl {
			s.onWorkerFailure(err)
		}
		return
	}
	if isControl {
		s.mu.Lock()
		s.control = conn
		s.mu.Unlock()
		s.onHandshakeSuccess()
		s.setState(Ready)
		go s.logEventLoop(conn)
		// The control connection is read exclusively by logEventLoop; it
		// must never also reach the router's pool, or two goroutines end
		// up calling ReadMessage on the same FrameReader.
		return
	}
	select {
	case s.poolCh <- conn:
	case <-s.stopCh:
		conn.Close()
	}
}

// handshake runs the supervisor side of spec.md §6.2 against one
// accepted connection. When fetchExports is true (the control
// connection, i.e. the first accepted per generation) it additionally
// issues ListExports and caches the result.
func (s *Supervisor) handshake(nc net.Conn, fetchExports bool) (*Conn, error) {
	nc.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))

	conn := newConn(nc, s.cfg.MaxFrameSize)
	msg, err := conn.Reader.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	hs, ok := msg.(*proto.Handshake)
	if !ok {
		return nil, fmt.Errorf("expected Handshake, got %T", msg)
	}
	if hs.ProtocolVersion != proto.ProtocolVersion {
		return nil, fmt.Errorf("protocol version mismatch: peer=%#x local=%#x", hs.ProtocolVersion, proto.ProtocolVersion)
	}
	if hs.Role != proto.RoleWorker {
		return nil, fmt.Errorf("expected worker handshake, got role %s", hs.Role)
	}

	s.mu.Lock()
	if s.serverID == ([16]byte{}) {
		_, _ = rand.Read(s.serverID[:])
	}
	effective := hs.Capabilities & s.offeredCapabilities()
	s.caps = effective
	serverID := s.serverID
	exportCount := uint32(len(s.exports))
	s.mu.Unlock()

	if dropped := hs.Capabilities &^ effective; dropped != 0 {
		nlog.Warningf("supervisor: worker requested capabilities %#x not offered by supervisor, dropping to %#x", dropped, effective)
	}

	conn.Capabilities = effective
	conn.Codec.SetCompression(effective.Has(proto.CapCompression))

	ack := &proto.HandshakeAck{
		ProtocolVersion: proto.ProtocolVersion,
		Capabilities:    effective,
		ServerID:        serverID,
		ExportCount:     exportCount,
	}
	if err := conn.Writer.WriteMessage(ack); err != nil {
		return nil, fmt.Errorf("write handshake ack: %w", err)
	}

	if fetchExports {
		if err := conn.Writer.WriteMessage(&proto.ListExports{}); err != nil {
			return nil, fmt.Errorf("write list exports: %w", err)
		}
		reply, err := conn.Reader.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read list exports result: %w", err)
		}
		ler, ok := reply.(*proto.ListExportsResult)
		if !ok {
			return nil, fmt.Errorf("expected ListExportsResult, got %T", reply)
		}
		s.mu.Lock()
		s.exports = ler.Exports
		s.mu.Unlock()
	}

	nc.SetDeadline(time.Time{})
	return conn, nil
}

func (s *Supervisor) offeredCapabilities() proto.Capability {
	return proto.CapStreaming | proto.CapCancellation | proto.CapCompression
}

func (s *Supervisor) logEventLoop(conn *Conn) {
	for {
		msg, err := conn.Reader.ReadMessage()
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *proto.LogEvent:
			if s.LogSink != nil {
				s.LogSink(*m)
			}
		case *proto.HealthStatus:
			select {
			case s.healthCh <- m:
			default:
			}
		}
	}
}

// healthCheckOnce is registered with hk and fires on
// HealthCheckInterval: it sends HealthCheck over the control
// connection and expects HealthStatus within HealthCheckTimeout. A
// missed reply is treated as worker failure (spec.md §4.3).
func (s *Supervisor) healthCheckOnce() time.Duration {
	if s.State() != Ready {
		return s.cfg.HealthCheckInterval
	}
	s.mu.RLock()
	control := s.control
	s.mu.RUnlock()
	if control == nil {
		return s.cfg.HealthCheckInterval
	}
	if err := control.Writer.WriteMessage(&proto.HealthCheck{}); err != nil {
		s.onWorkerFailure(fmt.Errorf("health check write: %w", err))
		return s.cfg.HealthCheckInterval
	}
	select {
	case <-s.healthCh:
	case <-time.After(s.cfg.HealthCheckTimeout):
		s.onWorkerFailure(errors.New("health check timed out"))
	case <-s.stopCh:
	}
	return s.cfg.HealthCheckInterval
}

func (s *Supervisor) spawnGeneration() error {
	s.mu.RLock()
	cbUntil := s.cbUntil
	s.mu.RUnlock()
	if !cbUntil.IsZero() && time.Now().Before(cbUntil) {
		s.setState(CircuitBreaker)
		return ErrCircuitBreakerOpen
	}

	s.setState(Starting)
	env := append(os.Environ(), SocketEnvVar+"="+s.cfg.SocketPath)
	child, err := spawnChild(s.cfg.WorkerPath, s.cfg.WorkerArgs, env)
	if err != nil {
		return s.onSpawnFailure(err)
	}

	s.mu.Lock()
	s.child = child
	s.startAt = time.Now()
	s.mu.Unlock()

	go s.watchChild(child)
	return nil
}

func (s *Supervisor) watchChild(child *childProcess) {
	err := child.wait()
	s.mu.RLock()
	current := s.child
	s.mu.RUnlock()
	if current != child {
		return // superseded by a newer generation
	}
	s.onWorkerFailure(err)
}

// onWorkerFailure transitions to Failed, applies restart backoff, and
// either respawns or trips the circuit breaker (spec.md §4.3).
func (s *Supervisor) onWorkerFailure(cause error) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.setState(Failed)
	if cause != nil {
		nlog.Warningf("supervisor: worker failure: %v", cause)
	}

	s.mu.Lock()
	s.restarts++
	n := s.restarts
	s.mu.Unlock()

	if n > s.cfg.MaxRestarts {
		s.mu.Lock()
		s.cbUntil = time.Now().Add(s.cfg.CircuitBreakerCooldown)
		s.mu.Unlock()
		s.setState(CircuitBreaker)
		hk.Reg("supervisor.breaker-reset", s.breakerCooldownDone, s.cfg.CircuitBreakerCooldown)
		return
	}

	delay := s.cfg.backoffFor(n - 1)
	time.AfterFunc(delay, func() {
		select {
		case <-s.stopCh:
			return
		default:
		}
		if err := s.spawnGeneration(); err != nil {
			nlog.Warningf("supervisor: restart attempt failed: %v", err)
		}
	})
}

func (s *Supervisor) onSpawnFailure(err error) error {
	s.setState(Failed)
	return fmt.Errorf("supervisor: spawn failed: %w", err)
}

func (s *Supervisor) breakerCooldownDone() time.Duration {
	select {
	case <-s.stopCh:
		return 0
	default:
	}
	if err := s.spawnGeneration(); err != nil {
		nlog.Warningf("supervisor: post-cooldown spawn failed: %v", err)
	}
	return 0
}

// onHandshakeSuccess resets the restart counter to zero, clearing the
// circuit breaker (spec.md §4.3, invariant 8).
func (s *Supervisor) onHandshakeSuccess() {
	s.mu.Lock()
	s.restarts = 0
	s.cbUntil = time.Time{}
	s.mu.Unlock()
}

// Shutdown performs a graceful drain-shutdown of the current worker
// generation: Shutdown message, SIGTERM, bounded wait, SIGKILL
// escalation (spec.md §4.3). Satisfies reload.Restarter.
func (s *Supervisor) Shutdown() error {
	s.setState(Draining)

	s.mu.RLock()
	control := s.control
	child := s.child
	s.mu.RUnlock()
	if control != nil {
		_ = control.Writer.WriteMessage(&proto.Shutdown{})
	}

	if child == nil {
		return nil
	}
	if err := child.signal(syscall.SIGTERM); err != nil {
		nlog.Warningf("supervisor: SIGTERM: %v", err)
	}
	exited, _ := child.waitTimeout(s.cfg.ShutdownTimeout)
	if !exited {
		nlog.Warningf("supervisor: shutdown timeout, escalating to SIGKILL")
		child.kill()
		_, _ = child.waitTimeout(s.cfg.ShutdownTimeout)
	}

	s.mu.Lock()
	s.control = nil
	s.mu.Unlock()
	return nil
}

// Respawn starts a fresh worker generation. Satisfies reload.Restarter.
func (s *Supervisor) Respawn() error { return s.spawnGeneration() }

// WaitReady blocks until the supervisor reaches Ready or timeout
// elapses, reporting which occurred first. Satisfies reload.Restarter.
func (s *Supervisor) WaitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == Ready {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return s.State() == Ready
}
