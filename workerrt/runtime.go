package workerrt

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/supervisor"
)

// Config parameterizes a Runtime.
type Config struct {
	SocketPath    string
	PoolSize      int
	MaxFrameSize  uint32
	DefaultWindow uint32
	RedialBackoff time.Duration
}

func (c *Config) setDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = os.Getenv(supervisor.SocketEnvVar)
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 16 << 20
	}
	if c.DefaultWindow == 0 {
		c.DefaultWindow = 64
	}
	if c.RedialBackoff <= 0 {
		c.RedialBackoff = 500 * time.Millisecond
	}
}

// Runtime is the worker process's side of the Splice protocol: it
// dials back to the supervisor's socket, completes the handshake, and
// serves invocations against a Registry (spec.md §6.2, §6.4).
type Runtime struct {
	cfg      Config
	registry *Registry

	startedAt      time.Time
	activeRequests activeCounter
	totalRequests  totalCounter

	controlMu sync.Mutex
	control   *supervisor.Conn
}

func New(registry *Registry, cfg Config) *Runtime {
	cfg.setDefaults()
	return &Runtime{cfg: cfg, registry: registry, startedAt: time.Now()}
}

// Run dials the control connection plus PoolSize data connections and
// serves them until ctx is cancelled or a Shutdown frame arrives on
// the control connection.
func (rt *Runtime) Run(ctx context.Context) error {
	if rt.cfg.SocketPath == "" {
		return fmt.Errorf("workerrt: %s is not set", supervisor.SocketEnvVar)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < rt.cfg.PoolSize+1; i++ {
		isControl := i == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.connectLoop(ctx, cancel, isControl)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (rt *Runtime) connectLoop(ctx context.Context, stop context.CancelFunc, isControl bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, err := rt.dialAndHandshake(isControl)
		if err != nil {
			nlog.Warningf("workerrt: connect: %v", err)
			select {
			case <-time.After(rt.cfg.RedialBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if isControl {
			rt.controlMu.Lock()
			rt.control = conn
			rt.controlMu.Unlock()
		}
		shutdown := rt.serve(ctx, conn, isControl)
		conn.Close()
		if shutdown {
			stop()
			return
		}
	}
}

func (rt *Runtime) dialAndHandshake(isControl bool) (*supervisor.Conn, error) {
	nc, err := net.Dial("unix", rt.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn := supervisor.NewConn(nc, rt.cfg.MaxFrameSize)
	nc.SetDeadline(time.Now().Add(10 * time.Second))

	hs := &proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion,
		Role:            proto.RoleWorker,
		Capabilities:    proto.CapStreaming | proto.CapCancellation | proto.CapCompression,
		MaxFrameSize:    rt.cfg.MaxFrameSize,
	}
	if err := conn.Writer.WriteMessage(hs); err != nil {
		nc.Close()
		return nil, fmt.Errorf("write handshake: %w", err)
	}
	msg, err := conn.Reader.ReadMessage()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("read handshake ack: %w", err)
	}
	ack, ok := msg.(*proto.HandshakeAck)
	if !ok {
		nc.Close()
		return nil, fmt.Errorf("expected HandshakeAck, got %T", msg)
	}
	conn.Capabilities = ack.Capabilities
	conn.Codec.SetCompression(ack.Capabilities.Has(proto.CapCompression))

	if isControl {
		req, err := conn.Reader.ReadMessage()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("read list exports request: %w", err)
		}
		if _, ok := req.(*proto.ListExports); !ok {
			nc.Close()
			return nil, fmt.Errorf("expected ListExports, got %T", req)
		}
		result := &proto.ListExportsResult{Exports: rt.registry.Snapshot()}
		if err := conn.Writer.WriteMessage(result); err != nil {
			nc.Close()
			return nil, fmt.Errorf("write list exports result: %w", err)
		}
	}

	nc.SetDeadline(time.Time{})
	return conn, nil
}

// serve dispatches frames on one connection until it fails or a
// Shutdown is received (control connection only); it reports whether a
// Shutdown occurred.
func (rt *Runtime) serve(ctx context.Context, conn *supervisor.Conn, isControl bool) (shutdown bool) {
	tracker := newRequestTracker()
	for {
		msg, err := conn.Reader.ReadMessage()
		if err != nil {
			return false
		}
		switch m := msg.(type) {
		case *proto.Invoke:
			go rt.handleInvoke(ctx, conn, tracker, m)
		case *proto.Cancel:
			if tracker.cancel(m.RequestID) {
				_ = conn.Writer.WriteMessage(&proto.CancelAck{RequestID: m.RequestID})
			}
		case *proto.StreamAck:
			tracker.ack(m.RequestID, m.AckSequence, m.Window)
		case *proto.HealthCheck:
			_ = conn.Writer.WriteMessage(&proto.HealthStatus{
				UptimeMS:       uint64(time.Since(rt.startedAt).Milliseconds()),
				ActiveRequests: uint32(rt.activeRequests.load()),
				TotalRequests:  rt.totalRequests.load(),
			})
		case *proto.Shutdown:
			if !isControl {
				break
			}
			_ = conn.Writer.WriteMessage(&proto.ShutdownAck{})
			return true
		}
	}
}

// Log emits a LogEvent over the control connection, if attached
// (spec.md §6.3 "subscribe to log events").
func (rt *Runtime) Log(level proto.LogLevel, message string, fields map[string]string) {
	rt.controlMu.Lock()
	c := rt.control
	rt.controlMu.Unlock()
	if c == nil {
		return
	}
	_ = c.Writer.WriteMessage(&proto.LogEvent{Level: level, Message: message, Fields: fields})
}
