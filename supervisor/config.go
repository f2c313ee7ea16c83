package supervisor

import "time"

// Config parameterizes one Supervisor instance. Zero-valued fields are
// replaced by their documented default in New.
type Config struct {
	// SocketPath is the absolute path of the unix socket the supervisor
	// listens on and the worker is told to dial via the environment
	// (spec.md §6.4, env var SocketEnvVar).
	SocketPath string

	// WorkerPath is the worker binary to spawn, and WorkerArgs its
	// arguments.
	WorkerPath string
	WorkerArgs []string

	// PoolSize is the number of connections the router pool expects;
	// the supervisor hands off exactly this many handshaked
	// connections per worker generation (spec.md §4.5 "N slots").
	PoolSize int

	// MaxFrameSize is offered in this side's Handshake.
	MaxFrameSize uint32

	// RestartBackoff is the schedule indexed by restart count, last
	// value repeated once exhausted (spec.md §4.3).
	RestartBackoff []time.Duration

	// MaxRestarts is the number of consecutive restarts attempted; the
	// failure that follows the last of them trips the circuit breaker.
	MaxRestarts int

	// CircuitBreakerCooldown is how long CircuitBreaker is held before
	// a fresh spawn is attempted.
	CircuitBreakerCooldown time.Duration

	// HandshakeTimeout bounds how long the supervisor waits for a
	// worker connection and completed handshake after spawn.
	HandshakeTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown before escalating to
	// SIGKILL.
	ShutdownTimeout time.Duration

	// HealthCheckInterval/HealthCheckTimeout govern the periodic
	// HealthCheck/HealthStatus exchange (spec.md §4.3).
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// SocketEnvVar is the environment variable the worker reads to find
// the supervisor's listening socket (spec.md §6.4).
const SocketEnvVar = "SPLICE_SOCKET"

func (c *Config) setDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 16 << 20
	}
	if len(c.RestartBackoff) == 0 {
		c.RestartBackoff = []time.Duration{0, 100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second, 5 * time.Second}
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = 10
	}
	if c.CircuitBreakerCooldown <= 0 {
		c.CircuitBreakerCooldown = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 5 * time.Second
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = 2 * time.Second
	}
}

// backoffFor returns the sleep duration before restart attempt n
// (0-indexed), clamping at the schedule's last slot.
func (c *Config) backoffFor(n int) time.Duration {
	if n >= len(c.RestartBackoff) {
		n = len(c.RestartBackoff) - 1
	}
	return c.RestartBackoff[n]
}
