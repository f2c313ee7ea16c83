package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/splicehq/splice/hk"
)

func TestBackoffScheduleClampsAtLastSlot(t *testing.T) {
	cfg := Config{RestartBackoff: []time.Duration{0, 100 * time.Millisecond, 500 * time.Millisecond}}
	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{100, 500 * time.Millisecond},
	}
	for _, c := range cases {
		if got := cfg.backoffFor(c.n); got != c.want {
			t.Errorf("backoffFor(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Starting:       "Starting",
		Ready:          "Ready",
		Draining:       "Draining",
		Failed:         "Failed",
		CircuitBreaker: "CircuitBreaker",
	}
	for st, s := range want {
		if st.String() != s {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), s)
		}
	}
}

func TestCircuitBreakerTripsAfterMaxRestarts(t *testing.T) {
	hk.TestInit()
	go hk.DefaultHK.Run()
	hk.WaitStarted()

	sup := New(Config{
		SocketPath:             filepath.Join(t.TempDir(), "splice.sock"),
		WorkerPath:             "sh",
		WorkerArgs:             []string{"-c", "exit 1"},
		MaxRestarts:            2,
		RestartBackoff:         []time.Duration{0},
		CircuitBreakerCooldown: time.Hour,
		HandshakeTimeout:       50 * time.Millisecond,
	})
	t.Cleanup(sup.Stop)

	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.State() == CircuitBreaker {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("supervisor never entered CircuitBreaker, last state %s", sup.State())
}
