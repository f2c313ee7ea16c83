package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// childProcess wraps the spawned worker's os/exec handle: Setpgid so a
// supervisor-directed Ctrl-C does not also reach the worker's own
// process group, then explicit signal escalation.
type childProcess struct {
	cmd *exec.Cmd
	pid int
}

func spawnChild(path string, args []string, env []string) (*childProcess, error) {
	cmd := exec.Command(path, args...)
	cmd.Args = append([]string{path}, args...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: spawn %s: %w", path, err)
	}
	return &childProcess{cmd: cmd, pid: cmd.Process.Pid}, nil
}

// signal sends sig to the child's process group.
func (c *childProcess) signal(sig syscall.Signal) error {
	if c == nil || c.cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-c.pid, sig)
	if err == unix.ESRCH {
		return nil
	}
	return err
}

// wait blocks until the child exits and reports its error (nil on
// clean exit).
func (c *childProcess) wait() error {
	return c.cmd.Wait()
}

// waitTimeout waits up to d for the child to exit, reporting whether
// it did.
func (c *childProcess) waitTimeout(d time.Duration) (exited bool, err error) {
	done := make(chan error, 1)
	go func() { done <- c.wait() }()
	select {
	case err = <-done:
		return true, err
	case <-time.After(d):
		return false, nil
	}
}

func (c *childProcess) kill() {
	_ = c.signal(syscall.SIGKILL)
}
