// Package cos provides common low-level types and utilities shared
// across the runtime's packages.
package cos

import (
	"errors"
	"fmt"
	"os"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/splicehq/splice/cmn/debug"
	"github.com/splicehq/splice/cmn/nlog"
)

type (
	// ErrNotFound is a generic "<what> not found" error. An export the
	// worker never registered is reported by workerrt.FunctionNotFound,
	// not by this type.
	ErrNotFound struct {
		what string
	}

	// Errs accumulates up to a small bound of distinct errors observed
	// over time (e.g. per reload attempt) without growing unbounded
	// under a tight failure loop.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " not found" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) Error() (s string) {
	if e.Cnt() == 0 {
		return ""
	}
	e.mu.Lock()
	err := errors.Join(e.errs...)
	cnt := len(e.errs)
	e.mu.Unlock()
	if cnt > 1 {
		return fmt.Sprintf("%v (and %d more)", err, cnt-1)
	}
	return err.Error()
}

//
// retriable connection errors. The router does not call these; it
// retries and refills a slot on any write or read failure.
//

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }

func IsRetriableConnErr(err error) bool {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err) || errors.Is(err, os.ErrClosed)
}

//
// abnormal termination — process-edge only, never called from library code
//

const fatalPrefix = "FATAL ERROR: "

// ExitLogf logs the formatted message at error level, flushes, and exits
// the process with status 1. Used only in cmd/*/main.go.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.Errorln(msg)
	nlog.Flush()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
