// Package main is a reference worker process: it registers a handful
// of exported functions exercising the scenarios in spec.md §8 (a
// synchronous success, a user-rejected business rule, an unregistered
// function, and a cancellable long-running call) plus one streaming
// export, then serves them via workerrt.Runtime.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/workerrt"
)

var poolSize int

func init() {
	flag.IntVar(&poolSize, "pool-size", 4, "number of data connections to dial back to the supervisor (must match its -pool-size)")
}

func main() {
	flag.Parse()

	reg := workerrt.NewRegistry()
	reg.Register(workerrt.Export{Name: "add", Handler: addHandler})
	reg.Register(workerrt.Export{Name: "divide", Handler: divideHandler})
	reg.Register(workerrt.Export{Name: "sleep", Handler: sleepHandler})
	reg.Register(workerrt.Export{Name: "count_up", IsStreaming: true, StreamHandler: countUpHandler})

	rt := workerrt.New(reg, workerrt.Config{PoolSize: poolSize})

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		nlog.Errorf("worker exited: %v", err)
		os.Exit(1)
	}
}

type addParams struct{ A, B int }

func addHandler(_ context.Context, params []byte) ([]byte, *workerrt.Error) {
	var p addParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, workerrt.UserErrorf(1000, "invalid params: %v", err)
	}
	out, _ := json.Marshal(p.A + p.B)
	return out, nil
}

func divideHandler(_ context.Context, params []byte) ([]byte, *workerrt.Error) {
	var p addParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, workerrt.UserErrorf(1000, "invalid params: %v", err)
	}
	if p.B == 0 {
		return nil, workerrt.UserErrorf(2000, "division by zero")
	}
	out, _ := json.Marshal(p.A / p.B)
	return out, nil
}

func sleepHandler(ctx context.Context, params []byte) ([]byte, *workerrt.Error) {
	var p struct{ Ms int }
	_ = json.Unmarshal(params, &p)
	select {
	case <-time.After(time.Duration(p.Ms) * time.Millisecond):
		out, _ := json.Marshal(fmt.Sprintf("slept %dms", p.Ms))
		return out, nil
	case <-ctx.Done():
		return nil, workerrt.UserErrorf(2002, "cancelled")
	}
}

func countUpHandler(ctx context.Context, _ []byte) (<-chan []byte, <-chan *workerrt.Error) {
	out := make(chan []byte)
	errc := make(chan *workerrt.Error, 1)
	go func() {
		defer close(out)
		for i := 1; i <= 10; i++ {
			data, _ := json.Marshal(i)
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}
