// Package main is the supervisor daemon: it spawns and supervises a
// worker process, serves invocations over the router's connection
// pool, watches the worker binary for hot reload, and exposes metrics
// and a health endpoint (spec.md §2 Supervisor, §6.3 Health).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splicehq/splice/authctx"
	"github.com/splicehq/splice/cmn/cos"
	"github.com/splicehq/splice/cmn/nlog"
	"github.com/splicehq/splice/hk"
	"github.com/splicehq/splice/metrics"
	"github.com/splicehq/splice/proto"
	"github.com/splicehq/splice/reload"
	"github.com/splicehq/splice/router"
	"github.com/splicehq/splice/supervisor"
)

var (
	build     string
	buildtime string

	socketPath   string
	workerPath   string
	workerArgs   string
	poolSize     int
	httpAddr     string
	watchBinary  bool
	pollInterval time.Duration
)

func init() {
	flag.StringVar(&socketPath, "socket", "/tmp/splice.sock", "unix domain socket the worker connects back on")
	flag.StringVar(&workerPath, "worker", "", "path to the worker process executable (required)")
	flag.StringVar(&workerArgs, "worker-args", "", "space-separated arguments passed to the worker process")
	flag.IntVar(&poolSize, "pool-size", 4, "number of persistent data connections the router maintains")
	flag.StringVar(&httpAddr, "http", ":9090", "address to serve /metrics and /healthz on")
	flag.BoolVar(&watchBinary, "watch", false, "hot-reload the worker when its binary's content hash changes")
	flag.DurationVar(&pollInterval, "watch-interval", 5*time.Second, "how often to check the worker binary's hash when -watch is set")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		os.Exit(0)
	}
	flag.Parse()
	if workerPath == "" {
		cos.ExitLogf("Missing -worker: path to the worker process executable")
	}

	cfg := supervisor.Config{
		SocketPath:   socketPath,
		WorkerPath:   workerPath,
		WorkerArgs:   strings.Fields(workerArgs),
		PoolSize:     poolSize,
		MaxFrameSize: 16 << 20,
	}
	sup := supervisor.New(cfg)
	sup.LogSink = func(ev proto.LogEvent) {
		switch ev.Level {
		case proto.LogWarn:
			nlog.Warningf("worker[%s]: %s", ev.Level, ev.Message)
		case proto.LogErr:
			nlog.Errorf("worker[%s]: %s", ev.Level, ev.Message)
		default:
			nlog.Infof("worker[%s]: %s", ev.Level, ev.Message)
		}
	}
	go hk.DefaultHK.Run()
	if err := sup.Start(); err != nil {
		cos.ExitLogf("Failed to start supervisor: %v", err)
	}

	rt := router.New(sup, router.Config{PoolSize: poolSize})
	rt.Start()

	authBuilder := authctx.NewBuilder("Authorization")
	metricsReg := metrics.NewRegistry("supervisor")

	if watchBinary {
		rm := reload.NewManager(workerPath, pollInterval, 5*time.Second, rt, sup)
		rm.Start()
		defer rm.Stop()
	}

	srv := startHTTP(httpAddr, sup, rt, metricsReg, authBuilder)
	defer srv.Close()

	nlog.Infof("splice-supervisord listening on %s, http on %s", socketPath, httpAddr)
	installSignalHandler(sup, rt)
}

func startHTTP(addr string, sup *supervisor.Supervisor, rt *router.Router, m *metrics.Registry, _ *authctx.Builder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := sup.State()
		w.Header().Set("Content-Type", "application/json")
		if st != supervisor.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"state":   st.String(),
			"pending": rt.PendingCount(),
		})
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nlog.Errorf("http server: %v", err)
		}
	}()
	return srv
}

func installSignalHandler(sup *supervisor.Supervisor, rt *router.Router) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	nlog.Infof("shutting down")
	rt.StopAccepting(true)
	waitDrain(rt, 5*time.Second)
	rt.Stop()
	if err := sup.Shutdown(); err != nil {
		nlog.Warningf("shutdown: %v", err)
	}
	sup.Stop()
	nlog.Flush()
}

func waitDrain(rt *router.Router, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for rt.PendingCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}

func printVer() {
	fmt.Printf("splice-supervisord, build %s %s\n", build, buildtime)
}
