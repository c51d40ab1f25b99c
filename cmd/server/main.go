package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/multimatch"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
	"github.com/Aricg/TacticalBlocks-sub001/internal/transport/observer"
	"github.com/Aricg/TacticalBlocks-sub001/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		matchesPath = flag.String("matches", "", "path to matches.yaml (default: <configs>/matches.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index (ticks, events, snapshot metadata)")
		loadLatest  = flag.Bool("load_latest_snapshot", true, "resume each match from its latest snapshot if present")

		cmdRate  = flag.Float64("cmd_rate", 20, "commands per second allowed per connection")
		cmdBurst = flag.Int("cmd_burst", 40, "command burst allowed per connection")

		remoteObservers = flag.Bool("remote_observers", false, "allow observer connections from non-loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	store := tuning.NewStore(tune)

	mp := strings.TrimSpace(*matchesPath)
	if mp == "" {
		mp = filepath.Join(*configDir, "matches.yaml")
	}
	mcfg, err := multimatch.Load(mp)
	if err != nil {
		logger.Fatalf("load matches: %v", err)
	}
	rts, err := multimatch.BuildRuntimes(mcfg, store)
	if err != nil {
		logger.Fatalf("build matches: %v", err)
	}
	mgr, err := multimatch.NewManager(mcfg, rts)
	if err != nil {
		logger.Fatalf("match manager: %v", err)
	}

	mirror, err := buildOffsiteMirror(*dataDir, log.New(os.Stdout, "[offsite] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("offsite mirror: %v", err)
	}

	runtimes := map[string]*matchRuntime{}
	for id, rt := range rts {
		mr, err := openMatchRuntime(rt, runtimeOptions{DataDir: *dataDir, DisableDB: *disableDB, LoadLatest: *loadLatest, Mirror: mirror}, logger)
		if err != nil {
			logger.Fatalf("match %s: %v", id, err)
		}
		runtimes[id] = mr
	}

	ctx, cancel := signalContext()
	defer cancel()
	go watchReload(ctx, tp, store, runtimes, logger)

	mux := http.NewServeMux()
	deps := httpDeps{manager: mgr, runtimes: runtimes, mirror: mirror}
	mux.HandleFunc("/healthz", deps.healthz)
	mux.HandleFunc("/metrics", deps.metrics)
	mux.HandleFunc("/v1/matches", deps.matches)
	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, ws.Config{CommandsPerSecond: *cmdRate, Burst: *cmdBurst}, logger).Handler())

	obsSrv := observer.NewServer(mgr, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	obsSrv.AllowRemote = *remoteObservers
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("TB_ENABLE_ADMIN_HTTP", true) {
		mux.HandleFunc("/admin/v1/state", deps.adminState)
	} else {
		logger.Printf("admin endpoints disabled (TB_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, mr := range runtimes {
		mr := mr
		g.Go(func() error {
			mr.runSnapshotWriter(gctx)
			return nil
		})
	}
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error {
		logger.Printf("listening on %s (matches=%v default=%s)", *addr, mgr.MatchIDs(), mgr.DefaultID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server stopped: %v", err)
	}
	// Match loops have returned; flush final snapshots and logs.
	for _, mr := range runtimes {
		mr.Close()
	}
	mirror.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// watchReload reloads tuning.yaml on SIGHUP. Matches pick the new values up
// at their next tick.
func watchReload(ctx context.Context, path string, store *tuning.Store, runtimes map[string]*matchRuntime, logger *log.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			t, err := tuning.Load(path)
			if err != nil {
				logger.Printf("reload tuning: %v (keeping current values)", err)
				continue
			}
			store.Swap(t)
			logger.Printf("tuning reloaded from %s", path)
			for _, mr := range runtimes {
				if mr.idx != nil {
					_ = mr.idx.UpsertTuning(mr.m.Bundle().Name, t)
				}
			}
		}
	}
}
