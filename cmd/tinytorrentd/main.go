package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/config"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/eventbus"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/handover"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/rpc"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/rpcserver"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/store"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/watchdir"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/workerpool"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownGrace bounds how long the server waits for in-flight requests to
// drain and the engine waits for resume-data writes before the process
// exits regardless.
const shutdownGrace = 3 * time.Second

// shutdownRequested is signaled once by the dispatcher's session-close
// hook; created before that hook is registered so triggerShutdown never
// races main's select on a nil channel.
var shutdownRequested = make(chan struct{})

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "directory for the sqlite database, resume data and connection.json")
	addr := flag.String("addr", "127.0.0.1:0", "loopback address to bind the control surface to (port 0 picks a free port)")
	runSeconds := flag.Int("run-seconds", 0, "exit automatically after N seconds (0 runs until signaled, used by integration tests)")
	flag.Parse()

	log.Printf("Starting tinytorrentd v%s...", Version)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("creating data dir %s: %v", *dataDir, err)
	}

	if err := handover.Remove(*dataDir); err != nil {
		log.Printf("warning: could not remove stale connection.json: %v", err)
	}

	db, err := store.Open(filepath.Join(*dataDir, "tinytorrent.db"))
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	bus := eventbus.New()

	settings := model.DefaultSettings()
	settings.DownloadDir = filepath.Join(*dataDir, "downloads")
	settings.IncompleteDir = filepath.Join(*dataDir, "incomplete")
	cfg := config.NewService(settings, db, bus)
	if err := cfg.LoadFromRepository(); err != nil {
		log.Printf("warning: loading persisted settings: %v", err)
	}
	if err := os.MkdirAll(cfg.Get().DownloadDir, 0o755); err != nil {
		log.Fatalf("creating download dir: %v", err)
	}

	pool := workerpool.New()
	defer pool.Close()

	queue := engine.NewQueue(64)
	eng := engine.New(queue, db, cfg, bus, pool)

	var engineStarted atomicBool
	caps := rpc.Capabilities{
		ServerVersion: Version,
		RPCVersion:    17,
		WSPath:        "/ws",
		Features:      []string{"tt-get-capabilities", "tt-history", "tt-labels"},
	}
	dispatcher := rpc.New(queue, eng, cfg, db, caps, engineStarted.Load)

	token, err := handover.NewToken()
	if err != nil {
		log.Fatalf("generating auth token: %v", err)
	}

	srv, err := rpcserver.New(dispatcher, rpcserver.Config{
		Addr:      *addr,
		Token:     token,
		Snapshots: eng,
	})
	if err != nil {
		log.Fatalf("starting control surface: %v", err)
	}
	eng.OnPublish(srv.OnSnapshot)
	eng.OnEvent(srv.BroadcastEvent)
	dispatcher.OnEvent(srv.BroadcastEvent)

	dispatcher.OnClose(func() {
		log.Println("session-close requested over RPC")
		go triggerShutdown()
	})

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(rootCtx); err != nil {
		log.Fatalf("starting engine: %v", err)
	}
	engineStarted.Store(true)
	go eng.Run(rootCtx)

	if wd := cfg.Get().WatchDir; cfg.Get().WatchEnabled && wd != "" {
		if err := os.MkdirAll(wd, 0o755); err != nil {
			log.Printf("warning: could not create watch dir %s: %v", wd, err)
		} else if w, err := watchdir.New(wd, func(path string) {
			enqueueWatchedTorrent(queue, cfg, path)
		}); err != nil {
			log.Printf("warning: could not start watch-dir: %v", err)
		} else if err := w.Start(); err != nil {
			log.Printf("warning: could not watch %s: %v", wd, err)
		} else {
			defer w.Stop()
		}
	}

	srv.Start()
	_, port, _ := splitPort(srv.Addr())
	log.Printf("control surface listening on %s", srv.Addr())

	if err := handover.Write(*dataDir, handover.Connection{
		Port:  port,
		Token: token,
		PID:   os.Getpid(),
	}); err != nil {
		log.Fatalf("publishing handover file: %v", err)
	}
	defer handover.Remove(*dataDir)

	log.Println("tinytorrentd is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("shutdown signal received")
	case <-shutdownRequested:
		log.Println("shutdown requested via session-close")
	case <-runSecondsTimer(*runSeconds):
		log.Printf("run-seconds elapsed, shutting down")
	}

	srv.BroadcastEvent("app-shutdown", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if err := srv.Stop(shutdownGrace); err != nil {
		log.Printf("error stopping control surface: %v", err)
	}

	eng.Shutdown(shutdownCtx)
	cancel()

	if err := cfg.PersistIfDirty(); err != nil {
		log.Printf("error persisting settings on shutdown: %v", err)
	}

	log.Println("tinytorrentd stopped")
}

// enqueueWatchedTorrent submits a torrent-add command for a file the
// watch-dir watcher found settled; it fires and forgets, logging failures
// rather than blocking the watcher's settle loop on the Engine.
func enqueueWatchedTorrent(queue *engine.Queue, cfg *config.Service, path string) {
	args := model.AddTorrentArgs{LocalPath: path, SavePath: cfg.Get().DownloadDir}
	if _, appErr := queue.Enqueue(context.Background(), model.CmdAddTorrent, args); appErr != nil {
		log.Printf("watch-dir: could not enqueue %s: %v", path, appErr)
	}
}

func triggerShutdown() {
	defer func() { recover() }() // closing an already-closed channel during a tight shutdown race is harmless to ignore
	close(shutdownRequested)
}

func runSecondsTimer(n int) <-chan time.Time {
	if n <= 0 {
		return nil
	}
	return time.After(time.Duration(n) * time.Second)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tinytorrent")
	}
	return "./tinytorrent-data"
}

func splitPort(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.Atoi(p)
	return h, n, err
}

type atomicBool struct {
	v int32
}

func (b *atomicBool) Store(val bool) {
	n := int32(0)
	if val {
		n = 1
	}
	atomic.StoreInt32(&b.v, n)
}

func (b *atomicBool) Load() bool {
	return atomic.LoadInt32(&b.v) == 1
}
