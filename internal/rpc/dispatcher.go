package rpc

import (
	"context"
	"time"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/config"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// commandWait bounds how long a dispatcher call waits for the Engine loop to
// resolve a command it enqueued. The loop tick is short, so this is
// generous headroom, not a steady-state expectation.
const commandWait = 10 * time.Second

// SnapshotSource is the read side of the Engine the dispatcher needs for
// torrent-get/session-get/session-stats.
type SnapshotSource interface {
	Snapshot() (model.SessionSnapshot, bool)
}

// HistoryRepository is the read side of the Persistence Repository needed
// for history-get.
type HistoryRepository interface {
	QuerySpeedHistory(start, end int64) ([]model.SpeedHistoryBucket, error)
}

// Capabilities is the static payload returned by tt-get-capabilities.
type Capabilities struct {
	ServerVersion string   `json:"server-version"`
	RPCVersion    int      `json:"rpc-version"`
	WSPath        string   `json:"ws-path"`
	Features      []string `json:"features"`
}

// handlerKind distinguishes an immediate, read-only response from one that
// must go through the Engine's Command Queue, per the dispatch-table design.
type handlerKind int

const (
	kindSync handlerKind = iota
	kindAsync
)

type handlerFunc func(d *Dispatcher, ctx context.Context, raw []byte) (interface{}, *apperror.Error)

type route struct {
	kind           handlerKind
	requiresEngine bool
	handle         handlerFunc
}

// Dispatcher implements the RPC Dispatcher (C7): a static method-name ->
// route table, argument normalization, and dispatch to sync or
// command-queue-backed handlers.
type Dispatcher struct {
	queue       *engine.Queue
	snapshots   SnapshotSource
	cfg         *config.Service
	history     HistoryRepository
	caps        Capabilities
	engineReady func() bool
	onClose     func()
	onEvent     func(name string, data interface{})
}

// New builds a Dispatcher. engineReady reports whether the Engine has
// finished Start() and may accept commands; until then, engine-dependent
// methods return engine-unavailable without touching the queue.
func New(queue *engine.Queue, snapshots SnapshotSource, cfg *config.Service, history HistoryRepository, caps Capabilities, engineReady func() bool) *Dispatcher {
	return &Dispatcher{queue: queue, snapshots: snapshots, cfg: cfg, history: history, caps: caps, engineReady: engineReady}
}

// OnClose registers the hook session-close invokes to begin graceful
// shutdown. The process entry point sets this after constructing both the
// Dispatcher and its own shutdown sequence.
func (d *Dispatcher) OnClose(fn func()) {
	d.onClose = fn
}

// OnEvent registers the hook the HTTP/WS Server (C8) uses to receive named
// events raised by dispatcher handlers directly (blocklist-updated), as
// opposed to the Engine's own torrent-added/torrent-finished/error events.
// Only one hook is supported; it must be set before the first Handle call.
func (d *Dispatcher) OnEvent(fn func(name string, data interface{})) {
	d.onEvent = fn
}

func (d *Dispatcher) emit(name string, data interface{}) {
	if d.onEvent != nil {
		d.onEvent(name, data)
	}
}

var routes = map[string]route{
	"session-get":          {kind: kindSync, handle: (*Dispatcher).handleSessionGet},
	"session-set":          {kind: kindSync, handle: (*Dispatcher).handleSessionSet},
	"session-stats":        {kind: kindSync, requiresEngine: true, handle: (*Dispatcher).handleSessionStats},
	"session-close":        {kind: kindSync, handle: (*Dispatcher).handleSessionClose},
	"session-tray-status":  {kind: kindSync, requiresEngine: true, handle: (*Dispatcher).handleSessionTrayStatus},
	"session-pause-all":    {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleSessionPauseAll},
	"session-resume-all":   {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleSessionResumeAll},
	"tt-get-capabilities":  {kind: kindSync, handle: (*Dispatcher).handleGetCapabilities},

	"torrent-get":          {kind: kindSync, requiresEngine: true, handle: (*Dispatcher).handleTorrentGet},
	"torrent-add":          {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentAdd},
	"torrent-remove":       {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentRemove},
	"torrent-start":        {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentStart},
	"torrent-stop":         {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentStop},
	"torrent-verify":       {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentVerify},
	"torrent-reannounce":   {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentReannounce},
	"torrent-set":          {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleTorrentSet},
	"torrent-rename-path":  {kind: kindSync, requiresEngine: true, handle: (*Dispatcher).handleTorrentRenamePath},

	"free-space":       {kind: kindSync, handle: (*Dispatcher).handleFreeSpace},
	"blocklist-update": {kind: kindSync, handle: (*Dispatcher).handleBlocklistUpdate},

	"history-get":   {kind: kindSync, handle: (*Dispatcher).handleHistoryGet},
	"history-clear": {kind: kindAsync, requiresEngine: true, handle: (*Dispatcher).handleHistoryClear},

	"group-set": {kind: kindSync, handle: (*Dispatcher).handleGroupSet},
}

// Handle decodes body, routes it, and returns the wire Response. It never
// returns a transport-level error: argument/method problems are carried in
// the Response itself per Transmission's own convention.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) Response {
	req, appErr := Decode(body)
	if appErr != nil {
		return failure(nil, appErr)
	}

	r, ok := routes[req.Method]
	if !ok {
		return failure(req.Tag, apperror.New(apperror.KindUnsupportedMethod, "unsupported method"))
	}

	if r.requiresEngine && d.engineReady != nil && !d.engineReady() {
		return failure(req.Tag, apperror.New(apperror.KindEngineUnavailable, "engine unavailable"))
	}

	result, appErr := r.handle(d, ctx, req.Arguments)
	if appErr != nil {
		return failure(req.Tag, appErr)
	}
	return success(req.Tag, result)
}

// await blocks for cmd's completion up to commandWait, converting a timeout
// into an internal error rather than hanging the HTTP request forever.
func await(ctx context.Context, cmd *engine.Command) (interface{}, *apperror.Error) {
	waitCtx, cancel := context.WithTimeout(ctx, commandWait)
	defer cancel()
	select {
	case res := <-cmd.Done:
		return res.Value, res.Err
	case <-waitCtx.Done():
		return nil, apperror.New(apperror.KindInternal, "command timed out")
	}
}
