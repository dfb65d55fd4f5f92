// Package engine implements the Engine Coordinator (C5): the single thread
// that owns the anacrolix/torrent session, applies commands from the
// Command Queue, drains per-torrent state changes, and publishes
// SessionSnapshot values for the Diff & Patch Engine and WS Server to
// consume.
package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/eventbus"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/logging"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/workerpool"
)

// tickInterval bounds how long the loop waits on an empty queue before
// checking torrent state and publish cadence again.
const tickInterval = 100 * time.Millisecond

// publishCadence is the maximum time between snapshot publishes even when
// nothing is dirty, so rate figures stay fresh for WS subscribers.
const publishCadence = time.Second

// healthCheckInterval bounds how often each torrent's save path is
// re-stat'd to detect storage loss (AccessDenied/PathLoss/VolumeLoss);
// checking every tick would be wasteful since these failures are rare and
// the stat runs on the worker pool rather than the Run goroutine.
const healthCheckInterval = 5 * time.Second

// Repository is the slice of the Persistence Repository the Engine needs
// directly (torrent metadata, labels, speed history). Settings persistence
// goes through the Configuration Service instead.
type Repository interface {
	ListTorrentMetadata() ([]RepoTorrentMetadata, error)
	SaveTorrentMetadata(infoHash string, blob []byte) error
	DeleteTorrentMetadata(infoHash string) error
	SetLabels(infoHash string, labels []string) error
	AppendSpeedBucket(ts int64, down, up uint64) error
	TrimSpeedHistory(beforeTS int64) error
}

// RepoTorrentMetadata mirrors store.TorrentMetadata without importing the
// store package directly, keeping the Engine's dependency on persistence
// narrow and mockable.
type RepoTorrentMetadata struct {
	InfoHash string
	Blob     []byte
	Labels   []string
}

// SettingsSource is the slice of the Configuration Service the Engine reads
// from; the Engine never writes settings itself, the Configuration Service
// is the only writer.
type SettingsSource interface {
	Get() model.CoreSettings
}

// Engine is the Engine Coordinator. All mutable fields below sequence are
// touched only from the Run goroutine; Snapshot() and the Queue's Enqueue()
// are the only cross-thread-safe entry points.
type Engine struct {
	logger *logging.Logger
	queue  *Queue
	repo   Repository
	cfg    SettingsSource
	bus    *eventbus.Bus
	pool   *workerpool.Pool

	client  *torrent.Client
	dataDir string

	torrents map[int]*managedTorrent
	byHash   map[string]int
	nextID   int

	labelsRegistry map[string]int

	lastTotals totals
	lastSample time.Time

	lastHistoryAppend time.Time

	seq      uint64
	snapshot atomic.Pointer[model.SessionSnapshot]
	dirty    bool

	onPublish func(model.SessionSnapshot)
	onEvent   func(name string, data interface{})

	settingsCh <-chan eventbus.Event

	listenFailure string

	shutdownOnce sync.Once
}

type totals struct {
	down, up int64
}

// New constructs an Engine bound to queue, repo and cfg. It does not start
// the torrent.Client yet; call Start.
func New(queue *Queue, repo Repository, cfg SettingsSource, bus *eventbus.Bus, pool *workerpool.Pool) *Engine {
	return &Engine{
		logger:         logging.New("engine"),
		queue:          queue,
		repo:           repo,
		cfg:            cfg,
		bus:            bus,
		pool:           pool,
		torrents:       make(map[int]*managedTorrent),
		byHash:         make(map[string]int),
		labelsRegistry: make(map[string]int),
		nextID:         1,
	}
}

// OnPublish registers the broadcast hook the HTTP/WS Server (C8) uses to
// receive every new SessionSnapshot. Only one hook is supported; it must be
// set before Start.
func (e *Engine) OnPublish(fn func(model.SessionSnapshot)) {
	e.onPublish = fn
}

// OnEvent registers the hook the HTTP/WS Server (C8) uses to receive
// one-shot named events (torrent-added, torrent-finished, error) that are
// not part of the regular snapshot/patch stream. Only one hook is
// supported; it must be set before Start.
func (e *Engine) OnEvent(fn func(name string, data interface{})) {
	e.onEvent = fn
}

func (e *Engine) emit(name string, data interface{}) {
	if e.onEvent != nil {
		e.onEvent(name, data)
	}
}

// Start builds the torrent.Client from current settings (with bounded
// backoff retry), rehydrates persisted torrents, and subscribes to
// settings-changed events from the Configuration Service so the Run loop
// re-publishes promptly after a session-set rather than waiting for the
// next publish-cadence tick.
func (e *Engine) Start(ctx context.Context) error {
	client, err := e.newClientWithRetry(ctx)
	if err != nil {
		return err
	}
	e.client = client
	if e.bus != nil {
		e.settingsCh = e.bus.Subscribe(eventbus.TopicSettingsChanged)
	}
	return e.rehydrate()
}

func (e *Engine) newClientWithRetry(ctx context.Context) (*torrent.Client, error) {
	settings := e.cfg.Get()

	var client *torrent.Client
	op := func() error {
		cfg, err := buildClientConfig(settings)
		if err != nil {
			return backoff.Permanent(err)
		}
		c, err := torrent.NewClient(cfg)
		if err != nil {
			e.listenFailure = err.Error()
			return err
		}
		client = c
		e.listenFailure = ""
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	bo.InitialInterval = 500 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, apperror.Newf(apperror.KindInternal, "starting torrent client: %v", err)
	}
	e.dataDir = settings.DownloadDir
	return client, nil
}

func buildClientConfig(s model.CoreSettings) (*torrent.ClientConfig, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = s.DownloadDir
	cfg.ListenPort = s.ListenPort
	cfg.NoDHT = !s.DHTEnabled
	cfg.DisableTrackers = false
	cfg.Seed = true

	if s.DownloadRateLimited && s.DownloadRateLimitKBps > 0 {
		cfg.DownloadRateLimiter = rate.NewLimiter(rate.Limit(s.DownloadRateLimitKBps*1024), 256*1024)
	}
	if s.UploadRateLimited && s.UploadRateLimitKBps > 0 {
		cfg.UploadRateLimiter = rate.NewLimiter(rate.Limit(s.UploadRateLimitKBps*1024), 256*1024)
	}

	if s.ProxyType != model.ProxyNone && s.ProxyURL != "" {
		proxyURL, err := url.Parse(s.ProxyURL)
		if err != nil {
			return nil, apperror.Newf(apperror.KindInvalidArgument, "invalid proxy url: %v", err)
		}
		if s.ProxyAuthEnabled {
			proxyURL.User = url.UserPassword(s.ProxyUsername, s.ProxyPassword)
		}
		cfg.HTTPProxy = func(*http.Request) (*url.URL, error) { return proxyURL, nil }
	}

	return cfg, nil
}

// rehydrate reattaches every persisted torrent (and its labels) to the
// session on startup: labels are not known to the peer library and must be
// rehydrated from the repository.
func (e *Engine) rehydrate() error {
	rows, err := e.repo.ListTorrentMetadata()
	if err != nil {
		return err
	}
	for _, row := range rows {
		mi, err := metainfo.Load(bytes.NewReader(row.Blob))
		if err != nil {
			e.logger.Printf("skipping unreadable persisted torrent %s: %v", row.InfoHash, err)
			continue
		}
		spec := torrent.TorrentSpecFromMetaInfo(mi)
		t, _, err := e.client.AddTorrentSpec(spec)
		if err != nil {
			e.logger.Printf("failed to re-add persisted torrent %s: %v", row.InfoHash, err)
			continue
		}
		mt := &managedTorrent{
			id:           e.allocateID(),
			t:            t,
			labels:       row.Labels,
			savePath:     e.dataDir,
			healthResult: make(chan error, 1),
		}
		e.track(mt)
	}
	return nil
}

func (e *Engine) allocateID() int {
	id := e.nextID
	e.nextID++
	return id
}

func (e *Engine) track(mt *managedTorrent) {
	e.torrents[mt.id] = mt
	e.byHash[mt.t.InfoHash().HexString()] = mt.id
	for _, l := range mt.labels {
		e.labelsRegistry[l]++
	}
	e.dirty = true
}

func (e *Engine) untrack(mt *managedTorrent) {
	delete(e.torrents, mt.id)
	delete(e.byHash, mt.t.InfoHash().HexString())
	for _, l := range mt.labels {
		e.labelsRegistry[l]--
		if e.labelsRegistry[l] <= 0 {
			delete(e.labelsRegistry, l)
		}
	}
	e.dirty = true
}

// Snapshot returns the most recently published SessionSnapshot. Safe to
// call from any goroutine.
func (e *Engine) Snapshot() (model.SessionSnapshot, bool) {
	p := e.snapshot.Load()
	if p == nil {
		return model.SessionSnapshot{}, false
	}
	return *p, true
}

// Run is the Engine loop: pop commands, drain per-torrent state changes,
// publish a snapshot when dirty or when the publish cadence elapses. It
// returns when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			cmd, ok := e.queue.TryPop()
			if !ok {
				break
			}
			e.handle(cmd)
		}

		e.drainSettingsEvents()
		e.drainTorrentState()
		e.maybeAppendHistory()

		if e.dirty || time.Since(e.lastSample) >= publishCadence {
			e.publish()
		}
	}
}

// drainSettingsEvents marks the session dirty on every settings-changed
// event so a session-set is reflected in the next publish instead of
// waiting for the publish-cadence tick. The Configuration Service has
// already applied the change by the time this fires.
func (e *Engine) drainSettingsEvents() {
	if e.settingsCh == nil {
		return
	}
	for {
		select {
		case <-e.settingsCh:
			e.dirty = true
		default:
			return
		}
	}
}

// publish materializes a new SessionSnapshot and invokes the broadcast hook.
// Sequence increases by exactly one per call.
func (e *Engine) publish() {
	settings := e.cfg.Get()

	torrents := make([]model.TorrentSnapshot, 0, len(e.torrents))
	var activeCount int
	var downTotal, upTotal int64
	for _, mt := range e.torrents {
		ts := mt.snapshot()
		torrents = append(torrents, ts)
		downTotal += ts.DownloadedBytes
		upTotal += ts.UploadedBytes
		if ts.Status == model.StatusDownloading || ts.Status == model.StatusSeeding {
			activeCount++
		}
	}

	registry := make(map[string]int, len(e.labelsRegistry))
	for k, v := range e.labelsRegistry {
		registry[k] = v
	}

	e.seq++
	snap := model.SessionSnapshot{
		Sequence:           e.seq,
		RateDownloadBps:    rateFrom(e.lastTotals.down, downTotal, e.lastSample),
		RateUploadBps:      rateFrom(e.lastTotals.up, upTotal, e.lastSample),
		DownloadedBytes:    downTotal,
		UploadedBytes:      upTotal,
		ActiveTorrentCount: activeCount,
		TorrentCount:       len(torrents),
		Torrents:           torrents,
		LabelsRegistry:     registry,
		Settings:           settings,
	}

	e.lastTotals = totals{down: downTotal, up: upTotal}
	e.lastSample = time.Now()
	e.dirty = false
	e.snapshot.Store(&snap)

	if e.onPublish != nil {
		e.onPublish(snap)
	}
}

func rateFrom(previous, current int64, since time.Time) int64 {
	if since.IsZero() {
		return 0
	}
	elapsed := time.Since(since).Seconds()
	if elapsed <= 0 {
		return 0
	}
	delta := current - previous
	if delta < 0 {
		delta = 0
	}
	return int64(float64(delta) / elapsed)
}

// drainTorrentState polls every tracked torrent for metadata arrival,
// completion transitions, and storage health. anacrolix/torrent has no
// alert queue to drain; the non-blocking poll for metadata/completion is
// cheap and does no disk I/O, so it runs on every tick alongside the
// command pop. The storage-health stat is the one disk op here; it is
// offloaded to the worker pool and only its already-computed result is
// read back, so the Run goroutine itself still does no I/O.
func (e *Engine) drainTorrentState() {
	for _, mt := range e.torrents {
		select {
		case <-mt.t.GotInfo():
			if !mt.gotInfoSeen {
				mt.gotInfoSeen = true
				e.dirty = true
			}
		default:
		}

		if mt.rehashActive && mt.t.Info() != nil && mt.t.BytesCompleted() == mt.t.Length() {
			mt.rehashActive = false
			mt.rehashCompleteCount++
			e.dirty = true
		}

		if mt.t.Info() != nil && mt.t.BytesCompleted() == mt.t.Length() && !mt.completionNotified {
			mt.completionNotified = true
			e.emit("torrent-finished", map[string]interface{}{"id": mt.id})
		}

		e.pollStorageHealth(mt)
	}
}

// pollStorageHealth drains a previously submitted health check and, at
// healthCheckInterval, submits the next one. A non-nil result reclassifies
// the torrent's error state via classifyError; a nil result (path reachable)
// clears any previously recorded error.
func (e *Engine) pollStorageHealth(mt *managedTorrent) {
	if mt.healthPending {
		select {
		case err := <-mt.healthResult:
			mt.healthPending = false
			kind := model.ErrorKindNone
			message := ""
			if err != nil {
				message = err.Error()
				kind = classifyError(message)
			}
			if kind != mt.lastErrorKind || message != mt.lastErrorMessage {
				mt.lastErrorKind = kind
				mt.lastErrorMessage = message
				e.dirty = true
				if kind != model.ErrorKindNone {
					e.emit("error", map[string]interface{}{"id": mt.id, "kind": kind.String(), "message": message})
				}
			}
		default:
		}
		return
	}

	if mt.savePath == "" || time.Now().Before(mt.nextHealthScan) {
		return
	}
	mt.healthPending = true
	mt.nextHealthScan = time.Now().Add(healthCheckInterval)
	path := mt.savePath
	result := mt.healthResult
	e.pool.Submit(func() {
		_, err := os.Stat(path)
		result <- err
	})
}

// maybeAppendHistory persists a speed-history bucket at the configured
// cadence, offloaded to the worker pool since it is a disk write.
func (e *Engine) maybeAppendHistory() {
	settings := e.cfg.Get()
	if !settings.HistoryEnabled || settings.HistoryIntervalSecs <= 0 {
		return
	}
	if time.Since(e.lastHistoryAppend) < time.Duration(settings.HistoryIntervalSecs)*time.Second {
		return
	}
	e.lastHistoryAppend = time.Now()

	snap, ok := e.Snapshot()
	if !ok {
		return
	}
	ts := time.Now().Unix()
	down, up := uint64(0), uint64(0)
	if snap.RateDownloadBps > 0 {
		down = uint64(snap.RateDownloadBps)
	}
	if snap.RateUploadBps > 0 {
		up = uint64(snap.RateUploadBps)
	}
	e.pool.Submit(func() {
		if err := e.repo.AppendSpeedBucket(ts, down, up); err != nil {
			e.logger.Printf("failed to append speed history bucket: %v", err)
		}
	})
}

// Shutdown stops accepting commands, drains the queue, and brings every
// tracked torrent's persisted labels up to date within a bounded cap.
// Metainfo bytes are persisted incrementally as soon as they are known
// (AddTorrent, or GotInfo for magnets), so shutdown only needs to flush
// labels that changed since the last persist, not reconstruct anything.
func (e *Engine) Shutdown(ctx context.Context) {
	e.shutdownOnce.Do(func() {
		e.queue.Shutdown()

		done := make(chan struct{})
		go func() {
			for _, mt := range e.torrents {
				_ = e.repo.SetLabels(mt.t.InfoHash().HexString(), mt.labels)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
		}

		if e.client != nil {
			e.client.Close()
		}
	})
}
