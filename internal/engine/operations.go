package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// handle applies one command to the session and resolves its completion
// channel. This is the sole place library state is mutated: everything here
// runs on the Engine's own goroutine.
func (e *Engine) handle(cmd *Command) {
	var result Result
	switch cmd.Kind {
	case model.CmdAddTorrent:
		result = e.handleAddTorrent(cmd.Args.(model.AddTorrentArgs))
	case model.CmdRemoveTorrent:
		result = e.handleRemoveTorrent(cmd.Args.(RemoveTorrentArgs))
	case model.CmdPause:
		result = e.handlePauseResume(cmd.Args.(model.IDSelector), true)
	case model.CmdResume:
		result = e.handlePauseResume(cmd.Args.(model.IDSelector), false)
	case model.CmdVerify:
		result = e.handleVerify(cmd.Args.(model.IDSelector))
	case model.CmdReannounce:
		result = e.handleReannounce(cmd.Args.(model.IDSelector))
	case model.CmdSetTorrent:
		result = e.handleSetTorrent(cmd.Args.(model.SetTorrentArgs))
	case model.CmdSetSettings:
		result = e.handleSetSettings(cmd.Args.(model.SettingsPatch))
	case model.CmdClearHistory:
		result = e.handleClearHistory(cmd.Args.(ClearHistoryArgs))
	default:
		result = Result{Err: apperror.New(apperror.KindInternal, "unknown command kind")}
	}
	if result.Err != nil {
		e.logger.Printf("command %s (%s) failed: %v", cmd.ID, cmd.Kind, result.Err)
	}
	cmd.Done <- result
}

// RemoveTorrentArgs and ClearHistoryArgs are command-local shapes not part
// of the shared model package since nothing outside the Engine and
// Dispatcher needs them named.
type RemoveTorrentArgs struct {
	IDs        model.IDSelector
	DeleteData bool
}

type ClearHistoryArgs struct {
	OlderThan *int64
}

func (e *Engine) handleAddTorrent(args model.AddTorrentArgs) Result {
	var spec *torrent.TorrentSpec
	var metainfoBlob []byte

	switch {
	case len(args.MetainfoBytes) > 0:
		mi, err := metainfo.Load(bytes.NewReader(args.MetainfoBytes))
		if err != nil {
			return Result{Err: apperror.New(apperror.KindMetainfoReadFailure, err.Error())}
		}
		spec = torrent.TorrentSpecFromMetaInfo(mi)
		metainfoBlob = args.MetainfoBytes
	case args.MagnetURI != "":
		s, err := torrent.TorrentSpecFromMagnetUri(args.MagnetURI)
		if err != nil {
			return Result{Err: apperror.New(apperror.KindInvalidArgument, err.Error())}
		}
		spec = s
	case args.LocalPath != "":
		f, err := os.Open(args.LocalPath)
		if err != nil {
			return Result{Err: apperror.New(apperror.KindMetainfoReadFailure, err.Error())}
		}
		defer f.Close()
		mi, err := metainfo.Load(f)
		if err != nil {
			return Result{Err: apperror.New(apperror.KindMetainfoReadFailure, err.Error())}
		}
		spec = torrent.TorrentSpecFromMetaInfo(mi)
		var buf bytes.Buffer
		if err := mi.Write(&buf); err == nil {
			metainfoBlob = buf.Bytes()
		}
	default:
		return Result{Err: apperror.New(apperror.KindInvalidArgument, "torrent-add requires metainfo, filename, or magnet")}
	}

	savePath := args.SavePath
	if savePath == "" {
		savePath = e.dataDir
	}
	if args.SavePath != "" {
		if err := mkdirWithTimeout(args.SavePath, 5*time.Second); err != nil {
			return Result{Err: apperror.New(apperror.KindPathUnreachable, err.Error())}
		}
	}

	infoHash := spec.InfoHash.HexString()
	if _, exists := e.byHash[infoHash]; exists {
		return Result{Err: apperror.New(apperror.KindDuplicate, "torrent already added")}
	}

	t, isNew, err := e.client.AddTorrentSpec(spec)
	if err != nil {
		return Result{Err: apperror.New(apperror.KindInternal, err.Error())}
	}
	if !isNew {
		return Result{Err: apperror.New(apperror.KindDuplicate, "torrent already added")}
	}

	mt := &managedTorrent{
		id:           e.allocateID(),
		t:            t,
		labels:       append([]string(nil), args.Labels...),
		userPaused:   args.Paused,
		savePath:     savePath,
		healthResult: make(chan error, 1),
	}
	e.track(mt)
	e.emit("torrent-added", map[string]interface{}{"id": mt.id})

	if len(metainfoBlob) > 0 {
		if err := e.repo.SaveTorrentMetadata(infoHash, metainfoBlob); err != nil {
			e.logger.Printf("failed to persist metadata for %s: %v", infoHash, err)
		}
	} else {
		// Magnet add: persist metainfo once it arrives, asynchronously.
		go func() {
			<-t.GotInfo()
			var buf bytes.Buffer
			if mi := t.Metainfo(); mi.Write(&buf) == nil {
				_ = e.repo.SaveTorrentMetadata(infoHash, buf.Bytes())
			}
		}()
	}
	if len(args.Labels) > 0 {
		if err := e.repo.SetLabels(infoHash, args.Labels); err != nil {
			e.logger.Printf("failed to persist labels for %s: %v", infoHash, err)
		}
	}

	if args.Paused {
		t.DisallowDataDownload()
		t.DisallowDataUpload()
	}

	return Result{Value: AddedTorrent{ID: mt.id, InfoHash: infoHash}}
}

type AddedTorrent struct {
	ID       int
	InfoHash string
}

func mkdirWithTimeout(path string, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- os.MkdirAll(path, 0o755) }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return apperror.New(apperror.KindPathUnreachable, "save path creation timed out")
	}
}

func (e *Engine) handleRemoveTorrent(args RemoveTorrentArgs) Result {
	ids := e.resolveSelector(args.IDs)
	for _, id := range ids {
		mt, ok := e.torrents[id]
		if !ok {
			continue
		}
		infoHash := mt.t.InfoHash().HexString()
		mt.t.Drop()
		e.untrack(mt)

		if err := e.repo.DeleteTorrentMetadata(infoHash); err != nil {
			e.logger.Printf("failed to delete persisted metadata for %s: %v", infoHash, err)
		}

		if args.DeleteData {
			name := mt.t.Name()
			dataDir := e.dataDir
			e.pool.Submit(func() {
				// Best-effort: remove the downloaded content under DataDir.
				// Errors are logged, not surfaced, since the torrent is
				// already gone from the session by this point.
				if name == "" {
					return
				}
				if err := os.RemoveAll(filepath.Join(dataDir, name)); err != nil {
					e.logger.Printf("failed to delete local data for %s: %v", name, err)
				}
			})
		}
	}
	return Result{Value: len(ids)}
}

func (e *Engine) handlePauseResume(sel model.IDSelector, pause bool) Result {
	for _, id := range e.resolveSelector(sel) {
		mt, ok := e.torrents[id]
		if !ok {
			continue
		}
		if pause {
			mt.userPaused = true
			mt.t.DisallowDataDownload()
			mt.t.DisallowDataUpload()
		} else {
			mt.userPaused = false
			mt.recoveryPaused = false
			mt.t.AllowDataDownload()
			mt.t.AllowDataUpload()
		}
		e.dirty = true
	}
	return Result{}
}

func (e *Engine) handleVerify(sel model.IDSelector) Result {
	for _, id := range e.resolveSelector(sel) {
		mt, ok := e.torrents[id]
		if !ok {
			continue
		}
		mt.rehashActive = true
		mt.rehashStartCount++
		mt.t.VerifyData()
		e.dirty = true
	}
	return Result{}
}

func (e *Engine) handleReannounce(sel model.IDSelector) Result {
	for _, id := range e.resolveSelector(sel) {
		mt, ok := e.torrents[id]
		if !ok {
			continue
		}
		// anacrolix/torrent re-announces automatically on its own schedule;
		// re-adding the torrent's primary announce URL (mi.Announce) is
		// used here to kick an immediate announce cycle.
		mi := mt.t.Metainfo()
		mt.t.AddTrackers([][]string{{mi.Announce}})
		mt.trackerAnnounces++
		e.dirty = true
	}
	return Result{}
}

func (e *Engine) handleSetTorrent(args model.SetTorrentArgs) Result {
	for _, id := range e.resolveSelector(args.IDs) {
		mt, ok := e.torrents[id]
		if !ok {
			continue
		}
		if args.SetLabels {
			mt.labels = append([]string(nil), args.Labels...)
			infoHash := mt.t.InfoHash().HexString()
			if err := e.repo.SetLabels(infoHash, mt.labels); err != nil {
				e.logger.Printf("failed to persist labels for %s: %v", infoHash, err)
			}
		}
		if args.SequentialDownload != nil {
			mt.sequentialDownload = *args.SequentialDownload
		}
		if args.SuperSeeding != nil {
			mt.superSeeding = *args.SuperSeeding
		}
		if args.SetTrackerList {
			tiers := make([][]string, len(args.TrackerList))
			for i, url := range args.TrackerList {
				tiers[i] = []string{url}
			}
			mt.t.AddTrackers(tiers)
		}
		e.dirty = true
	}
	return Result{}
}

func (e *Engine) handleSetSettings(patch model.SettingsPatch) Result {
	// The Configuration Service is the only writer of CoreSettings; the
	// Engine only reacts to the already-applied settings (via cfg.Get())
	// and re-applies the listen endpoint here because only the Engine owns
	// the torrent.Client needed to do that. The patch has already been
	// written to the Configuration Service by the RPC handler before this
	// command was enqueued (see internal/rpc session-set handler), so by
	// the time this command runs, cfg.Get() already reflects it.
	if patch.ListenPort != nil {
		if err := e.reapplyListenEndpoint(); err != nil {
			e.listenFailure = err.Error()
			return Result{Err: apperror.New(apperror.KindInternal, err.Error())}
		}
	}
	return Result{}
}

func (e *Engine) reapplyListenEndpoint() error {
	// A full client rebuild is the only way anacrolix/torrent exposes to
	// change the listen port at runtime; existing torrents are re-added
	// against the new client.
	oldTorrents := e.torrents
	e.client.Close()

	newClient, err := e.newClientWithRetry(context.Background())
	if err != nil {
		return err
	}
	e.client = newClient
	e.torrents = make(map[int]*managedTorrent)
	e.byHash = make(map[string]int)
	for id, mt := range oldTorrents {
		mi := mt.t.Metainfo()
		spec := torrent.TorrentSpecFromMetaInfo(&mi)
		t, _, err := e.client.AddTorrentSpec(spec)
		if err != nil {
			e.logger.Printf("failed to re-add torrent %d after listen-endpoint change: %v", id, err)
			continue
		}
		mt.t = t
		mt.id = id
		e.torrents[id] = mt
		e.byHash[t.InfoHash().HexString()] = id
	}
	return nil
}

func (e *Engine) handleClearHistory(args ClearHistoryArgs) Result {
	before := time.Now().Unix()
	if args.OlderThan != nil {
		before = *args.OlderThan
	}
	if err := e.repo.TrimSpeedHistory(before); err != nil {
		return Result{Err: apperror.New(apperror.KindInternal, err.Error())}
	}
	return Result{}
}

// resolveSelector expands an IDSelector into the concrete tracked ids it
// names, normalizing "all" and "recently-active" (approximated here as
// every currently-tracked id, since instantaneous activity classification
// lives in the snapshot, not the selector).
func (e *Engine) resolveSelector(sel model.IDSelector) []int {
	if sel.All || sel.RecentlyActive {
		ids := make([]int, 0, len(e.torrents))
		for id := range e.torrents {
			ids = append(ids, id)
		}
		return ids
	}
	return sel.IDs
}

