package rpc

import (
	"context"
	"encoding/json"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// sessionGetResponse wraps the redacted settings with the handful of
// read-only fields Transmission clients expect alongside them.
type sessionGetResponse struct {
	model.CoreSettings
	Version    string `json:"version"`
	RPCVersion int    `json:"rpc-version"`
}

func (d *Dispatcher) handleSessionGet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return sessionGetResponse{
		CoreSettings: d.cfg.Get().Redacted(),
		Version:      d.caps.ServerVersion,
		RPCVersion:   d.caps.RPCVersion,
	}, nil
}

// handleSessionSet applies a partial settings patch. The Configuration
// Service is mutated synchronously and unconditionally so settings can be
// changed before the Engine finishes starting; a listen-port change is
// additionally pushed to a running Engine so it rebuilds its client without
// waiting for the next restart.
func (d *Dispatcher) handleSessionSet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	var patch model.SettingsPatch
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &patch); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}

	d.cfg.Mutate(patch.Apply)
	if err := d.cfg.PersistIfDirty(); err != nil {
		return nil, apperror.New(apperror.KindInternal, err.Error())
	}

	if patch.ListenPort != nil && d.engineReady != nil && d.engineReady() {
		cmd, appErr := d.queue.Enqueue(ctx, model.CmdSetSettings, patch)
		if appErr != nil {
			return nil, appErr
		}
		if _, appErr := await(ctx, cmd); appErr != nil {
			return nil, appErr
		}
	}
	return struct{}{}, nil
}

func (d *Dispatcher) handleSessionStats(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	snap, ok := d.snapshots.Snapshot()
	if !ok {
		return nil, apperror.New(apperror.KindEngineUnavailable, "no snapshot published yet")
	}
	return struct {
		ActiveTorrentCount int   `json:"activeTorrentCount"`
		TorrentCount       int   `json:"torrentCount"`
		DownloadSpeed      int64 `json:"downloadSpeed"`
		UploadSpeed        int64 `json:"uploadSpeed"`
	}{
		ActiveTorrentCount: snap.ActiveTorrentCount,
		TorrentCount:       snap.TorrentCount,
		DownloadSpeed:      snap.RateDownloadBps,
		UploadSpeed:        snap.RateUploadBps,
	}, nil
}

// handleSessionClose triggers graceful shutdown via an optional hook set by
// the process entry point; the dispatcher itself owns no process lifecycle.
func (d *Dispatcher) handleSessionClose(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	if d.onClose != nil {
		d.onClose()
	}
	return struct{}{}, nil
}

func (d *Dispatcher) handleSessionTrayStatus(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	snap, ok := d.snapshots.Snapshot()
	if !ok {
		return nil, apperror.New(apperror.KindEngineUnavailable, "no snapshot published yet")
	}
	return struct {
		TorrentCount  int   `json:"torrentCount"`
		DownloadSpeed int64 `json:"downloadSpeed"`
		UploadSpeed   int64 `json:"uploadSpeed"`
	}{
		TorrentCount:  snap.TorrentCount,
		DownloadSpeed: snap.RateDownloadBps,
		UploadSpeed:   snap.RateUploadBps,
	}, nil
}

func (d *Dispatcher) handleSessionPauseAll(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	cmd, appErr := d.queue.Enqueue(ctx, model.CmdPause, model.IDSelector{All: true})
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

func (d *Dispatcher) handleSessionResumeAll(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	cmd, appErr := d.queue.Enqueue(ctx, model.CmdResume, model.IDSelector{All: true})
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

func (d *Dispatcher) handleGetCapabilities(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return d.caps, nil
}
