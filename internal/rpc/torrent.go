package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func (d *Dispatcher) handleTorrentGet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	fields, appErr := parseFields(raw)
	if appErr != nil {
		return nil, appErr
	}
	sel, appErr := parseIDSelector(raw)
	if appErr != nil {
		return nil, appErr
	}

	snap, ok := d.snapshots.Snapshot()
	if !ok {
		return nil, apperror.New(apperror.KindEngineUnavailable, "no snapshot published yet")
	}

	wanted := map[int]bool{}
	if !sel.All && !sel.RecentlyActive {
		for _, id := range sel.IDs {
			wanted[id] = true
		}
	}

	torrents := make([]interface{}, 0, len(snap.Torrents))
	for _, t := range snap.Torrents {
		if !sel.All && !sel.RecentlyActive && !wanted[t.ID] {
			continue
		}
		if len(fields) == 0 {
			torrents = append(torrents, t)
			continue
		}
		projected, appErr := projectFields(t, fields)
		if appErr != nil {
			return nil, appErr
		}
		torrents = append(torrents, projected)
	}

	return struct {
		Torrents []interface{} `json:"torrents"`
	}{Torrents: torrents}, nil
}

// projectFields marshals a TorrentSnapshot and keeps only the requested
// top-level wire fields, letting the JSON tags on TorrentSnapshot be the
// single source of truth for field names rather than a hand-maintained
// per-field switch.
func projectFields(t model.TorrentSnapshot, fields []string) (map[string]interface{}, *apperror.Error) {
	blob, err := json.Marshal(t)
	if err != nil {
		return nil, apperror.New(apperror.KindInternal, err.Error())
	}
	var full map[string]interface{}
	if err := json.Unmarshal(blob, &full); err != nil {
		return nil, apperror.New(apperror.KindInternal, err.Error())
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

type torrentAddRequest struct {
	Filename    *string         `json:"filename"`
	Metainfo    *string         `json:"metainfo"`
	DownloadDir string          `json:"download-dir"`
	Paused      json.RawMessage `json:"paused"`
	Labels      []string        `json:"labels"`
}

type addedTorrentWire struct {
	ID         int    `json:"id"`
	HashString string `json:"hashString"`
}

func (d *Dispatcher) handleTorrentAdd(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	var in torrentAddRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}

	args := model.AddTorrentArgs{
		SavePath: in.DownloadDir,
		Labels:   in.Labels,
		Paused:   truthy(in.Paused),
	}

	switch {
	case in.Metainfo != nil && *in.Metainfo != "":
		decoded, err := base64.StdEncoding.DecodeString(*in.Metainfo)
		if err != nil {
			return nil, apperror.New(apperror.KindInvalidArgument, "metainfo must be base64-encoded")
		}
		args.MetainfoBytes = decoded
	case in.Filename != nil && strings.HasPrefix(*in.Filename, "magnet:"):
		args.MagnetURI = *in.Filename
	case in.Filename != nil && *in.Filename != "":
		args.LocalPath = *in.Filename
	default:
		return nil, apperror.New(apperror.KindInvalidArgument, "torrent-add requires filename or metainfo")
	}

	cmd, appErr := d.queue.Enqueue(ctx, model.CmdAddTorrent, args)
	if appErr != nil {
		return nil, appErr
	}
	val, appErr := await(ctx, cmd)
	if appErr != nil {
		return nil, appErr
	}
	added, ok := val.(engine.AddedTorrent)
	if !ok {
		return nil, apperror.New(apperror.KindInternal, "unexpected torrent-add result shape")
	}
	return struct {
		TorrentAdded addedTorrentWire `json:"torrent-added"`
	}{
		TorrentAdded: addedTorrentWire{ID: added.ID, HashString: added.InfoHash},
	}, nil
}

type torrentRemoveRequest struct {
	IDs             json.RawMessage `json:"ids"`
	DeleteLocalData json.RawMessage `json:"delete-local-data"`
}

func (d *Dispatcher) handleTorrentRemove(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	sel, appErr := parseIDSelector(raw)
	if appErr != nil {
		return nil, appErr
	}
	var in torrentRemoveRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}

	cmd, appErr := d.queue.Enqueue(ctx, model.CmdRemoveTorrent, engine.RemoveTorrentArgs{
		IDs:        sel,
		DeleteData: truthy(in.DeleteLocalData),
	})
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

func (d *Dispatcher) enqueueSelectorCommand(ctx context.Context, kind model.CommandKind, raw []byte) (interface{}, *apperror.Error) {
	sel, appErr := parseIDSelector(raw)
	if appErr != nil {
		return nil, appErr
	}
	cmd, appErr := d.queue.Enqueue(ctx, kind, sel)
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

func (d *Dispatcher) handleTorrentStart(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return d.enqueueSelectorCommand(ctx, model.CmdResume, raw)
}

func (d *Dispatcher) handleTorrentStop(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return d.enqueueSelectorCommand(ctx, model.CmdPause, raw)
}

func (d *Dispatcher) handleTorrentVerify(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return d.enqueueSelectorCommand(ctx, model.CmdVerify, raw)
}

func (d *Dispatcher) handleTorrentReannounce(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return d.enqueueSelectorCommand(ctx, model.CmdReannounce, raw)
}

type torrentSetRequest struct {
	IDs                json.RawMessage `json:"ids"`
	Labels             []string        `json:"labels"`
	SequentialDownload *bool           `json:"sequentialDownload"`
	SuperSeeding       *bool           `json:"superSeeding"`
	TrackerList        []string        `json:"trackerList"`
}

func (d *Dispatcher) handleTorrentSet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	sel, appErr := parseIDSelector(raw)
	if appErr != nil {
		return nil, appErr
	}
	var in torrentSetRequest
	var presence map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
		if err := json.Unmarshal(raw, &presence); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}
	_, hasLabels := presence["labels"]
	_, hasTrackerList := presence["trackerList"]

	args := model.SetTorrentArgs{
		IDs:                sel,
		Labels:             in.Labels,
		SetLabels:          hasLabels,
		SequentialDownload: in.SequentialDownload,
		SuperSeeding:       in.SuperSeeding,
		TrackerList:        in.TrackerList,
		SetTrackerList:     hasTrackerList,
	}

	cmd, appErr := d.queue.Enqueue(ctx, model.CmdSetTorrent, args)
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

// handleTorrentRenamePath is not supported: the embedded peer engine has no
// API to rename a piece-mapped file or directory once download has started.
func (d *Dispatcher) handleTorrentRenamePath(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return nil, apperror.New(apperror.KindUnsupportedMethod, "torrent-rename-path is not supported")
}
