package rpc

import (
	"context"
	"encoding/json"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

type historyGetRequest struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
	Step  *int64 `json:"step"`
	Limit *int64 `json:"limit"`
}

func (d *Dispatcher) handleHistoryGet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	var in historyGetRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}

	settings := d.cfg.Get()
	interval := int64(settings.HistoryIntervalSecs)
	if interval <= 0 {
		interval = 60
	}

	var end int64
	if in.End != nil {
		end = *in.End
	}
	var start int64
	if in.Start != nil {
		start = *in.Start
	}
	var requestedStep int64
	if in.Step != nil {
		requestedStep = *in.Step
	}
	var limit int64
	if in.Limit != nil {
		limit = *in.Limit
	}

	step := model.StepFor(requestedStep, interval, start, end, limit)

	buckets, err := d.history.QuerySpeedHistory(start, end)
	if err != nil {
		return nil, apperror.New(apperror.KindInternal, err.Error())
	}
	rows := model.AggregateHistory(buckets, start, end, step)

	tuples := make([][5]int64, 0, len(rows))
	for _, r := range rows {
		tuples = append(tuples, [5]int64{
			r.TimestampUnix,
			int64(r.SumDownBytes),
			int64(r.SumUpBytes),
			int64(r.PeakDownBytes),
			int64(r.PeakUpBytes),
		})
	}

	return struct {
		Step              int64      `json:"step"`
		RecordingInterval int64      `json:"recording-interval"`
		Rows              [][5]int64 `json:"rows"`
	}{Step: step, RecordingInterval: interval, Rows: tuples}, nil
}

type historyClearRequest struct {
	OlderThan *int64 `json:"older-than"`
}

func (d *Dispatcher) handleHistoryClear(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	var in historyClearRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}

	cmd, appErr := d.queue.Enqueue(ctx, model.CmdClearHistory, engine.ClearHistoryArgs{OlderThan: in.OlderThan})
	if appErr != nil {
		return nil, appErr
	}
	if _, appErr := await(ctx, cmd); appErr != nil {
		return nil, appErr
	}
	return struct{}{}, nil
}

type freeSpaceRequest struct {
	Path string `json:"path"`
}

// handleFreeSpace reports free bytes at path using the kernel statfs call
// directly; no pack example wires a disk-space library and the underlying
// syscall is already in the standard library on every platform this daemon
// targets.
func (d *Dispatcher) handleFreeSpace(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	var in freeSpaceRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, apperror.New(apperror.KindInvalidJSON, err.Error())
		}
	}
	if in.Path == "" {
		return nil, apperror.New(apperror.KindInvalidArgument, "path is required")
	}

	free, err := freeBytesAt(in.Path)
	if err != nil {
		return nil, apperror.New(apperror.KindPathUnreachable, err.Error())
	}

	return struct {
		Path      string `json:"path"`
		SizeBytes int64  `json:"size-bytes"`
	}{Path: in.Path, SizeBytes: free}, nil
}

// handleBlocklistUpdate is a stub: fetching and parsing a remote IP
// blocklist is out of scope here, so this always reports an empty list
// rather than pretending to download one.
func (d *Dispatcher) handleBlocklistUpdate(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	const size = 0
	d.emit("blocklist-updated", map[string]interface{}{"count": size})
	return struct {
		BlocklistSize int `json:"blocklist-size"`
	}{BlocklistSize: size}, nil
}

func (d *Dispatcher) handleGroupSet(ctx context.Context, raw []byte) (interface{}, *apperror.Error) {
	return struct{}{}, nil
}
