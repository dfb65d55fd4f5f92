package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestHandleHistoryGetAggregatesBuckets(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	d.history = &fakeHistoryRepo{buckets: []model.SpeedHistoryBucket{
		{TimestampUnix: 0, DownBytes: 10, UpBytes: 1},
		{TimestampUnix: 60, DownBytes: 20, UpBytes: 2},
		{TimestampUnix: 120, DownBytes: 5, UpBytes: 1},
	}}

	result, appErr := d.handleHistoryGet(context.Background(), []byte(`{"start":0,"end":120,"step":60}`))
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		Step              int64      `json:"step"`
		RecordingInterval int64      `json:"recording-interval"`
		Rows              [][5]int64 `json:"rows"`
	})
	require.True(t, ok)
	assert.Equal(t, int64(60), wire.Step)
	require.Len(t, wire.Rows, 3)
	assert.Equal(t, [5]int64{0, 10, 1, 10, 1}, wire.Rows[0])
}

func TestHandleHistoryClearEnqueuesCommand(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	older := int64(1000)

	go func() {
		cmd, ok := q.Pop()
		require.True(t, ok)
		args, ok := cmd.Args.(engine.ClearHistoryArgs)
		require.True(t, ok)
		require.NotNil(t, args.OlderThan)
		assert.Equal(t, older, *args.OlderThan)
		cmd.Done <- engine.Result{}
	}()

	_, appErr := d.handleHistoryClear(context.Background(), []byte(`{"older-than":1000}`))
	require.Nil(t, appErr)
}

func TestHandleFreeSpaceRejectsEmptyPath(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	_, appErr := d.handleFreeSpace(context.Background(), []byte(`{}`))
	require.NotNil(t, appErr)
	assert.Equal(t, "invalid-argument", string(appErr.Kind))
}

func TestHandleFreeSpaceReportsBytesForExistingPath(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	result, appErr := d.handleFreeSpace(context.Background(), []byte(`{"path":"/tmp"}`))
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		Path      string `json:"path"`
		SizeBytes int64  `json:"size-bytes"`
	})
	require.True(t, ok)
	assert.Equal(t, "/tmp", wire.Path)
	assert.True(t, wire.SizeBytes >= 0)
}

func TestHandleBlocklistUpdateReportsEmptyList(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	result, appErr := d.handleBlocklistUpdate(context.Background(), nil)
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		BlocklistSize int `json:"blocklist-size"`
	})
	require.True(t, ok)
	assert.Equal(t, 0, wire.BlocklistSize)
}
