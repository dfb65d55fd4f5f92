package rpc

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestHandleTorrentAddRejectsEmptyArguments(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	_, appErr := d.handleTorrentAdd(context.Background(), nil)
	require.NotNil(t, appErr)
	assert.Equal(t, "invalid-argument", string(appErr.Kind))
}

func TestHandleTorrentAddBuildsMagnetArgs(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	go func() {
		cmd, ok := q.Pop()
		require.True(t, ok)
		args, ok := cmd.Args.(model.AddTorrentArgs)
		require.True(t, ok)
		assert.Equal(t, "magnet:?xt=urn:btih:deadbeef", args.MagnetURI)
		cmd.Done <- engine.Result{Value: engine.AddedTorrent{ID: 1, InfoHash: "deadbeef"}}
	}()

	result, appErr := d.handleTorrentAdd(context.Background(), []byte(`{"filename":"magnet:?xt=urn:btih:deadbeef"}`))
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		TorrentAdded addedTorrentWire `json:"torrent-added"`
	})
	require.True(t, ok)
	assert.Equal(t, 1, wire.TorrentAdded.ID)
	assert.Equal(t, "deadbeef", wire.TorrentAdded.HashString)
}

func TestHandleTorrentAddDecodesBase64Metainfo(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	blob := []byte("fake metainfo bytes")
	encoded := base64.StdEncoding.EncodeToString(blob)

	go func() {
		cmd, ok := q.Pop()
		require.True(t, ok)
		args, ok := cmd.Args.(model.AddTorrentArgs)
		require.True(t, ok)
		assert.Equal(t, blob, args.MetainfoBytes)
		cmd.Done <- engine.Result{Value: engine.AddedTorrent{ID: 2, InfoHash: "abc123"}}
	}()

	_, appErr := d.handleTorrentAdd(context.Background(), []byte(`{"metainfo":"`+encoded+`"}`))
	require.Nil(t, appErr)
}

func TestHandleTorrentAddRejectsInvalidBase64(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	_, appErr := d.handleTorrentAdd(context.Background(), []byte(`{"metainfo":"not-base64!!"}`))
	require.NotNil(t, appErr)
	assert.Equal(t, "invalid-argument", string(appErr.Kind))
}

func TestHandleTorrentRemoveParsesDeleteLocalData(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	go func() {
		cmd, ok := q.Pop()
		require.True(t, ok)
		args, ok := cmd.Args.(engine.RemoveTorrentArgs)
		require.True(t, ok)
		assert.True(t, args.DeleteData)
		cmd.Done <- engine.Result{}
	}()

	_, appErr := d.handleTorrentRemove(context.Background(), []byte(`{"ids":[1],"delete-local-data":1}`))
	require.Nil(t, appErr)
}

func TestHandleTorrentSetDistinguishesAbsentFromEmptyLabels(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	go func() {
		cmd, ok := q.Pop()
		require.True(t, ok)
		args, ok := cmd.Args.(model.SetTorrentArgs)
		require.True(t, ok)
		assert.True(t, args.SetLabels)
		assert.Empty(t, args.Labels)
		assert.False(t, args.SetTrackerList)
		cmd.Done <- engine.Result{}
	}()

	_, appErr := d.handleTorrentSet(context.Background(), []byte(`{"ids":[1],"labels":[]}`))
	require.Nil(t, appErr)
}

func TestHandleTorrentRenamePathIsUnsupported(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	_, appErr := d.handleTorrentRenamePath(context.Background(), nil)
	require.NotNil(t, appErr)
	assert.Equal(t, "unsupported-method", string(appErr.Kind))
}

func TestHandleTorrentGetProjectsRequestedFields(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	d.snapshots = &fakeSnapshotSource{ok: true, snap: model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 1, Name: "alpha"}, {ID: 2, Name: "beta"}},
	}}

	result, appErr := d.handleTorrentGet(context.Background(), []byte(`{"fields":["id","name"]}`))
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		Torrents []interface{} `json:"torrents"`
	})
	require.True(t, ok)
	require.Len(t, wire.Torrents, 2)
	first, ok := wire.Torrents[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alpha", first["name"])
	_, hasStatus := first["status"]
	assert.False(t, hasStatus)
}

func TestHandleTorrentGetFiltersByIDs(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	d.snapshots = &fakeSnapshotSource{ok: true, snap: model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 1, Name: "alpha"}, {ID: 2, Name: "beta"}},
	}}

	result, appErr := d.handleTorrentGet(context.Background(), []byte(`{"ids":[2]}`))
	require.Nil(t, appErr)
	wire, ok := result.(struct {
		Torrents []interface{} `json:"torrents"`
	})
	require.True(t, ok)
	require.Len(t, wire.Torrents, 1)
	snap, ok := wire.Torrents[0].(model.TorrentSnapshot)
	require.True(t, ok)
	assert.Equal(t, 2, snap.ID)
}
