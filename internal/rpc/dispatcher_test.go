package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/config"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/engine"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func newTestDispatcher(t *testing.T, ready bool) (*Dispatcher, *engine.Queue) {
	t.Helper()
	q := engine.NewQueue(8)
	cfg := config.NewService(model.DefaultSettings(), newFakeConfigRepo(), nil)
	snaps := &fakeSnapshotSource{ok: true, snap: model.SessionSnapshot{TorrentCount: 1}}
	hist := &fakeHistoryRepo{}
	caps := Capabilities{ServerVersion: "1.0.0-test", RPCVersion: 17}
	d := New(q, snaps, cfg, hist, caps, func() bool { return ready })
	return d, q
}

// drainOnce pops exactly one command off q and replies with result,
// simulating the Engine loop for a single async call under test.
func drainOnce(q *engine.Queue, result engine.Result) {
	cmd, ok := q.Pop()
	if !ok {
		return
	}
	cmd.Done <- result
}

func TestHandleRejectsUnsupportedMethod(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	resp := d.Handle(context.Background(), []byte(`{"method":"not-a-real-method"}`))
	assert.NotEqual(t, resultSuccess, resp.Result)
}

func TestHandleRejectsEngineDependentMethodWhenNotReady(t *testing.T) {
	d, _ := newTestDispatcher(t, false)
	resp := d.Handle(context.Background(), []byte(`{"method":"torrent-get"}`))
	assert.Equal(t, resultError, resp.Result)
	args, ok := resp.Arguments.(errorArguments)
	require.True(t, ok)
	assert.Equal(t, "engine unavailable", args.Message)
}

func TestHandleCapabilitiesDoesNotRequireEngine(t *testing.T) {
	d, _ := newTestDispatcher(t, false)
	resp := d.Handle(context.Background(), []byte(`{"method":"tt-get-capabilities"}`))
	assert.Equal(t, resultSuccess, resp.Result)
	caps, ok := resp.Arguments.(Capabilities)
	require.True(t, ok)
	assert.Equal(t, 17, caps.RPCVersion)
}

func TestHandlePreservesTag(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	resp := d.Handle(context.Background(), []byte(`{"method":"tt-get-capabilities","tag":42}`))
	require.NotNil(t, resp.Tag)
	assert.Equal(t, 42, *resp.Tag)
}

func TestHandleSessionPauseAllRoundTripsThroughQueue(t *testing.T) {
	d, q := newTestDispatcher(t, true)
	go drainOnce(q, engine.Result{})

	resp := d.Handle(context.Background(), []byte(`{"method":"session-pause-all"}`))
	assert.Equal(t, resultSuccess, resp.Result)
}

func TestHandleDecodeFailureBypassesRouting(t *testing.T) {
	d, _ := newTestDispatcher(t, true)
	resp := d.Handle(context.Background(), nil)
	assert.Equal(t, resultError, resp.Result)
	args, ok := resp.Arguments.(errorArguments)
	require.True(t, ok)
	assert.Equal(t, "request body is empty", args.Message)
}
