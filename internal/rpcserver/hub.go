package rpcserver

import (
	"sync"
	"time"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/diffpatch"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/logging"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// debounceWindow is the minimum spacing between two sync-patch broadcasts;
// the Engine may publish far more often than this under churn, and clients
// only need to see the coalesced result.
const debounceWindow = 200 * time.Millisecond

// SnapshotSource is the read side of the Engine the hub needs to seed the
// very first client's sync-snapshot before any patch has been computed.
type SnapshotSource interface {
	Snapshot() (model.SessionSnapshot, bool)
}

// hub fans every published SessionSnapshot out to connected WS clients as
// debounced sync-patch frames, and answers the question "what snapshot
// should a newly-connected client be baselined against" with the single
// snapshot every client shares a sequence baseline with.
type hub struct {
	snapshots SnapshotSource
	logger    *logging.Logger

	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	baseline  model.SessionSnapshot
	hasBase   bool
	latest    model.SessionSnapshot
	hasLatest bool
	pending   bool
}

func newHub(snapshots SnapshotSource) *hub {
	return &hub{
		snapshots: snapshots,
		logger:    logging.New("ws"),
		clients:   make(map[*wsClient]struct{}),
	}
}

// register adds c and returns the snapshot it must send as sync-snapshot:
// the shared baseline if one exists yet, otherwise whatever the Engine has
// published so far (which becomes the baseline for every future patch).
func (h *hub) register(c *wsClient) model.SessionSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasBase {
		if snap, ok := h.snapshots.Snapshot(); ok {
			h.baseline = snap
			h.hasBase = true
		}
	}
	h.clients[c] = struct{}{}
	return h.baseline
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// onSnapshot is registered as the Engine's OnPublish hook. It never blocks
// the Engine loop: it only records the latest snapshot and arms a timer if
// one isn't already pending.
func (h *hub) onSnapshot(snap model.SessionSnapshot) {
	h.mu.Lock()
	h.latest = snap
	h.hasLatest = true
	if !h.pending {
		h.pending = true
		time.AfterFunc(debounceWindow, h.flush)
	}
	h.mu.Unlock()
}

// flush computes the patch from the shared baseline to the latest recorded
// snapshot and broadcasts it, advancing the baseline only when a patch is
// actually sent. Runs off the Engine goroutine on its own timer.
//
// The baseline must never move past a sequence no client has seen: if it did
// on an empty-diff tick, the next non-empty patch would carry a sequence
// ahead of what clients last saw, tripping their +1 gap check.
func (h *hub) flush() {
	h.mu.Lock()
	if !h.hasLatest {
		h.pending = false
		h.mu.Unlock()
		return
	}
	next := h.latest
	h.pending = false
	h.hasLatest = false

	if !h.hasBase {
		h.baseline = next
		h.hasBase = true
		h.mu.Unlock()
		return
	}

	patch := diffpatch.Compute(h.baseline, next)
	if next.Sequence == patch.Sequence && len(patch.Removed) == 0 && len(patch.Added) == 0 && len(patch.Updated) == 0 && len(patch.Session) == 0 {
		h.mu.Unlock()
		return
	}
	h.baseline = next

	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	msg := patchMessage(patch)
	for _, c := range clients {
		c.send(msg)
	}
}

// broadcastEvent fans a named event out to every connected client.
func (h *hub) broadcastEvent(name string, data interface{}) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	msg := eventMessage(name, data)
	for _, c := range clients {
		c.send(msg)
	}
}
