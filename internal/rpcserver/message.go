package rpcserver

import (
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/diffpatch"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// wireMessage is the envelope shape for every server-to-client WS frame.
type wireMessage struct {
	Type     string      `json:"type"`
	Sequence uint64      `json:"sequence,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Name     string      `json:"name,omitempty"`
}

func snapshotMessage(snap model.SessionSnapshot) wireMessage {
	return wireMessage{
		Type:     "sync-snapshot",
		Sequence: snap.Sequence,
		Data: struct {
			Session  model.CoreSettings      `json:"session"`
			Torrents []model.TorrentSnapshot `json:"torrents"`
		}{Session: snap.WireSettings(), Torrents: snap.Torrents},
	}
}

type patchTorrents struct {
	Removed []int                `json:"removed"`
	Added   []model.TorrentSnapshot `json:"added"`
	Updated []patchUpdate        `json:"updated"`
}

type patchUpdate struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

func patchMessage(p diffpatch.Patch) wireMessage {
	updated := make([]patchUpdate, len(p.Updated))
	for i, u := range p.Updated {
		updated[i] = patchUpdate{ID: u.ID, Fields: u.Fields}
	}
	removed := p.Removed
	if removed == nil {
		removed = []int{}
	}
	added := p.Added
	if added == nil {
		added = []model.TorrentSnapshot{}
	}
	return wireMessage{
		Type:     "sync-patch",
		Sequence: p.Sequence,
		Data: struct {
			Session  map[string]interface{} `json:"session"`
			Torrents patchTorrents          `json:"torrents"`
		}{
			Session:  p.Session,
			Torrents: patchTorrents{Removed: removed, Added: added, Updated: updated},
		},
	}
}

// eventMessage builds a named `event` frame, e.g. torrent-added{id}.
func eventMessage(name string, data interface{}) wireMessage {
	return wireMessage{Type: "event", Name: name, Data: data}
}
