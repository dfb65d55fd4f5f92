package rpcserver

import (
	"testing"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/diffpatch"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestSnapshotMessageCarriesTypeAndSequence(t *testing.T) {
	snap := model.SessionSnapshot{Sequence: 42}
	msg := snapshotMessage(snap)

	if msg.Type != "sync-snapshot" {
		t.Fatalf("Type = %q, want sync-snapshot", msg.Type)
	}
	if msg.Sequence != 42 {
		t.Fatalf("Sequence = %d, want 42", msg.Sequence)
	}
}

func TestPatchMessageNormalizesNilSlicesToEmpty(t *testing.T) {
	msg := patchMessage(diffpatch.Patch{Sequence: 7})

	data, ok := msg.Data.(struct {
		Session  map[string]interface{} `json:"session"`
		Torrents patchTorrents          `json:"torrents"`
	})
	if !ok {
		t.Fatal("unexpected Data shape")
	}
	if data.Torrents.Removed == nil || data.Torrents.Added == nil {
		t.Fatal("expected nil Removed/Added to be normalized to empty slices for stable JSON shape")
	}
	if msg.Type != "sync-patch" || msg.Sequence != 7 {
		t.Fatalf("got type=%q seq=%d, want sync-patch/7", msg.Type, msg.Sequence)
	}
}

func TestEventMessageCarriesNameAndData(t *testing.T) {
	msg := eventMessage("torrent-finished", map[string]int{"id": 3})

	if msg.Type != "event" || msg.Name != "torrent-finished" {
		t.Fatalf("got type=%q name=%q, want event/torrent-finished", msg.Type, msg.Name)
	}
}
