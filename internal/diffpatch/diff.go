// Package diffpatch implements the Diff & Patch Engine (C9): computing
// (removed, added, updated, session) deltas between two consecutive
// SessionSnapshot values.
package diffpatch

import (
	"reflect"
	"sort"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// Patch is the serialized diff between snapshot L (sequence N) and S
// (sequence N+1). Field order on the struct is irrelevant; the wire
// marshaling (internal/rpcserver) is responsible for emitting
// removed-then-added-then-updated.
type Patch struct {
	Sequence uint64
	Removed  []int
	Added    []model.TorrentSnapshot
	Updated  []TorrentUpdate
	Session  map[string]interface{}
}

// TorrentUpdate carries only the fields of a torrent that changed, keyed by
// their JSON wire name.
type TorrentUpdate struct {
	ID     int
	Fields map[string]interface{}
}

// Compute builds the Patch taking the session from last (L) to next (S).
// The Patch carries next.Sequence; Compute does not check that it equals
// last.Sequence+1.
func Compute(last, next model.SessionSnapshot) Patch {
	lastByID := make(map[int]model.TorrentSnapshot, len(last.Torrents))
	for _, t := range last.Torrents {
		lastByID[t.ID] = t
	}
	nextByID := make(map[int]model.TorrentSnapshot, len(next.Torrents))
	for _, t := range next.Torrents {
		nextByID[t.ID] = t
	}

	var removed []int
	for id := range lastByID {
		if _, ok := nextByID[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Ints(removed)

	var added []model.TorrentSnapshot
	var updated []TorrentUpdate
	for _, t := range next.Torrents { // preserve S's order for `added`
		old, existed := lastByID[t.ID]
		if existed && old.InfoHash != t.InfoHash {
			// Id reuse: the same numeric id now names a different torrent.
			// Prefer removed+added over updated so clients never see a
			// torrent's identity silently swap under one id.
			existed = false
			removed = append(removed, t.ID)
		}
		if !existed {
			added = append(added, t)
			continue
		}
		if fields := diffTorrentFields(old, t); len(fields) > 0 {
			updated = append(updated, TorrentUpdate{ID: t.ID, Fields: fields})
		}
	}
	sort.Ints(removed)

	return Patch{
		Sequence: next.Sequence,
		Removed:  removed,
		Added:    added,
		Updated:  updated,
		Session:  diffSessionFields(last, next),
	}
}

// diffTorrentFields compares old and next field-by-field, returning only
// the wire-named fields whose value differs. Label sets compare as
// multisets (order-independent); everything else compares by plain
// equality, which for float64 is equivalent to bitwise-equal on the
// serialized value since Go float equality is bit-exact for non-NaN values.
func diffTorrentFields(old, next model.TorrentSnapshot) map[string]interface{} {
	fields := map[string]interface{}{}

	cmp := func(name string, a, b interface{}, wire interface{}) {
		if !reflect.DeepEqual(a, b) {
			fields[name] = wire
		}
	}

	cmp("status", old.Status, next.Status, next.Status)
	cmp("error", old.ErrorKind, next.ErrorKind, next.ErrorKind)
	cmp("errorString", old.ErrorMessage, next.ErrorMessage, next.ErrorMessage)
	cmp("rateDownload", old.RateDownloadBps, next.RateDownloadBps, next.RateDownloadBps)
	cmp("rateUpload", old.RateUploadBps, next.RateUploadBps, next.RateUploadBps)
	cmp("downloadedEver", old.DownloadedBytes, next.DownloadedBytes, next.DownloadedBytes)
	cmp("uploadedEver", old.UploadedBytes, next.UploadedBytes, next.UploadedBytes)
	cmp("percentDone", old.PercentComplete, next.PercentComplete, next.PercentComplete)
	cmp("metadataPercentComplete", old.MetadataPercentComplete, next.MetadataPercentComplete, next.MetadataPercentComplete)
	cmp("name", old.Name, next.Name, next.Name)
	cmp("sequentialDownload", old.SequentialDownload, next.SequentialDownload, next.SequentialDownload)
	cmp("superSeeding", old.SuperSeeding, next.SuperSeeding, next.SuperSeeding)
	cmp("paused", old.Paused, next.Paused, next.Paused)
	cmp("rehashActive", old.RehashActive, next.RehashActive, next.RehashActive)
	cmp("rehashStartCount", old.RehashStartCount, next.RehashStartCount, next.RehashStartCount)
	cmp("rehashCompleteCount", old.RehashCompleteCount, next.RehashCompleteCount, next.RehashCompleteCount)
	cmp("trackerAnnounces", old.TrackerAnnounces, next.TrackerAnnounces, next.TrackerAnnounces)
	cmp("dhtReplies", old.DHTReplies, next.DHTReplies, next.DHTReplies)
	cmp("peerConnections", old.PeerConnections, next.PeerConnections, next.PeerConnections)
	cmp("downloadDir", old.SavePath, next.SavePath, next.SavePath)

	if !labelsEqualAsMultiset(old.Labels, next.Labels) {
		fields["labels"] = next.Labels
	}

	return fields
}

func diffSessionFields(last, next model.SessionSnapshot) map[string]interface{} {
	fields := map[string]interface{}{}
	if last.RateDownloadBps != next.RateDownloadBps {
		fields["rateDownload"] = next.RateDownloadBps
	}
	if last.RateUploadBps != next.RateUploadBps {
		fields["rateUpload"] = next.RateUploadBps
	}
	if last.DownloadedBytes != next.DownloadedBytes {
		fields["downloadedEver"] = next.DownloadedBytes
	}
	if last.UploadedBytes != next.UploadedBytes {
		fields["uploadedEver"] = next.UploadedBytes
	}
	if last.ActiveTorrentCount != next.ActiveTorrentCount {
		fields["activeTorrentCount"] = next.ActiveTorrentCount
	}
	if last.TorrentCount != next.TorrentCount {
		fields["torrentCount"] = next.TorrentCount
	}
	if !reflect.DeepEqual(last.LabelsRegistry, next.LabelsRegistry) {
		fields["labels-registry"] = next.LabelsRegistry
	}
	if last.Settings != next.Settings {
		fields["session-settings"] = next.WireSettings()
	}
	return fields
}

func labelsEqualAsMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}
