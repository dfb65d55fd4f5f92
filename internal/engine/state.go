package engine

import (
	"strings"
	"time"

	"github.com/anacrolix/torrent"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// managedTorrent is the Engine's private per-torrent bookkeeping, the state
// the embedded peer library does not track for us: stable id, labels,
// pause ownership, rehash counters. Nothing outside this package ever
// touches it directly; TorrentSnapshot is the only thing that leaves.
type managedTorrent struct {
	id int
	t  *torrent.Torrent

	labels             []string
	sequentialDownload bool
	superSeeding       bool

	userPaused     bool
	recoveryPaused bool

	rehashActive        bool
	rehashStartCount    int
	rehashCompleteCount int

	trackerAnnounces int
	dhtReplies       int

	lastErrorKind    model.ErrorKind
	lastErrorMessage string

	gotInfoSeen        bool
	completionNotified bool

	savePath string

	// healthResult carries the outcome of a storage-health check (os.Stat on
	// savePath) submitted to the worker pool; drainTorrentState is the only
	// reader, keeping lastErrorKind/lastErrorMessage writes confined to the
	// Run goroutine even though the stat itself runs elsewhere.
	healthResult   chan error
	healthPending  bool
	nextHealthScan time.Time
}

func (mt *managedTorrent) paused() bool {
	return mt.userPaused || mt.recoveryPaused
}

// snapshot materializes the public TorrentSnapshot view for mt. It is pure:
// no I/O, no locking beyond what the caller already holds.
func (mt *managedTorrent) snapshot() model.TorrentSnapshot {
	name := mt.t.Name()
	infoHash := mt.t.InfoHash().HexString()

	var totalSize, downloaded int64
	var percent, metaPercent float64
	if mt.t.Info() != nil {
		totalSize = mt.t.Length()
		downloaded = mt.t.BytesCompleted()
		if totalSize > 0 {
			percent = float64(downloaded) / float64(totalSize)
		}
		metaPercent = 1
	}

	stats := mt.t.Stats()
	rateDown, rateUp := int64(0), int64(0) // instantaneous rates are sampled by the Engine loop, not read here

	status := classifyStatus(mt, percent)

	return model.TorrentSnapshot{
		ID:                      mt.id,
		InfoHash:                infoHash,
		Name:                    name,
		Status:                  status,
		ErrorKind:               mt.lastErrorKind,
		ErrorMessage:            mt.lastErrorMessage,
		RateDownloadBps:         rateDown,
		RateUploadBps:           rateUp,
		DownloadedBytes:         downloaded,
		UploadedBytes:           int64(stats.BytesWrittenData.Int64()),
		TotalSizeBytes:          totalSize,
		PercentComplete:         percent,
		MetadataPercentComplete: metaPercent,
		Labels:                  append([]string(nil), mt.labels...),
		SequentialDownload:      mt.sequentialDownload,
		SuperSeeding:            mt.superSeeding,
		Paused:                  mt.paused(),
		RehashActive:            mt.rehashActive,
		RehashStartCount:        mt.rehashStartCount,
		RehashCompleteCount:     mt.rehashCompleteCount,
		TrackerAnnounces:        mt.trackerAnnounces,
		DHTReplies:              mt.dhtReplies,
		PeerConnections:         stats.ActivePeers,
		SavePath:                mt.savePath,
	}
}

func classifyStatus(mt *managedTorrent, percent float64) model.Status {
	if mt.lastErrorKind != model.ErrorKindNone {
		return model.StatusStopped
	}
	if mt.paused() {
		return model.StatusStopped
	}
	if mt.rehashActive {
		return model.StatusChecking
	}
	if mt.t.Info() == nil {
		return model.StatusDownloadWait
	}
	if percent >= 1 {
		return model.StatusSeeding
	}
	return model.StatusDownloading
}

// classifyError derives an ErrorKind from the verbatim message the peer
// library reports. Only the three named sub-kinds are recognized by
// substring match (see DESIGN.md); everything else stays ErrorKindGeneric
// with the message carried verbatim.
func classifyError(message string) model.ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "access is denied"):
		return model.ErrorKindAccessDenied
	case strings.Contains(lower, "no such file or directory"), strings.Contains(lower, "path"):
		return model.ErrorKindPathLoss
	case strings.Contains(lower, "no space left"), strings.Contains(lower, "device not configured"), strings.Contains(lower, "volume"):
		return model.ErrorKindVolumeLoss
	case message == "":
		return model.ErrorKindNone
	default:
		return model.ErrorKindGeneric
	}
}
