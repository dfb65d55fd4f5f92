package model

// Status mirrors Transmission's tr_stat status codes closely enough for
// torrent-get consumers while keeping the underlying state machine explicit.
type Status int

const (
	StatusStopped Status = iota
	StatusCheckWait
	StatusChecking
	StatusDownloadWait
	StatusDownloading
	StatusSeedWait
	StatusSeeding
)

// ErrorKind classifies the sub-kind of a torrent-level error, derived from
// the error text reported by the embedded peer library. Unclassifiable
// errors keep ErrorKindGeneric and the verbatim message (see DESIGN.md open
// question #2).
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindGeneric
	ErrorKindAccessDenied
	ErrorKindPathLoss
	ErrorKindVolumeLoss
)

// String names the kind for logging and WS event payloads; the wire
// TorrentSnapshot itself still carries the bare integer (see its ErrorKind
// json tag below), matching Transmission's own numeric tr_stat error codes.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindGeneric:
		return "generic"
	case ErrorKindAccessDenied:
		return "access-denied"
	case ErrorKindPathLoss:
		return "path-loss"
	case ErrorKindVolumeLoss:
		return "volume-loss"
	default:
		return "unknown"
	}
}

// TorrentSnapshot is the immutable per-torrent public view. A new value
// replaces the previous one atomically; nothing mutates a TorrentSnapshot in
// place once constructed.
type TorrentSnapshot struct {
	ID       int    `json:"id"`
	InfoHash string `json:"hashString"`
	Name     string `json:"name"`

	Status       Status    `json:"status"`
	ErrorKind    ErrorKind `json:"error"`
	ErrorMessage string    `json:"errorString"`

	RateDownloadBps int64 `json:"rateDownload"`
	RateUploadBps   int64 `json:"rateUpload"`
	DownloadedBytes int64 `json:"downloadedEver"`
	UploadedBytes   int64 `json:"uploadedEver"`
	TotalSizeBytes  int64 `json:"totalSize"`

	PercentComplete         float64 `json:"percentDone"`
	MetadataPercentComplete float64 `json:"metadataPercentComplete"`

	Labels []string `json:"labels"`

	SequentialDownload bool `json:"sequentialDownload"`
	SuperSeeding       bool `json:"superSeeding"`
	Paused             bool `json:"paused"`

	RehashActive            bool `json:"rehashActive"`
	RehashStartCount        int  `json:"rehashStartCount"`
	RehashCompleteCount     int  `json:"rehashCompleteCount"`

	TrackerAnnounces int `json:"trackerAnnounces"`
	DHTReplies       int `json:"dhtReplies"`
	PeerConnections  int `json:"peerConnections"`

	SavePath string `json:"downloadDir"`
}

// Clone returns a deep-enough copy (labels slice copied) so callers can
// mutate derived fields without aliasing the published snapshot.
func (t TorrentSnapshot) Clone() TorrentSnapshot {
	if t.Labels != nil {
		labels := make([]string, len(t.Labels))
		copy(labels, t.Labels)
		t.Labels = labels
	}
	return t
}

// SessionSnapshot is the immutable root value published by the Engine on
// every tick that produces a change. Sequence increases by exactly one per
// publish.
type SessionSnapshot struct {
	Sequence uint64 `json:"sequence"`

	RateDownloadBps int64 `json:"rateDownload"`
	RateUploadBps   int64 `json:"rateUpload"`
	DownloadedBytes int64 `json:"downloadedEver"`
	UploadedBytes   int64 `json:"uploadedEver"`

	ActiveTorrentCount int `json:"activeTorrentCount"`
	TorrentCount       int `json:"torrentCount"`

	Torrents []TorrentSnapshot `json:"torrents"`

	LabelsRegistry map[string]int `json:"labels-registry"`

	Settings CoreSettings `json:"session-settings"`
}

// WireSettings returns the session-level settings with the proxy password
// masked, the only place CoreSettings is allowed to reach the wire.
func (s SessionSnapshot) WireSettings() CoreSettings {
	return s.Settings.Redacted()
}

// ByID looks up a torrent snapshot by id; ok is false when absent.
func (s SessionSnapshot) ByID(id int) (TorrentSnapshot, bool) {
	for _, t := range s.Torrents {
		if t.ID == id {
			return t, true
		}
	}
	return TorrentSnapshot{}, false
}
