package model

// CommandKind tags the variant carried by a PendingCommand.
type CommandKind int

const (
	CmdAddTorrent CommandKind = iota
	CmdRemoveTorrent
	CmdPause
	CmdResume
	CmdVerify
	CmdReannounce
	CmdSetTorrent
	CmdSetSettings
	CmdClearHistory
)

// IDSelector normalizes the "ids" argument shape accepted across the RPC
// surface: an explicit list of ids, or the "all" / "recently-active"
// keywords.
type IDSelector struct {
	IDs            []int
	All            bool
	RecentlyActive bool
}

// AddTorrentArgs carries the three mutually exclusive torrent sources a
// torrent-add call may supply. JSON tags mirror Transmission's torrent-add
// arguments object.
type AddTorrentArgs struct {
	MetainfoBytes []byte   `json:"-"`
	MagnetURI     string   `json:"-"`
	LocalPath     string   `json:"-"`
	SavePath      string   `json:"download-dir,omitempty"`
	Paused        bool     `json:"paused,omitempty"`
	Labels        []string `json:"labels,omitempty"`
}

// SetTorrentArgs carries the torrent-set mutators, mirroring the wire field
// names of TorrentSetPayload (see DESIGN.md C7 grounding).
type SetTorrentArgs struct {
	IDs                IDSelector `json:"-"`
	Labels             []string   `json:"labels,omitempty"`
	SetLabels          bool       `json:"-"`
	SequentialDownload *bool      `json:"sequentialDownload,omitempty"`
	SuperSeeding       *bool      `json:"superSeeding,omitempty"`
	Location           *string    `json:"location,omitempty"`
	TrackerList        []string   `json:"trackerList,omitempty"`
	SetTrackerList     bool       `json:"-"`
	FilesWanted        []int      `json:"files-wanted,omitempty"`
	FilesUnwanted      []int      `json:"files-unwanted,omitempty"`
}

// SettingsPatch carries only the keys present in a session-set call; nil
// pointers mean "leave unchanged". JSON tags match CoreSettings' own wire
// names so a session-set body unmarshals directly into a patch.
type SettingsPatch struct {
	ListenPort            *int       `json:"listen-port,omitempty"`
	DownloadDir           *string    `json:"download-dir,omitempty"`
	DownloadRateLimitKBps *int       `json:"speed-limit-down,omitempty"`
	DownloadRateLimited   *bool      `json:"speed-limit-down-enabled,omitempty"`
	UploadRateLimitKBps   *int       `json:"speed-limit-up,omitempty"`
	UploadRateLimited     *bool      `json:"speed-limit-up-enabled,omitempty"`
	DHTEnabled            *bool      `json:"dht-enabled,omitempty"`
	LPDEnabled            *bool      `json:"lpd-enabled,omitempty"`
	PEXEnabled            *bool      `json:"pex-enabled,omitempty"`
	ProxyType             *ProxyKind `json:"proxy-type,omitempty"`
	ProxyURL              *string    `json:"proxy-url,omitempty"`
	ProxyAuthEnabled      *bool      `json:"proxy-auth-enabled,omitempty"`
	ProxyUsername         *string    `json:"proxy-username,omitempty"`
	ProxyPassword         *string    `json:"proxy-password,omitempty"`
	ProxyForPeers         *bool      `json:"proxy-peer-connections,omitempty"`
	HistoryEnabled        *bool      `json:"history-enabled,omitempty"`
	HistoryIntervalSecs   *int       `json:"history-interval,omitempty"`
	HistoryRetentionDays  *int       `json:"history-retention-days,omitempty"`
}

// Apply copies every non-nil field of p onto s.
func (p SettingsPatch) Apply(s *CoreSettings) {
	if p.ListenPort != nil {
		s.ListenPort = *p.ListenPort
	}
	if p.DownloadDir != nil {
		s.DownloadDir = *p.DownloadDir
	}
	if p.DownloadRateLimitKBps != nil {
		s.DownloadRateLimitKBps = *p.DownloadRateLimitKBps
	}
	if p.DownloadRateLimited != nil {
		s.DownloadRateLimited = *p.DownloadRateLimited
	}
	if p.UploadRateLimitKBps != nil {
		s.UploadRateLimitKBps = *p.UploadRateLimitKBps
	}
	if p.UploadRateLimited != nil {
		s.UploadRateLimited = *p.UploadRateLimited
	}
	if p.DHTEnabled != nil {
		s.DHTEnabled = *p.DHTEnabled
	}
	if p.LPDEnabled != nil {
		s.LPDEnabled = *p.LPDEnabled
	}
	if p.PEXEnabled != nil {
		s.PEXEnabled = *p.PEXEnabled
	}
	if p.ProxyType != nil {
		s.ProxyType = *p.ProxyType
	}
	if p.ProxyURL != nil {
		s.ProxyURL = *p.ProxyURL
	}
	if p.ProxyAuthEnabled != nil {
		s.ProxyAuthEnabled = *p.ProxyAuthEnabled
	}
	if p.ProxyUsername != nil {
		s.ProxyUsername = *p.ProxyUsername
	}
	if p.ProxyPassword != nil {
		s.ProxyPassword = *p.ProxyPassword
	}
	if p.ProxyForPeers != nil {
		s.ProxyForPeers = *p.ProxyForPeers
	}
	if p.HistoryEnabled != nil {
		s.HistoryEnabled = *p.HistoryEnabled
	}
	if p.HistoryIntervalSecs != nil {
		s.HistoryIntervalSecs = *p.HistoryIntervalSecs
	}
	if p.HistoryRetentionDays != nil {
		s.HistoryRetentionDays = *p.HistoryRetentionDays
	}
}
