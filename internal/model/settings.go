// Package model holds the immutable value types shared across the engine,
// dispatcher and server: core settings, torrent/session snapshots and speed
// history buckets.
package model

import "time"

// ProxyKind mirrors Transmission's proxy-type enumeration.
type ProxyKind string

const (
	ProxyNone   ProxyKind = "none"
	ProxyHTTP   ProxyKind = "http"
	ProxySOCKS4 ProxyKind = "socks4"
	ProxySOCKS5 ProxyKind = "socks5"
)

// RedactedPassword is substituted for any proxy password crossing the
// serialization boundary.
const RedactedPassword = "<REDACTED>"

// CoreSettings is the authoritative configuration object owned by the
// Configuration Service (C3). All fields are plain values so the service
// can hand out cheap copies.
type CoreSettings struct {
	ListenHost string `json:"listen-host"`
	ListenPort int    `json:"listen-port"`

	DownloadDir   string `json:"download-dir"`
	IncompleteDir string `json:"incomplete-dir"`
	WatchDir      string `json:"watch-dir"`
	WatchEnabled  bool   `json:"watch-dir-enabled"`

	DownloadRateLimitKBps int  `json:"speed-limit-down"`
	DownloadRateLimited   bool `json:"speed-limit-down-enabled"`
	UploadRateLimitKBps   int  `json:"speed-limit-up"`
	UploadRateLimited     bool `json:"speed-limit-up-enabled"`

	DHTEnabled bool `json:"dht-enabled"`
	LPDEnabled bool `json:"lpd-enabled"`
	PEXEnabled bool `json:"pex-enabled"`

	ProxyType        ProxyKind `json:"proxy-type"`
	ProxyURL         string    `json:"proxy-url"`
	ProxyAuthEnabled bool      `json:"proxy-auth-enabled"`
	ProxyUsername    string    `json:"proxy-username"`
	ProxyPassword    string    `json:"proxy-password"`
	ProxyForPeers    bool      `json:"proxy-peer-connections"`

	QueueDownloadLimit int  `json:"download-queue-size"`
	QueueEnabled       bool `json:"download-queue-enabled"`

	HistoryEnabled       bool `json:"history-enabled"`
	HistoryIntervalSecs  int  `json:"history-interval"`
	HistoryRetentionDays int  `json:"history-retention-days"`
}

// DefaultSettings mirrors the conservative defaults a fresh install starts
// from before any persisted key/value overlay is applied.
func DefaultSettings() CoreSettings {
	return CoreSettings{
		ListenHost:            "127.0.0.1",
		ListenPort:            0, // 0 == pick a free port
		DownloadDir:           "downloads",
		IncompleteDir:         "incomplete",
		WatchEnabled:          false,
		DownloadRateLimitKBps: 0,
		UploadRateLimitKBps:   0,
		DHTEnabled:            true,
		LPDEnabled:            true,
		PEXEnabled:            true,
		ProxyType:             ProxyNone,
		QueueEnabled:          true,
		QueueDownloadLimit:    5,
		HistoryEnabled:        true,
		HistoryIntervalSecs:   60,
		HistoryRetentionDays:  7,
	}
}

// Redacted returns a copy with ProxyPassword masked, safe to serialize onto
// the wire. The receiver (and anything held internally by the engine) keeps
// the cleartext value.
func (s CoreSettings) Redacted() CoreSettings {
	if s.ProxyAuthEnabled && s.ProxyPassword != "" {
		s.ProxyPassword = RedactedPassword
	}
	return s
}

// Clock abstracts time.Now so history bucketing logic is deterministic under
// test without touching real wall-clock time.
type Clock func() time.Time
