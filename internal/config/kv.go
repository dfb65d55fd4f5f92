package config

import (
	"strconv"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// toKV is the inverse of applyKV: it flattens CoreSettings into the
// key=value vocabulary persisted by the repository.
func toKV(s model.CoreSettings) map[string]string {
	b := func(v bool) string {
		if v {
			return "true"
		}
		return "false"
	}
	i := strconv.Itoa
	return map[string]string{
		"listen-host":              s.ListenHost,
		"listen-port":              i(s.ListenPort),
		"download-dir":             s.DownloadDir,
		"incomplete-dir":           s.IncompleteDir,
		"watch-dir":                s.WatchDir,
		"watch-dir-enabled":        b(s.WatchEnabled),
		"speed-limit-down":         i(s.DownloadRateLimitKBps),
		"speed-limit-down-enabled": b(s.DownloadRateLimited),
		"speed-limit-up":           i(s.UploadRateLimitKBps),
		"speed-limit-up-enabled":   b(s.UploadRateLimited),
		"dht-enabled":              b(s.DHTEnabled),
		"lpd-enabled":              b(s.LPDEnabled),
		"pex-enabled":              b(s.PEXEnabled),
		"proxy-type":               string(s.ProxyType),
		"proxy-url":                s.ProxyURL,
		"proxy-auth-enabled":       b(s.ProxyAuthEnabled),
		"proxy-username":           s.ProxyUsername,
		"proxy-password":           s.ProxyPassword,
		"proxy-peer-connections":   b(s.ProxyForPeers),
		"download-queue-size":      i(s.QueueDownloadLimit),
		"download-queue-enabled":   b(s.QueueEnabled),
		"history-enabled":          b(s.HistoryEnabled),
		"history-interval":         i(s.HistoryIntervalSecs),
		"history-retention-days":   i(s.HistoryRetentionDays),
	}
}
