// Package config implements the Configuration Service (C3): an
// authoritative, mutex-guarded CoreSettings with change events and
// dirty-flush persistence. File loading uses a simple key=value line
// format; env vars still override file values.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// Load builds a CoreSettings starting from DefaultSettings, overlaid by
// configPath (if it exists) and then by environment variables. It does not
// touch the persistence repository; startup code is responsible for then
// overlaying persisted key/value pairs via (*Service).LoadFromRepository.
func Load(configPath string) (model.CoreSettings, error) {
	cfg := model.DefaultSettings()

	if configPath != "" {
		if err := loadFromFile(&cfg, configPath); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	loadFromEnv(&cfg)
	return cfg, nil
}

func loadFromFile(cfg *model.CoreSettings, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		applyKV(cfg, key, value)
	}
	return scanner.Err()
}

func loadFromEnv(cfg *model.CoreSettings) {
	env := map[string]string{
		"listen-host":             os.Getenv("TT_LISTEN_HOST"),
		"listen-port":             os.Getenv("TT_LISTEN_PORT"),
		"download-dir":            os.Getenv("TT_DOWNLOAD_DIR"),
		"incomplete-dir":          os.Getenv("TT_INCOMPLETE_DIR"),
		"watch-dir":               os.Getenv("TT_WATCH_DIR"),
		"speed-limit-down":        os.Getenv("TT_SPEED_LIMIT_DOWN"),
		"speed-limit-up":          os.Getenv("TT_SPEED_LIMIT_UP"),
		"dht-enabled":             os.Getenv("TT_DHT_ENABLED"),
		"history-interval":        os.Getenv("TT_HISTORY_INTERVAL"),
		"history-retention-days":  os.Getenv("TT_HISTORY_RETENTION_DAYS"),
	}
	for k, v := range env {
		if v != "" {
			applyKV(cfg, k, v)
		}
	}
}

// applyKV maps a single persisted or configured key=value pair onto
// CoreSettings. It is also used by the Service when overlaying rows loaded
// from the repository at startup, so the key vocabulary is the single
// source of truth for what "a setting" is.
func applyKV(cfg *model.CoreSettings, key, value string) {
	switch key {
	case "listen-host":
		cfg.ListenHost = value
	case "listen-port":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.ListenPort = n
		}
	case "download-dir":
		cfg.DownloadDir = value
	case "incomplete-dir":
		cfg.IncompleteDir = value
	case "watch-dir":
		cfg.WatchDir = value
	case "watch-dir-enabled":
		cfg.WatchEnabled = truthy(value)
	case "speed-limit-down":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.DownloadRateLimitKBps = n
		}
	case "speed-limit-down-enabled":
		cfg.DownloadRateLimited = truthy(value)
	case "speed-limit-up":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.UploadRateLimitKBps = n
		}
	case "speed-limit-up-enabled":
		cfg.UploadRateLimited = truthy(value)
	case "dht-enabled":
		cfg.DHTEnabled = truthy(value)
	case "lpd-enabled":
		cfg.LPDEnabled = truthy(value)
	case "pex-enabled":
		cfg.PEXEnabled = truthy(value)
	case "proxy-type":
		cfg.ProxyType = model.ProxyKind(value)
	case "proxy-url":
		cfg.ProxyURL = value
	case "proxy-auth-enabled":
		cfg.ProxyAuthEnabled = truthy(value)
	case "proxy-username":
		cfg.ProxyUsername = value
	case "proxy-password":
		cfg.ProxyPassword = value
	case "proxy-peer-connections":
		cfg.ProxyForPeers = truthy(value)
	case "download-queue-size":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.QueueDownloadLimit = n
		}
	case "download-queue-enabled":
		cfg.QueueEnabled = truthy(value)
	case "history-enabled":
		cfg.HistoryEnabled = truthy(value)
	case "history-interval":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.HistoryIntervalSecs = n
		}
	case "history-retention-days":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.HistoryRetentionDays = n
		}
	}
}

func truthy(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}
