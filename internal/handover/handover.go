// Package handover implements C10: generating the ephemeral per-process
// auth token and atomically publishing connection.json for the launcher.
package handover

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NewToken generates a fresh 128-bit hex token, the sole auth credential for
// the process lifetime.
func NewToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Connection is the JSON shape written to connection.json.
type Connection struct {
	Port  int    `json:"port"`
	Token string `json:"token"`
	PID   int    `json:"pid"`
}

// Write atomically publishes connection.json inside dataDir: it writes to a
// temp file in the same directory then renames over the target, so a reader
// never observes a partial file. Permissions are user-only (0600).
func Write(dataDir string, conn Connection) error {
	path := filepath.Join(dataDir, "connection.json")
	tmp := path + ".tmp"

	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("encoding connection info: %w", err)
	}

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing handover temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing handover file: %w", err)
	}
	return nil
}

// Remove deletes any stale connection.json left from a previous run; called
// at startup before the new one is written.
func Remove(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, "connection.json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
