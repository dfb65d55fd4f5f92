// Package store implements the Persistence Repository (C1): a narrow typed
// interface over a SQLite-class embedded database. No SQL or storage term
// leaks above this package; callers speak settings keys, info-hashes and
// speed buckets only.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// Store wraps the sqlite connection in a thin DB{*sql.DB} shape, against an
// embedded file rather than a network server.
type Store struct {
	*sql.DB
}

// Open connects to (and creates, if absent) the sqlite database at path and
// runs the schema migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// A single-process local daemon writing to one sqlite file: one
	// connection avoids SQLITE_BUSY from concurrent writers contending on
	// the same file lock. Every query, read or write, is serialized through
	// that one connection, so a result set must be closed before the next
	// query on this Store can run.
	db.SetMaxOpenConns(1)

	s := &Store{db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// GetSetting returns the persisted value for key, and ok=false if absent.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a single key/value pair.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// ListSettings returns every persisted key/value pair.
func (s *Store) ListSettings() (map[string]string, error) {
	rows, err := s.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// TorrentMetadata is the persisted row for one torrent: the opaque resume
// blob plus the labels the peer library itself does not track.
type TorrentMetadata struct {
	InfoHash string
	Blob     []byte
	Labels   []string
}

// ListTorrentMetadata returns every persisted torrent, used to rehydrate the
// session on startup.
func (s *Store) ListTorrentMetadata() ([]TorrentMetadata, error) {
	rows, err := s.Query(`SELECT info_hash, blob FROM torrents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TorrentMetadata
	for rows.Next() {
		var m TorrentMetadata
		if err := rows.Scan(&m.InfoHash, &m.Blob); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the single connection before the per-torrent label queries.
	rows.Close()
	for i := range out {
		labels, err := s.getLabels(out[i].InfoHash)
		if err != nil {
			return nil, err
		}
		out[i].Labels = labels
	}
	return out, nil
}

// SaveTorrentMetadata upserts the resume blob for infoHash.
func (s *Store) SaveTorrentMetadata(infoHash string, blob []byte) error {
	_, err := s.Exec(`
		INSERT INTO torrents (info_hash, blob) VALUES (?, ?)
		ON CONFLICT(info_hash) DO UPDATE SET blob = excluded.blob`,
		infoHash, blob)
	return err
}

// DeleteTorrentMetadata removes a torrent row and its labels.
func (s *Store) DeleteTorrentMetadata(infoHash string) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM torrent_labels WHERE info_hash = ?`, infoHash); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM torrents WHERE info_hash = ?`, infoHash); err != nil {
		return err
	}
	return tx.Commit()
}

// SetLabels replaces the full label set for infoHash transactionally.
func (s *Store) SetLabels(infoHash string, labels []string) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM torrent_labels WHERE info_hash = ?`, infoHash); err != nil {
		return err
	}
	for _, label := range labels {
		if _, err := tx.Exec(`INSERT INTO torrent_labels (info_hash, label) VALUES (?, ?)`, infoHash, label); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) getLabels(infoHash string) ([]string, error) {
	rows, err := s.Query(`SELECT label FROM torrent_labels WHERE info_hash = ? ORDER BY label`, infoHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// AppendSpeedBucket inserts one speed-history sample.
func (s *Store) AppendSpeedBucket(ts int64, down, up uint64) error {
	_, err := s.Exec(`INSERT INTO speed_history (ts, down_bytes, up_bytes) VALUES (?, ?, ?)`, ts, down, up)
	return err
}

// QuerySpeedHistory returns every raw bucket in [start, end], ascending by
// timestamp. Aggregation into stepped rows happens above this layer
// (internal/model.AggregateHistory) since that is pure domain logic, not
// storage.
func (s *Store) QuerySpeedHistory(start, end int64) ([]model.SpeedHistoryBucket, error) {
	rows, err := s.Query(`
		SELECT ts, down_bytes, up_bytes FROM speed_history
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SpeedHistoryBucket
	for rows.Next() {
		var b model.SpeedHistoryBucket
		if err := rows.Scan(&b.TimestampUnix, &b.DownBytes, &b.UpBytes); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TrimSpeedHistory deletes every bucket older than beforeTS. The Engine calls
// it only from the history-clear command; no periodic trim runs, whatever
// HistoryRetentionDays is set to.
func (s *Store) TrimSpeedHistory(beforeTS int64) error {
	_, err := s.Exec(`DELETE FROM speed_history WHERE ts < ?`, beforeTS)
	return err
}
