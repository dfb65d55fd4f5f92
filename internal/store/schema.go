package store

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS torrents (
	info_hash TEXT PRIMARY KEY,
	blob      BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS torrent_labels (
	info_hash TEXT NOT NULL,
	label     TEXT NOT NULL,
	PRIMARY KEY (info_hash, label)
);

CREATE TABLE IF NOT EXISTS speed_history (
	ts         INTEGER NOT NULL,
	down_bytes INTEGER NOT NULL,
	up_bytes   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_speed_history_ts ON speed_history(ts);
`

// migrate applies the full schema. There is exactly one version: TinyTorrent
// ships no upgrade path between schema revisions yet, so this is a plain
// idempotent CREATE-IF-NOT-EXISTS.
func (s *Store) migrate() error {
	_, err := s.Exec(schema)
	return err
}
