package rpc

import (
	"sync"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

type fakeSnapshotSource struct {
	snap model.SessionSnapshot
	ok   bool
}

func (f *fakeSnapshotSource) Snapshot() (model.SessionSnapshot, bool) {
	return f.snap, f.ok
}

type fakeHistoryRepo struct {
	buckets []model.SpeedHistoryBucket
}

func (f *fakeHistoryRepo) QuerySpeedHistory(start, end int64) ([]model.SpeedHistoryBucket, error) {
	var out []model.SpeedHistoryBucket
	for _, b := range f.buckets {
		if b.TimestampUnix >= start && b.TimestampUnix <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeConfigRepo struct {
	mu   sync.Mutex
	rows map[string]string
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{rows: map[string]string{}}
}

func (f *fakeConfigRepo) GetSetting(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[key]
	return v, ok, nil
}

func (f *fakeConfigRepo) SetSetting(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = value
	return nil
}

func (f *fakeConfigRepo) ListSettings() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out, nil
}
