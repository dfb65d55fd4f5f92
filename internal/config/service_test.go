package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/eventbus"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

type fakeRepo struct {
	kv map[string]string
}

func newFakeRepo() *fakeRepo { return &fakeRepo{kv: map[string]string{}} }

func (f *fakeRepo) GetSetting(key string) (string, bool, error) {
	v, ok := f.kv[key]
	return v, ok, nil
}

func (f *fakeRepo) SetSetting(key, value string) error {
	f.kv[key] = value
	return nil
}

func (f *fakeRepo) ListSettings() (map[string]string, error) {
	out := make(map[string]string, len(f.kv))
	for k, v := range f.kv {
		out[k] = v
	}
	return out, nil
}

func TestLoadFromFileAppliesKeyValuePairs(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/tinytorrent.conf"
	require.NoError(t, os.WriteFile(path, []byte("listen-port=51413\ndownload-dir=/data/downloads\n# comment\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 51413, cfg.ListenPort)
	assert.Equal(t, "/data/downloads", cfg.DownloadDir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/tinytorrent.conf")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings().DownloadDir, cfg.DownloadDir)
}

func TestServiceMutateMarksDirtyAndPublishes(t *testing.T) {
	bus := eventbus.New()
	ch := bus.Subscribe(eventbus.TopicSettingsChanged)
	svc := NewService(model.DefaultSettings(), newFakeRepo(), bus)

	svc.Mutate(func(s *model.CoreSettings) { s.DownloadRateLimitKBps = 500 })

	assert.Equal(t, 500, svc.Get().DownloadRateLimitKBps)
	select {
	case ev := <-ch:
		settings := ev.Data.(model.CoreSettings)
		assert.Equal(t, 500, settings.DownloadRateLimitKBps)
	case <-time.After(time.Second):
		t.Fatal("expected settings-changed event")
	}
}

func TestServicePersistIfDirtyWritesAndClearsFlag(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(model.DefaultSettings(), repo, nil)

	require.NoError(t, svc.PersistIfDirty()) // no-op, nothing dirty yet
	assert.Empty(t, repo.kv)

	svc.Mutate(func(s *model.CoreSettings) { s.HistoryRetentionDays = 30 })
	require.NoError(t, svc.PersistIfDirty())
	assert.Equal(t, "30", repo.kv["history-retention-days"])
}

func TestServiceMutateListenEndpointCooldown(t *testing.T) {
	svc := NewService(model.DefaultSettings(), newFakeRepo(), nil)

	svc.Mutate(func(s *model.CoreSettings) { s.ListenPort = 6000 })
	assert.Equal(t, 6000, svc.Get().ListenPort)

	// Immediate second change within the cooldown window is dropped.
	svc.Mutate(func(s *model.CoreSettings) { s.ListenPort = 7000 })
	assert.Equal(t, 6000, svc.Get().ListenPort)
}
