package diffpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestComputeDetectsAddedRemovedUpdated(t *testing.T) {
	last := model.SessionSnapshot{
		Sequence: 5,
		Torrents: []model.TorrentSnapshot{
			{ID: 1, InfoHash: "aaaa", RateDownloadBps: 100},
			{ID: 2, InfoHash: "bbbb", RateDownloadBps: 50},
		},
	}
	next := model.SessionSnapshot{
		Sequence: 6,
		Torrents: []model.TorrentSnapshot{
			{ID: 1, InfoHash: "aaaa", RateDownloadBps: 200}, // updated
			{ID: 3, InfoHash: "cccc", RateDownloadBps: 10},  // added
		},
	}

	patch := Compute(last, next)
	assert.EqualValues(t, 6, patch.Sequence)
	assert.Equal(t, []int{2}, patch.Removed)
	require.Len(t, patch.Added, 1)
	assert.Equal(t, 3, patch.Added[0].ID)
	require.Len(t, patch.Updated, 1)
	assert.Equal(t, 1, patch.Updated[0].ID)
	assert.Equal(t, int64(200), patch.Updated[0].Fields["rateDownload"])
}

func TestComputeIDReusePrefersRemovedAdded(t *testing.T) {
	last := model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 1, InfoHash: "aaaa"}},
	}
	next := model.SessionSnapshot{
		Sequence: 1,
		Torrents: []model.TorrentSnapshot{{ID: 1, InfoHash: "zzzz"}},
	}

	patch := Compute(last, next)
	assert.Equal(t, []int{1}, patch.Removed)
	require.Len(t, patch.Added, 1)
	assert.Equal(t, "zzzz", patch.Added[0].InfoHash)
	assert.Empty(t, patch.Updated)
}

func TestComputeLabelsCompareAsMultiset(t *testing.T) {
	last := model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 1, Labels: []string{"a", "b"}}},
	}
	next := model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 1, Labels: []string{"b", "a"}}},
	}
	patch := Compute(last, next)
	assert.Empty(t, patch.Updated, "reordered-but-equal label multiset must not appear as a diff")
}

func TestComputeSessionFieldsOnlyIncludesChanged(t *testing.T) {
	last := model.SessionSnapshot{RateDownloadBps: 10, RateUploadBps: 5}
	next := model.SessionSnapshot{RateDownloadBps: 20, RateUploadBps: 5}

	patch := Compute(last, next)
	assert.Equal(t, int64(20), patch.Session["rateDownload"])
	_, hasUpload := patch.Session["rateUpload"]
	assert.False(t, hasUpload)
}

func TestComputeRemovedSortedAscending(t *testing.T) {
	last := model.SessionSnapshot{
		Torrents: []model.TorrentSnapshot{{ID: 5}, {ID: 1}, {ID: 3}},
	}
	next := model.SessionSnapshot{}
	patch := Compute(last, next)
	assert.Equal(t, []int{1, 3, 5}, patch.Removed)
}
