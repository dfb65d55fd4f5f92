package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

type staticSettings struct{ s model.CoreSettings }

func (s staticSettings) Get() model.CoreSettings { return s.s }

// TestEmptyStartReportsNoTorrents covers the "empty start" scenario: before
// any publish, Snapshot reports not-ok; after the first publish on a
// freshly constructed Engine with nothing added, the snapshot carries zero
// torrents and sequence 1.
func TestEmptyStartReportsNoTorrents(t *testing.T) {
	e := New(NewQueue(1), nil, staticSettings{model.DefaultSettings()}, nil, nil)

	_, ok := e.Snapshot()
	assert.False(t, ok, "no snapshot should exist before the first publish")

	e.publish()

	snap, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Equal(t, 0, snap.TorrentCount)
	assert.Empty(t, snap.Torrents)
}

// TestPublishSequenceIsMonotonic covers the invariant that for any two
// consecutive published snapshots S1, S2: S2.sequence == S1.sequence + 1.
func TestPublishSequenceIsMonotonic(t *testing.T) {
	e := New(NewQueue(1), nil, staticSettings{model.DefaultSettings()}, nil, nil)

	var seqs []uint64
	e.OnPublish(func(snap model.SessionSnapshot) { seqs = append(seqs, snap.Sequence) })

	for i := 0; i < 5; i++ {
		e.publish()
	}

	require.Len(t, seqs, 5)
	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i])
	}

	snap, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, seqs[len(seqs)-1], snap.Sequence)
}
