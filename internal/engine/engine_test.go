package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestResolveSelectorExplicitIDs(t *testing.T) {
	e := &Engine{torrents: map[int]*managedTorrent{1: {}, 2: {}, 3: {}}}
	ids := e.resolveSelector(model.IDSelector{IDs: []int{2, 3}})
	assert.ElementsMatch(t, []int{2, 3}, ids)
}

func TestResolveSelectorAllExpandsToEveryTrackedID(t *testing.T) {
	e := &Engine{torrents: map[int]*managedTorrent{1: {}, 2: {}, 3: {}}}
	ids := e.resolveSelector(model.IDSelector{All: true})
	assert.ElementsMatch(t, []int{1, 2, 3}, ids)
}

func TestResolveSelectorRecentlyActiveExpandsToEveryTrackedID(t *testing.T) {
	e := &Engine{torrents: map[int]*managedTorrent{5: {}}}
	ids := e.resolveSelector(model.IDSelector{RecentlyActive: true})
	assert.Equal(t, []int{5}, ids)
}

func TestRateFromZeroWhenNoPriorSample(t *testing.T) {
	assert.Equal(t, int64(0), rateFrom(0, 1000, time.Time{}))
}

func TestRateFromComputesBytesPerSecond(t *testing.T) {
	since := time.Now().Add(-2 * time.Second)
	rate := rateFrom(0, 2000, since)
	// ~1000 B/s over a ~2s window; allow scheduling slack.
	assert.InDelta(t, 1000, rate, 200)
}

func TestRateFromNeverNegative(t *testing.T) {
	since := time.Now().Add(-time.Second)
	assert.Equal(t, int64(0), rateFrom(500, 100, since))
}

func TestAllocateIDIsMonotonic(t *testing.T) {
	e := New(NewQueue(1), nil, nil, nil, nil)
	a := e.allocateID()
	b := e.allocateID()
	assert.Equal(t, a+1, b)
}

