package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestClassifyStatusPrefersErrorOverEverythingElse(t *testing.T) {
	mt := &managedTorrent{lastErrorKind: model.ErrorKindAccessDenied, rehashActive: true, userPaused: true}
	assert.Equal(t, model.StatusStopped, classifyStatus(mt, 0.5))
}

func TestClassifyStatusPausedWinsOverRehash(t *testing.T) {
	mt := &managedTorrent{userPaused: true, rehashActive: true}
	assert.Equal(t, model.StatusStopped, classifyStatus(mt, 0))
}

func TestClassifyStatusRehashActive(t *testing.T) {
	mt := &managedTorrent{rehashActive: true}
	assert.Equal(t, model.StatusChecking, classifyStatus(mt, 0.1))
}

func TestClassifyErrorRecognizesNamedKinds(t *testing.T) {
	assert.Equal(t, model.ErrorKindAccessDenied, classifyError("permission denied"))
	assert.Equal(t, model.ErrorKindAccessDenied, classifyError("Access is denied."))
	assert.Equal(t, model.ErrorKindPathLoss, classifyError("open foo: no such file or directory"))
	assert.Equal(t, model.ErrorKindVolumeLoss, classifyError("write foo: no space left on device"))
	assert.Equal(t, model.ErrorKindNone, classifyError(""))
	assert.Equal(t, model.ErrorKindGeneric, classifyError("connection reset by peer"))
}

func TestManagedTorrentPausedReflectsEitherFlag(t *testing.T) {
	mt := &managedTorrent{}
	assert.False(t, mt.paused())

	mt.userPaused = true
	assert.True(t, mt.paused())

	mt.userPaused = false
	mt.recoveryPaused = true
	assert.True(t, mt.paused())
}
