package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

func TestQueueEnqueueAndPop(t *testing.T) {
	q := NewQueue(4)
	cmd, appErr := q.Enqueue(context.Background(), model.CmdPause, model.IDSelector{IDs: []int{1}})
	require.Nil(t, appErr)
	require.NotNil(t, cmd)

	popped, ok := q.TryPop()
	require.True(t, ok)
	assert.Same(t, cmd, popped)
}

func TestQueueTryPopOnEmptyReturnsFalse(t *testing.T) {
	q := NewQueue(1)
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestQueueEnqueueReturnsBusyWhenFull(t *testing.T) {
	q := NewQueue(1)
	_, appErr := q.Enqueue(context.Background(), model.CmdResume, model.IDSelector{})
	require.Nil(t, appErr)

	_, appErr = q.Enqueue(context.Background(), model.CmdResume, model.IDSelector{})
	require.NotNil(t, appErr)
	assert.Equal(t, apperror.KindInternal, appErr.Kind)
}

func TestQueueShutdownDrainsWithCancelledResult(t *testing.T) {
	q := NewQueue(4)
	cmd, appErr := q.Enqueue(context.Background(), model.CmdVerify, model.IDSelector{All: true})
	require.Nil(t, appErr)

	q.Shutdown()

	select {
	case res := <-cmd.Done:
		require.NotNil(t, res.Err)
		assert.Equal(t, apperror.KindEngineUnavailable, res.Err.Kind)
	default:
		t.Fatal("expected drained command to receive a cancelled result")
	}
}

func TestQueueEnqueueAfterShutdownIsRejected(t *testing.T) {
	q := NewQueue(4)
	q.Shutdown()

	_, appErr := q.Enqueue(context.Background(), model.CmdPause, model.IDSelector{})
	require.NotNil(t, appErr)
	assert.Equal(t, apperror.KindEngineUnavailable, appErr.Kind)
}
