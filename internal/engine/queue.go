package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/apperror"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// Command is one pending engine command plus its completion channel. Exactly
// one value is ever sent on Done. ID correlates a command across the RPC
// Dispatcher's logs and the Engine's own, since a single RPC call may be
// in flight on the queue while several others are handled ahead of it.
type Command struct {
	ID   string
	Kind model.CommandKind
	Args interface{}

	ctx  context.Context
	Done chan Result
}

// Result is what a Command resolves to: either a value (torrent ids,
// snapshots, etc., handler-specific) or a typed error.
type Result struct {
	Value interface{}
	Err   *apperror.Error
}

// Queue is the bounded multi-producer, single-consumer Command Queue (C6):
// a bounded buffered channel with explicit back-pressure and shutdown
// draining.
type Queue struct {
	mu     sync.Mutex
	ch     chan *Command
	closed bool
}

// NewQueue creates a queue with the given backlog capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *Command, capacity)}
}

// Enqueue submits cmd. It never blocks: a full queue returns engine-busy
// immediately so producers (RPC handlers) can surface back-pressure rather
// than stalling the HTTP event loop.
func (q *Queue) Enqueue(ctx context.Context, kind model.CommandKind, args interface{}) (*Command, *apperror.Error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, apperror.New(apperror.KindEngineUnavailable, "engine is shutting down")
	}

	cmd := &Command{ID: uuid.NewString(), Kind: kind, Args: args, ctx: ctx, Done: make(chan Result, 1)}
	select {
	case q.ch <- cmd:
		return cmd, nil
	default:
		return nil, apperror.New(apperror.KindInternal, "engine-busy")
	}
}

// Pop blocks for the next command; it returns nil, false when the queue has
// been closed and drained.
func (q *Queue) Pop() (*Command, bool) {
	cmd, ok := <-q.ch
	return cmd, ok
}

// TryPop returns immediately: a command if one is ready, or ok=false if the
// queue is currently empty. Used by the Engine's loop tick to drain whatever
// commands arrived since the last pass without blocking it.
func (q *Queue) TryPop() (*Command, bool) {
	select {
	case cmd, ok := <-q.ch:
		return cmd, ok
	default:
		return nil, false
	}
}

// Shutdown stops accepting new commands and drains every command still
// queued, replying "cancelled" to each.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.ch)
	for cmd := range q.ch {
		cmd.Done <- Result{Err: apperror.New(apperror.KindEngineUnavailable, "cancelled")}
	}
}
