// Package watchdir watches a directory for dropped .torrent files and
// enqueues a torrent-add command for each one found, debounced so a file
// still being written to disk isn't picked up mid-copy.
package watchdir

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/logging"
)

const settleDelay = 5 * time.Second

// Watcher monitors a directory for new .torrent files and feeds them into
// the engine as add commands, one at a time, debounced against partial
// writes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	enqueue   func(path string)
	logger    *logging.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	stop    chan struct{}
}

// New creates a Watcher rooted at dir. enqueue is called once per settled
// file with its path (dir joined with the file name); the caller builds and submits the
// torrent-add command so this package stays independent of the Command
// Queue's concrete types.
func New(dir string, enqueue func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fw,
		dir:       dir,
		enqueue:   enqueue,
		logger:    logging.New("watchdir"),
		pending:   make(map[string]time.Time),
		stop:      make(chan struct{}),
	}, nil
}

// Start begins watching dir; it does not scan existing files already
// present at startup, only files that arrive afterward.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}
	go w.loop()
	go w.settleLoop()
	w.logger.Printf("watching %s for dropped .torrent files", w.dir)
	return nil
}

// Stop stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !strings.EqualFold(filepath.Ext(ev.Name), ".torrent") {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// settleLoop periodically promotes any file whose last event is older than
// settleDelay to an add command, the same debounce-then-act pattern used
// against flapping filesystem events.
func (w *Watcher) settleLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.flushSettled()
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) flushSettled() {
	now := time.Now()
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= settleDelay {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue // removed again before it settled
		}
		w.enqueue(path)
	}
}
