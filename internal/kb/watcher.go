package kb

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is how long the watcher waits for the write burst to
// settle before reloading. SQLite commits touch the database, the WAL, and
// the shm file in quick succession.
const DefaultDebounceWindow = 500 * time.Millisecond

// catalogWatcher reloads the in-memory catalog when another process rewrites
// the database file. Reloads are debounced and serialized.
type catalogWatcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	window   time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
}

// Watch starts watching the catalog database for external modifications.
// After each reload the registered OnExternalChange callback runs, letting
// the engine drop its cached indexes. Watch is a no-op when already watching.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	// Watch the directory, not the file: SQLite checkpoints replace the
	// database inode and a file watch would silently go stale.
	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch catalog directory: %w", err)
	}

	w := &catalogWatcher{
		store:  s,
		fsw:    fsw,
		window: DefaultDebounceWindow,
		done:   make(chan struct{}),
	}
	s.watcher = w
	go w.run()
	return nil
}

func (w *catalogWatcher) run() {
	base := filepath.Base(w.store.path)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev, base) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog watcher error", slog.String("error", err.Error()))
		case <-w.done:
			return
		}
	}
}

// relevant filters directory events down to writes against the database file
// or its WAL sidecar. Events caused by this process's own writes are
// indistinguishable from external ones; the reload is idempotent, so spurious
// reloads only cost a query.
func (w *catalogWatcher) relevant(ev fsnotify.Event, base string) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == base || strings.TrimSuffix(name, "-wal") == base
}

func (w *catalogWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.reload)
}

func (w *catalogWatcher) reload() {
	s := w.store
	s.mu.Lock()
	err := s.loadAll()
	fn := s.onExternalChange
	s.mu.Unlock()

	if err != nil {
		slog.Warn("catalog reload failed", slog.String("error", err.Error()))
		return
	}
	slog.Debug("catalog reloaded after external change")
	if fn != nil {
		fn()
	}
}

func (w *catalogWatcher) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.fsw.Close()
	})
}
