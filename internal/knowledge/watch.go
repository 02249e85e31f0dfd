package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"forge/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches bursts of saves into one callback.
const DefaultDebounce = 300 * time.Millisecond

// WatchStats tracks watcher activity.
type WatchStats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher calls OnChange after files under its paths settle. Directories are
// watched non-recursively.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    []string
	debounce time.Duration
	onChange func(ctx context.Context, changed []string)

	mu      sync.Mutex
	pending map[string]time.Time
	stats   WatchStats
}

// NewWatcher creates a watcher for paths. A zero debounce uses DefaultDebounce.
func NewWatcher(paths []string, debounce time.Duration, onChange func(ctx context.Context, changed []string)) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watcher needs a change callback")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  w,
		paths:    paths,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches until ctx ends, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for _, p := range w.paths {
		// Editors replace files on save; watch the parent of plain files.
		target := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			target = filepath.Dir(p)
		}
		if err := w.watcher.Add(target); err != nil {
			return fmt.Errorf("watch %s: %w", target, err)
		}
		logging.Get(logging.CategoryWorld).Info("watching %s", target)
	}

	tick := time.NewTicker(w.debounce / 3)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryWorld).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case now := <-tick.C:
			if changed := w.settled(now); len(changed) > 0 {
				w.onChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.relevant(event.Name) {
		return
	}
	logging.Get(logging.CategoryWorld).Debug("%s %s", event.Op, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.pending[event.Name] = now
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = now
}

// relevant reports whether name is a watched file or sits in a watched directory.
func (w *Watcher) relevant(name string) bool {
	for _, p := range w.paths {
		if filepath.Clean(p) == filepath.Clean(name) {
			return true
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() && filepath.Dir(filepath.Clean(name)) == filepath.Clean(p) {
			return true
		}
	}
	return false
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, name)
			delete(w.pending, name)
		}
	}
	if len(out) > 0 {
		w.stats.Triggers++
	}
	return out
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
