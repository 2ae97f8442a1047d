package dashboard

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RefWatcher watches the files git uses to record a branch tip and
// invokes a callback when the branch moves.
//
// A loose ref lives at .git/refs/heads/<branch>; after gc the tip may
// only exist in .git/packed-refs. Both are watched via their parent
// directories, since git updates refs by rename and rename events on
// the file itself are unreliable.
type RefWatcher struct {
	gitDir string
	branch string

	watcher *fsnotify.Watcher
	onMove  func(context.Context)

	debounce time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewRefWatcher creates a watcher for branch under gitDir. onMove runs
// on the watcher goroutine after each (debounced) branch movement.
func NewRefWatcher(gitDir, branch string, onMove func(context.Context), logger *log.Logger) (*RefWatcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &RefWatcher{
		gitDir:   gitDir,
		branch:   branch,
		watcher:  w,
		onMove:   onMove,
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Start registers the watch paths and begins delivering callbacks.
func (rw *RefWatcher) Start() error {
	refDir := filepath.Dir(rw.refPath())
	for _, dir := range []string{refDir, rw.gitDir} {
		if err := rw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw.cancel = cancel

	rw.wg.Add(1)
	go rw.loop(ctx)
	return nil
}

// Stop tears the watcher down.
func (rw *RefWatcher) Stop() error {
	if rw.cancel != nil {
		rw.cancel()
	}
	err := rw.watcher.Close()
	rw.wg.Wait()
	return err
}

func (rw *RefWatcher) refPath() string {
	return filepath.Join(rw.gitDir, "refs", "heads", filepath.FromSlash(rw.branch))
}

func (rw *RefWatcher) loop(ctx context.Context) {
	defer rw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if !rw.relevant(event) {
				continue
			}
			// Collapse the burst of events a single ref update produces.
			if timer == nil {
				timer = time.NewTimer(rw.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(rw.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			rw.logger.Printf("branch %s moved, refreshing", rw.branch)
			rw.onMove(ctx)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Printf("watch error: %v", err)
		}
	}
}

func (rw *RefWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == rw.refPath() {
		return true
	}
	// packed-refs rewrites go through a temp file in the git dir.
	base := filepath.Base(name)
	return base == "packed-refs" || strings.HasPrefix(base, "packed-refs.")
}
