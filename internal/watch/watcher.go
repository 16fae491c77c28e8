// Package watch revalidates a routine while its files are being edited.
//
// A Watcher follows the routine file and the script files it references.
// After a burst of edits settles it reloads the routine, validates it and
// replaces the script_validation entries of the error reporter with the
// new findings. A run in progress is never affected.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/labroutine/internal/compiler"
	"github.com/roach88/labroutine/internal/report"
)

// DefaultDebounce is how long the watcher waits for edits to settle.
const DefaultDebounce = 150 * time.Millisecond

// Reporter receives validation findings.
type Reporter interface {
	Report(report.Entry)
	Clear(category string) int
}

// Result is the outcome of one revalidation.
type Result struct {
	// Changed lists the files whose edits triggered the check, sorted.
	Changed []string

	// Definition is the reloaded routine, nil when it failed to load.
	Definition *compiler.Definition

	// Problems are the validation errors of a routine that loaded.
	Problems []compiler.ValidationError

	// Err is set when the routine file could not be loaded.
	Err error
}

// OK reports whether the routine loaded and validated.
func (r Result) OK() bool {
	return r.Err == nil && len(r.Problems) == 0
}

// Watcher revalidates a routine when its files change.
//
// Thread-safety: Start and Stop may be called from any goroutine. The
// handler runs on the watcher's goroutine.
type Watcher struct {
	routinePath string
	routineName string

	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	reporter Reporter
	handler  func(Result)

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	files    map[string]bool
	watching bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithReporter sets where validation findings are reported.
func WithReporter(r Reporter) Option {
	return func(w *Watcher) {
		w.reporter = r
	}
}

// WithHandler sets a function called with every result.
func WithHandler(fn func(Result)) Option {
	return func(w *Watcher) {
		w.handler = fn
	}
}

// New creates a watcher for the routine name in the file at routinePath.
// An empty name selects the file's only routine.
func New(routinePath, routineName string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		routinePath: filepath.Clean(routinePath),
		routineName: routineName,
		fs:          fsw,
		debounce:    DefaultDebounce,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		changes:     make(chan string, 64),
		done:        make(chan struct{}),
		files:       map[string]bool{filepath.Clean(routinePath): true},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Check reloads and validates the routine now, reports the findings and
// updates the set of watched files.
func (w *Watcher) Check() Result {
	return w.check(nil)
}

func (w *Watcher) check(changed []string) Result {
	res := Result{Changed: changed}

	def, err := compiler.LoadRoutine(w.routinePath, w.routineName)
	if err != nil {
		res.Err = err
	} else {
		res.Definition = def
		res.Problems = compiler.Validate(&def.Routine)
		w.track(def)
	}

	w.report(res)

	w.logger.Info("routine revalidated",
		"event", "revalidate",
		"routine", w.routinePath,
		"changed", len(changed),
		"ok", res.OK(),
		"problems", len(res.Problems),
	)
	if w.handler != nil {
		w.handler(res)
	}
	return res
}

// track replaces the watched file set with the routine file and the
// script files it references, adding any new directories.
func (w *Watcher) track(def *compiler.Definition) {
	files := map[string]bool{w.routinePath: true}
	for _, path := range def.ScriptFiles {
		files[filepath.Clean(path)] = true
	}

	w.mu.Lock()
	w.files = files
	watching := w.watching
	w.mu.Unlock()

	if watching {
		w.addDirs()
	}
}

// report replaces the script_validation entries with the result.
func (w *Watcher) report(res Result) {
	if w.reporter == nil {
		return
	}
	w.reporter.Clear(report.CategoryScriptValidation)

	if res.Err != nil {
		w.reporter.Report(report.Entry{
			Category: report.CategoryScriptValidation,
			Code:     "LOAD_FAILED",
			Message:  res.Err.Error(),
		})
		return
	}
	for _, p := range res.Problems {
		w.reporter.Report(report.Entry{
			Category: report.CategoryScriptValidation,
			Code:     p.Code,
			Message:  p.Error(),
		})
	}
}

// Start runs an initial check and begins watching. It returns once the
// watch is set up; call Stop or cancel ctx to end it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	w.Check()
	if err := w.addDirs(); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends the watch. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fs.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// addDirs watches the directories of the watched files. Editors often
// replace a file instead of writing it, which only the directory sees.
func (w *Watcher) addDirs() error {
	seen := make(map[string]bool)
	for _, f := range w.Files() {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Watcher) isWatched(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[filepath.Clean(path)]
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.isWatched(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			select {
			case w.changes <- filepath.Clean(event.Name):
			default:
				// A check is already pending for a full buffer.
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	changed := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		if len(changed) == 0 {
			return
		}
		paths := make([]string, 0, len(changed))
		for p := range changed {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(changed)
		w.check(paths)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.changes:
			changed[path] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}
