package internal

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnolang/boundprove/internal/types"
)

// DefaultDebounce is how long Watch waits after the last change to a file
// before re-linting it, so that editors writing in several steps trigger
// a single run.
const DefaultDebounce = 100 * time.Millisecond

// ReportFunc receives the issues of a re-linted file.
type ReportFunc func(filename string, issues []tt.Issue)

// Watch lints .go files under dirs whenever they are written, until ctx is
// done. Directories created later are watched as well.
func (e *Engine) Watch(ctx context.Context, dirs []string, debounce time.Duration, report ReportFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	e.logger.Info("watching", zap.Strings("dirs", dirs))

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// new subdirectories are picked up as they appear
				_ = addTree(watcher, event.Name)
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".go") {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			e.lintPending(pending, report)
			clear(pending)
		}
	}
}

func (e *Engine) lintPending(pending map[string]struct{}, report ReportFunc) {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		issues, err := e.Run(name)
		if err != nil {
			// files removed or half-written between the event and the run
			e.logger.Warn("failed to lint changed file", zap.String("file", name), zap.Error(err))
			continue
		}
		e.logger.Info("file re-linted", zap.String("file", name), zap.Int("issues", len(issues)))
		if report != nil {
			report(name, issues)
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
