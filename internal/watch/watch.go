package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce coalesces the burst of reflog writes a single commit makes.
const DefaultDebounce = 500 * time.Millisecond

// Event reports activity on a repository's HEAD or a branch.
type Event struct {
	Repo string
	// Branch is empty when it could not be determined.
	Branch string
	Path   string
	Time   time.Time
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// SkipDirs are not descended into while discovering repositories.
	SkipDirs []string
	Log      *zap.Logger
}

// Watcher emits an Event for each commit observed under a root directory.
type Watcher struct {
	root string
	opts Options
	log  *zap.Logger
}

// New creates a watcher for the repositories under root.
func New(root string, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = []string{"node_modules", "vendor"}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{root: root, opts: opts, log: log}
}

// Discover returns the repositories at or below root, that is every
// directory holding a .git directory.
func Discover(root string, skip []string) ([]string, error) {
	var repos []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			repos = append(repos, filepath.Dir(path))
			return filepath.SkipDir
		}
		for _, s := range skip {
			if d.Name() == s {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering repositories in %s: %w", root, err)
	}
	return repos, nil
}

// Run watches every discovered repository and sends events to out until
// ctx is cancelled. Repositories without a reflog are skipped.
func (w *Watcher) Run(ctx context.Context, out chan<- Event) error {
	repos, err := Discover(w.root, w.opts.SkipDirs)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	watching := 0
	for _, repo := range repos {
		logs := filepath.Join(repo, ".git", "logs")
		if info, err := os.Stat(logs); err != nil || !info.IsDir() {
			w.log.Debug("no reflog, skipping", zap.String("repo", repo))
			continue
		}
		watching++
		w.log.Info("watching repository", zap.String("repo", repo))
		g.Go(func() error { return w.watchRepo(gctx, repo, out) })
	}
	if watching == 0 {
		return fmt.Errorf("no git repositories with a reflog under %s", w.root)
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *Watcher) watchRepo(ctx context.Context, repo string, out chan<- Event) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	logs := filepath.Join(repo, ".git", "logs")
	if err := addTree(fw, logs); err != nil {
		return err
	}

	// Pending events are keyed by branch so the HEAD and branch reflog
	// writes of one commit coalesce. Each fires once its branch has been
	// quiet for the debounce interval.
	pending := map[string]Event{}
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New branch namespace such as refs/heads/feature.
					if err := addTree(fw, ev.Name); err != nil {
						w.log.Warn("watching new directory", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			branch, ok := branchFor(repo, ev.Name)
			if !ok {
				continue
			}
			pending[branch] = Event{Repo: repo, Branch: branch, Path: ev.Name, Time: time.Now()}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.String("repo", repo), zap.Error(err))

		case now := <-ticker.C:
			var ready []Event
			for key, ev := range pending {
				if now.Sub(ev.Time) >= w.opts.Debounce {
					delete(pending, key)
					ready = append(ready, ev)
				}
			}
			for _, ev := range ready {
				w.log.Info("commit detected", zap.String("repo", ev.Repo), zap.String("branch", ev.Branch))
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// addTree watches dir and every directory below it; fsnotify is not
// recursive.
func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}

// branchFor maps a changed reflog file to a branch name. Writes to the HEAD
// log resolve to the checked out branch; writes under refs/heads name the
// branch directly. Other reflogs are ignored.
func branchFor(repo, changed string) (string, bool) {
	logs := filepath.Join(repo, ".git", "logs")
	rel, err := filepath.Rel(logs, changed)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	switch {
	case rel == "HEAD":
		return currentBranch(repo), true
	case strings.HasPrefix(rel, "refs/heads/"):
		return strings.TrimPrefix(rel, "refs/heads/"), true
	}
	return "", false
}

func currentBranch(repo string) string {
	data, err := os.ReadFile(filepath.Join(repo, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	ref := strings.TrimSpace(string(data))
	if name, ok := strings.CutPrefix(ref, "ref: refs/heads/"); ok {
		return name
	}
	return ""
}
