package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// RemovedFunc is called for every file that disappears from a project
// directory without going through Store.Delete.
type RemovedFunc func(dir, name string)

// Watch observes the uploads tree until ctx is canceled. fsnotify is not
// recursive, so the root and each project directory are watched individually
// and new project directories are added as they appear.
func (s *Store) Watch(ctx context.Context, onRemoved RemovedFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.root); err != nil {
		return fmt.Errorf("watch uploads root: %w", err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read uploads root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(s.root, e.Name())); err != nil {
				log.WithError(err).WithField("dir", e.Name()).Warn("cannot watch project directory")
			}
		}
	}

	s.watching.Store(true)
	defer s.watching.Store(false)
	log.WithField("root", s.root).Info("watching uploads for out-of-band changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handleEvent(w, ev, onRemoved)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("uploads watcher error")
		}
	}
}

func (s *Store) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, onRemoved RemovedFunc) {
	dir := filepath.Dir(ev.Name)
	name := filepath.Base(ev.Name)

	if dir == s.root {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.Add(ev.Name); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.WithError(err).WithField("dir", name).Warn("cannot watch project directory")
				}
			}
		}
		return
	}

	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if strings.HasPrefix(name, tempPrefix) {
		return
	}
	if _, ours := s.removals.LoadAndDelete(ev.Name); ours {
		return
	}
	if onRemoved != nil {
		onRemoved(dir, name)
	}
}
