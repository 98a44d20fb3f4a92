// Package filestore manages the on-disk upload tree: one directory per
// project under a configured root, holding files under generated names.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const tempPrefix = ".upload-"

// ErrInvalidName is returned for names that could escape the project directory.
var ErrInvalidName = errors.New("invalid file name")

// Store is rooted at a single uploads directory.
type Store struct {
	root string

	// removals are paths this process is deleting, so the watcher can tell
	// them apart from out-of-band deletions.
	removals sync.Map
	watching atomic.Bool
}

// New creates the root directory if needed and returns a Store for it.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute uploads root.
func (s *Store) Root() string {
	return s.root
}

// Check verifies the root exists and accepts new files.
func (s *Store) Check() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat uploads root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("uploads root %s is not a directory", s.root)
	}
	f, err := os.CreateTemp(s.root, tempPrefix+"check-*")
	if err != nil {
		return fmt.Errorf("uploads root not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

// ProjectDir returns the directory assigned to a project id.
func (s *Store) ProjectDir(projectID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(projectID, 10))
}

// Provision creates dir. It must live directly under the root.
func (s *Store) Provision(dir string) error {
	if err := s.checkDir(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	return nil
}

// RemoveDir deletes dir and everything in it. Missing directories are not an error.
func (s *Store) RemoveDir(dir string) error {
	if err := s.checkDir(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove project directory: %w", err)
	}
	return nil
}

// DirExists reports whether dir exists and is a directory.
func (s *Store) DirExists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Save writes r to dir/name through a temp file and a rename, so a name is
// never visible on disk until its content is complete.
func (s *Store) Save(dir, name string, r io.Reader) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("write upload: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("move upload into place: %w", err)
	}
	return n, nil
}

// Delete removes dir/name. A file that is already gone counts as deleted.
func (s *Store) Delete(dir, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	path := filepath.Join(dir, name)

	if s.watching.Load() {
		s.removals.Store(path, struct{}{})
	}
	err := os.Remove(path)
	if err != nil {
		s.removals.Delete(path)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Open opens dir/name for reading. Missing files yield an error wrapping os.ErrNotExist.
func (s *Store) Open(dir, name string) (*os.File, os.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return f, info, nil
}

// Exists reports whether dir/name is present on disk.
func (s *Store) Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// GenerateName builds a stored name of the form <field>-<millis>-<random><ext>.
func GenerateName(field, original string, now time.Time) string {
	field = sanitizeField(field)
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("%s-%d-%d%s", field, now.UnixMilli(), rand.Int64N(1_000_000_000), ext)
}

// ValidateName rejects anything other than a plain file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) ||
		strings.HasPrefix(name, tempPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) checkDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	if filepath.Dir(abs) != s.root {
		return fmt.Errorf("directory %q is outside uploads root", dir)
	}
	return nil
}

func sanitizeField(field string) string {
	var b strings.Builder
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
