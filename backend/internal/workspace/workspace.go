// Package workspace manages the directory that executions run in and that
// uploaded files are stored in.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Errors returned by Workspace methods.
var (
	ErrInvalidName = errors.New("invalid file name")
	ErrTooLarge    = errors.New("file too large")
)

const tmpPrefix = ".upload-"

// FileInfo describes a regular file in the workspace.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Workspace is a flat directory of files. Its listing is cached until Save
// or Invalidate is called, or until Watch sees a change.
type Workspace struct {
	root string

	mu     sync.Mutex
	cached []FileInfo // nil when stale
}

// Open creates root if needed and returns a Workspace rooted there.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// CleanName returns name if it is a plain file name that stays inside the
// workspace.
func CleanName(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) ||
		strings.HasPrefix(name, tmpPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// Save streams r into the file name, replacing any existing file. At most
// maxBytes are accepted; a larger body leaves no file behind.
func (w *Workspace) Save(name string, r io.Reader, maxBytes int64) (FileInfo, error) {
	name, err := CleanName(name)
	if err != nil {
		return FileInfo{}, err
	}
	f, err := os.CreateTemp(w.root, tmpPrefix+"*")
	if err != nil {
		return FileInfo{}, err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if n > maxBytes {
		return FileInfo{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}
	dst := filepath.Join(w.root, name)
	if err := os.Rename(tmp, dst); err != nil {
		return FileInfo{}, err
	}
	w.Invalidate()
	st, err := os.Stat(dst)
	if err != nil {
		return FileInfo{}, err
	}
	slog.Info("saved upload", "name", name, "size", st.Size())
	return FileInfo{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Path returns the absolute path of an existing regular file.
func (w *Workspace) Path(name string) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	p := filepath.Join(w.root, name)
	st, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return p, nil
}

// List returns the regular files in the workspace sorted by name.
func (w *Workspace) List() ([]FileInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cached != nil {
		return append([]FileInfo(nil), w.cached...), nil
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	w.cached = out
	return append([]FileInfo(nil), out...), nil
}

// Invalidate drops the cached listing. Callers that let other processes write
// into the workspace call it once those processes are done.
func (w *Workspace) Invalidate() {
	w.mu.Lock()
	w.cached = nil
	w.mu.Unlock()
}

// Watch subscribes to filesystem events on the workspace so that files
// created by executed code show up in List. It returns once the watch is
// installed; the watcher is closed when ctx is done.
func (w *Workspace) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	if err := watcher.Add(w.root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasPrefix(filepath.Base(ev.Name), tmpPrefix) {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write) {
					slog.Debug("workspace changed", "name", ev.Name, "op", ev.Op.String())
					w.Invalidate()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("workspace watcher", "err", err)
				w.Invalidate()
			}
		}
	}()
	return nil
}
