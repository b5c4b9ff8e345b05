package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FilePersister stores each key as a JSON file in a profile directory.
type FilePersister struct {
	fs  afero.Fs
	dir string
}

// NewFilePersister creates the profile directory on the local disk if needed.
func NewFilePersister(dir string) (*FilePersister, error) {
	return NewFilePersisterFs(afero.NewOsFs(), dir)
}

// NewFilePersisterFs is NewFilePersister on an arbitrary filesystem.
// Watch only works on the OS filesystem.
func NewFilePersisterFs(fs afero.Fs, dir string) (*FilePersister, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is required")
	}
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FilePersister{fs: fs, dir: dir}, nil
}

// Path returns the file a key is stored in.
func (f *FilePersister) Path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f *FilePersister) Load(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Save writes through a temp file and rename so readers never see a
// half-written session.
func (f *FilePersister) Save(_ context.Context, key string, value []byte) error {
	tmp, err := afero.TempFile(f.fs, f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.fs.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := f.fs.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", key, err)
	}
	if err := f.fs.Rename(tmp.Name(), f.Path(key)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (f *FilePersister) Delete(_ context.Context, key string) error {
	if err := f.fs.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Watch calls onChange whenever the file for key is written, created or
// removed by any process. It blocks until ctx is done.
func (f *FilePersister) Watch(ctx context.Context, key string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the file inode.
	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	target := f.Path(key)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// WatchStore reloads store whenever its persisted file changes.
func (f *FilePersister) WatchStore(ctx context.Context, store *Store) error {
	return f.Watch(ctx, store.key, func() { store.Reload(ctx) })
}
