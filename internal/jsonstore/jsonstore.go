// Package jsonstore provides crash-safe persistence for JSON-encoded state
// files shared between cooperating local processes.
//
// Writes go through a uniquely-named sibling temp file followed by a rename;
// the rename is the only step assumed atomic at the filesystem level.
// Read-modify-write cycles are serialized per file with the lockfile
// protocol. There is no isolation beyond single-writer-at-a-time per file and
// no cross-file transaction.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/llkb/internal/lockfile"
)

// ErrCorrupt marks a file that exists but does not parse as JSON. Callers
// must never silently default on this: it distinguishes corruption from
// first-run absence.
var ErrCorrupt = errors.New("corrupt JSON file")

// SaveAtomic serializes v as pretty JSON and writes it to path via a
// temp-file-then-rename sequence. On any failure the temp file is removed
// best-effort and the target is left untouched.
func SaveAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp := path + ".tmp." + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file over %s: %w", path, err)
	}
	return nil
}

// Load reads path into v. A missing file returns an error satisfying
// errors.Is(err, fs.ErrNotExist); a file that exists but fails to parse
// returns an error wrapping ErrCorrupt and naming the path.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

// UpdateWithLock performs a locked read-modify-write on path: acquire the
// advisory lock, read the current value (zero value when the file does not
// exist yet), apply fn, save atomically, and release the lock regardless of
// outcome. fn must be pure with respect to the file; it may be re-run by
// callers that retry the whole operation.
func UpdateWithLock[T any](path string, fn func(current T) (T, error), opts ...lockfile.Option) error {
	lock := lockfile.New(path, opts...)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	var current T
	if err := Load(path, &current); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	updated, err := fn(current)
	if err != nil {
		return err
	}
	return SaveAtomic(path, updated)
}
