// Package backup snapshots a directory tree before a destructive update and
// restores it on failure.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Snapshot is a full copy of a directory tree, stored at a deterministic
// sibling path. A live snapshot on disk marks an interrupted update.
type Snapshot struct {
	// Origin is the directory the snapshot was taken from.
	Origin string
	// Path is where the copy lives.
	Path string
}

// Path returns the deterministic snapshot location for a target directory
// and the version being installed.
func Path(target, version string) string {
	parent := filepath.Dir(filepath.Clean(target))
	base := filepath.Base(filepath.Clean(target))
	return filepath.Join(parent, fmt.Sprintf("%s_backup_%s", base, version))
}

// Take copies target to its snapshot path and returns a handle. A missing
// target is not an error; it returns a nil snapshot. Any stale snapshot at
// the same path is replaced, keeping at most one live snapshot per target.
func Take(target, version string) (*Snapshot, error) {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil, nil
	}

	snapPath := Path(target, version)
	if err := os.RemoveAll(snapPath); err != nil {
		return nil, fmt.Errorf("failed to remove stale snapshot: %w", err)
	}

	if err := copyTree(target, snapPath); err != nil {
		_ = os.RemoveAll(snapPath)
		return nil, fmt.Errorf("failed to copy %s: %w", target, err)
	}

	return &Snapshot{Origin: target, Path: snapPath}, nil
}

// Restore moves the snapshot back into place, replacing whatever currently
// sits at the origin. A nil snapshot is a no-op.
func Restore(s *Snapshot) error {
	if s == nil {
		return nil
	}
	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		return fmt.Errorf("snapshot %s no longer exists", s.Path)
	}

	if err := os.RemoveAll(s.Origin); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.Origin, err)
	}
	if err := os.Rename(s.Path, s.Origin); err != nil {
		return fmt.Errorf("failed to move snapshot back: %w", err)
	}
	return nil
}

// Discard deletes the snapshot tree. A nil snapshot is a no-op.
func Discard(s *Snapshot) error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.Path)
}

// copyTree recursively copies src to dst, preserving file modes. Symlinks
// are recreated rather than followed.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(p, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
