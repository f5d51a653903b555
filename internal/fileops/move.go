package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/datallboy/levelkeep/internal/domain"
)

const backupSuffix = ".old"

// Backup renames gameRoot/rel to a sibling suffixed ".old". It fails when the
// source is absent or a backup already exists, so content is backed up once.
func (o *FileOps) Backup(rel string) error {
	src := filepath.Clean(o.Abs(rel, GameRoot))

	_, err, _ := o.flight.Do("backup:"+src, func() (any, error) {
		return nil, o.backup(src)
	})
	return err
}

func (o *FileOps) backup(src string) error {
	dst := src + backupSuffix

	info, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("backup %s: %w", src, domain.ErrNotFound)
		}
		return ioFailure("lstat", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backup %s: not a directory: %w", src, domain.ErrConflict)
	}

	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("backup %s: %s already exists: %w", src, dst, domain.ErrConflict)
	}

	if err := os.Rename(src, dst); err != nil {
		return ioFailure("rename", src, err)
	}

	o.log.Info("Backed up %s to %s", src, dst)
	return nil
}

// MoveChildrenInto moves the direct file children of srcRel into dstRel, both
// under the level root. Subdirectories stay behind. The first failed move
// aborts; files moved before it stay moved.
func (o *FileOps) MoveChildrenInto(srcRel, dstRel string) error {
	src := o.Abs(srcRel, LevelRoot)
	dst := o.Abs(dstRel, LevelRoot)

	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move from %s: %w", src, domain.ErrNotFound)
		}
		return ioFailure("read dir", src, err)
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return ioFailure("mkdir", dst, err)
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := moveFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return moveFailure(e.Name(), moved, err)
		}
		moved++
	}

	o.log.Debug("Moved %d files from %s to %s", moved, src, dst)
	return nil
}

// FlattenUpward moves every direct child of levelRoot/rel into its ancestor
// levelsUp levels above, then removes the emptied directory. The ancestor
// must still be inside the level root. On the first failure nothing further
// is moved and the original directory is kept.
func (o *FileOps) FlattenUpward(rel string, levelsUp int) error {
	dir := filepath.Clean(o.Abs(rel, LevelRoot))

	_, err, _ := o.flight.Do("flatten:"+dir, func() (any, error) {
		return nil, o.flatten(rel, dir, levelsUp)
	})
	return err
}

func (o *FileOps) flatten(rel, dir string, levelsUp int) error {
	if levelsUp < 1 {
		return fmt.Errorf("flatten %s: levels must be positive, got %d: %w", dir, levelsUp, domain.ErrInvalidDescriptor)
	}

	clean := filepath.ToSlash(filepath.Clean(rel))
	if !domain.IsRootRelative(clean) || clean == "." {
		return fmt.Errorf("flatten %s: path is not inside the level root: %w", rel, domain.ErrInvalidDescriptor)
	}
	if depth := len(strings.Split(clean, "/")); levelsUp > depth {
		return fmt.Errorf("flatten %s: only %d parent levels inside the level root, need %d: %w",
			dir, depth, levelsUp, domain.ErrInvalidDescriptor)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("flatten %s: %w", dir, domain.ErrNotFound)
		}
		return ioFailure("stat", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("flatten %s: not a directory: %w", dir, domain.ErrConflict)
	}

	ancestor := dir
	for range levelsUp {
		ancestor = filepath.Dir(ancestor)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ioFailure("read dir", dir, err)
	}

	moved := 0
	for _, e := range entries {
		src := filepath.Join(dir, e.Name())
		dst := filepath.Join(ancestor, e.Name())

		if e.IsDir() {
			err = renameDir(src, dst)
		} else {
			err = moveFile(src, dst)
		}
		if err != nil {
			o.log.Warn("Flatten of %s stopped at %s: %v", dir, e.Name(), err)
			return moveFailure(e.Name(), moved, err)
		}
		moved++
	}

	if err := os.Remove(dir); err != nil {
		return ioFailure("remove", dir, err)
	}

	o.log.Debug("Flattened %s into %s (%d entries)", dir, ancestor, moved)
	return nil
}

// renameDir renames a directory over dest. An empty dest directory, as left
// by an earlier interrupted flatten, is replaced; anything else fails.
func renameDir(src, dest string) error {
	if info, err := os.Lstat(dest); err == nil && info.IsDir() {
		if err := os.Remove(dest); err != nil {
			return err
		}
	}
	return os.Rename(src, dest)
}

func moveFailure(name string, moved int, err error) error {
	if moved > 0 {
		return fmt.Errorf("moving %s after %d entries: %w: %w", name, moved, domain.ErrPartialProgress, err)
	}
	return fmt.Errorf("moving %s: %w: %w", name, domain.ErrIO, err)
}

// moveFile renames source to dest, falling back to copy-and-delete when they
// live on different filesystems.
func moveFile(source, dest string) error {
	err := os.Rename(source, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	return moveCrossDevice(source, dest)
}

// moveCrossDevice copies into a hidden temp file next to dest, renames it into
// place and only then removes the source.
func moveCrossDevice(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	tempDest := filepath.Join(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp")

	dst, err := os.OpenFile(tempDest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}

	if err = dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tempDest)
		return err
	}

	src.Close()
	if err = dst.Close(); err != nil {
		os.Remove(tempDest)
		return err
	}

	if err = os.Rename(tempDest, destPath); err != nil {
		os.Remove(tempDest)
		return err
	}

	return os.Remove(sourcePath)
}

// Rename moves srcRel to dstRel inside one root. An existing destination is a
// domain.ErrConflict and is left alone.
func (o *FileOps) Rename(srcRel, dstRel string, root Root) error {
	src := o.Abs(srcRel, root)
	dst := o.Abs(dstRel, root)

	if _, err := os.Lstat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rename %s: %w", src, domain.ErrNotFound)
		}
		return ioFailure("lstat", src, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("rename %s: %s already exists: %w", src, dst, domain.ErrConflict)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return ioFailure("mkdir", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		return ioFailure("rename", src, err)
	}
	return nil
}
