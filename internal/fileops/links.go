package fileops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datallboy/levelkeep/internal/domain"
)

// CreateSymlink links gameRoot/targetRel to levelRoot/sourceRel. An existing
// symlink at the target is replaced once; a real file or directory there is
// left untouched and reported as domain.ErrConflict.
func (o *FileOps) CreateSymlink(sourceRel, targetRel string) error {
	source := o.Abs(sourceRel, LevelRoot)
	target := o.Abs(targetRel, GameRoot)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return ioFailure("create link parent", target, err)
	}

	if err := o.link(source, target); err != nil {
		return err
	}

	o.log.Debug("Linked %s -> %s", target, source)
	return nil
}

// CreateRelativeLink creates dirRel/to as a relative link to dirRel/from,
// both inside the level root. Used for alternate spellings of asset folders.
func (o *FileOps) CreateRelativeLink(dirRel, from, to string) error {
	dir := o.Abs(dirRel, LevelRoot)
	source := filepath.Join(dir, from)
	target := filepath.Join(dir, to)

	rel, err := filepath.Rel(filepath.Dir(target), source)
	if err != nil {
		return fmt.Errorf("relative link %s -> %s: %w", target, source, err)
	}

	if err := o.link(rel, target); err != nil {
		return err
	}

	o.log.Debug("Linked %s -> %s", target, rel)
	return nil
}

func (o *FileOps) link(source, target string) error {
	err := os.Symlink(source, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return ioFailure("symlink", target, err)
	}

	info, lerr := os.Lstat(target)
	if lerr != nil {
		return ioFailure("lstat", target, lerr)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		o.log.Warn("Refusing to replace %s: it is not a link", target)
		return fmt.Errorf("%s exists and is not a link: %w", target, domain.ErrConflict)
	}

	if err := os.Remove(target); err != nil {
		return ioFailure("remove stale link", target, err)
	}
	if err := os.Symlink(source, target); err != nil {
		return ioFailure("symlink", target, err)
	}
	return nil
}
