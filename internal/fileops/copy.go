package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datallboy/levelkeep/internal/domain"
)

type CopyResult int

const (
	Copied CopyResult = iota
	CopyExists
	CopyFailed
)

func (r CopyResult) String() string {
	switch r {
	case Copied:
		return "copied"
	case CopyExists:
		return "exists"
	default:
		return "failed"
	}
}

type RemoveResult int

const (
	Removed RemoveResult = iota
	RemoveNotFound
	RemoveFailed
)

type MkdirResult int

const (
	Created MkdirResult = iota
	MkdirExists
	MkdirFailed
)

// Copy copies one file between the roots, creating destination parents.
// An existing destination is never overwritten and reports CopyExists.
func (o *FileOps) Copy(srcRel, dstRel string, sourceIsGameRoot bool) (CopyResult, error) {
	srcRoot, dstRoot := LevelRoot, GameRoot
	if sourceIsGameRoot {
		srcRoot, dstRoot = GameRoot, LevelRoot
	}
	src := o.Abs(srcRel, srcRoot)
	dst := o.Abs(dstRel, dstRoot)

	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CopyFailed, fmt.Errorf("copy source %s: %w", src, domain.ErrNotFound)
		}
		return CopyFailed, ioFailure("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return CopyFailed, ioFailure("stat", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return CopyFailed, ioFailure("create parent", dst, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return CopyExists, nil
		}
		return CopyFailed, ioFailure("create", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return CopyFailed, ioFailure("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return CopyFailed, ioFailure("close", dst, err)
	}

	return Copied, nil
}

// Remove deletes a file, a link (never its target) or a whole directory tree
func (o *FileOps) Remove(rel string, root Root) (RemoveResult, error) {
	path := o.Abs(rel, root)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return RemoveNotFound, nil
		}
		return RemoveFailed, ioFailure("lstat", path, err)
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		o.log.Warn("Failed to remove %s: %v", path, err)
		return RemoveFailed, ioFailure("remove", path, err)
	}

	return Removed, nil
}

// Mkdir creates rel and any missing parents
func (o *FileOps) Mkdir(rel string, root Root) (MkdirResult, error) {
	path := o.Abs(rel, root)

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return MkdirExists, nil
		}
		return MkdirFailed, fmt.Errorf("%s exists and is not a directory: %w", path, domain.ErrConflict)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return MkdirFailed, ioFailure("mkdir", path, err)
	}
	return Created, nil
}
