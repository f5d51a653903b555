// Package fileops holds the filesystem primitives the level state machine is
// built from. Every path a caller passes is relative to one of two roots: the
// level root, where archives are downloaded and unpacked, and the game root,
// the tree the game expects its assets in.
//
// Primitives report outcomes as values and wrapped sentinel errors from the
// domain package. Nothing is retried internally.
package fileops

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/extraction"
	"github.com/datallboy/levelkeep/internal/infra/logger"
	"golang.org/x/sync/singleflight"
)

// hashBufferSize bounds memory used while hashing regardless of file size
const hashBufferSize = 32 * 1024

type Root int

const (
	LevelRoot Root = iota
	GameRoot
)

func (r Root) String() string {
	if r == GameRoot {
		return "game"
	}
	return "level"
}

// Kind classifies a path for telling linked content from copied content
type Kind int

const (
	RegularFileOrOther Kind = iota
	Directory
	SymlinkToDirectory
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case SymlinkToDirectory:
		return "symlink-to-directory"
	default:
		return "file-or-other"
	}
}

type FileOps struct {
	levelRoot string
	gameRoot  string
	log       *logger.Logger
	extractor *extraction.Manager

	// flight collapses concurrent backup/flatten calls on the same path
	flight singleflight.Group
}

// New binds a FileOps to its two roots. Relative roots are resolved against
// the working directory once, here.
func New(levelRoot, gameRoot string, log *logger.Logger) *FileOps {
	if log == nil {
		log = logger.Nop()
	}
	return &FileOps{
		levelRoot: absOrClean(levelRoot),
		gameRoot:  absOrClean(gameRoot),
		log:       log,
		extractor: extraction.NewManager(extraction.DefaultBudget),
	}
}

// UseExtractors replaces the extraction manager, e.g. to change the tick budget
func (o *FileOps) UseExtractors(m *extraction.Manager) {
	if m != nil {
		o.extractor = m
	}
}

func absOrClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// InitRoots creates both roots, including missing parents
func (o *FileOps) InitRoots() error {
	for _, dir := range []string{o.levelRoot, o.gameRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			o.log.Warn("Failed to create directory: %s", dir)
			return ioFailure("create root", dir, err)
		}
	}
	return nil
}

// RootDir returns the absolute directory of root
func (o *FileOps) RootDir(root Root) string {
	if root == GameRoot {
		return o.gameRoot
	}
	return o.levelRoot
}

// Abs resolves rel against root
func (o *FileOps) Abs(rel string, root Root) string {
	return filepath.Join(o.RootDir(root), rel)
}

// Exists reports whether anything, including a dangling link, is at rel
func (o *FileOps) Exists(rel string, root Root) bool {
	_, err := os.Lstat(o.Abs(rel, root))
	return err == nil
}

// Hash returns the MD5 hex digest of rel, or "" when it is absent or not a
// regular file. Use Digest to tell absence from an I/O failure.
func (o *FileOps) Hash(rel string, root Root) string {
	sum, _ := o.Digest(rel, root)
	return sum
}

// Digest hashes rel with a fixed-size buffer. Absence and non-regular files
// wrap domain.ErrNotFound; anything else wraps domain.ErrIO.
func (o *FileOps) Digest(rel string, root Root) (string, error) {
	path := o.Abs(rel, root)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return "", ioFailure("stat", path, err)
	}

	if !info.Mode().IsRegular() {
		o.log.Debug("The path is not a regular file: %s", path)
		return "", fmt.Errorf("%s is not a regular file: %w", path, domain.ErrNotFound)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", ioFailure("open", path, err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, hashBufferSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", ioFailure("read", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// PathKind classifies rel. A missing path reports RegularFileOrOther with
// exists=false; callers must check exists before trusting the kind.
func (o *FileOps) PathKind(rel string, root Root) (kind Kind, exists bool, err error) {
	path := o.Abs(rel, root)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return RegularFileOrOther, false, nil
		}
		return RegularFileOrOther, false, ioFailure("lstat", path, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(path)
		if err == nil && target.IsDir() {
			return SymlinkToDirectory, true, nil
		}
		// Dangling links and links to files
		return RegularFileOrOther, true, nil
	}

	if info.IsDir() {
		return Directory, true, nil
	}

	return RegularFileOrOther, true, nil
}

// LinkTarget reads the link at rel. isLink is false when rel exists but is
// not a symlink; a missing rel wraps domain.ErrNotFound.
func (o *FileOps) LinkTarget(rel string, root Root) (target string, isLink bool, err error) {
	path := o.Abs(rel, root)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return "", false, ioFailure("lstat", path, err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}

	target, err = os.Readlink(path)
	if err != nil {
		return "", true, ioFailure("readlink", path, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), true, nil
}

// Files lists the regular files below rel, relative to rel and slash
// separated, in lexical order. Symlinks are not followed or listed.
func (o *FileOps) Files(rel string, root Root) ([]string, error) {
	base := o.Abs(rel, root)

	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		r, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(r))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", base, domain.ErrNotFound)
		}
		return nil, ioFailure("walk", base, err)
	}
	return files, nil
}

func ioFailure(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, domain.ErrIO, err)
}
