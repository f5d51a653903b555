package level

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/fileops"
)

var errChecksumMismatch = errors.New("archive checksum mismatch")

// infer inspects the filesystem in a fixed order. A non-nil error always comes
// with StateBroken.
func (m *Machine) infer(d *domain.Descriptor) (domain.LevelState, error) {
	if len(d.ExpectedFiles) > 0 {
		present, err := m.assetsPresent(d)
		if err != nil {
			return domain.StateBroken, err
		}
		if present {
			return domain.StateAssetsPresentInGame, nil
		}
	}

	kind, exists, err := m.ops.PathKind(d.InstallPath, fileops.LevelRoot)
	if err != nil {
		return domain.StateBroken, err
	}
	if exists && kind != fileops.Directory {
		return domain.StateBroken, fmt.Errorf("install path %s is not a directory: %w", d.InstallPath, domain.ErrConflict)
	}
	if !exists {
		return m.inferArchive(d)
	}

	if d.Mode == domain.ModeCopy {
		return m.inferCopy(d)
	}
	return m.inferLink(d)
}

func (m *Machine) assetsPresent(d *domain.Descriptor) (bool, error) {
	for _, f := range d.ExpectedFiles {
		sum, err := m.ops.Digest(f.Path, fileops.GameRoot)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(sum, f.MD5) {
			return false, nil
		}
	}
	return true, nil
}

func (m *Machine) inferArchive(d *domain.Descriptor) (domain.LevelState, error) {
	kind, exists, err := m.ops.PathKind(d.ArchivePath(), fileops.LevelRoot)
	if err != nil {
		return domain.StateBroken, err
	}
	if !exists || kind != fileops.RegularFileOrOther {
		return domain.StateNeedsDownload, nil
	}

	if d.ArchiveMD5 != "" {
		sum, err := m.ops.Digest(d.ArchivePath(), fileops.LevelRoot)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.StateNeedsDownload, nil
		}
		if err != nil {
			return domain.StateBroken, err
		}
		if !strings.EqualFold(sum, d.ArchiveMD5) {
			return domain.StateBroken, fmt.Errorf("%w: %s", errChecksumMismatch, d.ArchivePath())
		}
	}

	return domain.StateDownloaded, nil
}

// inferLink: a link to this level's install dir is Installed, a link anywhere
// else is Linked, and anything else at the game path is not ours.
func (m *Machine) inferLink(d *domain.Descriptor) (domain.LevelState, error) {
	target, isLink, err := m.ops.LinkTarget(d.GamePath, fileops.GameRoot)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StateExtracted, nil
	}
	if err != nil {
		return domain.StateBroken, err
	}
	if !isLink {
		return domain.StateExtracted, nil
	}

	if target == filepath.Clean(m.ops.Abs(d.InstallPath, fileops.LevelRoot)) {
		return domain.StateInstalled, nil
	}
	return domain.StateLinked, nil
}

// inferCopy: Installed once every installed file has a same-hash copy under
// the game path.
func (m *Machine) inferCopy(d *domain.Descriptor) (domain.LevelState, error) {
	kind, exists, err := m.ops.PathKind(d.GamePath, fileops.GameRoot)
	if err != nil {
		return domain.StateBroken, err
	}
	if !exists || kind != fileops.Directory {
		return domain.StateExtracted, nil
	}

	files, err := m.ops.Files(d.InstallPath, fileops.LevelRoot)
	if err != nil {
		return domain.StateBroken, err
	}

	for _, f := range files {
		same, err := m.sameCopy(d, f)
		if err != nil {
			return domain.StateBroken, err
		}
		if !same {
			return domain.StateExtracted, nil
		}
	}
	return domain.StateInstalled, nil
}

// sameCopy compares installPath/rel with gamePath/rel. A missing copy is not
// an error.
func (m *Machine) sameCopy(d *domain.Descriptor, rel string) (bool, error) {
	dst, err := m.ops.Digest(path.Join(d.GamePath, rel), fileops.GameRoot)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	src, err := m.ops.Digest(path.Join(d.InstallPath, rel), fileops.LevelRoot)
	if err != nil {
		return false, err
	}
	return src == dst, nil
}
