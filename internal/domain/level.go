package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

type InstallMode string

const (
	ModeLink InstallMode = "link"
	ModeCopy InstallMode = "copy"
)

type CopyConflict string

const (
	// CopyExistingOK treats a destination that already exists as already copied
	CopyExistingOK CopyConflict = "existing-ok"
	// CopyExistingFails reports an existing destination as a conflict
	CopyExistingFails CopyConflict = "existing-fails"
)

// ExpectedFile is a game-root relative file and the MD5 it must hash to.
type ExpectedFile struct {
	Path string `json:"path" yaml:"path"`
	MD5  string `json:"md5" yaml:"md5"`
}

// Alias is a link created inside the install dir after extraction. Level
// packs built on Windows often reference files with a different case.
type Alias struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Descriptor describes one known level. It is loaded from a catalog and never
// mutated afterwards.
type Descriptor struct {
	ID            int            `json:"id" yaml:"id"`
	DisplayName   string         `json:"displayName" yaml:"display_name"`
	ExpectedFiles []ExpectedFile `json:"expectedFiles" yaml:"expected_files,omitempty"`

	ArchiveName string `json:"archiveName" yaml:"archive_name,omitempty"`
	ArchiveURL  string `json:"archiveUrl" yaml:"archive_url,omitempty"`
	ArchiveMD5  string `json:"archiveMd5,omitempty" yaml:"archive_md5,omitempty"`

	InstallPath string `json:"installPath" yaml:"install_path"`
	GamePath    string `json:"gamePath" yaml:"game_path"`
	Executable  string `json:"executable,omitempty" yaml:"executable,omitempty"`

	Mode          InstallMode  `json:"mode" yaml:"mode"`
	CopyConflict  CopyConflict `json:"copyConflict,omitempty" yaml:"copy_conflict,omitempty"`
	FlattenDir    string       `json:"flattenDir,omitempty" yaml:"flatten_dir,omitempty"`
	FlattenLevels int          `json:"flattenLevels,omitempty" yaml:"flatten_levels,omitempty"`
	Aliases       []Alias      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// ApplyDefaults fills the optional fields a catalog may leave empty.
func (d *Descriptor) ApplyDefaults() {
	if d.Mode == "" {
		d.Mode = ModeLink
	}
	if d.CopyConflict == "" {
		d.CopyConflict = CopyExistingOK
	}
	if d.FlattenDir != "" && d.FlattenLevels <= 0 {
		d.FlattenLevels = 1
	}
}

// Validate checks that every relative path stays inside its root.
func (d *Descriptor) Validate() error {
	if d.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidDescriptor, d.ID)
	}

	if d.InstallPath == "" || d.GamePath == "" {
		return fmt.Errorf("%w: level %d needs install_path and game_path", ErrInvalidDescriptor, d.ID)
	}

	if d.Mode != ModeLink && d.Mode != ModeCopy {
		return fmt.Errorf("%w: level %d has unknown mode %q", ErrInvalidDescriptor, d.ID, d.Mode)
	}

	paths := []string{d.InstallPath, d.GamePath}
	if d.ArchiveName != "" {
		paths = append(paths, d.ArchiveName)
	}
	if d.FlattenDir != "" {
		paths = append(paths, d.FlattenDir)
	}
	if d.Executable != "" {
		paths = append(paths, d.Executable)
	}
	for _, f := range d.ExpectedFiles {
		paths = append(paths, f.Path)
	}
	for _, a := range d.Aliases {
		paths = append(paths, a.From, a.To)
	}

	for _, p := range paths {
		if !IsRootRelative(p) {
			return fmt.Errorf("%w: level %d path %q must name a path inside its root without '..'", ErrInvalidDescriptor, d.ID, p)
		}
	}

	if d.FlattenDir != "" && d.FlattenLevels > depth(d.FlattenDir) {
		return fmt.Errorf("%w: level %d flattens %d levels but %q is only %d deep",
			ErrInvalidDescriptor, d.ID, d.FlattenLevels, d.FlattenDir, depth(d.FlattenDir))
	}

	return nil
}

// ArchivePath is where the downloaded archive lives under the level root.
func (d *Descriptor) ArchivePath() string {
	if d.ArchiveName != "" {
		return d.ArchiveName
	}
	return d.InstallPath + ".zip"
}

// StagingPath is the level-root directory extraction writes into before it
// is renamed to InstallPath. An interrupted extraction never leaves a
// half-filled InstallPath behind.
func (d *Descriptor) StagingPath() string {
	return filepath.Clean(d.InstallPath) + ".partial"
}

// IsRootRelative reports whether p is a relative path naming something
// strictly inside its root. The root itself ("." and its spellings) and any
// path climbing out of it are rejected.
func IsRootRelative(p string) bool {
	if p == "" || filepath.IsAbs(p) || filepath.Clean(p) == "." {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

func depth(p string) int {
	return len(strings.Split(filepath.ToSlash(filepath.Clean(p)), "/"))
}
