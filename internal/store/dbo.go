package store

import (
	"github.com/datallboy/levelkeep/internal/domain"
)

// levelDBO maps to the levels table
type levelDBO struct {
	ID            int    `db:"id"`
	DisplayName   string `db:"display_name"`
	ArchiveName   string `db:"archive_name"`
	ArchiveURL    string `db:"archive_url"`
	ArchiveMD5    string `db:"archive_md5"`
	InstallPath   string `db:"install_path"`
	GamePath      string `db:"game_path"`
	Executable    string `db:"executable"`
	Mode          string `db:"mode"`
	CopyConflict  string `db:"copy_conflict"`
	FlattenDir    string `db:"flatten_dir"`
	FlattenLevels int    `db:"flatten_levels"`
}

// Mapper: DBO to Domain Descriptor. Files and aliases are loaded separately.
func (l *levelDBO) ToDomain() domain.Descriptor {
	return domain.Descriptor{
		ID:            l.ID,
		DisplayName:   l.DisplayName,
		ArchiveName:   l.ArchiveName,
		ArchiveURL:    l.ArchiveURL,
		ArchiveMD5:    l.ArchiveMD5,
		InstallPath:   l.InstallPath,
		GamePath:      l.GamePath,
		Executable:    l.Executable,
		Mode:          domain.InstallMode(l.Mode),
		CopyConflict:  domain.CopyConflict(l.CopyConflict),
		FlattenDir:    l.FlattenDir,
		FlattenLevels: l.FlattenLevels,
	}
}

// Mapper: Domain Descriptor to DBO
func fromDomain(d domain.Descriptor) levelDBO {
	return levelDBO{
		ID:            d.ID,
		DisplayName:   d.DisplayName,
		ArchiveName:   d.ArchiveName,
		ArchiveURL:    d.ArchiveURL,
		ArchiveMD5:    d.ArchiveMD5,
		InstallPath:   d.InstallPath,
		GamePath:      d.GamePath,
		Executable:    d.Executable,
		Mode:          string(d.Mode),
		CopyConflict:  string(d.CopyConflict),
		FlattenDir:    d.FlattenDir,
		FlattenLevels: d.FlattenLevels,
	}
}
