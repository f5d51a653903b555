package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/levelkeep/internal/domain"
)

// SaveDescriptor upserts a level together with its expected files and
// aliases, replacing whatever was stored for it before.
func (s *PersistentStore) SaveDescriptor(ctx context.Context, d domain.Descriptor) error {
	d.ApplyDefaults()
	if err := d.Validate(); err != nil {
		return err
	}
	l := fromDomain(d)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO levels (id, display_name, archive_name, archive_url, archive_md5, install_path,
			game_path, executable, mode, copy_conflict, flatten_dir, flatten_levels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			archive_name = excluded.archive_name,
			archive_url = excluded.archive_url,
			archive_md5 = excluded.archive_md5,
			install_path = excluded.install_path,
			game_path = excluded.game_path,
			executable = excluded.executable,
			mode = excluded.mode,
			copy_conflict = excluded.copy_conflict,
			flatten_dir = excluded.flatten_dir,
			flatten_levels = excluded.flatten_levels,
			updated_at = CURRENT_TIMESTAMP`,
		l.ID, l.DisplayName, l.ArchiveName, l.ArchiveURL, l.ArchiveMD5, l.InstallPath,
		l.GamePath, l.Executable, l.Mode, l.CopyConflict, l.FlattenDir, l.FlattenLevels,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert level %d: %w", d.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM level_files WHERE level_id = ?`, d.ID); err != nil {
		return err
	}
	for i, f := range d.ExpectedFiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO level_files (level_id, path, md5, ordinal) VALUES (?, ?, ?, ?)`,
			d.ID, f.Path, f.MD5, i); err != nil {
			return fmt.Errorf("failed to save expected file %s: %w", f.Path, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM level_aliases WHERE level_id = ?`, d.ID); err != nil {
		return err
	}
	for _, a := range d.Aliases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO level_aliases (level_id, link_from, link_to) VALUES (?, ?, ?)`,
			d.ID, a.From, a.To); err != nil {
			return fmt.Errorf("failed to save alias %s: %w", a.To, err)
		}
	}

	return tx.Commit()
}

// Descriptors returns every stored level ordered by id
func (s *PersistentStore) Descriptors(ctx context.Context) ([]domain.Descriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, archive_name, archive_url, archive_md5, install_path,
			game_path, executable, mode, copy_conflict, flatten_dir, flatten_levels
		FROM levels ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	var descs []domain.Descriptor
	index := make(map[int]int)
	for rows.Next() {
		var l levelDBO
		if err := rows.Scan(&l.ID, &l.DisplayName, &l.ArchiveName, &l.ArchiveURL, &l.ArchiveMD5,
			&l.InstallPath, &l.GamePath, &l.Executable, &l.Mode, &l.CopyConflict,
			&l.FlattenDir, &l.FlattenLevels); err != nil {
			return nil, err
		}
		index[l.ID] = len(descs)
		descs = append(descs, l.ToDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadFiles(ctx, descs, index); err != nil {
		return nil, err
	}
	if err := s.loadAliases(ctx, descs, index); err != nil {
		return nil, err
	}

	return descs, nil
}

// Descriptor returns one level, or domain.ErrNotFound
func (s *PersistentStore) Descriptor(ctx context.Context, id int) (domain.Descriptor, error) {
	var l levelDBO
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, archive_name, archive_url, archive_md5, install_path,
			game_path, executable, mode, copy_conflict, flatten_dir, flatten_levels
		FROM levels WHERE id = ?`, id).Scan(&l.ID, &l.DisplayName, &l.ArchiveName, &l.ArchiveURL,
		&l.ArchiveMD5, &l.InstallPath, &l.GamePath, &l.Executable, &l.Mode, &l.CopyConflict,
		&l.FlattenDir, &l.FlattenLevels)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Descriptor{}, fmt.Errorf("level %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Descriptor{}, err
	}

	descs := []domain.Descriptor{l.ToDomain()}
	index := map[int]int{id: 0}
	if err := s.loadFiles(ctx, descs, index); err != nil {
		return domain.Descriptor{}, err
	}
	if err := s.loadAliases(ctx, descs, index); err != nil {
		return domain.Descriptor{}, err
	}
	return descs[0], nil
}

// DeleteDescriptor removes a level; files and aliases cascade
func (s *PersistentStore) DeleteDescriptor(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM levels WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("level %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *PersistentStore) loadFiles(ctx context.Context, descs []domain.Descriptor, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT level_id, path, md5 FROM level_files ORDER BY level_id, ordinal, path`)
	if err != nil {
		return fmt.Errorf("failed to query level files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var f domain.ExpectedFile
		if err := rows.Scan(&id, &f.Path, &f.MD5); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			descs[i].ExpectedFiles = append(descs[i].ExpectedFiles, f)
		}
	}
	return rows.Err()
}

func (s *PersistentStore) loadAliases(ctx context.Context, descs []domain.Descriptor, index map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT level_id, link_from, link_to FROM level_aliases ORDER BY level_id, link_to`)
	if err != nil {
		return fmt.Errorf("failed to query level aliases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var a domain.Alias
		if err := rows.Scan(&id, &a.From, &a.To); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			descs[i].Aliases = append(descs[i].Aliases, a)
		}
	}
	return rows.Err()
}
