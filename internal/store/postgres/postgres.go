// Package postgres serves the level catalog from PostgreSQL, for setups
// where several machines share one catalog.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and migrates the schema
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.RunMigrations(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) RunMigrations() error {
	d, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	// db borrows connections from the pool; the pool owns their lifetime
	db := stdlib.OpenDBFromPool(s.pool)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const selectLevels = `
	SELECT id, display_name, archive_name, archive_url, archive_md5, install_path,
		game_path, executable, mode, copy_conflict, flatten_dir, flatten_levels
	FROM levels`

func scanLevel(row pgx.Row) (domain.Descriptor, error) {
	var d domain.Descriptor
	var mode, conflict string
	err := row.Scan(&d.ID, &d.DisplayName, &d.ArchiveName, &d.ArchiveURL, &d.ArchiveMD5,
		&d.InstallPath, &d.GamePath, &d.Executable, &mode, &conflict, &d.FlattenDir, &d.FlattenLevels)
	d.Mode = domain.InstallMode(mode)
	d.CopyConflict = domain.CopyConflict(conflict)
	return d, err
}

func (s *Store) Descriptors(ctx context.Context) ([]domain.Descriptor, error) {
	rows, err := s.pool.Query(ctx, selectLevels+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}

	descs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Descriptor, error) {
		return scanLevel(row)
	})
	if err != nil {
		return nil, err
	}

	index := make(map[int]int, len(descs))
	for i, d := range descs {
		index[d.ID] = i
	}

	files, err := s.pool.Query(ctx, `SELECT level_id, path, md5 FROM level_files ORDER BY level_id, ordinal, path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query level files: %w", err)
	}
	var id int
	var f domain.ExpectedFile
	_, err = pgx.ForEachRow(files, []any{&id, &f.Path, &f.MD5}, func() error {
		if i, ok := index[id]; ok {
			descs[i].ExpectedFiles = append(descs[i].ExpectedFiles, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	aliases, err := s.pool.Query(ctx, `SELECT level_id, link_from, link_to FROM level_aliases ORDER BY level_id, link_to`)
	if err != nil {
		return nil, fmt.Errorf("failed to query level aliases: %w", err)
	}
	var a domain.Alias
	_, err = pgx.ForEachRow(aliases, []any{&id, &a.From, &a.To}, func() error {
		if i, ok := index[id]; ok {
			descs[i].Aliases = append(descs[i].Aliases, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return descs, nil
}

func (s *Store) SaveDescriptor(ctx context.Context, d domain.Descriptor) error {
	d.ApplyDefaults()
	if err := d.Validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO levels (id, display_name, archive_name, archive_url, archive_md5, install_path,
				game_path, executable, mode, copy_conflict, flatten_dir, flatten_levels)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				archive_name = EXCLUDED.archive_name,
				archive_url = EXCLUDED.archive_url,
				archive_md5 = EXCLUDED.archive_md5,
				install_path = EXCLUDED.install_path,
				game_path = EXCLUDED.game_path,
				executable = EXCLUDED.executable,
				mode = EXCLUDED.mode,
				copy_conflict = EXCLUDED.copy_conflict,
				flatten_dir = EXCLUDED.flatten_dir,
				flatten_levels = EXCLUDED.flatten_levels,
				updated_at = now()`,
			d.ID, d.DisplayName, d.ArchiveName, d.ArchiveURL, d.ArchiveMD5, d.InstallPath,
			d.GamePath, d.Executable, string(d.Mode), string(d.CopyConflict), d.FlattenDir, d.FlattenLevels)
		if err != nil {
			return fmt.Errorf("failed to upsert level %d: %w", d.ID, err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM level_files WHERE level_id = $1`, d.ID)
		for i, f := range d.ExpectedFiles {
			batch.Queue(`INSERT INTO level_files (level_id, path, md5, ordinal) VALUES ($1, $2, $3, $4)`, d.ID, f.Path, f.MD5, i)
		}
		batch.Queue(`DELETE FROM level_aliases WHERE level_id = $1`, d.ID)
		for _, a := range d.Aliases {
			batch.Queue(`INSERT INTO level_aliases (level_id, link_from, link_to) VALUES ($1, $2, $3)`, d.ID, a.From, a.To)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
