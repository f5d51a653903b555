package level

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/extraction"
	"github.com/datallboy/levelkeep/internal/fileops"
)

// maxInstallSteps is more than the longest path from NeedsDownload to
// Installed, so a loop that does not converge is caught.
const maxInstallSteps = 8

// Advance performs the one transition that applies to the level's current
// state and returns the re-inferred record.
func (m *Machine) Advance(ctx context.Context, id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}
	_, rec, err := m.advance(ctx, e, false)
	return rec, err
}

// Install advances the level until it is playable or broken, or until a
// download has been started. A finished download resumes the install in the
// background; use Wait to block until it settles.
func (m *Machine) Install(ctx context.Context, id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}

	e.recMu.Lock()
	e.installing++
	e.recMu.Unlock()
	defer m.doneInstalling(e)

	return m.installLoop(ctx, e)
}

func (m *Machine) doneInstalling(e *entry) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	e.installing--
	e.broadcast()
}

func (m *Machine) installLoop(ctx context.Context, e *entry) (domain.Record, error) {
	for range maxInstallSteps {
		from, rec, err := m.advance(ctx, e, true)
		if err != nil {
			return rec, err
		}
		// A started download resumes the loop from its completion callback.
		if rec.State.Playable() || from == domain.StateNeedsDownload {
			return rec, nil
		}
		if rec.State == from {
			err := fmt.Errorf("%w: level %d stayed %s", ErrNoProgress, e.desc.ID, rec.State)
			m.setError(e, err)
			return rec, err
		}
	}

	rec, _ := m.Record(e.desc.ID)
	return rec, fmt.Errorf("%w: level %d did not settle after %d steps", ErrNoProgress, e.desc.ID, maxInstallSteps)
}

// advance returns the state it started from along with the new record
func (m *Machine) advance(ctx context.Context, e *entry, resume bool) (domain.LevelState, domain.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		rec, _ := m.Record(e.desc.ID)
		return rec.State, rec, err
	}

	rec := m.refresh(e)
	from := rec.State
	if rec.Downloading {
		return from, rec, ErrDownloadInFlight
	}

	switch from {
	case domain.StateInstalled, domain.StateAssetsPresentInGame:
		return from, rec, nil
	case domain.StateBroken:
		return from, rec, fmt.Errorf("%w: %s", ErrBroken, rec.LastError)
	}

	// Cleared up front: a download may finish and record its own error
	// before this returns.
	m.setError(e, nil)

	var err error
	switch from {
	case domain.StateNeedsDownload:
		err = m.startDownload(e, resume)
	case domain.StateDownloaded:
		err = m.extract(ctx, e)
	case domain.StateExtracted:
		err = m.place(e)
	case domain.StateLinked:
		err = m.relink(e)
	default:
		err = fmt.Errorf("no transition from state %s", rec.State)
	}

	if err != nil {
		m.log.Error("Level %d: %s transition failed: %v", e.desc.ID, from, err)
		m.setError(e, err)
	}

	return from, m.refresh(e), err
}

// extract unpacks the archive into a staging dir and only renames it to the
// install path once it is complete. On failure the staging dir is removed
// and the archive kept for another attempt.
func (m *Machine) extract(ctx context.Context, e *entry) error {
	d := &e.desc
	staging := d.StagingPath()

	if _, err := m.ops.Remove(staging, fileops.LevelRoot); err != nil {
		return err
	}

	err := m.ops.ExtractArchive(ctx, d.ArchivePath(), staging, func(ev extraction.Event) {
		m.emit(Progress{LevelID: d.ID, State: domain.StateDownloaded, Tick: ev.Tick, Budget: ev.Budget})
	})
	if err == nil {
		err = m.arrange(d, staging)
	}
	if err == nil {
		err = m.ops.Rename(staging, d.InstallPath, fileops.LevelRoot)
	}

	if err != nil {
		if _, rerr := m.ops.Remove(staging, fileops.LevelRoot); rerr != nil {
			m.log.Warn("Failed to clean up %s: %v", staging, rerr)
		}
		return err
	}

	m.log.Info("Extracted level %d into %s", d.ID, d.InstallPath)
	return nil
}

// arrange collapses the archive's wrapper directory and adds aliases
func (m *Machine) arrange(d *domain.Descriptor, staging string) error {
	if d.FlattenDir != "" {
		if err := m.ops.FlattenUpward(path.Join(staging, d.FlattenDir), d.FlattenLevels); err != nil {
			return fmt.Errorf("flattening %s: %w", d.FlattenDir, err)
		}
	}

	for _, a := range d.Aliases {
		if err := m.ops.CreateRelativeLink(staging, a.From, a.To); err != nil {
			return fmt.Errorf("alias %s -> %s: %w", a.To, a.From, err)
		}
	}
	return nil
}

// place puts extracted content where the game expects it
func (m *Machine) place(e *entry) error {
	lock := m.gameLock(e.desc.GamePath)
	lock.Lock()
	defer lock.Unlock()

	if e.desc.Mode == domain.ModeCopy {
		return m.copyIntoGame(&e.desc)
	}
	return m.linkIntoGame(&e.desc)
}

func (m *Machine) linkIntoGame(d *domain.Descriptor) error {
	_, isLink, err := m.ops.LinkTarget(d.GamePath, fileops.GameRoot)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	case !isLink:
		kind, _, err := m.ops.PathKind(d.GamePath, fileops.GameRoot)
		if err != nil {
			return err
		}
		if kind != fileops.Directory {
			return fmt.Errorf("game path %s is a file: %w", d.GamePath, domain.ErrConflict)
		}
		// Original game content is kept aside once, never deleted.
		if err := m.ops.Backup(d.GamePath); err != nil {
			return err
		}
	}

	if err := m.ops.CreateSymlink(d.InstallPath, d.GamePath); err != nil {
		return err
	}
	m.log.Info("Linked level %d into %s", d.ID, d.GamePath)
	return nil
}

func (m *Machine) relink(e *entry) error {
	lock := m.gameLock(e.desc.GamePath)
	lock.Lock()
	defer lock.Unlock()

	if err := m.ops.CreateSymlink(e.desc.InstallPath, e.desc.GamePath); err != nil {
		return err
	}
	m.log.Info("Relinked level %d into %s", e.desc.ID, e.desc.GamePath)
	return nil
}

func (m *Machine) copyIntoGame(d *domain.Descriptor) error {
	files, err := m.ops.Files(d.InstallPath, fileops.LevelRoot)
	if err != nil {
		return err
	}

	kind, exists, err := m.ops.PathKind(d.GamePath, fileops.GameRoot)
	if err != nil {
		return err
	}

	if exists && kind != fileops.Directory {
		if _, isLink, err := m.ops.LinkTarget(d.GamePath, fileops.GameRoot); err != nil || !isLink {
			return fmt.Errorf("game path %s is a file: %w", d.GamePath, domain.ErrConflict)
		}
		if _, err := m.ops.Remove(d.GamePath, fileops.GameRoot); err != nil {
			return err
		}
		exists = false
	}

	if exists {
		conflicts, err := m.conflicts(d, files)
		if err != nil {
			return err
		}
		if conflicts > 0 {
			m.log.Info("Game path %s has %d conflicting files, backing it up", d.GamePath, conflicts)
			if err := m.ops.Backup(d.GamePath); err != nil {
				return err
			}
		}
	}

	if _, err := m.ops.Mkdir(d.GamePath, fileops.GameRoot); err != nil {
		return err
	}

	copied := 0
	for _, f := range files {
		res, err := m.ops.Copy(path.Join(d.InstallPath, f), path.Join(d.GamePath, f), false)
		if err != nil {
			return err
		}
		if res == fileops.CopyExists && d.CopyConflict == domain.CopyExistingFails {
			return fmt.Errorf("%s already copied: %w", path.Join(d.GamePath, f), domain.ErrConflict)
		}
		if res == fileops.Copied {
			copied++
		}
	}

	m.log.Info("Copied %d of %d files for level %d into %s", copied, len(files), d.ID, d.GamePath)
	return nil
}

// conflicts counts game files that exist with content differing from ours
func (m *Machine) conflicts(d *domain.Descriptor, files []string) (int, error) {
	n := 0
	for _, f := range files {
		if !m.ops.Exists(path.Join(d.GamePath, f), fileops.GameRoot) {
			continue
		}
		same, err := m.sameCopy(d, f)
		if err != nil {
			return 0, err
		}
		if !same {
			n++
		}
	}
	return n, nil
}

// Play relinks a level whose game path points elsewhere, then starts it
func (m *Machine) Play(ctx context.Context, id int) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := m.refresh(e)
	if rec.State == domain.StateLinked {
		if err := m.relink(e); err != nil {
			m.setError(e, err)
			return err
		}
		rec = m.refresh(e)
	}

	if !rec.State.Playable() {
		return fmt.Errorf("%w: level %d is %s", ErrNotPlayable, id, rec.State)
	}
	if e.desc.Executable == "" {
		return fmt.Errorf("%w: level %d has no executable", domain.ErrInvalidDescriptor, id)
	}
	if m.runner == nil {
		return errors.New("no runner configured")
	}

	return m.runner.Launch(ctx, m.ops.Abs(e.desc.GamePath, fileops.GameRoot), e.desc.Executable)
}

// Clear removes the level's extracted content, its link in the game root
// and, unless keepArchive is set, the archive. An in-flight download is
// cancelled.
func (m *Machine) Clear(ctx context.Context, id int, keepArchive bool) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}

	e.recMu.Lock()
	if e.stop != nil {
		e.stop()
	}
	e.recMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		rec, _ := m.Record(id)
		return rec, err
	}

	d := &e.desc
	if err := m.unlinkOwn(d); err != nil {
		return m.refresh(e), err
	}

	targets := []string{d.StagingPath(), d.InstallPath}
	if !keepArchive {
		targets = append(targets, d.ArchivePath())
	}
	for _, rel := range targets {
		if _, err := m.ops.Remove(rel, fileops.LevelRoot); err != nil {
			m.setError(e, err)
			return m.refresh(e), err
		}
	}

	m.log.Info("Cleared level %d (archive kept: %t)", id, keepArchive)
	m.setError(e, nil)
	return m.refresh(e), nil
}

// unlinkOwn removes the game path only when it is a link into this level
func (m *Machine) unlinkOwn(d *domain.Descriptor) error {
	lock := m.gameLock(d.GamePath)
	lock.Lock()
	defer lock.Unlock()

	target, isLink, err := m.ops.LinkTarget(d.GamePath, fileops.GameRoot)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !isLink) {
		return nil
	}
	if err != nil {
		return err
	}
	if target != m.ops.Abs(d.InstallPath, fileops.LevelRoot) {
		return nil
	}
	_, err = m.ops.Remove(d.GamePath, fileops.GameRoot)
	return err
}
