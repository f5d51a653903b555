package level

import (
	"context"
	"errors"
	"fmt"

	"github.com/datallboy/levelkeep/internal/dispatch"
	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/fileops"
	"github.com/segmentio/ksuid"
)

// startDownload fetches the archive in the background. The completion comes
// back through the dispatcher keyed by level id; when resume is set the
// install loop continues from there.
func (m *Machine) startDownload(e *entry, resume bool) error {
	d := &e.desc
	if d.ArchiveURL == "" {
		return fmt.Errorf("%w: level %d has no archive url", domain.ErrInvalidDescriptor, d.ID)
	}
	if m.downloader == nil || m.dispatcher == nil {
		return errors.New("downloads are not configured")
	}

	e.recMu.Lock()
	if e.rec.Downloading {
		e.recMu.Unlock()
		return ErrDownloadInFlight
	}
	reqID := ksuid.New().String()
	ctx, stop := context.WithCancel(m.ctx)
	e.rec.Downloading = true
	e.rec.RequestID = reqID
	e.resume = resume
	e.stop = stop
	e.broadcast()
	e.recMu.Unlock()

	m.dispatcher.Register(d.ID, m.downloadFinished(e))

	dest := m.ops.Abs(d.ArchivePath(), fileops.LevelRoot)
	m.log.Info("Level %d: download %s started", d.ID, reqID)

	go func() {
		defer stop()
		err := m.downloader.Fetch(ctx, d.ArchiveURL, dest)
		c := dispatch.Completion{LevelID: d.ID, RequestID: reqID, Err: err}
		if nerr := m.dispatcher.Notify(m.ctx, c); nerr != nil {
			// Shutting down; nobody is left to resume, so just settle the record.
			m.downloadFinished(e)(c)
		}
	}()

	return nil
}

func (m *Machine) downloadFinished(e *entry) dispatch.Callback {
	return func(c dispatch.Completion) {
		e.recMu.Lock()
		if !e.rec.Downloading || e.rec.RequestID != c.RequestID {
			e.recMu.Unlock()
			m.log.Debug("Level %d: ignoring stale completion %s", c.LevelID, c.RequestID)
			return
		}

		resume := e.resume && c.Err == nil && m.ctx.Err() == nil
		e.rec.Downloading = false
		e.rec.RequestID = ""
		e.resume = false
		e.stop = nil
		switch {
		case c.Err == nil:
			e.rec.LastError = ""
		case !errors.Is(c.Err, context.Canceled):
			e.rec.LastError = c.Err.Error()
		}
		if resume {
			e.installing++
		}
		e.broadcast()
		e.recMu.Unlock()

		if c.Err != nil {
			m.log.Error("Level %d: download %s failed: %v", c.LevelID, c.RequestID, c.Err)
		} else {
			m.log.Info("Level %d: download %s finished", c.LevelID, c.RequestID)
		}

		go func() {
			if !resume {
				m.refresh(e)
				return
			}
			defer m.doneInstalling(e)
			if _, err := m.installLoop(m.ctx, e); err != nil {
				m.log.Error("Level %d: install after download failed: %v", c.LevelID, err)
			}
		}()
	}
}
