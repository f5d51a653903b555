// Package runner starts an installed level's game executable.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/infra/logger"
)

// Runner launches executable from dir. It returns once the process has
// started; the game keeps running after the caller's context ends.
type Runner interface {
	Launch(ctx context.Context, dir, executable string) error
}

type Wine struct {
	binary string
	prefix string
	log    *logger.Logger
}

// NewWine creates a runner using binary (an absolute path or a name on PATH).
// prefix sets WINEPREFIX when non-empty.
func NewWine(binary, prefix string, log *logger.Logger) *Wine {
	if log == nil {
		log = logger.Nop()
	}
	return &Wine{binary: binary, prefix: prefix, log: log}
}

func (w *Wine) Launch(ctx context.Context, dir, executable string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exe := filepath.Join(dir, executable)
	info, err := os.Stat(exe)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("executable %s: %w", exe, domain.ErrNotFound)
		}
		return fmt.Errorf("executable %s: %w: %w", exe, domain.ErrIO, err)
	}
	if info.IsDir() {
		return fmt.Errorf("executable %s is a directory: %w", exe, domain.ErrConflict)
	}

	cmd := exec.Command(w.binary, exe)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	if w.prefix != "" {
		cmd.Env = append(cmd.Env, "WINEPREFIX="+w.prefix)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", w.binary, err)
	}

	w.log.Info("Started %s (pid %d)", executable, cmd.Process.Pid)

	start := time.Now()
	go func() {
		if err := cmd.Wait(); err != nil {
			w.log.Warn("%s exited after %s: %v", executable, time.Since(start).Round(time.Second), err)
			return
		}
		w.log.Info("%s exited after %s", executable, time.Since(start).Round(time.Second))
	}()

	return nil
}
