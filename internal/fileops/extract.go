package fileops

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/datallboy/levelkeep/internal/extraction"
)

var errExtractionStopped = errors.New("extraction stopped before completion")

// Extract creates the output directory and returns the archive's progress
// sequence. Nothing is read until the sequence is ranged over.
func (o *FileOps) Extract(ctx context.Context, archiveRel, outRel string) iter.Seq[extraction.Event] {
	archive := o.Abs(archiveRel, LevelRoot)
	out := o.Abs(outRel, LevelRoot)

	return func(yield func(extraction.Event) bool) {
		if err := os.MkdirAll(out, 0755); err != nil {
			yield(extraction.Event{Done: true, Err: ioFailure("mkdir", out, err)})
			return
		}

		o.log.Debug("Extracting %s into %s", archive, out)
		for ev := range o.extractor.Extract(ctx, archive, out) {
			if !yield(ev) {
				return
			}
		}
	}
}

// ExtractArchive drains Extract, passing every progress tick to onTick, and
// returns the terminal error. Any failed entry fails the whole archive; the
// caller owns cleanup of the partial output.
func (o *FileOps) ExtractArchive(ctx context.Context, archiveRel, outRel string, onTick func(extraction.Event)) error {
	for ev := range o.Extract(ctx, archiveRel, outRel) {
		if ev.Done {
			if ev.Err != nil {
				return fmt.Errorf("extract %s: %w", archiveRel, ev.Err)
			}
			return nil
		}
		if onTick != nil {
			onTick(ev)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errExtractionStopped
}
