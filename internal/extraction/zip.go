package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

// Zip extracts zip archives in-process
type Zip struct {
	Budget int
}

func NewZip(budget int) *Zip {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Zip{Budget: budget}
}

// Name returns the extractor name
func (z *Zip) Name() string {
	return "ZIP"
}

// CanExtract checks the ZIP signature. Level archives are often served
// without an extension, so the name is not consulted.
func (z *Zip) CanExtract(filePath string) (bool, error) {
	return hasSignature(filePath, zipSignatures)
}

// Extract unpacks every non-directory entry. The first failing entry ends
// the sequence with an error; files already written are left for the
// caller to discard.
func (z *Zip) Extract(ctx context.Context, archivePath string, destDir string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			yield(Event{Budget: z.Budget, Done: true, Err: fmt.Errorf("failed to open zip %s: %w", archivePath, err)})
			return
		}
		defer r.Close()

		t := newTicker(z.Budget, len(r.File))

		for i, f := range r.File {
			if err := ctx.Err(); err != nil {
				yield(Event{Budget: z.Budget, Done: true, Err: err})
				return
			}

			name := entryName(f.Name)
			if !strings.HasSuffix(name, "/") {
				if err := extractEntry(f, name, destDir); err != nil {
					yield(Event{Entry: name, Budget: z.Budget, Done: true, Err: err})
					return
				}
			}

			for _, tick := range t.advance(i + 1) {
				if !yield(Event{Entry: name, Tick: tick, Budget: z.Budget}) {
					return
				}
			}
		}

		// Ensure any remaining progress is emitted
		for _, tick := range t.flush() {
			if !yield(Event{Tick: tick, Budget: z.Budget}) {
				return
			}
		}

		yield(Event{Tick: z.Budget, Budget: z.Budget, Done: true})
	}
}

// entryName normalises Windows-built archives that use backslashes
func entryName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

func extractEntry(f *zip.File, name string, destDir string) error {
	target, err := safeJoin(destDir, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", name, err)
	}

	return out.Close()
}

// safeJoin rejects entries that would land outside destDir
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

// hasSignature checks the file's leading magic bytes against sigs
func hasSignature(filePath string, sigs [][]byte) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	header = header[:n]

	for _, sig := range sigs {
		if len(header) >= len(sig) && bytes.Equal(header[:len(sig)], sig) {
			return true, nil
		}
	}

	return false, nil
}
