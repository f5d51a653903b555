package extraction

import (
	"context"
	"fmt"
	"iter"
	"os/exec"
)

// 7z file signature (magic bytes)
var sevenZipSignature = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}

type CLI7z struct {
	BinaryPath string
	Budget     int
}

// NewCLI7z creates a new 7z extractor using the system's 7z binary
func NewCLI7z(budget int) (*CLI7z, error) {
	// Try both '7z' and '7za' (7za is often the standalone version)
	path, err := exec.LookPath("7z")
	if err != nil {
		path, err = exec.LookPath("7za")
		if err != nil {
			return nil, fmt.Errorf("7z/7za binary not found in PATH: %w", err)
		}
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &CLI7z{BinaryPath: path, Budget: budget}, nil
}

// Name returns the extractor name
func (z *CLI7z) Name() string {
	return "7-Zip"
}

// CanExtract checks if the file is a 7z archive
func (z *CLI7z) CanExtract(filePath string) (bool, error) {
	is7z, err := hasSignature(filePath, [][]byte{sevenZipSignature})
	if err != nil {
		return false, fmt.Errorf("failed to verify 7z signature: %w", err)
	}
	return is7z, nil
}

// Extract runs 7z in one go. The binary gives no per-entry progress, so all
// ticks are flushed once it exits successfully.
func (z *CLI7z) Extract(ctx context.Context, archivePath string, destDir string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		// 7z x -o<destination> -y <archive>
		// x = extract with full paths
		// -o = output directory (no space between -o and path)
		// -y = assume yes on all queries
		cmd := exec.CommandContext(ctx, z.BinaryPath, "x", fmt.Sprintf("-o%s", destDir), "-y", archivePath)

		output, err := cmd.CombinedOutput()
		if err != nil {
			yield(Event{Budget: z.Budget, Done: true, Err: fmt.Errorf("7z extraction failed: %w\nOutput: %s", err, string(output))})
			return
		}

		t := newTicker(z.Budget, 0)
		for _, tick := range t.flush() {
			if !yield(Event{Tick: tick, Budget: z.Budget}) {
				return
			}
		}
		yield(Event{Tick: z.Budget, Budget: z.Budget, Done: true})
	}
}
