package main

import (
	"fmt"
	"sync"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/level"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var installStep bool

var installCmd = &cobra.Command{
	Use:   "install <level-id...>",
	Short: "Install levels",
	Long: `Drive each level toward installed: download the archive if needed, unpack
it, and link or copy it into the game root. Re-running is safe; a level
picks up from whatever state the filesystem shows.

Examples:
  levelkeep install 12
  levelkeep install 12 31 --step   # perform only the next transition`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installStep, "step", false, "perform a single transition and stop")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	setupOutput()

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	bars := newExtractBars()
	unsubscribe := a.Levels.OnProgress(bars.update)
	defer unsubscribe()

	failed := 0
	for _, id := range ids {
		rec, err := installOne(cmd, a.Levels, id)
		bars.stop(id)
		if err != nil {
			pterm.Error.Printfln("Level %d: %v", id, err)
			failed++
			continue
		}
		pterm.Success.Printfln("Level %d (%s): %s", rec.ID, rec.Name, stateLabel(rec.State, rec.Downloading))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d levels failed", failed, len(ids))
	}
	return nil
}

func installOne(cmd *cobra.Command, m *level.Machine, id int) (domain.Record, error) {
	if installStep {
		return m.Advance(cmd.Context(), id)
	}

	rec, err := m.Install(cmd.Context(), id)
	if err != nil {
		return rec, err
	}
	if rec.Downloading {
		pterm.Info.Printfln("Level %d: downloading archive...", id)
	}

	// A download resumes the install in the background
	rec, err = m.Wait(cmd.Context(), id)
	if err != nil {
		return rec, err
	}
	if rec.LastError != "" {
		return rec, fmt.Errorf("%s", rec.LastError)
	}
	return rec, nil
}

// extractBars shows one progress bar per extracting level when stdout is a
// terminal
type extractBars struct {
	mu      sync.Mutex
	enabled bool
	bars    map[int]*pterm.ProgressbarPrinter
}

func newExtractBars() *extractBars {
	return &extractBars{enabled: interactive(), bars: make(map[int]*pterm.ProgressbarPrinter)}
}

func (b *extractBars) update(p level.Progress) {
	if !b.enabled || !p.IsTick() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bar, ok := b.bars[p.LevelID]
	if !ok {
		var err error
		bar, err = pterm.DefaultProgressbar.
			WithTotal(p.Budget).
			WithTitle(fmt.Sprintf("Extracting level %d", p.LevelID)).
			Start()
		if err != nil {
			b.enabled = false
			return
		}
		b.bars[p.LevelID] = bar
	}
	bar.Increment()
	if p.Tick >= p.Budget {
		bar.Stop()
		delete(b.bars, p.LevelID)
	}
}

func (b *extractBars) stop(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bar, ok := b.bars[id]; ok {
		bar.Stop()
		delete(b.bars, id)
	}
}
