package main

import (
	"fmt"
	"strconv"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [level-id...]",
	Short: "Show where each level is in its install lifecycle",
	Long: `Inspect the filesystem for every catalogued level, or only the given ones,
and print the inferred state.

Examples:
  levelkeep status
  levelkeep status 12 31`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	setupOutput()

	a, err := loadApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	var recs []domain.Record
	if len(args) == 0 {
		recs, err = a.Levels.RefreshAll(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := a.Levels.Refresh(id)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
	}

	if len(recs) == 0 {
		pterm.Info.Println("The catalog is empty. Add levels with 'levelkeep catalog import'.")
		return nil
	}

	data := pterm.TableData{{"ID", "Name", "State", "Last error"}}
	for _, rec := range recs {
		data = append(data, []string{
			strconv.Itoa(rec.ID),
			rec.Name,
			stateLabel(rec.State, rec.Downloading),
			rec.LastError,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid level id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
