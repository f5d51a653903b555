package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <level-id...>",
	Short: "Forget the last error of levels and inspect them again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
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

	for _, id := range ids {
		rec, err := a.Levels.Retry(id)
		if err != nil {
			return err
		}
		pterm.Info.Printfln("Level %d (%s): %s", rec.ID, rec.Name, stateLabel(rec.State, rec.Downloading))
	}
	return nil
}
