package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var clearKeepArchive bool

var clearCmd = &cobra.Command{
	Use:   "clear <level-id...>",
	Short: "Remove installed levels",
	Long: `Remove a level's unpacked files and its link in the game root. The
downloaded archive is removed too unless --keep-archive is given. Content
that does not belong to the level is never touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearKeepArchive, "keep-archive", "k", false, "keep the downloaded archive")

	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
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
		rec, err := a.Levels.Clear(cmd.Context(), id, clearKeepArchive)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Level %d (%s): %s", rec.ID, rec.Name, stateLabel(rec.State, rec.Downloading))
	}
	return nil
}
