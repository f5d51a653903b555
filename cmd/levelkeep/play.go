package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <level-id>",
	Short: "Launch an installed level under Wine",
	Long: `Launch the level's executable from its game path. A level whose game path
currently links to another level is relinked first.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
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

	if !a.WineAvailable {
		pterm.Warning.Printfln("%s was not found on PATH; launching will likely fail", a.Config.Runner.WineBinary)
	}

	if err := a.Levels.Play(cmd.Context(), ids[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("Level %d launched", ids[0])
	return nil
}
