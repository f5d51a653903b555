package main

import (
	"fmt"

	"github.com/datallboy/levelkeep/internal/app"
	"github.com/datallboy/levelkeep/internal/infra/config"
	"github.com/datallboy/levelkeep/internal/store/catalogfile"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the level catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Add or update levels from a YAML catalog file",
	Long: `Read levels from a YAML catalog file and save them into the configured
catalog. Levels with an id that already exists are replaced.

Examples:
  levelkeep catalog import levels.yaml
  levelkeep catalog import levels.yaml --config ~/levelkeep-pg.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write the configured catalog to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogExport,
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	setupOutput()

	descs, err := catalogfile.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	catalog, err := app.OpenCatalog(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer catalog.Close()

	for _, d := range descs {
		if err := catalog.SaveDescriptor(cmd.Context(), d); err != nil {
			return fmt.Errorf("saving level %d: %w", d.ID, err)
		}
	}

	pterm.Success.Printfln("Imported %d levels into the %s catalog", len(descs), cfg.Catalog.Driver)
	return nil
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	setupOutput()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	catalog, err := app.OpenCatalog(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer catalog.Close()

	descs, err := catalog.Descriptors(cmd.Context())
	if err != nil {
		return err
	}

	out, err := catalogfile.Open(args[0])
	if err != nil {
		return err
	}
	defer out.Close()

	for _, d := range descs {
		if err := out.SaveDescriptor(cmd.Context(), d); err != nil {
			return fmt.Errorf("writing level %d: %w", d.ID, err)
		}
	}

	pterm.Success.Printfln("Exported %d levels to %s", len(descs), args[0])
	return nil
}
