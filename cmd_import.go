package main

import (
	"fmt"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/spf13/cobra"
)

var (
	importOut   string
	importSheet string
	importStart int
)

// importCmd converts a spreadsheet into a YAML catalog
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import units from an Excel or CSV file",
	Long: `Import lesson units from an .xlsx or .csv file and write them as the
YAML catalog used by the bot.

Columns: id | symbol | name | example word | image | symbol audio | word audio | order`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out := importOut
		if out == "" {
			out = cfg.Catalog.Path
		}
		if out == "" {
			return fmt.Errorf("no output path: set --out or catalog.path")
		}

		importConfig := catalog.DefaultImportConfig()
		importConfig.FilePath = args[0]
		if importSheet != "" {
			importConfig.SheetName = importSheet
		}
		if importStart > 0 {
			importConfig.StartRow = importStart
		}

		result, err := catalog.Import(importConfig)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Units processed: %d\n", result.TotalProcessed)
		fmt.Fprintf(w, "- Added: %d\n- Updated: %d\n- Skipped: %d\n", result.Created, result.Updated, result.Skipped)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}

		cat, err := catalog.New(result.Units)
		if err != nil {
			return fmt.Errorf("catalog not written: %w", err)
		}
		if err := catalog.WriteFile(out, cat.Units()); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %d units to %s\n", cat.Len(), out)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "Catalog file to write (default: catalog.path)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "Sheet to read from an Excel file")
	importCmd.Flags().IntVar(&importStart, "start-row", 0, "First data row (1-based)")
}
