package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/m2aia/m2converter/internal/catalog"
)

// defaultCatalogPath is used when neither the flag nor the config names one.
const defaultCatalogPath = "m2converter.db"

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List conversion runs recorded in the catalog",
	Long: `Runs lists past conversions recorded with convert --catalog, newest
first, with their source file, target counts, and outputs.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("db", "", "catalog database path (default: from config, else m2converter.db)")
	runsCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	runsCmd.Flags().Bool("json", false, "output runs as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = viper.GetString("catalog")
	}
	if path == "" {
		path = defaultCatalogPath
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("catalog database %s does not exist", path)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-30s  %-8s  %-9s  %-6s  %s\n",
		"ID", "Source", "Targets", "Processed", "Failed", "Finished")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, r := range runs {
		source := r.SourceFile
		if len(source) > 30 {
			source = "..." + source[len(source)-27:]
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-30s  %-8d  %-9d  %-6d  %s\n",
			r.ID, source, r.Targets, r.Processed, r.Failed,
			r.FinishedAt.Local().Format(time.DateTime))
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}
