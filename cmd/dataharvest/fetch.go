package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"dataharvest/pkg/config"
	"dataharvest/pkg/logger"
	"dataharvest/pkg/reconcile"
	"dataharvest/pkg/source"
)

var (
	// Fetch command flags
	maxAttempts  int
	fetchTimeout time.Duration
	rateLimit    int
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <sources.yaml>",
	Short: "Reconcile all sources and fetch missing documents",
	Long: `Run a full harvest against the given source registry.

For every source the harvester discovers the documents the remote
currently offers, skips the ones already present (in the manifest AND
on disk), fetches the rest, and updates the manifest. Fetch failures
are recorded per document and never abort the run; the command exits
non-zero only when the configuration or the manifest itself is broken.`,
	Example: `  # Harvest every source in the registry
  dataharvest fetch sources.yaml

  # Use a different storage root and verbose logging
  dataharvest fetch sources.yaml --storage-root /data/mirror --log-level debug`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum fetch attempts per document")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "per-request timeout")
	fetchCmd.Flags().IntVar(&rateLimit, "rate-limit", -1, "requests per minute (0 disables the cap)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if fetchTimeout > 0 {
		flags["timeout"] = fetchTimeout
	}
	if rateLimit >= 0 {
		flags["rate-limit"] = rateLimit
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	sources, err := source.LoadRegistry(args[0])
	if err != nil {
		return err
	}

	log.InfoWithFields("starting harvest", map[string]interface{}{
		"sources":      len(sources),
		"storage_root": cfg.Storage.Root,
	})

	started := time.Now()
	results, err := reconcile.NewRunner(cfg).Run(cmd.Context(), sources)
	if err != nil {
		return err
	}

	renderSummary(results, time.Since(started))
	return nil
}

// renderSummary prints the per-source outcome table
func renderSummary(results []reconcile.Result, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Group", "Discovered", "Skipped", "Fetched", "Failed"})

	for _, r := range results {
		t.AppendRow(table.Row{r.Source, r.Group, r.Discovered, r.Skipped, r.Fetched, r.Failed})
	}

	total := reconcile.Totals(results)
	t.AppendFooter(table.Row{"total", "", total.Discovered, total.Skipped, total.Fetched, total.Failed})
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Printf("\nCompleted in %s\n", elapsed.Round(time.Millisecond))
}
