package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information, set at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	storageRoot string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dataharvest",
	Short: "Incremental harvester for published government datasets",
	Long: `dataharvest keeps a local mirror of documents published across a set
of remote sources. Each run discovers what every source currently
offers, fetches only what is missing from the local store, and records
the outcome in a durable manifest, so runs are cheap to repeat and safe
to interrupt.

Sources are declared in a YAML registry; each entry names a discovery
strategy: a direct file URL, an index page listing, a paginated index,
a two-level hub of dated sub-pages, a JSON API endpoint, or a page
behind an interactive challenge.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .dataharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&storageRoot, "storage-root", "o", "", "root directory for downloaded files")

	rootCmd.SetVersionTemplate(`dataharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags builds the flag overrides merged into the configuration
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if storageRoot != "" {
		flags["storage-root"] = storageRoot
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
