package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"dataharvest/pkg/source"
)

// sourcesCmd represents the sources command
var sourcesCmd = &cobra.Command{
	Use:   "sources <sources.yaml>",
	Short: "Validate and list the source registry",
	Long: `Load the source registry, validate every entry, and print the sources
in declaration order. Useful as a dry check before a harvest.`,
	Args: cobra.ExactArgs(1),
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	sources, err := source.LoadRegistry(args[0])
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Group", "Strategy", "URL"})

	for _, src := range sources {
		t.AppendRow(table.Row{src.Name, src.Group, src.Strategy, src.Params.URL})
	}

	t.SetStyle(table.StyleLight)
	t.Render()

	return nil
}
