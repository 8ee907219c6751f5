// Package cmd defines the CLI commands for the regwatch crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bpk-crawler",
		Short: "Crawler for the BPK regulation registry",
		Long: `bpk-crawler ingests Indonesian regulations from the BPK registry
(peraturan.bpk.go.id): it walks paginated search results, downloads and
converts regulation PDFs, and persists metadata and artifacts with
resumable, deduplicated crawl jobs.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml lookup via env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
