package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "Product catalogue crawler",
		Long: `shelf walks paginated category listings, collects product links and
extracts price, weight, nutrition, storage and rating details from every
product page. Requests rotate across proxy endpoints with paced retries.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newMaskCmd())

	return cmd
}
