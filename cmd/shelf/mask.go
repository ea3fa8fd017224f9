package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/shelf/internal/config"
	"github.com/FranksOps/shelf/pkg/mask"
)

// newMaskCmd prints the masked form of URLs so log lines can be matched to
// real targets.
func newMaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mask <url>...",
		Short: "Print the masked form of URLs as they appear in logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			m := mask.New(mask.Config{Salt: cfg.Mask.Salt, HashLen: cfg.Mask.HashLen})
			for _, raw := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.URL(raw), raw)
			}
			return nil
		},
	}
}
