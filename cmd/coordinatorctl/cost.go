package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newCostCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "cost <tenant>",
		Short: "Print a tenant's cost breakdown for a month (default: current month)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, client := ledgerFor(cfg)
			defer client.Close()

			if month == "" {
				month = time.Now().UTC().Format("2006-01")
			}
			breakdown, err := l.BreakdownFor(cmd.Context(), args[0], month)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(breakdown)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to report, as YYYY-MM (default: current month)")
	return cmd
}
