package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contentops/aicore/internal/ledger"
)

func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect or set a tenant's monthly budget",
	}
	cmd.AddCommand(newBudgetGetCmd())
	cmd.AddCommand(newBudgetSetCmd())
	return cmd
}

func newBudgetGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tenant>",
		Short: "Print a tenant's configured budget and month-to-date spend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, client := ledgerFor(cfg)
			defer client.Close()

			ctx := cmd.Context()
			budget, ok, err := l.Budget(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(os.Stdout, "tenant %s has no budget configured\n", args[0])
				return nil
			}
			spend, err := l.MonthToDateSpend(ctx, args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
				"tenant_id":          budget.TenantID,
				"monthly_limit_usd":  budget.MonthlyLimitUSD,
				"threshold_fraction": budget.ThresholdFraction,
				"month_to_date_usd":  spend,
			})
		},
	}
}

func newBudgetSetCmd() *cobra.Command {
	var monthlyLimit float64
	var threshold float64

	cmd := &cobra.Command{
		Use:   "set <tenant>",
		Short: "Set a tenant's monthly budget cap and alert threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, client := ledgerFor(cfg)
			defer client.Close()

			err = l.SetBudget(cmd.Context(), ledger.Budget{
				TenantID:          args[0],
				MonthlyLimitUSD:   monthlyLimit,
				ThresholdFraction: threshold,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "budget set for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Float64Var(&monthlyLimit, "monthly-limit", 0, "monthly spend cap in USD")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.8, "fraction of the cap that triggers a warning alert")
	return cmd
}
