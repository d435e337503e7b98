// Command coordinatorctl is the operator CLI for inspecting and driving a
// running aicore deployment: budgets, cost breakdowns, scheduled jobs, task
// history, and automation config. All but automation config are read through
// the same Redis/Firestore stores the coordinator and scheduler processes use;
// automation config goes through the coordinator's HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "coordinatorctl",
		Short: "Operator CLI for the aicore request coordination core",
	}
	root.PersistentFlags().StringVar(&configFile, "config", getEnv("CONFIG_FILE", "config/coordinator.yaml"), "coordinator configuration file")

	root.AddCommand(newBudgetCmd())
	root.AddCommand(newCostCmd())
	root.AddCommand(newSchedulerCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newAutomationCmd())
	root.AddCommand(newConsoleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
