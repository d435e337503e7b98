package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// newConsoleCmd opens an interactive REPL for incident response: quick
// budget/cost/job lookups against the same Redis-backed stores the other
// subcommands use, without re-running a full coordinatorctl invocation per
// query.
func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive REPL for ad-hoc budget, cost, and scheduler inspection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, ledgerClient := ledgerFor(cfg)
			defer ledgerClient.Close()
			store, schedClient := schedulerFor(cfg)
			defer schedClient.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			fmt.Fprintln(os.Stdout, "coordinatorctl console — type 'help' for commands, 'exit' to quit")
			for {
				input, err := line.Prompt("aicore> ")
				if err != nil {
					if err == liner.ErrPromptAborted || err == io.EOF {
						return nil
					}
					return err
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				ctx := cmd.Context()
				fields := strings.Fields(input)
				switch fields[0] {
				case "exit", "quit":
					return nil
				case "help":
					printConsoleHelp()
				case "budget":
					if len(fields) != 2 {
						fmt.Fprintln(os.Stdout, "usage: budget <tenant>")
						continue
					}
					budget, ok, err := l.Budget(ctx, fields[1])
					if err != nil {
						fmt.Fprintln(os.Stdout, "error:", err)
						continue
					}
					if !ok {
						fmt.Fprintln(os.Stdout, "no budget configured")
						continue
					}
					spend, _ := l.MonthToDateSpend(ctx, fields[1])
					printJSON(map[string]interface{}{"budget": budget, "month_to_date_usd": spend})
				case "cost":
					if len(fields) != 2 {
						fmt.Fprintln(os.Stdout, "usage: cost <tenant>")
						continue
					}
					breakdown, err := l.BreakdownFor(ctx, fields[1], time.Now().UTC().Format("2006-01"))
					if err != nil {
						fmt.Fprintln(os.Stdout, "error:", err)
						continue
					}
					printJSON(breakdown)
				case "job":
					if len(fields) != 2 {
						fmt.Fprintln(os.Stdout, "usage: job <id>")
						continue
					}
					job, err := store.Get(ctx, fields[1])
					if err != nil {
						fmt.Fprintln(os.Stdout, "error:", err)
						continue
					}
					printJSON(job)
				default:
					fmt.Fprintf(os.Stdout, "unknown command %q; type 'help'\n", fields[0])
				}
			}
		},
	}
}

func printConsoleHelp() {
	fmt.Fprintln(os.Stdout, "commands:")
	fmt.Fprintln(os.Stdout, "  budget <tenant>   show budget and month-to-date spend")
	fmt.Fprintln(os.Stdout, "  cost <tenant>     show this month's cost breakdown")
	fmt.Fprintln(os.Stdout, "  job <id>          show a scheduled job's state")
	fmt.Fprintln(os.Stdout, "  exit              leave the console")
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stdout, "error:", err)
	}
}
