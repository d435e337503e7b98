package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contentops/aicore/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, fetch, or attach feedback to task history records",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryGetCmd())
	cmd.AddCommand(newHistoryFeedbackCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <tenant>",
		Short: "List task history records for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := historyFor(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(ctx, args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(records)
		},
	}
}

func newHistoryGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one task history record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := historyFor(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(record)
		},
	}
}

func newHistoryFeedbackCmd() *cobra.Command {
	var rating int
	var useful bool
	var comments string

	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Attach operator feedback to a task history record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := historyFor(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.AddFeedback(ctx, args[0], history.Feedback{
				Rating:   rating,
				Useful:   useful,
				Comments: comments,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "feedback recorded for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "1-5 rating")
	cmd.Flags().BoolVar(&useful, "useful", true, "whether the output was useful as-is")
	cmd.Flags().StringVar(&comments, "comments", "", "free-text operator comments")
	return cmd
}
