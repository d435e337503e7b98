package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Schedule, cancel, or force-claim delayed jobs",
	}
	cmd.AddCommand(newSchedulerScheduleCmd())
	cmd.AddCommand(newSchedulerCancelCmd())
	cmd.AddCommand(newSchedulerSweepCmd())
	return cmd
}

func newSchedulerScheduleCmd() *cobra.Command {
	var kind, payload, businessKey, fireAt string
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a delayed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, client := schedulerFor(cfg)
			defer client.Close()

			at, err := time.Parse(time.RFC3339, fireAt)
			if err != nil {
				return fmt.Errorf("--fire-at must be RFC3339: %w", err)
			}

			id, err := store.Schedule(cmd.Context(), kind, payload, at, businessKey, maxAttempts)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "scheduled job %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "job kind, matching a worker-registered handler (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "opaque JSON payload passed to the handler")
	cmd.Flags().StringVar(&businessKey, "business-key", "", "idempotency key; a second schedule for a pending key is rejected (required)")
	cmd.Flags().StringVar(&fireAt, "fire-at", "", "RFC3339 timestamp the job becomes due (required)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 3, "retry attempts before the job is marked failed")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("business-key")
	cmd.MarkFlagRequired("fire-at")
	return cmd
}

func newSchedulerCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <business-key>",
		Short: "Cancel a pending job by its business key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, client := schedulerFor(cfg)
			defer client.Close()

			if err := store.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "cancelled %s\n", args[0])
			return nil
		},
	}
}

func newSchedulerSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Force-claim every due job for manual inspection (marks them active; no handler runs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, client := schedulerFor(cfg)
			defer client.Close()

			jobs, err := store.ClaimDue(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(os.Stdout, "no due jobs")
				return nil
			}
			return json.NewEncoder(os.Stdout).Encode(jobs)
		},
	}
}
