package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// newAutomationCmd talks to the running coordinator's HTTP API rather than
// Redis directly: automation config lives in the coordinator process's
// in-memory ConfigStore (internal/automation/store.go), not in a shared
// store this CLI could open independently.
func newAutomationCmd() *cobra.Command {
	var apiAddr string

	cmd := &cobra.Command{
		Use:   "automation",
		Short: "Inspect or set a tenant's automation config via the coordinator API",
	}
	cmd.PersistentFlags().StringVar(&apiAddr, "api-addr", getEnv("COORDINATOR_API_ADDR", "http://localhost:8080"), "coordinator HTTP API base address")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <tenant>",
		Short: "Print a tenant's automation config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return automationGet(apiAddr, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <tenant> <json-file>",
		Short: "Replace a tenant's automation config from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return automationSet(apiAddr, args[0], args[1])
		},
	})
	return cmd
}

func automationGet(apiAddr, tenant string) error {
	resp, err := http.Get(fmt.Sprintf("%s/automation/%s", apiAddr, tenant))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return copyResponse(resp)
}

func automationSet(apiAddr, tenant, jsonFile string) error {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", jsonFile, err)
	}

	var cfg json.RawMessage
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", jsonFile, err)
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/automation/%s", apiAddr, tenant), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return copyResponse(resp)
}

func copyResponse(resp *http.Response) error {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("coordinator returned %s: %s", resp.Status, string(body))
	}
	_, err := io.Copy(os.Stdout, resp.Body)
	fmt.Fprintln(os.Stdout)
	return err
}
