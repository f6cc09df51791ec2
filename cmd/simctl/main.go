// simctl drives a running campaign engine over its HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "simctl",
	Short: "Operate simulated-activity campaigns",
	Long: `simctl talks to the campaign engine's HTTP control plane.

Available commands:
  create           - Create and start a one-off campaign
  create-recurring - Create a daily recurring campaign
  list             - List campaigns with pagination and filters
  status           - Show a campaign's live status
  activities       - Page through a campaign's activity records
  cancel           - Cancel a pending or running campaign
  stop-recurring   - Stop a campaign family from spawning successors`,
	SilenceUsage: true,
}

func init() {
	defaultURL := os.Getenv("SIMCTL_SERVER")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "Engine base URL (or set SIMCTL_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(newCreateCmd("create", "/campaigns", "Create and start a one-off campaign"))
	rootCmd.AddCommand(newCreateCmd("create-recurring", "/campaigns/recurring", "Create a daily recurring campaign"))
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(activitiesCmd)
	rootCmd.AddCommand(newCommandCmd("cancel", "cancel", "Cancel a pending or running campaign"))
	rootCmd.AddCommand(newCommandCmd("stop-recurring", "stop-recurring", "Stop a campaign family from spawning successors"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// apiError carries the engine's {success:false, message} body.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// call sends body (if any) as JSON and decodes the response into out.
func call(cmd *cobra.Command, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) != nil || e.Message == "" {
			e.Message = string(bytes.TrimSpace(data))
		}
		return &apiError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
