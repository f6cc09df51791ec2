package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type createFlags struct {
	name       string
	activity   string
	bots       int
	total      int
	hours      int
	configJSON string
	configFile string
}

func (f *createFlags) body() (map[string]any, error) {
	raw := f.configJSON
	if f.configFile != "" {
		data, err := os.ReadFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		raw = string(data)
	}
	body := map[string]any{
		"name":            f.name,
		"activityType":    f.activity,
		"botCount":        f.bots,
		"totalActivities": f.total,
		"durationHours":   f.hours,
	}
	if raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("--config is not valid JSON")
		}
		body["config"] = json.RawMessage(raw)
	}
	return body, nil
}

func newCreateCmd(use, path, short string) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := f.body()
			if err != nil {
				return err
			}
			var res struct {
				CampaignID string `json:"campaignId"`
			}
			if err := call(cmd, "POST", path, body, &res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.CampaignID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Campaign name")
	cmd.Flags().StringVarP(&f.activity, "type", "t", "", "Activity type, e.g. LIKE or TEST")
	cmd.Flags().IntVarP(&f.bots, "bots", "b", 0, "Number of bots")
	cmd.Flags().IntVar(&f.total, "total", 0, "Total activities to run")
	cmd.Flags().IntVar(&f.hours, "hours", 1, "Window length in hours (1-168)")
	cmd.Flags().StringVar(&f.configJSON, "config", "", "Activity config as inline JSON")
	cmd.Flags().StringVar(&f.configFile, "config-file", "", "Read activity config JSON from a file")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("bots")
	cmd.MarkFlagRequired("total")
	return cmd
}

// newCommandCmd builds the POST /campaigns/{id}/<action> commands.
func newCommandCmd(use, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Message string `json:"message"`
			}
			path := "/campaigns/" + url.PathEscape(args[0]) + "/" + action
			if err := call(cmd, "POST", path, nil, &res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

var (
	listPage     int
	listPageSize int
	listStatus   string
	listFamily   string
	listActivity string
)

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with pagination and filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("page", strconv.Itoa(listPage))
		q.Set("page_size", strconv.Itoa(listPageSize))
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		if listFamily != "" {
			q.Set("family_id", listFamily)
		}
		if listActivity != "" {
			q.Set("activity_type", listActivity)
		}

		var res struct {
			Data []struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				ActivityType    string `json:"activityType"`
				Status          string `json:"status"`
				Recurring       bool   `json:"recurring"`
				TotalActivities int    `json:"totalActivities"`
				TotalExecuted   int    `json:"totalExecuted"`
				SuccessfulCount int    `json:"successfulCount"`
			} `json:"data"`
			Pagination pagination `json:"pagination"`
		}
		if err := call(cmd, "GET", "/campaigns?"+q.Encode(), nil, &res); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tRECURRING\tPROGRESS\tSUCCEEDED")
		for _, c := range res.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d/%d\t%d\n", c.ID, c.Name, c.ActivityType, c.Status,
				c.Recurring, c.TotalExecuted, c.TotalActivities, c.SuccessfulCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		p := res.Pagination
		fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d (%d campaigns)\n", p.Page, p.TotalPages, p.TotalCount)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show a campaign's live status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res json.RawMessage
		if err := call(cmd, "GET", "/campaigns/"+url.PathEscape(args[0]), nil, &res); err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var (
	activitiesPage     int
	activitiesPageSize int
)

var activitiesCmd = &cobra.Command{
	Use:   "activities <campaign-id>",
	Short: "Page through a campaign's activity records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("page", strconv.Itoa(activitiesPage))
		q.Set("page_size", strconv.Itoa(activitiesPageSize))

		var res json.RawMessage
		path := "/campaigns/" + url.PathEscape(args[0]) + "/activities?" + q.Encode()
		if err := call(cmd, "GET", path, nil, &res); err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 20, "Campaigns per page (max 100)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listFamily, "family", "", "Filter by recurring family ID")
	listCmd.Flags().StringVar(&listActivity, "type", "", "Filter by activity type")

	activitiesCmd.Flags().IntVar(&activitiesPage, "page", 1, "Page number")
	activitiesCmd.Flags().IntVar(&activitiesPageSize, "page-size", 20, "Records per page (max 100)")
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}
