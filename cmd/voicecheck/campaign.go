package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kalambet/voicecheck/internal/storage"
)

// --- campaign (remote, against a running server) ---

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Queue and inspect campaigns on a running server",
}

var campaignStartCmd = &cobra.Command{
	Use:   "start [contact-id...]",
	Short: "Queue a campaign run on the server",
	Long: `Queue a campaign run on the server started with "voicecheck serve". Without
arguments every pending contact is called.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{}
		if len(args) > 0 {
			body["contact_ids"] = args
		}
		resp, err := client.post(cmd.Context(), "/campaigns", body)
		if err != nil {
			return err
		}

		var job storage.Job
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		printSuccess("Queued campaign %s", job.ID)
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/campaigns?limit=%d", limit))
		if err != nil {
			return err
		}

		var jobs []storage.Job
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No campaigns yet.")
			return nil
		}
		for _, j := range jobs {
			writeJob(cmd.OutOrStdout(), j)
		}
		return nil
	},
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show one campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/campaigns/"+args[0])
		if err != nil {
			return err
		}

		var job storage.Job
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	campaignListCmd.Flags().Int("limit", 20, "maximum number of campaigns")

	campaignCmd.AddCommand(campaignStartCmd)
	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignStatusCmd)
}

func writeJob(w io.Writer, j storage.Job) {
	status := j.Status
	switch status {
	case storage.JobCompleted:
		status = colorize(colorGreen, status)
	case storage.JobFailed:
		status = colorize(colorRed, status)
	default:
		status = colorize(colorYellow, status)
	}
	line := fmt.Sprintf("%s  %s  %s", j.ID, j.CreatedAt.Local().Format("2006-01-02 15:04"), status)
	if j.LastError != "" {
		line += "  " + j.LastError
	}
	fmt.Fprintln(w, line)
}
