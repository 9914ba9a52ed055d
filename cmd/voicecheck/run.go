package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/config"
	"github.com/kalambet/voicecheck/internal/storage"
	"github.com/kalambet/voicecheck/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Call pending contacts now (foreground)",
	Long: `Call every pending contact one after another and print the result of each
call as it completes. Ctrl-C stops after the current contact without
recording it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetStringSlice("contacts")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		targets, err := selectContacts(store, ids)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			printWarning("no pending contacts")
			return nil
		}

		orch, err := newOrchestrator(ctx, cfg, store, logger)
		if err != nil {
			return err
		}

		printStep("Calling %d contacts", len(targets))
		report := runCampaign(ctx, orch, targets, cmd.OutOrStdout())
		if ctx.Err() != nil {
			printWarning("campaign interrupted after %d of %d contacts", report.Processed+report.InitiationFailures+report.ProcessingFailures, report.Contacts)
		}
		printSuccess("%d processed, %d verified, %d initiation failures, %d processing failures",
			report.Processed, report.Verified, report.InitiationFailures, report.ProcessingFailures)
		return nil
	},
}

func init() {
	runCmd.Flags().StringSlice("contacts", nil, "comma-separated contact ids (default: all pending)")
}

func selectContacts(store *storage.Store, ids []string) ([]campaign.Contact, error) {
	if len(ids) == 0 {
		return store.PendingContacts()
	}
	out := make([]campaign.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := store.GetContact(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("contact %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// runCampaign drains the runner, printing one line per contact.
func runCampaign(ctx context.Context, r worker.Runner, targets []campaign.Contact, w io.Writer) worker.Report {
	report := worker.Report{Contacts: len(targets)}
	for ev := range r.Run(ctx, targets) {
		fmt.Fprintln(w, eventLine(ev))
		switch ev.Kind {
		case campaign.EventProcessed:
			report.Processed++
			if ev.Outcome != nil && ev.Outcome.Verified() {
				report.Verified++
			}
		case campaign.EventCallInitiationFailed:
			report.InitiationFailures++
		case campaign.EventProcessingFailed:
			report.ProcessingFailures++
		}
	}
	return report
}
