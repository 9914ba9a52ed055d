package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/voicecheck/internal/campaign"
	"github.com/kalambet/voicecheck/internal/config"
	"github.com/kalambet/voicecheck/internal/contacts"
	"github.com/kalambet/voicecheck/internal/storage"
)

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import contacts from a CSV file",
	Long: `Import contacts from a CSV file with a header row naming the columns
nom, prenom and telephone (family_name, given_name and phone also work).

Example:
  voicecheck import contacts.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := importContacts(store, f)
		if err != nil {
			return err
		}
		printSuccess("Imported %d contacts", n)
		return nil
	},
}

func importContacts(store *storage.Store, r io.Reader) (int, error) {
	batch, err := contacts.Import(r)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, fmt.Errorf("no contacts found")
	}
	added, err := store.AddContacts(batch)
	if err != nil {
		return 0, err
	}
	return len(added), nil
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export call results as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		w := cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportResults(store, w)
		if err != nil {
			return err
		}
		if output != "" && output != "-" {
			printSuccess("Exported %d results to %s", n, output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func exportResults(store *storage.Store, w io.Writer) (int, error) {
	all, err := store.AllContacts()
	if err != nil {
		return 0, err
	}
	outcomes, err := store.AllOutcomes()
	if err != nil {
		return 0, err
	}
	if err := contacts.ExportOutcomes(w, outcomes, all); err != nil {
		return 0, err
	}
	return len(outcomes), nil
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show campaign statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := loadSummary(store)
		if err != nil {
			return err
		}
		writeSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

func loadSummary(store *storage.Store) (campaign.Summary, error) {
	all, err := store.AllContacts()
	if err != nil {
		return campaign.Summary{}, err
	}
	outcomes, err := store.AllOutcomes()
	if err != nil {
		return campaign.Summary{}, err
	}
	return campaign.Summarize(outcomes, all), nil
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall",
	Short: "List contacts to call again",
	Long: `List contacts with at least one call that needs a recall: no response,
voicemail, refused consent or unconfirmed identity. With --requeue they are
set back to pending so the next run calls them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		requeue, _ := cmd.Flags().GetBool("requeue")

		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return recallReport(store, cmd.OutOrStdout(), requeue)
	},
}

func init() {
	recallCmd.Flags().Bool("requeue", false, "set recall candidates back to pending")
}

func recallReport(store *storage.Store, w io.Writer, requeue bool) error {
	all, err := store.AllContacts()
	if err != nil {
		return err
	}
	outcomes, err := store.AllOutcomes()
	if err != nil {
		return err
	}

	candidates := campaign.SelectRecallCandidates(outcomes, all)
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No contacts to recall.")
		return nil
	}
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.FullName(), c.Phone, c.Status)
	}

	if !requeue {
		return nil
	}
	n, err := campaign.Requeue(store, candidates)
	if err != nil {
		printWarning("requeued %d of %d contacts", n, len(candidates))
		return err
	}
	printSuccess("Requeued %d contacts", n)
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUnchecked()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if err := cfg.Validate(); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				printWarning("%s", line)
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store an API key in the secrets file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(config.NewSecretsFile(), args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
