package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/plan"
	"github.com/xaenox/notegram/internal/publisher"
	"github.com/xaenox/notegram/internal/storage"
	"github.com/xaenox/notegram/pkg/config"
)

func addPublishFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("silent", false, "send without notification (default from publish.silent)")
	cmd.Flags().Bool("caption-above", false, "show the caption above media (default from publish.caption_above)")
}

// publishOptions starts from the configured defaults and applies the flags
// the user set explicitly.
func publishOptions(cmd *cobra.Command, cfg config.PublishConfig) models.PublishOptions {
	opts := models.PublishOptions{Silent: cfg.Silent, CaptionAbove: cfg.CaptionAbove}
	if cmd.Flags().Changed("silent") {
		opts.Silent, _ = cmd.Flags().GetBool("silent")
	}
	if cmd.Flags().Changed("caption-above") {
		opts.CaptionAbove, _ = cmd.Flags().GetBool("caption-above")
	}
	return opts
}

func selection(ids []string, all bool) (publisher.Selection, error) {
	switch {
	case all && len(ids) > 0:
		return publisher.Selection{}, errors.New("--all cannot be combined with --preset")
	case all:
		return publisher.SelectAll(), nil
	case len(ids) > 0:
		return publisher.SelectIDs(ids...), nil
	default:
		return publisher.SelectDefault(), nil
	}
}

func newPublishCmd(configPath *string) *cobra.Command {
	var (
		presetIDs []string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "publish <note>",
		Short: "Publish a note to one or more destinations",
		Long: `Publish a note to the default destination, to the presets named with
--preset (in the given order) or to every saved preset with --all.
A failure on one destination does not stop the others.`,
		Example: `notegram publish Trips/Lisbon.md
notegram publish daily.md --preset news --preset backup --silent`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selection(presetIDs, all)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.newPublisher()
			if err != nil {
				return err
			}

			report, err := p.Publish(cmd.Context(), args[0], sel, publishOptions(cmd, a.cfg.Publish))
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)
			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d destinations failed", failed, len(report.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&presetIDs, "preset", "p", nil, "destination preset id (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "publish to every saved destination")
	addPublishFlags(cmd)

	return cmd
}

func printReport(w io.Writer, report *publisher.Report) {
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "Send error (%s): %v\n", res.Preset.Label(), res.Err)
		case res.Planned == 0:
			fmt.Fprintf(w, "Nothing to publish to %s\n", res.Preset.Label())
		default:
			fmt.Fprintf(w, "Published to %s ✅\n", res.Preset.Label())
		}
	}
}

func newPreviewCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <note>",
		Short: "Show the converted text and the messages a publish would send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.newPublisher()
			if err != nil {
				return err
			}

			draft, err := p.Preview(cmd.Context(), args[0], publishOptions(cmd, a.cfg.Publish))
			if err != nil {
				return err
			}

			printDraft(cmd.OutOrStdout(), draft)
			return nil
		},
	}
	addPublishFlags(cmd)

	return cmd
}

func printDraft(w io.Writer, draft *publisher.Draft) {
	fmt.Fprintln(w, draft.Text)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "%d photos, %d documents\n", len(draft.Attachments.Photos), len(draft.Attachments.Documents))
	fmt.Fprintln(w, plan.Describe(draft.Operations))
}

func newPresetsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"destinations"},
		Short:   "Manage saved destinations",
	}

	cmd.AddCommand(
		newPresetsListCmd(configPath),
		newPresetsAddCmd(configPath),
		newPresetsRemoveCmd(configPath),
		newPresetsDefaultCmd(configPath),
	)
	return cmd
}

func newPresetsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved destinations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			presets, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(presets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No destinations saved")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCHAT\tDEFAULT")
			for _, p := range presets {
				def := ""
				if p.IsDefault {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Credentials.ChatID, def)
			}
			return tw.Flush()
		},
	}
}

func newPresetsAddCmd(configPath *string) *cobra.Command {
	var (
		id, name, token, chat string
		isDefault             bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a destination",
		Long: `Add a destination, or update the one named by --id. An update changes
only the fields whose flags are given.`,
		Example: `notegram presets add --name "News" --token 123456:ABC --chat @news --default
notegram presets add --id 3f6c... --chat -1001234567890`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			preset := models.Preset{ID: id}
			if id != "" {
				existing, err := a.store.Get(cmd.Context(), id)
				switch {
				case err == nil:
					preset = existing
				case !errors.Is(err, storage.ErrPresetNotFound):
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				preset.Name = strings.TrimSpace(name)
			}
			if flags.Changed("token") {
				preset.Credentials.BotToken = token
			}
			if flags.Changed("chat") {
				preset.Credentials.ChatID = chat
			}
			if flags.Changed("default") {
				preset.IsDefault = isDefault
			}
			if !preset.Credentials.Complete() {
				return errors.New("both --token and --chat are required")
			}

			saved, err := a.store.Save(cmd.Context(), preset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved destination %s (%s)\n", saved.Label(), saved.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "id of the preset to update (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&token, "token", "", "bot token")
	cmd.Flags().StringVar(&chat, "chat", "", "chat id or @channel")
	cmd.Flags().BoolVar(&isDefault, "default", false, "make this the default destination")

	return cmd
}

func newPresetsRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed destination %s\n", args[0])
			return nil
		},
	}
}

func newPresetsDefaultCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "default <id>",
		Short: "Make a destination the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SetDefault(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to set default %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default destination is now %s\n", args[0])
			return nil
		},
	}
}
