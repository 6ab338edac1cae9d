package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/app"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/spf13/cobra"
)

func newExpertsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experts",
		Short: "List and manage sales expert profiles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List experts and their configuration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				active := c.Registry.Active().ID
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME\tCONFIGURED")
				for _, e := range c.Registry.List() {
					marker := ""
					if e.ID == active {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", marker, e.ID, e.Name, e.IsConfigured())
				}
				return tw.Flush()
			})
		},
	}

	activate := &cobra.Command{
		Use:   "activate <id>",
		Short: "Select the expert used for new analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				if err := c.Registry.SetActive(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active expert: %s\n", args[0])
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an expert's training profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				e, ok := c.Registry.Get(args[0])
				if !ok {
					return errors.NewUnknownExpertID(args[0])
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}

	cmd.AddCommand(list, activate, show)
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past analyses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				entries := c.Workspace.History()
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No analyses yet.")
					return nil
				}
				now := time.Now()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tWHEN\tMESSAGES")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t@%s\t%s\t%s\t%d\n", e.ID, e.Username, e.FullName, util.RelativeTime(e.Date, now), len(e.Conversation))
				}
				return tw.Flush()
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one analysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				e, err := c.Workspace.HistoryEntry(id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of experts, settings and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				backup := c.Workspace.Export()
				if out == "" || out == "-" {
					return printJSON(cmd.OutOrStdout(), backup)
				}

				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				if err := printJSON(f, backup); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d analyses to %s\n", len(backup.History), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var expertID string

	cmd := &cobra.Command{
		Use:   "analyze <profile-url-or-username>",
		Short: "Analyze a profile through the configured webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), opts, true, func(c *app.Container) error {
				id := expertID
				if id == "" {
					id = c.Registry.Active().ID
				}
				entry, err := c.Workspace.Analyze(cmd.Context(), args[0], id)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "@%s (%s) - %s seguidores\n", entry.Username, entry.FullName, entry.Data.Profile.Followers)
				for _, m := range entry.Data.Messages {
					fmt.Fprintf(w, "\n[%s]\n%s\n", m.Label, m.Text)
				}
				fmt.Fprintf(w, "\nSaved as history #%d\n", entry.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&expertID, "expert", "e", "", "expert id (defaults to the active expert)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
