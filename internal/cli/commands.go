package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/types"
)

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(opts *RootOptions) *cobra.Command {
	var userID, reason string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Request a reconciliation run",
		Long: `Ask vigild to rebuild the scheduled reminders. The run is debounced and
asynchronous; use "vigilctl status" to see how it ended.

Examples:
  vigilctl refresh
  vigilctl refresh --user u-42 --reason login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			if err := opts.client().Refresh(ctx, userID, reason); err != nil {
				return wrapClientError("refresh rejected", err)
			}
			return opts.printer(cmd).emit(map[string]bool{"accepted": true}, func(w io.Writer) {
				fmt.Fprintln(w, "refresh accepted")
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user to reconcile (defaults to the session user)")
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the trigger")
	return cmd
}

// NewPrefsCommand creates the prefs command group.
func NewPrefsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change notification preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			prefs, err := opts.client().Preferences(ctx)
			if err != nil {
				return wrapClientError("reading preferences", err)
			}
			return printPreferences(opts.printer(cmd), prefs)
		},
	})

	var (
		enabled, digest, sound, vibration bool
		lead                              int
		digestTime                        string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change preferences; unspecified fields are left alone",
		Long: `Change notification preferences. Only the flags you pass are sent.

Examples:
  vigilctl prefs set --lead 45
  vigilctl prefs set --digest=false
  vigilctl prefs set --digest-time 07:30 --sound=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.PreferencesPatch
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				patch.Enabled = &enabled
			}
			if flags.Changed("lead") {
				patch.ReminderLeadMinutes = &lead
			}
			if flags.Changed("digest") {
				patch.DailyDigestEnabled = &digest
			}
			if flags.Changed("digest-time") {
				patch.DailyDigestTime = &digestTime
			}
			if flags.Changed("sound") {
				patch.SoundEnabled = &sound
			}
			if flags.Changed("vibration") {
				patch.VibrationEnabled = &vibration
			}
			if patch == (types.PreferencesPatch{}) {
				return WrapExitError(ExitCommandError, "nothing to change: pass at least one preference flag", nil)
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			prefs, err := opts.client().UpdatePreferences(ctx, patch)
			if err != nil {
				return wrapClientError("updating preferences", err)
			}
			return printPreferences(opts.printer(cmd), prefs)
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", true, "master switch for all notifications")
	set.Flags().IntVar(&lead, "lead", types.DefaultReminderLeadMinutes, "reminder lead time in minutes")
	set.Flags().BoolVar(&digest, "digest", true, "send the daily digest")
	set.Flags().StringVar(&digestTime, "digest-time", types.DefaultDailyDigestTime, "daily digest time (HH:MM)")
	set.Flags().BoolVar(&sound, "sound", true, "play a sound")
	set.Flags().BoolVar(&vibration, "vibration", true, "vibrate")
	cmd.AddCommand(set)

	return cmd
}

func printPreferences(p printer, prefs types.NotificationPreferences) error {
	return p.emit(prefs, func(w io.Writer) {
		fmt.Fprintf(w, "enabled:        %t\n", prefs.Enabled)
		fmt.Fprintf(w, "reminder lead:  %d min\n", prefs.ReminderLeadMinutes)
		fmt.Fprintf(w, "daily digest:   %t at %s\n", prefs.DailyDigestEnabled, prefs.DailyDigestTime)
		fmt.Fprintf(w, "sound:          %t\n", prefs.SoundEnabled)
		fmt.Fprintf(w, "vibration:      %t\n", prefs.VibrationEnabled)
	})
}

// NewVisibilityCommand creates the visibility command group.
func NewVisibilityCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "visibility",
		Aliases: []string{"vis"},
		Short:   "Mute or allow individual events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			list, err := opts.client().Overrides(ctx)
			if err != nil {
				return wrapClientError("listing overrides", err)
			}
			return opts.printer(cmd).emit(list, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CANDIDATE\tSTATE\tUPDATED")
				for _, o := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", o.CandidateID, o.State, o.UpdatedAt.Format(time.RFC3339))
				}
				tw.Flush()
			})
		},
	})

	toggles := []struct {
		use, short string
		allow, on  bool
	}{
		{"mute", "Mute a candidate", false, true},
		{"unmute", "Clear a mute", false, false},
		{"allow", "Allow a candidate that is hidden by default", true, true},
		{"unallow", "Clear an allow", true, false},
	}
	for _, tg := range toggles {
		tg := tg
		cmd.AddCommand(&cobra.Command{
			Use:   tg.use + " <candidate-id>",
			Short: tg.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				c := opts.client()
				var (
					view VisibilityView
					err  error
				)
				if tg.allow {
					view, err = c.SetAllowed(ctx, args[0], tg.on)
				} else {
					view, err = c.SetMuted(ctx, args[0], tg.on)
				}
				if err != nil {
					return wrapClientError(tg.use+" failed", err)
				}
				return opts.printer(cmd).emit(view, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %s\n", view.CandidateID, view.State)
				})
			},
		})
	}

	return cmd
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show the notifications currently scheduled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			ledger, err := opts.client().Ledger(ctx)
			if err != nil {
				return wrapClientError("reading ledger", err)
			}
			return opts.printer(cmd).emit(ledger, func(w io.Writer) {
				if ledger.Count == 0 {
					fmt.Fprintln(w, "no notifications scheduled")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FIRES AT\tKIND\tCANDIDATE\tTITLE")
				for _, r := range ledger.Records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ScheduledAt.Format(time.RFC3339), r.Kind, r.CandidateID, r.Title)
				}
				tw.Flush()
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the engine state and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			st, err := opts.client().Status(ctx)
			if err != nil {
				return wrapClientError("reading status", err)
			}
			return opts.printer(cmd).emit(st, func(w io.Writer) {
				fmt.Fprintf(w, "state:       %s\n", st.State)
				fmt.Fprintf(w, "generation:  %d\n", st.Generation)
				fmt.Fprintf(w, "runs:        %d\n", st.Runs)
				fmt.Fprintf(w, "ledger size: %d\n", st.LedgerSize)
				if run := st.LastRun; run != nil {
					fmt.Fprintf(w, "last run:    %s %s (%s, %d reminders, %d digests)\n",
						run.RunID, run.Result, run.Duration.Round(time.Millisecond), run.Reminders, run.Digests)
					for _, f := range run.SourceFailures {
						fmt.Fprintf(w, "  source failure: %s\n", f)
					}
					if run.Error != "" {
						fmt.Fprintf(w, "  error: %s\n", run.Error)
					}
				}
			})
		},
	}
}
