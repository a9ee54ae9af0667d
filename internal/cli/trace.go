package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statebox/internal/journal"
	"github.com/roach88/statebox/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DB       string
	Store    string
	Action   string
	Session  string
	Provider string
	Limit    int
}

// TraceEntry is one journaled dispatch in command output.
type TraceEntry struct {
	ID          int64    `json:"id"`
	Session     string   `json:"session"`
	Store       string   `json:"store"`
	Provider    string   `json:"provider"`
	Seq         int64    `json:"seq"`
	Action      string   `json:"action"`
	Payload     string   `json:"payload"`
	Changed     []string `json:"changed"`
	Fingerprint string   `json:"fingerprint"`
	Noop        bool     `json:"noop"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled dispatches",
		Long: `Read dispatch records from a SQLite journal written by invoke --journal.

Examples:
  statebox trace --db run.db
  statebox trace --db run.db --store counter --action increment --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", rootOpts.Config.Journal, "journal database path")
	cmd.Flags().StringVar(&opts.Store, "store", "", "filter by store name")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter by action type")
	cmd.Flags().StringVar(&opts.Session, "session", "", "filter by session ID")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "filter by provider instance ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	if opts.DB == "" {
		_ = formatter.Error("E001", "--db is required", nil)
		return NewExitError(ExitCommandError, "--db is required")
	}
	if opts.Limit < 0 {
		_ = formatter.Error("E001", "--limit must be non-negative", nil)
		return NewExitError(ExitCommandError, "--limit must be non-negative")
	}
	// Opening would create an empty journal.
	if _, err := os.Stat(opts.DB); errors.Is(err, os.ErrNotExist) {
		_ = formatter.Error("E005", fmt.Sprintf("journal not found: %s", opts.DB), nil)
		return WrapExitError(ExitCommandError, "open journal", err)
	}

	j, err := journal.Open(opts.DB)
	if err != nil {
		_ = formatter.Error("E004", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer j.Close()

	records, err := j.List(cmd.Context(), journal.Filter{
		Session:  opts.Session,
		Store:    opts.Store,
		Provider: opts.Provider,
		Action:   opts.Action,
		Limit:    opts.Limit,
	})
	if err != nil {
		_ = formatter.Error("E004", err.Error(), nil)
		return WrapExitError(ExitCommandError, "read journal", err)
	}

	entries := make([]TraceEntry, len(records))
	for i, r := range records {
		entries[i] = TraceEntry{
			ID:          r.ID,
			Session:     r.Session,
			Store:       r.Store,
			Provider:    r.Provider,
			Seq:         r.Seq,
			Action:      r.Action,
			Payload:     string(value.MustMarshalCanonical(r.Payload)),
			Changed:     r.Changed,
			Fingerprint: r.Fingerprint,
			Noop:        r.Noop,
		}
	}

	if formatter.JSON() {
		return formatter.Success(entries, "")
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no records")
		return nil
	}
	for _, e := range entries {
		outcome := "changed [" + strings.Join(e.Changed, ", ") + "]"
		if e.Noop {
			outcome = "no change"
		}
		fmt.Fprintf(formatter.Writer, "%s %s/%s #%d %s %s -> %s\n",
			e.Session, e.Store, e.Provider, e.Seq, e.Action, e.Payload, outcome)
	}
	fmt.Fprintf(formatter.Writer, "%d record(s)\n", len(entries))
	return nil
}
