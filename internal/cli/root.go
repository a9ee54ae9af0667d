package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/statebox/internal/telemetry"
)

// RootOptions holds global flags and the state shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Config Config
	Logger *slog.Logger

	shutdown func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the statebox CLI.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := LoadConfig()
	opts := &RootOptions{Config: cfg, Logger: slog.Default()}

	cmd := &cobra.Command{
		Use:   "statebox",
		Short: "statebox - scoped state containers",
		Long: `Load, exercise and inspect state container definitions.

Stores are defined in CUE. Each store declares an initial state and named
mutations; consumers subscribe to the whole state or to one field.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			logger, err := newLogger(cmd.ErrOrStderr(), opts.Config.LogLevel, opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			opts.Logger = logger

			shutdown, err := telemetry.Setup(cmd.Context(), telemetry.ServiceName, opts.Config.Telemetry())
			if err != nil {
				logger.Warn("tracing disabled", "error", err)
			}
			opts.shutdown = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.shutdown == nil {
				return nil
			}
			if err := opts.shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				opts.Logger.Warn("trace flush failed", "error", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return GetExitCode(err)
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
