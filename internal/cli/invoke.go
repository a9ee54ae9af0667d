package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statebox/internal/eval"
	"github.com/roach88/statebox/internal/host"
	"github.com/roach88/statebox/internal/journal"
	"github.com/roach88/statebox/internal/spec"
	"github.com/roach88/statebox/internal/store"
	"github.com/roach88/statebox/internal/value"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Journal string
}

// InvokeStep is the outcome of one dispatched action.
type InvokeStep struct {
	Action  string          `json:"action"`
	Args    json.RawMessage `json:"args"`
	Changed []string        `json:"changed"`
	Noop    bool            `json:"noop"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// InvokeResult is the output of the invoke command.
type InvokeResult struct {
	Store    string          `json:"store"`
	Provider string          `json:"provider"`
	Session  string          `json:"session,omitempty"`
	Steps    []InvokeStep    `json:"steps"`
	State    json.RawMessage `json:"state"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <specs-dir> <store> <action[:json]>...",
		Short: "Dispatch actions against a freshly mounted store",
		Long: `Mount one store's Provider, dispatch the given actions in order and
print the resulting state.

Each action is a mutation name, optionally followed by a colon and a JSON
payload. A JSON array is spread into the argument list; any other JSON
value is passed as the single argument.

Examples:
  statebox invoke ./specs counter increment increment
  statebox invoke ./specs counter 'setLabel:"busy"' 'add:[5]'
  statebox invoke ./specs counter 'setUser:{"name":"Ann"}' --journal run.db`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", rootOpts.Config.Journal, "record dispatches in this SQLite journal")

	return cmd
}

type plannedAction struct {
	name string
	args value.Array
}

// parseAction splits "name:json" into a mutation name and its arguments.
func parseAction(raw string) (plannedAction, error) {
	name, payload, hasPayload := strings.Cut(raw, ":")
	if name == "" {
		return plannedAction{}, fmt.Errorf("action %q: name is empty", raw)
	}
	pa := plannedAction{name: name, args: value.Array{}}
	if !hasPayload {
		return pa, nil
	}

	v, err := value.Parse([]byte(payload))
	if err != nil {
		return plannedAction{}, fmt.Errorf("action %q: invalid payload: %w", raw, err)
	}
	if arr, ok := v.(value.Array); ok {
		pa.args = arr
	} else {
		pa.args = value.Array{v}
	}
	return pa, nil
}

// stepRecorder keeps every dispatch record of the run and forwards it to
// the journal when there is one.
type stepRecorder struct {
	records []store.DispatchRecord
	next    store.Recorder
}

func (r *stepRecorder) RecordDispatch(ctx context.Context, rec store.DispatchRecord) error {
	r.records = append(r.records, rec)
	if r.next != nil {
		return r.next.RecordDispatch(ctx, rec)
	}
	return nil
}

func runInvoke(opts *InvokeOptions, specsDir, storeName string, rawActions []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	logger := opts.logger()

	planned := make([]plannedAction, 0, len(rawActions))
	for _, raw := range rawActions {
		pa, err := parseAction(raw)
		if err != nil {
			_ = formatter.Error(spec.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid action", err)
		}
		planned = append(planned, pa)
	}

	defs, loadErrs := spec.LoadDir(specsDir, spec.LoadModeCollectAll)
	if defs == nil {
		le := firstLoadError(loadErrs)
		_ = formatter.Error(le.Code, le.Message, nil)
		return WrapExitError(ExitCommandError, "load specs", le)
	}
	def := defs.Store(storeName)
	if def == nil {
		msg := fmt.Sprintf("store %q not found (have %v)", storeName, defs.Names())
		if len(loadErrs) > 0 {
			msg += fmt.Sprintf("; %d definition(s) failed to load", len(loadErrs))
		}
		_ = formatter.Error(spec.ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	rec := &stepRecorder{}
	result := InvokeResult{Store: storeName, Steps: make([]InvokeStep, 0, len(planned))}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(spec.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "open journal", err)
		}
		defer j.Close()
		rec.next = j
		result.Session = j.Session()
	}

	// Expression failures leave the state unchanged; keep the last one so
	// the step that caused it can report it.
	var evalErr error
	s, err := def.Build(
		spec.WithStoreOptions(
			store.WithLogger(logger),
			store.WithRecorder(rec),
		),
		spec.WithMutationOptions(eval.WithErrorHandler(func(err error) {
			logger.Warn("expression mutation failed", "store", storeName, "error", err)
			evalErr = err
		})),
	)
	if err != nil {
		_ = formatter.Error(toValidationError(err).Code, err.Error(), nil)
		return WrapExitError(ExitFailure, "build store", err)
	}

	var (
		state   value.Object
		actions store.Actions
	)
	root := host.NewRoot(host.WithLogger(logger))
	viewer := host.Component{Name: "viewer", Render: func(r *host.Render) {
		state, actions = s.UseStore(r)
	}}
	node, err := root.Mount(s.Provider(viewer))
	if err != nil {
		return WrapExitError(ExitFailure, "mount store", err)
	}
	result.Provider, _ = s.ProviderID(node.Find("viewer"))

	failed, firstCode := 0, ""
	for _, pa := range planned {
		root.Post(func() {
			step := InvokeStep{
				Action:  pa.name,
				Args:    value.MustMarshalCanonical(pa.args),
				Changed: []string{},
				Noop:    true,
			}
			before := len(rec.records)
			evalErr = nil
			err := actions.Call(pa.name, pa.args...)
			if len(rec.records) > before {
				last := rec.records[len(rec.records)-1]
				step.Noop = last.Noop
				if last.Changed != nil {
					step.Changed = last.Changed
				}
			}
			switch {
			case err != nil:
				var se *store.Error
				if errors.As(err, &se) {
					step.Error = string(se.Code)
				} else {
					step.Error = spec.ErrCodeGeneric
				}
				step.Message = err.Error()
			case evalErr != nil:
				step.Error = ErrCodeEvalFailed
				step.Message = evalErr.Error()
			}
			if step.Error != "" {
				if failed == 0 {
					firstCode = step.Error
				}
				failed++
			}
			result.Steps = append(result.Steps, step)
		})
	}
	root.Stop()
	if err := root.Run(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "run actions", err)
	}
	root.Unmount()

	result.State = value.MustMarshalCanonical(state)

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: firstCode, Message: fmt.Sprintf("%d action(s) failed", failed)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		writeInvokeText(formatter, result)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d action(s) failed", failed))
	}
	return nil
}

func writeInvokeText(f *OutputFormatter, result InvokeResult) {
	for i, step := range result.Steps {
		switch {
		case step.Error != "":
			fmt.Fprintf(f.Writer, "%d. %s %s -> error %s\n", i+1, step.Action, step.Args, step.Error)
		case step.Noop:
			fmt.Fprintf(f.Writer, "%d. %s %s -> no change\n", i+1, step.Action, step.Args)
		default:
			fmt.Fprintf(f.Writer, "%d. %s %s -> changed [%s]\n", i+1, step.Action, step.Args, strings.Join(step.Changed, ", "))
		}
	}
	fmt.Fprintf(f.Writer, "state: %s\n", result.State)
	if result.Session != "" {
		fmt.Fprintf(f.Writer, "journal session: %s\n", result.Session)
	}
}
