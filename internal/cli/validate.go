package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statebox/internal/eval"
	"github.com/roach88/statebox/internal/spec"
	"github.com/roach88/statebox/internal/store"
)

// StoreSummary describes one valid store definition.
type StoreSummary struct {
	Name      string   `json:"name"`
	Engine    string   `json:"engine"`
	State     []string `json:"state"`
	Mutations []string `json:"mutations"`
}

// ValidationError is one problem found in a definition.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Stores []StoreSummary    `json:"stores,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ErrCodeEvalFailed reports an expression that does not compile.
const ErrCodeEvalFailed = "E201"

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate store definitions",
		Long: `Load every CUE store definition in a directory and compile its
mutations, including expression sources, without mounting anything.

Exit codes:
  0 - All definitions are valid
  1 - One or more definitions are invalid
  2 - The directory could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout())
	logger := opts.logger()

	defs, loadErrs := spec.LoadDir(specsDir, spec.LoadModeCollectAll)
	if defs == nil {
		le := firstLoadError(loadErrs)
		_ = formatter.Error(le.Code, le.Message, nil)
		return WrapExitError(ExitCommandError, "load specs", le)
	}
	logger.Debug("loaded definitions", "dir", specsDir, "files", defs.FileCount, "stores", len(defs.Stores))

	result := ValidationResult{Valid: true}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	for _, def := range defs.Stores {
		s, err := def.Build(spec.WithStoreOptions(store.WithLogger(logger)))
		if err != nil {
			result.Errors = append(result.Errors, toValidationError(err))
			continue
		}
		result.Stores = append(result.Stores, StoreSummary{
			Name:      s.Name(),
			Engine:    def.Engine,
			State:     s.Initial().SortedKeys(),
			Mutations: s.Names(),
		})
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: result.Errors[0].Code, Message: fmt.Sprintf("%d error(s)", len(result.Errors))}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		writeValidationText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func writeValidationText(f *OutputFormatter, result ValidationResult) {
	for _, s := range result.Stores {
		fmt.Fprintf(f.Writer, "ok  %s (%s) state=[%s] mutations=[%s]\n",
			s.Name, s.Engine, strings.Join(s.State, ", "), strings.Join(s.Mutations, ", "))
	}
	for _, e := range result.Errors {
		loc := ""
		if e.File != "" {
			loc = fmt.Sprintf("%s:%d: ", e.File, e.Line)
		}
		fmt.Fprintf(f.Writer, "err %s[%s] %s\n", loc, e.Code, e.Message)
	}
	if result.Valid {
		fmt.Fprintf(f.Writer, "%d store(s) valid\n", len(result.Stores))
	}
}

func firstLoadError(errs []error) *spec.LoadError {
	if len(errs) == 0 {
		return &spec.LoadError{Code: spec.ErrCodeGeneric, Message: "unknown load failure"}
	}
	var le *spec.LoadError
	if errors.As(errs[0], &le) {
		return le
	}
	return &spec.LoadError{Code: spec.ErrCodeGeneric, Message: errs[0].Error()}
}

func toValidationError(err error) ValidationError {
	var le *spec.LoadError
	if errors.As(err, &le) {
		ve := ValidationError{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			ve.File = le.Pos.Filename()
			ve.Line = le.Pos.Line()
		}
		return ve
	}
	if eval.IsEvaluationError(err) {
		return ValidationError{Code: ErrCodeEvalFailed, Message: err.Error()}
	}
	return ValidationError{Code: spec.ErrCodeGeneric, Message: err.Error()}
}
