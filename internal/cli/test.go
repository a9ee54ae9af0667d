package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/statebox/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter    string
	GoldenDir string
	Update    bool
}

// TestResult is the outcome of one scenario file.
type TestResult struct {
	Scenario string   `json:"scenario"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	Golden   string   `json:"golden,omitempty"` // "match", "mismatch", "updated", "missing"
	Errors   []string `json:"errors,omitempty"`
}

// TestSummary is the output of the test command.
type TestSummary struct {
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestResult `json:"results"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every YAML scenario in a directory. Each scenario mounts a tree
of providers and consumers, dispatches actions and checks assertions.

When a golden file <golden-dir>/<scenario>.golden exists, the canonical
trace must match it byte for byte. --update rewrites golden files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - The directory could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose base name matches this glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")

	return cmd
}

func runTest(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	logger := opts.logger()

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "scan scenarios", err)
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	summary := TestSummary{Results: make([]TestResult, 0, len(files))}
	for _, file := range files {
		tr := runScenarioFile(file, goldenDir, opts.Update)
		logger.Debug("scenario finished", "file", file, "pass", tr.Pass, "golden", tr.Golden)
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, tr)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: summary}
		if summary.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "SCENARIO_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		writeTestText(formatter, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// findScenarioFiles lists *.yaml and *.yml files directly inside dir,
// sorted by name.
func findScenarioFiles(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scenarios directory: %s is not a directory", dir)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(name, ext)); !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func runScenarioFile(file, goldenDir string, update bool) TestResult {
	tr := TestResult{File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		tr.Scenario = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		tr.Errors = []string{err.Error()}
		return tr
	}
	tr.Scenario = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		tr.Errors = []string{err.Error()}
		return tr
	}
	tr.Pass = result.Pass
	tr.Errors = append(tr.Errors, result.Errors...)

	got, err := harness.TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace}.MarshalCanonical()
	if err != nil {
		tr.Pass = false
		tr.Errors = append(tr.Errors, err.Error())
		return tr
	}

	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")
	if update {
		err := os.MkdirAll(goldenDir, 0o755)
		if err == nil {
			err = os.WriteFile(goldenPath, got, 0o644)
		}
		if err != nil {
			tr.Pass = false
			tr.Errors = append(tr.Errors, fmt.Sprintf("update golden: %v", err))
			return tr
		}
		tr.Golden = "updated"
		return tr
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		tr.Golden = "missing"
	case err != nil:
		tr.Pass = false
		tr.Errors = append(tr.Errors, fmt.Sprintf("read golden: %v", err))
	case bytes.Equal(want, got):
		tr.Golden = "match"
	default:
		tr.Golden = "mismatch"
		tr.Pass = false
		tr.Errors = append(tr.Errors, fmt.Sprintf("trace differs from %s", goldenPath))
	}
	return tr
}

func writeTestText(f *OutputFormatter, summary TestSummary) {
	for _, r := range summary.Results {
		mark := "\u2713"
		if !r.Pass {
			mark = "\u2717"
		}
		line := fmt.Sprintf("%s %s", mark, r.Scenario)
		if r.Golden != "" && r.Golden != "missing" {
			line += fmt.Sprintf(" (golden %s)", r.Golden)
		}
		fmt.Fprintln(f.Writer, line)
		for _, e := range r.Errors {
			fmt.Fprintf(f.Writer, "    %s\n", e)
		}
	}
	fmt.Fprintf(f.Writer, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)
}
