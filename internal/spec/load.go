package spec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the stores loaded from a directory.
type LoadResult struct {
	Stores    []*StoreDef
	CUEValue  cue.Value
	FileCount int
}

// Store returns the definition named name, or nil.
func (r *LoadResult) Store(name string) *StoreDef {
	if r == nil {
		return nil
	}
	for _, d := range r.Stores {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Names returns the store names in declaration order.
func (r *LoadResult) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Stores))
	for i, d := range r.Stores {
		names[i] = d.Name
	}
	return names
}

// Error codes shared by the loader and the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidState    = "E101" // State is not a struct
	ErrCodeInvalidMutation = "E102" // Mutation shape is wrong
	ErrCodeUnknownEngine   = "E103" // Unsupported expression engine
	ErrCodeInvalidType     = "E104" // Non-concrete or float value
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads and compiles every store definition under dir.
// With LoadModeFailFast it returns on the first error; with
// LoadModeCollectAll it keeps going and returns every error.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  v,
		FileCount: len(cueFiles),
	}
	return result, compileStores(v, result, mode)
}

// LoadSource compiles store definitions from CUE source held in memory.
// name labels positions in error messages.
func LoadSource(name, src string, mode LoadMode) (*LoadResult, []error) {
	v := cuecontext.New().CompileString(src, cuecontext.Filename(name))
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	result := &LoadResult{CUEValue: v, FileCount: 1}
	return result, compileStores(v, result, mode)
}

// compileStores compiles every field under "store" into result.
func compileStores(v cue.Value, result *LoadResult, mode LoadMode) []error {
	var errs []error
	storesVal := v.LookupPath(cue.ParsePath("store"))
	if storesVal.Exists() {
		iter, iterErr := storesVal.Fields()
		if iterErr != nil {
			return append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating stores: %v", iterErr)})
		}
		for iter.Next() {
			def, compileErr := CompileStore(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "store."+iter.Label()))
				if mode == LoadModeFailFast {
					return errs
				}
				continue
			}
			result.Stores = append(result.Stores, def)
		}
	}

	if len(result.Stores) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no stores found in specs"})
	}
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "state":
		return ErrCodeInvalidState
	case "mutation":
		return ErrCodeInvalidMutation
	case "engine":
		return ErrCodeUnknownEngine
	case "type":
		return ErrCodeInvalidType
	default:
		return ErrCodeGeneric
	}
}
