package host

import (
	"errors"
	"fmt"
)

// ErrNotMounted is returned when an operation needs a mounted node.
var ErrNotMounted = errors.New("node is not mounted")

// RenderError reports a panic raised while a node was set up or rendered.
// The node keeps its previous output.
type RenderError struct {
	Path  string
	Cause any
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Cause)
}

// Unwrap returns the panic value when it was an error.
func (e *RenderError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// IsRenderError returns true if err is or wraps a RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
