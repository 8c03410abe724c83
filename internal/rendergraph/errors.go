package rendergraph

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle wraps a dependency cycle found while compiling.
	ErrCycle = errors.New("render graph has a dependency cycle")
	// ErrAllocation is returned when the device fails to create a transient resource.
	ErrAllocation = errors.New("resource allocation failed")
	// ErrPassFailed is returned when a pass's record callback fails or panics.
	ErrPassFailed = errors.New("pass failed")
	// ErrSubmission is returned when a queue rejects a submission.
	ErrSubmission = errors.New("submission failed")
	// ErrMixedLayouts is returned when the views of an external texture end
	// the frame in different layouts.
	ErrMixedLayouts = errors.New("external texture views end in different layouts")
	// ErrUninitializedRead is returned under ReadFail when a transient
	// resource is read before anything wrote it.
	ErrUninitializedRead = errors.New("read of uninitialized resource")
	// ErrLayoutConflict is returned when one pass needs two layouts for the same view.
	ErrLayoutConflict = errors.New("conflicting layouts within one pass")
	// ErrAlreadyExecuted is returned when a graph is executed twice.
	ErrAlreadyExecuted = errors.New("render graph already executed")
)

// BuildError describes a misuse of the declaration API. It is raised with
// panic because it can only come from a bug in the calling code.
type BuildError struct {
	Pass     string
	Resource string
	Reason   string
}

func (e *BuildError) Error() string {
	switch {
	case e.Pass != "" && e.Resource != "":
		return fmt.Sprintf("rendergraph: pass %q, resource %q: %s", e.Pass, e.Resource, e.Reason)
	case e.Resource != "":
		return fmt.Sprintf("rendergraph: resource %q: %s", e.Resource, e.Reason)
	case e.Pass != "":
		return fmt.Sprintf("rendergraph: pass %q: %s", e.Pass, e.Reason)
	}
	return "rendergraph: " + e.Reason
}

// IsBuildError reports whether err is a *BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
