package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidWorkflow is returned for unrecognized workflow names.
	ErrInvalidWorkflow = errors.New("invalid workflow")
	// ErrRunFilesExist refuses to overwrite the stage files of an earlier run.
	ErrRunFilesExist = errors.New("run_files folder exists; remove or rename it and try again")
)

// WorkflowError names the rejected workflow.
type WorkflowError struct {
	Name string
}

func (e *WorkflowError) Error() string {
	names := make([]string, 0, len(Workflows()))
	for _, w := range Workflows() {
		names = append(names, string(w))
	}
	return fmt.Sprintf("%s %q: choose one of %s", ErrInvalidWorkflow, e.Name, strings.Join(names, ", "))
}

func (e *WorkflowError) Unwrap() error { return ErrInvalidWorkflow }
