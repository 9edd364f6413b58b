package stack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cochaviz/stackplan/internal/catalog"
)

var (
	// ErrNoNewData stops an update run that has nothing new to process.
	ErrNoNewData = errors.New("the stack already exists; no new acquisition found to update it")
	// ErrMissingSource means a date due for reprocessing lost its raw input.
	ErrMissingSource = errors.New("original source missing for reprocessing")
)

// MissingSourceError lists the reprocess dates that have no raw input in the
// current catalog.
type MissingSourceError struct {
	Required int
	Missing  []catalog.Date
}

func (e *MissingSourceError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, d := range e.Missing {
		missing[i] = string(d)
	}
	return fmt.Sprintf("%s: the original sources of the latest %d coregistered dates are needed; missing %s",
		ErrMissingSource, e.Required, strings.Join(missing, ","))
}

func (e *MissingSourceError) Unwrap() error { return ErrMissingSource }
