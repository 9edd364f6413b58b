// Package stack decides whether a run builds a new stack or extends an
// existing one, and which dates it has to (re)process.
package stack

import (
	"log/slog"
	"slices"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/logging"
)

// Detection is the outcome of comparing a catalog with prior state.
type Detection struct {
	Reference catalog.Date
	// ActiveDates is ProcessDates plus the reference.
	ActiveDates []catalog.Date
	// ProcessDates are the secondary dates this run coregisters.
	ProcessDates []catalog.Date
	// NewDates and ReprocessDates partition ProcessDates on update.
	NewDates       []catalog.Date
	ReprocessDates []catalog.Date
	IsUpdate       bool
}

// Detector classifies catalog dates against prior state.
type Detector struct {
	Logger *slog.Logger
	Prior  PriorState
}

// Detect returns the reduced date set for this run. overlapWidth is the
// overlap connection width; 2*overlapWidth of the most recent coregistered
// dates are reprocessed on update.
func (d *Detector) Detect(cat *catalog.StackCatalog, overlapWidth int) (*Detection, error) {
	logger := logging.Ensure(d.Logger).With("component", "stack")

	secondaries := cat.NonReferenceDates()
	var snapshot Snapshot
	if d.Prior != nil {
		var err error
		snapshot, err = d.Prior.Snapshot()
		if err != nil {
			return nil, err
		}
	}

	prior := make([]catalog.Date, 0, len(snapshot.Dates))
	for _, date := range snapshot.Dates {
		if date != cat.Reference {
			prior = append(prior, date)
		}
	}

	if !snapshot.Exists || len(prior) == 0 {
		logger.Info("no existing stack identified; a new stack will be generated")
		return &Detection{
			Reference:    cat.Reference,
			ActiveDates:  cat.Dates(),
			ProcessDates: secondaries,
			NewDates:     secondaries,
		}, nil
	}
	logger.Info("existing stack found", logging.Strings("coregistered", prior))

	newDates := difference(secondaries, prior)
	if len(newDates) == 0 {
		return nil, ErrNoNewData
	}
	logger.Info("new acquisitions found", logging.Strings("dates", newDates))

	count := min(2*max(overlapWidth, 0), len(secondaries))
	reprocess := slices.Clone(prior[max(len(prior)-count, 0):])
	var missing []catalog.Date
	for _, date := range reprocess {
		if !cat.Has(date) {
			missing = append(missing, date)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingSourceError{Required: count, Missing: missing}
	}
	logger.Info("latest coregistered dates to be updated", "count", count, logging.Strings("dates", reprocess))

	process := catalog.SortDates(append(slices.Clone(reprocess), newDates...))
	active := catalog.SortDates(append(slices.Clone(process), cat.Reference))

	logger.Info("acquisitions used in this update",
		"reference", cat.Reference,
		logging.Strings("active", active),
		logging.Strings("process", process))

	return &Detection{
		Reference:      cat.Reference,
		ActiveDates:    active,
		ProcessDates:   process,
		NewDates:       newDates,
		ReprocessDates: reprocess,
		IsUpdate:       true,
	}, nil
}

// difference returns the items of a not in b, ascending.
func difference(a, b []catalog.Date) []catalog.Date {
	seen := make(map[catalog.Date]struct{}, len(b))
	for _, d := range b {
		seen[d] = struct{}{}
	}
	var out []catalog.Date
	for _, d := range a {
		if _, ok := seen[d]; !ok {
			out = append(out, d)
		}
	}
	return catalog.SortDates(out)
}
