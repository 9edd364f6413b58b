package pipeline

import (
	"fmt"
	"strings"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/pairs"
)

// Operation names one stage of the stack processor.
type Operation string

const (
	OpUnpack           Operation = "unpack_slc"
	OpAverageBaseline  Operation = "average_baseline"
	OpExtractOverlaps  Operation = "extract_overlaps"
	OpOverlapResample  Operation = "overlap_geo2rdr_resample"
	OpPairsMisreg      Operation = "pairs_misreg"
	OpTimeseriesMisreg Operation = "timeseries_misreg"
	OpResample         Operation = "geo2rdr_resample"
	OpValidRegion      Operation = "extract_stack_valid_region"
	OpMergeSLC         Operation = "merge_reference_secondary_slc"
	OpCropStack        Operation = "crop_sentinel"
	OpPhaseLinking     Operation = "sentinel_squeesar"
	OpBurstIgram       Operation = "generate_burst_igram"
	OpFilterCoherence  Operation = "filter_coherence"
	OpUnwrap           Operation = "unwrap"
)

// Coregistration selects how secondaries are aligned to the reference.
type Coregistration string

const (
	// CoregGeometry uses orbits and the DEM only.
	CoregGeometry Coregistration = "geometry"
	// CoregNESD refines geometry with enhanced spectral diversity over burst overlaps.
	CoregNESD Coregistration = "NESD"
)

// ParseCoregistration accepts the mode names case-insensitively.
func ParseCoregistration(value string) (Coregistration, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "geometry":
		return CoregGeometry, nil
	case "nesd":
		return CoregNESD, nil
	default:
		return "", fmt.Errorf("unknown coregistration %q (supported: geometry, NESD)", value)
	}
}

// Method is the downstream processing method.
type Method string

const (
	MethodSBAS     Method = "sbas"
	MethodSqueeSAR Method = "squeesar"
	MethodPS       Method = "ps"
)

// ParseMethod validates a processing method name.
func ParseMethod(value string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(value))); m {
	case MethodSBAS, MethodSqueeSAR, MethodPS:
		return m, nil
	default:
		return "", fmt.Errorf("unknown processing method %q (supported: sbas, squeesar, ps)", value)
	}
}

// Workflow is the kind of stack product requested.
type Workflow string

const (
	WorkflowInterferogram Workflow = "interferogram"
	WorkflowOffset        Workflow = "offset"
	WorkflowCorrelation   Workflow = "correlation"
	WorkflowSLC           Workflow = "slc"
)

// Workflows lists every recognized workflow.
func Workflows() []Workflow {
	return []Workflow{WorkflowInterferogram, WorkflowOffset, WorkflowCorrelation, WorkflowSLC}
}

// ParseWorkflow validates a workflow name.
func ParseWorkflow(value string) (Workflow, error) {
	w := Workflow(strings.TrimSpace(value))
	for _, known := range Workflows() {
		if w == known {
			return w, nil
		}
	}
	return "", &WorkflowError{Name: value}
}

// Unit is one independent piece of work inside a stage: a date, a pair, or
// the whole stack.
type Unit struct {
	ID    string         `yaml:"id"`
	Dates []catalog.Date `yaml:"dates,omitempty"`
	Pair  *pairs.Pair    `yaml:"pair,omitempty"`
}

func dateUnit(d catalog.Date) Unit {
	return Unit{ID: string(d), Dates: []catalog.Date{d}}
}

func pairUnit(p pairs.Pair) Unit {
	pair := p
	return Unit{ID: p.String(), Dates: []catalog.Date{p.Earlier, p.Later}, Pair: &pair}
}

// Stage is one numbered step. Its units may run in any order or in parallel;
// the stage as a whole starts only after the previous stage finished.
type Stage struct {
	Index             int       `yaml:"index"`
	Operation         Operation `yaml:"operation"`
	Units             []Unit    `yaml:"units"`
	DependsOnPrevious bool      `yaml:"depends_on_previous"`
}

// Name is the run file name, e.g. run_03_extract_overlaps.
func (s Stage) Name() string {
	return fmt.Sprintf("run_%02d_%s", s.Index, s.Operation)
}

// Flags are the switches that select which stages are emitted.
type Flags struct {
	Coregistration Coregistration
	Method         Method
	IsUpdate       bool
	Merge          bool
}

// Input is everything Generate needs to lay out a plan.
type Input struct {
	Reference    catalog.Date
	ActiveDates  []catalog.Date
	ProcessDates []catalog.Date
	Pairs        []pairs.Pair
	// OverlapWidth connects dates for the misregistration pairs.
	OverlapWidth pairs.Width
	Flags
}
