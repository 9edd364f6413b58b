// Package pipeline lays out the ordered stages of a stack run and renders them
// into run files and per-unit descriptors.
package pipeline

import (
	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/pairs"
)

// stageTemplate is one row of the stage table: an operation, the flag
// combination it is emitted for, and the units it acts on.
type stageTemplate struct {
	op    Operation
	when  func(Flags) bool
	units func(Input) []Unit
}

func always(Flags) bool { return true }

func refinement(f Flags) bool { return f.Coregistration == CoregNESD }

func squeesar(f Flags) bool { return f.Method == MethodSqueeSAR }

// slcStages is the stage table of the slc workflow, in execution order.
var slcStages = []stageTemplate{
	{op: OpUnpack, when: always, units: unpackUnits},
	{op: OpAverageBaseline, when: always, units: processUnits},

	{op: OpExtractOverlaps, when: func(f Flags) bool { return refinement(f) && !f.IsUpdate }, units: stackUnit},
	{op: OpOverlapResample, when: refinement, units: processUnits},
	{op: OpPairsMisreg, when: refinement, units: misregUnits},
	{op: OpTimeseriesMisreg, when: refinement, units: stackUnit},

	{op: OpResample, when: always, units: processUnits},
	{op: OpValidRegion, when: always, units: stackUnit},

	{op: OpMergeSLC, when: func(f Flags) bool { return f.Merge }, units: mergeUnits},

	// Cropping and phase linking run from the project template, not from a
	// descriptor.
	{op: OpCropStack, when: squeesar, units: stackUnit},
	{op: OpPhaseLinking, when: squeesar, units: stackUnit},
	{op: OpBurstIgram, when: squeesar, units: pairUnits},
	{op: OpFilterCoherence, when: squeesar, units: pairUnits},
	{op: OpUnwrap, when: squeesar, units: pairUnits},
}

// stageTables maps a workflow onto its stage table. Workflows without an
// entry are recognized but have no stages.
var stageTables = map[Workflow][]stageTemplate{
	WorkflowSLC: slcStages,
}

// HasStages reports whether workflow produces a stage list.
func HasStages(workflow Workflow) bool {
	_, ok := stageTables[workflow]
	return ok
}

// Generate emits the stages of workflow for in. Indices are assigned in
// emission order, so they run 1..K without gaps whichever rows are skipped.
func Generate(workflow Workflow, in Input) []Stage {
	table := stageTables[workflow]
	stages := make([]Stage, 0, len(table))
	for _, tmpl := range table {
		if !tmpl.when(in.Flags) {
			continue
		}
		index := len(stages) + 1
		stages = append(stages, Stage{
			Index:             index,
			Operation:         tmpl.op,
			Units:             tmpl.units(in),
			DependsOnPrevious: index > 1,
		})
	}
	return stages
}

func unpackUnits(in Input) []Unit {
	units := make([]Unit, 0, len(in.ProcessDates)+1)
	if !in.IsUpdate {
		units = append(units, dateUnit(in.Reference))
	}
	return append(units, processUnits(in)...)
}

func processUnits(in Input) []Unit {
	units := make([]Unit, 0, len(in.ProcessDates))
	for _, d := range in.ProcessDates {
		units = append(units, dateUnit(d))
	}
	return units
}

func mergeUnits(in Input) []Unit {
	return append([]Unit{dateUnit(in.Reference)}, processUnits(in)...)
}

func stackUnit(in Input) []Unit {
	return []Unit{{ID: "stack", Dates: []catalog.Date{in.Reference}}}
}

// misregUnits connects dates over burst overlaps. An update only pairs the
// dates it reprocesses.
func misregUnits(in Input) []Unit {
	dates := in.ActiveDates
	if in.IsUpdate {
		dates = in.ProcessDates
	}
	width := in.OverlapWidth
	if width == 0 {
		width = 1
	}
	return toPairUnits(pairs.Select(dates, width))
}

func pairUnits(in Input) []Unit {
	return toPairUnits(in.Pairs)
}

func toPairUnits(ps []pairs.Pair) []Unit {
	units := make([]Unit, 0, len(ps))
	for _, p := range ps {
		units = append(units, pairUnit(p))
	}
	return units
}
