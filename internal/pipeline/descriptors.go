package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/descriptor"
)

// Parameters are processor options copied into the descriptors.
type Parameters struct {
	DEM                   string
	OrbitDir              string
	AuxDir                string
	Swaths                string
	Polarization          string
	AzimuthLooks          int
	RangeLooks            int
	FilterStrength        float64
	ESDCoherenceThreshold float64
	SNRThreshold          float64
	UnwrapMethod          string
	BBox                  *catalog.BoundingBox
}

// descriptorBuilder renders the descriptor of one unit of one stage.
type descriptorBuilder struct {
	layout    Layout
	params    Parameters
	catalog   *catalog.StackCatalog
	reference catalog.Date
	flags     Flags
}

// configName is the descriptor file name for a unit. Pair descriptors of the
// burst interferogram stage are named config_igram_<pair>.
func configName(op Operation, unit Unit, reference catalog.Date) string {
	prefix := map[Operation]string{
		OpUnpack:           "unpack_slave",
		OpAverageBaseline:  "baseline",
		OpExtractOverlaps:  "extract_overlaps",
		OpOverlapResample:  "resamp_overlap",
		OpPairsMisreg:      "misreg",
		OpTimeseriesMisreg: "timeseries_misreg",
		OpResample:         "resamp",
		OpValidRegion:      "valid_region",
		OpMergeSLC:         "merge_slave",
		OpBurstIgram:       "igram",
		OpFilterCoherence:  "filter_coh",
		OpUnwrap:           "unwrap",
	}[op]
	if (op == OpUnpack || op == OpMergeSLC) && unit.ID == string(reference) {
		prefix = map[Operation]string{OpUnpack: "unpack_master", OpMergeSLC: "merge_master"}[op]
	}
	return "config_" + prefix + "_" + unit.ID
}

func (b *descriptorBuilder) build(op Operation, unit Unit) (*descriptor.Descriptor, error) {
	switch op {
	case OpUnpack:
		return b.unpack(unit)
	case OpAverageBaseline:
		d := unit.Dates[0]
		return descriptor.New(&descriptor.Function{Operation: "computeBaseline", Fields: []descriptor.Field{
			{Key: "master", Value: b.layout.Reference()},
			{Key: "slave", Value: b.layout.Unpacked(d, b.reference)},
			{Key: "baseline_file", Value: filepath.Join(b.layout.Baseline(b.reference, d), string(b.reference)+"_"+string(d)+".txt")},
		}}), nil
	case OpExtractOverlaps:
		return descriptor.New(&descriptor.Function{Operation: "subsetMaster", Fields: []descriptor.Field{
			{Key: "master", Value: b.layout.Reference()},
			{Key: "geom_masterDir", Value: b.layout.Geometry()},
		}}), nil
	case OpOverlapResample, OpResample:
		return b.resample(op, unit.Dates[0]), nil
	case OpPairsMisreg:
		return b.pairMisreg(unit)
	case OpTimeseriesMisreg:
		return descriptor.New(
			&descriptor.Function{Operation: "invertMisreg", Fields: []descriptor.Field{
				{Key: "input", Value: b.layout.Misreg("azimuth", "pairs")},
				{Key: "output", Value: b.layout.Misreg("azimuth", "dates")},
			}},
			&descriptor.Function{Operation: "invertMisreg", Fields: []descriptor.Field{
				{Key: "input", Value: b.layout.Misreg("range", "pairs")},
				{Key: "output", Value: b.layout.Misreg("range", "dates")},
			}},
		), nil
	case OpValidRegion:
		return descriptor.New(&descriptor.Function{Operation: "extractCommonValidRegion", Fields: []descriptor.Field{
			{Key: "master", Value: b.layout.Reference()},
			{Key: "slave", Value: filepath.Join(b.layout.WorkDir, CoregDir)},
		}}), nil
	case OpMergeSLC:
		return b.mergeSLC(unit.Dates[0]), nil
	case OpBurstIgram:
		return b.burstIgram(unit)
	case OpFilterCoherence:
		if unit.Pair == nil {
			return nil, fmt.Errorf("%s unit %s has no pair", op, unit.ID)
		}
		dir := b.layout.MergedInterferogram(*unit.Pair)
		return descriptor.New(&descriptor.Function{Operation: "FilterAndCoherence", Fields: []descriptor.Field{
			{Key: "input", Value: filepath.Join(dir, "fine.int")},
			{Key: "filt", Value: filepath.Join(dir, "filt_fine.int")},
			{Key: "cor", Value: filepath.Join(dir, "fine.cor")},
			{Key: "strength", Value: formatFloat(b.params.FilterStrength)},
		}}), nil
	case OpUnwrap:
		if unit.Pair == nil {
			return nil, fmt.Errorf("%s unit %s has no pair", op, unit.ID)
		}
		dir := b.layout.MergedInterferogram(*unit.Pair)
		return descriptor.New(&descriptor.Function{Operation: "unwrap", Fields: []descriptor.Field{
			{Key: "ifg", Value: filepath.Join(dir, "filt_fine.int")},
			{Key: "unw", Value: filepath.Join(dir, "filt_fine.unw")},
			{Key: "coh", Value: filepath.Join(dir, "filt_fine.cor")},
			{Key: "nomcrop", Value: "True"},
			{Key: "master", Value: b.layout.Reference()},
			{Key: "defomax", Value: "2"},
			{Key: "rlks", Value: strconv.Itoa(b.params.RangeLooks)},
			{Key: "alks", Value: strconv.Itoa(b.params.AzimuthLooks)},
			{Key: "method", Value: b.params.UnwrapMethod},
		}}), nil
	default:
		return nil, fmt.Errorf("no descriptor for operation %s", op)
	}
}

func (b *descriptorBuilder) unpack(unit Unit) (*descriptor.Descriptor, error) {
	d := unit.Dates[0]
	record, ok := b.catalog.Record(d)
	if !ok {
		return nil, fmt.Errorf("unpack %s: date not in catalog", d)
	}
	fields := []descriptor.Field{
		{Key: "inp", Value: record.SourceList()},
		{Key: "outdir", Value: b.layout.Unpacked(d, b.reference)},
		{Key: "swath_num", Value: b.params.Swaths},
		{Key: "orbit", Value: record.Orbit},
		{Key: "orbitdir", Value: b.params.OrbitDir},
		{Key: "auxdir", Value: b.params.AuxDir},
		{Key: "pol", Value: b.params.Polarization},
	}
	if b.params.BBox != nil {
		fields = append(fields, descriptor.Field{Key: "bbox", Value: b.params.BBox.String()})
	}
	desc := descriptor.New(&descriptor.Function{Operation: "unpack", Fields: fields})
	if d == b.reference {
		desc.Add(&descriptor.Function{Operation: "topo", Fields: []descriptor.Field{
			{Key: "master", Value: b.layout.Reference()},
			{Key: "dem", Value: b.params.DEM},
			{Key: "geom_masterDir", Value: b.layout.Geometry()},
		}})
	}
	return desc, nil
}

func (b *descriptorBuilder) resample(op Operation, d catalog.Date) *descriptor.Descriptor {
	overlap := strconv.FormatBool(op == OpOverlapResample)
	geo2rdr := &descriptor.Function{Operation: "geo2rdr", Fields: []descriptor.Field{
		{Key: "slave", Value: b.layout.Unpacked(d, b.reference)},
		{Key: "master", Value: b.layout.Reference()},
		{Key: "geom_masterDir", Value: b.layout.Geometry()},
		{Key: "coregSLCdir", Value: b.layout.Coregistered(d, b.reference)},
		{Key: "overlap", Value: overlap},
	}}
	resamp := &descriptor.Function{Operation: "resamp_withCarrier", Fields: []descriptor.Field{
		{Key: "slave", Value: b.layout.Unpacked(d, b.reference)},
		{Key: "master", Value: b.layout.Reference()},
		{Key: "coregdir", Value: b.layout.Coregistered(d, b.reference)},
		{Key: "overlap", Value: overlap},
	}}
	if op == OpResample && b.flags.Coregistration == CoregNESD {
		resamp.Set("azimuth_misreg", b.layout.Misreg("azimuth", "dates", string(d)+".txt"))
		resamp.Set("range_misreg", b.layout.Misreg("range", "dates", string(d)+".txt"))
	}
	return descriptor.New(geo2rdr, resamp)
}

func (b *descriptorBuilder) pairMisreg(unit Unit) (*descriptor.Descriptor, error) {
	if unit.Pair == nil {
		return nil, fmt.Errorf("%s unit %s has no pair", OpPairsMisreg, unit.ID)
	}
	p := *unit.Pair
	master := b.layout.Coregistered(p.Earlier, b.reference)
	slave := b.layout.Coregistered(p.Later, b.reference)
	return descriptor.New(
		&descriptor.Function{Operation: "estimateAzimuthMisreg", Fields: []descriptor.Field{
			{Key: "master", Value: master},
			{Key: "slave", Value: slave},
			{Key: "output", Value: b.layout.Misreg("azimuth", "pairs", p.String(), p.String()+".txt")},
			{Key: "esd_coherence_threshold", Value: formatFloat(b.params.ESDCoherenceThreshold)},
		}},
		&descriptor.Function{Operation: "estimateRangeMisreg", Fields: []descriptor.Field{
			{Key: "master", Value: master},
			{Key: "slave", Value: slave},
			{Key: "output", Value: b.layout.Misreg("range", "pairs", p.String(), p.String()+".txt")},
			{Key: "snr_threshold", Value: formatFloat(b.params.SNRThreshold)},
		}},
	), nil
}

func (b *descriptorBuilder) mergeSLC(d catalog.Date) *descriptor.Descriptor {
	return descriptor.New(&descriptor.Function{Operation: "mergeBurst", Fields: []descriptor.Field{
		{Key: "stack", Value: b.layout.Stack()},
		{Key: "dirname", Value: b.layout.Coregistered(d, b.reference)},
		{Key: "name_pattern", Value: "burst*slc"},
		{Key: "outfile", Value: filepath.Join(b.layout.MergedSLC(d), string(d)+".slc")},
		{Key: "method", Value: "top"},
		{Key: "aligned", Value: "True"},
		{Key: "valid_only", Value: "True"},
		{Key: "use_virtual_files", Value: "False"},
		{Key: "multilook", Value: "False"},
	}})
}

// burstIgram forms the burst interferograms of a pair and merges them. The
// squeesar rewrite later collapses it onto the merged SLCs.
func (b *descriptorBuilder) burstIgram(unit Unit) (*descriptor.Descriptor, error) {
	if unit.Pair == nil {
		return nil, fmt.Errorf("%s unit %s has no pair", OpBurstIgram, unit.ID)
	}
	p := *unit.Pair
	igram := b.layout.Interferogram(p)
	return descriptor.New(
		&descriptor.Function{Operation: "generateIgram", Fields: []descriptor.Field{
			{Key: "master", Value: b.layout.Coregistered(p.Earlier, b.reference)},
			{Key: "slave", Value: b.layout.Coregistered(p.Later, b.reference)},
			{Key: "interferogram", Value: igram},
			{Key: "flatten", Value: "False"},
			{Key: "interferogram_prefix", Value: "fine"},
			{Key: "overlap", Value: "False"},
		}},
		&descriptor.Function{Operation: "mergeBurst", Fields: []descriptor.Field{
			{Key: "stack", Value: b.layout.Stack()},
			{Key: "dirname", Value: igram},
			{Key: "name_pattern", Value: "fine*int"},
			{Key: "outfile", Value: filepath.Join(b.layout.MergedInterferogram(p), "fine.int")},
			{Key: "method", Value: "top"},
			{Key: "aligned", Value: "True"},
			{Key: "valid_only", Value: "True"},
			{Key: "use_virtual_files", Value: "True"},
			{Key: "multilook", Value: "True"},
			{Key: "range_looks", Value: strconv.Itoa(b.params.RangeLooks)},
			{Key: "azimuth_looks", Value: strconv.Itoa(b.params.AzimuthLooks)},
		}},
	), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
