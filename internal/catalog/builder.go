package catalog

import (
	"fmt"
	"log/slog"

	"github.com/cochaviz/stackplan/internal/logging"
)

// Builder turns raw inputs into a StackCatalog.
type Builder struct {
	Logger     *slog.Logger
	Footprints FootprintResolver
	Orbits     OrbitResolver

	// Exclude lists dates dropped before any record is created.
	Exclude []Date
	// BBox, when set, keeps only dates whose footprint covers it.
	BBox *BoundingBox
	// Reference overrides the default (earliest) reference date.
	Reference Date
}

// Build resolves every source to a date, merges same-day sources, resolves
// footprints and orbits, applies the bounding box filter and picks the
// reference date.
func (b *Builder) Build(sources []string) (*StackCatalog, error) {
	logger := logging.Ensure(b.Logger).With("component", "catalog")

	excluded := make(map[Date]struct{}, len(b.Exclude))
	for _, d := range b.Exclude {
		excluded[d] = struct{}{}
	}

	byDate := make(map[Date]*AcquisitionRecord)
	var order []*AcquisitionRecord
	for _, source := range sources {
		info, err := ParseSource(source)
		if err != nil {
			return nil, err
		}
		if _, skip := excluded[info.Date]; skip {
			logger.Debug("source excluded", "source", source, "date", info.Date)
			continue
		}
		if record, ok := byDate[info.Date]; ok {
			record.Sources = append(record.Sources, source)
			if info.SensingStart.Before(record.SensingStart) {
				record.SensingStart = info.SensingStart
			}
			continue
		}
		record := &AcquisitionRecord{
			Date:         info.Date,
			Sources:      []string{source},
			Mission:      info.Mission,
			SensingStart: info.SensingStart,
		}
		byDate[info.Date] = record
		order = append(order, record)
	}
	if err := checkCardinality(len(order)); err != nil {
		return nil, err
	}
	logger.Info("acquisitions found", "sources", len(sources), "dates", len(order))

	for _, record := range order {
		if err := b.enrich(logger, record); err != nil {
			return nil, err
		}
	}

	cat := NewStackCatalog("", order...)
	footprints := make([]BoundingBox, 0, cat.Len())
	for _, d := range cat.dates {
		record := cat.records[d]
		footprints = append(footprints, record.Footprint)
		logger.Debug("footprint", "date", d, "south", record.Footprint.South, "north", record.Footprint.North)
	}
	cat.Overlap = overlapBoxes(footprints)
	cat.OverlapInverted = cat.Overlap.Inverted()
	logger.Info("overlap region among all dates", "snwe", cat.Overlap.String())
	if cat.OverlapInverted {
		logger.Warn("there might not be overlap between some dates", "south", cat.Overlap.South, "north", cat.Overlap.North)
	}

	if b.BBox != nil {
		var covering []Date
		for _, d := range cat.dates {
			if cat.records[d].Footprint.Covers(*b.BBox) {
				covering = append(covering, d)
			}
		}
		if len(covering) < cat.Len() {
			logger.Info("dates covering the bounding box", logging.Strings("dates", covering), "dropped", cat.Len()-len(covering))
			cat = cat.Restrict(covering)
		}
		if err := checkCardinality(cat.Len()); err != nil {
			return nil, fmt.Errorf("after bounding box filter %s: %w", b.BBox, err)
		}
	}

	cat.Reference = cat.dates[0]
	if b.Reference != "" {
		if !cat.Has(b.Reference) {
			return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, b.Reference)
		}
		cat.Reference = b.Reference
	} else {
		logger.Info("reference date not chosen; using the first date")
	}
	logger.Info("all acquisitions will be coregistered to the reference", "reference", cat.Reference,
		logging.Strings("secondary_dates", cat.NonReferenceDates()))

	return cat, nil
}

func (b *Builder) enrich(logger *slog.Logger, record *AcquisitionRecord) error {
	if b.Footprints != nil {
		boxes := make([]BoundingBox, 0, len(record.Sources))
		for _, source := range record.Sources {
			box, err := b.Footprints.Footprint(source)
			if err != nil {
				return fmt.Errorf("footprint for %s: %w", record.Date, err)
			}
			boxes = append(boxes, box)
		}
		record.Footprint = unionBoxes(boxes)
	}

	if b.Orbits != nil {
		orbit, err := b.Orbits.Orbit(SourceInfo{
			Path:         record.Sources[0],
			Mission:      record.Mission,
			SensingStart: record.SensingStart,
			Date:         record.Date,
		})
		if err != nil {
			return fmt.Errorf("orbit for %s: %w", record.Date, err)
		}
		if orbit == "" {
			logger.Warn("no orbit file covers acquisition", "date", record.Date, "mission", record.Mission)
		}
		record.Orbit = orbit
	}
	return nil
}

func checkCardinality(dates int) error {
	switch dates {
	case 0:
		return ErrEmptyInput
	case 1:
		return fmt.Errorf("%w: only one date found", ErrInsufficientInput)
	default:
		return nil
	}
}
