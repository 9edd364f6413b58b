package catalog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "20060102"

// Date is an acquisition day in YYYYMMDD form. Lexical order is calendar order.
type Date string

// ParseDate validates and normalizes a YYYYMMDD string.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid acquisition date %q: want YYYYMMDD", value)
	}
	return Date(t.Format(dateLayout)), nil
}

// ParseDateList parses a comma-separated list of dates; empty items are skipped.
func ParseDateList(value string) ([]Date, error) {
	var dates []Date
	for _, item := range strings.Split(value, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		date, err := ParseDate(item)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, nil
}

func (d Date) String() string { return string(d) }

// SortDates sorts in place and drops duplicates.
func SortDates(dates []Date) []Date {
	slices.Sort(dates)
	return slices.Compact(dates)
}

// BoundingBox is a lat/lon box in South North West East order.
type BoundingBox struct {
	South float64 `yaml:"south"`
	North float64 `yaml:"north"`
	West  float64 `yaml:"west"`
	East  float64 `yaml:"east"`
}

// ParseBoundingBox reads four whitespace separated floats: "S N W E".
func ParseBoundingBox(value string) (BoundingBox, error) {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box %q: want 4 values (S N W E), got %d", value, len(fields))
	}
	var snwe [4]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bounding box %q: %w", value, err)
		}
		snwe[i] = v
	}
	return BoundingBox{South: snwe[0], North: snwe[1], West: snwe[2], East: snwe[3]}, nil
}

// Covers reports whether b spans the latitude range of filter.
// Only the south and north edges are compared.
func (b BoundingBox) Covers(filter BoundingBox) bool {
	return b.South <= filter.South && b.North >= filter.North
}

// Inverted reports whether the box is empty along latitude.
func (b BoundingBox) Inverted() bool {
	return b.South > b.North
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%g %g %g %g", b.South, b.North, b.West, b.East)
}

// AcquisitionRecord groups every raw source sensed on the same day.
type AcquisitionRecord struct {
	Date         Date
	Sources      []string
	Mission      string
	SensingStart time.Time
	Orbit        string
	Footprint    BoundingBox
}

// SourceList returns the sources joined by single spaces, as consumed by the
// unpack descriptors.
func (r *AcquisitionRecord) SourceList() string {
	return strings.Join(r.Sources, " ")
}

// StackCatalog is the ordered set of acquisitions for one planning run.
type StackCatalog struct {
	records map[Date]*AcquisitionRecord
	dates   []Date

	Reference       Date
	Overlap         BoundingBox
	OverlapInverted bool
}

// NewStackCatalog assembles a catalog from records. Later records for an
// existing date are merged into it.
func NewStackCatalog(reference Date, records ...*AcquisitionRecord) *StackCatalog {
	c := &StackCatalog{records: make(map[Date]*AcquisitionRecord, len(records))}
	for _, record := range records {
		if existing, ok := c.records[record.Date]; ok {
			existing.Sources = append(existing.Sources, record.Sources...)
			continue
		}
		c.records[record.Date] = record
		c.dates = append(c.dates, record.Date)
	}
	c.dates = SortDates(c.dates)
	c.Reference = reference
	if c.Reference == "" && len(c.dates) > 0 {
		c.Reference = c.dates[0]
	}
	return c
}

// Dates returns every catalog date in ascending order.
func (c *StackCatalog) Dates() []Date {
	return slices.Clone(c.dates)
}

// NonReferenceDates returns every date except the reference, ascending.
func (c *StackCatalog) NonReferenceDates() []Date {
	out := make([]Date, 0, len(c.dates))
	for _, d := range c.dates {
		if d != c.Reference {
			out = append(out, d)
		}
	}
	return out
}

// Record returns the record for date.
func (c *StackCatalog) Record(date Date) (*AcquisitionRecord, bool) {
	r, ok := c.records[date]
	return r, ok
}

// Has reports whether date is in the catalog.
func (c *StackCatalog) Has(date Date) bool {
	_, ok := c.records[date]
	return ok
}

// Len returns the number of distinct dates.
func (c *StackCatalog) Len() int { return len(c.dates) }

// Restrict returns a catalog holding only the given dates. The reference and
// overlap are carried over unchanged.
func (c *StackCatalog) Restrict(dates []Date) *StackCatalog {
	out := &StackCatalog{
		records:         make(map[Date]*AcquisitionRecord, len(dates)),
		Reference:       c.Reference,
		Overlap:         c.Overlap,
		OverlapInverted: c.OverlapInverted,
	}
	for _, d := range dates {
		if r, ok := c.records[d]; ok {
			out.records[d] = r
			out.dates = append(out.dates, d)
		}
	}
	out.dates = SortDates(out.dates)
	return out
}
