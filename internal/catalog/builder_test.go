package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cochaviz/stackplan/internal/logging"
)

type staticFootprints map[Date]BoundingBox

func (s staticFootprints) Footprint(source string) (BoundingBox, error) {
	info, err := ParseSource(source)
	if err != nil {
		return BoundingBox{}, err
	}
	box, ok := s[info.Date]
	if !ok {
		return BoundingBox{South: 19, North: 21, West: -100, East: -98}, nil
	}
	return box, nil
}

func safeName(date string, minute int) string {
	return fmt.Sprintf("/data/SLC/S1A_IW_SLC__1SDV_%sT12%02d01_%sT12%02d28_019951_021F8A_3C5E.zip", date, minute, date, minute)
}

func newBuilder() *Builder {
	return &Builder{Logger: logging.Discard(), Footprints: staticFootprints{}}
}

func TestBuildMergesSameDateSources(t *testing.T) {
	t.Parallel()

	first := safeName("20180101", 0)
	second := safeName("20180101", 1)
	cat, err := newBuilder().Build([]string{first, safeName("20180113", 0), second})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if cat.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cat.Len())
	}
	record, ok := cat.Record("20180101")
	if !ok {
		t.Fatal("Record(20180101) missing")
	}
	if diff := cmp.Diff([]string{first, second}, record.Sources); diff != "" {
		t.Fatalf("Sources mismatch (-want +got):\n%s", diff)
	}
	if record.SourceList() != first+" "+second {
		t.Fatalf("SourceList() = %q", record.SourceList())
	}
}

func TestBuildDropsExcludedDates(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Exclude = []Date{"20180113"}
	cat, err := b.Build([]string{
		safeName("20180101", 0),
		safeName("20180113", 0),
		safeName("20180113", 1),
		safeName("20180125", 0),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cat.Has("20180113") {
		t.Fatal("excluded date 20180113 present in catalog")
	}
	if diff := cmp.Diff([]Date{"20180101", "20180125"}, cat.Dates()); diff != "" {
		t.Fatalf("Dates() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCardinality(t *testing.T) {
	t.Parallel()

	if _, err := newBuilder().Build(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Build(nil) error = %v, want ErrEmptyInput", err)
	}

	_, err := newBuilder().Build([]string{safeName("20180101", 0), safeName("20180101", 1)})
	if !errors.Is(err, ErrInsufficientInput) {
		t.Fatalf("Build(one date) error = %v, want ErrInsufficientInput", err)
	}

	b := newBuilder()
	b.Exclude = []Date{"20180101", "20180113"}
	if _, err := b.Build([]string{safeName("20180101", 0), safeName("20180113", 0)}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Build(all excluded) error = %v, want ErrEmptyInput", err)
	}
}

func TestBuildReferenceDefaultsToEarliestCoveringDate(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Footprints = staticFootprints{
		"20180101": {South: 19.8, North: 21, West: -100, East: -98},
	}
	b.BBox = &BoundingBox{South: 19.5, North: 20, West: -99.5, East: -98.5}

	cat, err := b.Build([]string{safeName("20180125", 0), safeName("20180101", 0), safeName("20180113", 0)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cat.Reference != "20180113" {
		t.Fatalf("Reference = %s, want 20180113", cat.Reference)
	}
	if diff := cmp.Diff([]Date{"20180125"}, cat.NonReferenceDates()); diff != "" {
		t.Fatalf("NonReferenceDates() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildOperatorReference(t *testing.T) {
	t.Parallel()

	sources := []string{safeName("20180101", 0), safeName("20180113", 0)}

	b := newBuilder()
	b.Reference = "20180113"
	cat, err := b.Build(sources)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cat.Reference != "20180113" {
		t.Fatalf("Reference = %s, want 20180113", cat.Reference)
	}

	b.Reference = "20170101"
	if _, err := b.Build(sources); !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("Build() error = %v, want ErrReferenceNotFound", err)
	}
}

func TestBuildOverlapInversionIsNotFatal(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Footprints = staticFootprints{
		"20180101": {South: 10, North: 12, West: 0, East: 2},
		"20180113": {South: 13, North: 15, West: 1, East: 3},
	}
	cat, err := b.Build([]string{safeName("20180101", 0), safeName("20180113", 0)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := BoundingBox{South: 13, North: 12, West: 1, East: 2}
	if cat.Overlap != want {
		t.Fatalf("Overlap = %+v, want %+v", cat.Overlap, want)
	}
	if !cat.OverlapInverted {
		t.Fatal("OverlapInverted = false, want true")
	}
}

func TestBuildRejectsUnparseableSource(t *testing.T) {
	t.Parallel()

	_, err := newBuilder().Build([]string{safeName("20180101", 0), "/data/SLC/notes.txt"})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("Build() error = %v, want ErrInvalidSource", err)
	}
}
