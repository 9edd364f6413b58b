package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/descriptor"
	"github.com/cochaviz/stackplan/internal/logging"
)

func sampleWriter(t *testing.T, in Input) *Writer {
	t.Helper()
	records := make([]*catalog.AcquisitionRecord, 0, len(in.ActiveDates))
	for _, d := range in.ActiveDates {
		records = append(records, &catalog.AcquisitionRecord{
			Date:    d,
			Sources: []string{"/data/" + string(d) + "_a.zip", "/data/" + string(d) + "_b.zip"},
			Orbit:   "/orbits/" + string(d) + ".EOF",
		})
	}
	return &Writer{
		Logger:  logging.Discard(),
		Layout:  Layout{WorkDir: t.TempDir()},
		Catalog: catalog.NewStackCatalog(in.Reference, records...),
		TextCmd: DefaultTextCmd,
		Project: "hawaii",
		Params: Parameters{
			DEM:          "/dem/dem.wgs84",
			OrbitDir:     "/orbits",
			AuxDir:       "/aux",
			Swaths:       "1 2 3",
			Polarization: "vv",
			AzimuthLooks: 3,
			RangeLooks:   9,
			UnwrapMethod: "snaphu",
		},
	}
}

func TestWriterWritesRunFilesAndConfigs(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSBAS})
	w := sampleWriter(t, in)
	stages := Generate(WorkflowSLC, in)

	out, err := w.Write(stages, in)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var names []string
	for _, p := range out.RunFiles {
		names = append(names, filepath.Base(p))
	}
	want := []string{
		"run_01_unpack_slc",
		"run_02_average_baseline",
		"run_03_geo2rdr_resample",
		"run_04_extract_stack_valid_region",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("run files mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(out.RunFiles[0])
	if err != nil {
		t.Fatalf("read run file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 unpack commands, got %d", len(lines))
	}
	wantFirst := "source ~/.bash_profile; SentinelWrapper.py -c " + filepath.Join(w.Layout.Configs(), "config_unpack_master_20180101")
	if lines[0] != wantFirst {
		t.Fatalf("unexpected first command:\n got %q\nwant %q", lines[0], wantFirst)
	}
}

func TestWriterReferenceUnpackRunsTopo(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSBAS})
	w := sampleWriter(t, in)
	if _, err := w.Write(Generate(WorkflowSLC, in), in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	f, err := os.Open(filepath.Join(w.Layout.Configs(), "config_unpack_master_20180101"))
	if err != nil {
		t.Fatalf("open descriptor: %v", err)
	}
	defer f.Close()
	desc, err := descriptor.Parse(f)
	if err != nil {
		t.Fatalf("parse descriptor: %v", err)
	}

	unpack, ok := desc.Function("[Function-1]")
	if !ok || unpack.Operation != "unpack" {
		t.Fatalf("unexpected first function %+v", unpack)
	}
	if got, _ := unpack.Get("inp"); got != "/data/20180101_a.zip /data/20180101_b.zip" {
		t.Fatalf("unexpected inp %q", got)
	}
	if got, _ := unpack.Get("outdir"); got != w.Layout.Reference() {
		t.Fatalf("unexpected outdir %q", got)
	}
	topo, ok := desc.Function("[Function-2]")
	if !ok || topo.Operation != "topo" {
		t.Fatalf("reference unpack should run topo, got %+v", topo)
	}
}

func TestWriterNamesPairDescriptors(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSqueeSAR, Merge: true})
	w := sampleWriter(t, in)
	if _, err := w.Write(Generate(WorkflowSLC, in), in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(w.Layout.Configs(), "config_igram_*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != len(in.Pairs) {
		t.Fatalf("expected %d igram descriptors, got %d", len(in.Pairs), len(matches))
	}

	data, err := os.ReadFile(filepath.Join(w.Layout.Configs(), "config_igram_20180101_20180113"))
	if err != nil {
		t.Fatalf("read igram descriptor: %v", err)
	}
	text := string(data)
	for _, fragment := range []string{
		"generateIgram :",
		"master : " + w.Layout.Reference(),
		"slave : " + filepath.Join(w.Layout.WorkDir, CoregDir, "20180113"),
		"interferogram : " + filepath.Join(w.Layout.WorkDir, IgramDir, "20180101_20180113"),
		"range_looks : 9",
		"azimuth_looks : 3",
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("igram descriptor missing %q:\n%s", fragment, text)
		}
	}
}

func TestWriterNESDResampleUsesMisreg(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregNESD, Method: MethodSBAS})
	w := sampleWriter(t, in)
	if _, err := w.Write(Generate(WorkflowSLC, in), in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(w.Layout.Configs(), "config_resamp_20180113"))
	if err != nil {
		t.Fatalf("read resample descriptor: %v", err)
	}
	if !strings.Contains(string(data), "azimuth_misreg : "+w.Layout.Misreg("azimuth", "dates", "20180113.txt")) {
		t.Fatalf("resample descriptor lacks misreg input:\n%s", data)
	}
}

func TestWriterRefusesExistingRunFiles(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSBAS})
	w := sampleWriter(t, in)
	if err := os.MkdirAll(w.Layout.RunFiles(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := w.Write(Generate(WorkflowSLC, in), in)
	if !errors.Is(err, ErrRunFilesExist) {
		t.Fatalf("expected ErrRunFilesExist, got %v", err)
	}
}

func TestWriterWithoutTextCmd(t *testing.T) {
	w := &Writer{}
	if got := w.command("/work/configs/c"); got != "SentinelWrapper.py -c /work/configs/c" {
		t.Fatalf("unexpected command %q", got)
	}
}

func TestWriterTemplateStages(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregNESD, Method: MethodSqueeSAR, Merge: true})
	w := sampleWriter(t, in)
	if _, err := w.Write(Generate(WorkflowSLC, in), in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	for name, want := range map[string]string{
		"run_10_crop_sentinel":     "crop_sentinel.py $TE/hawaii.template\n",
		"run_11_sentinel_squeesar": "sentinel_squeesar.py $TE/hawaii.template\n",
	} {
		data, err := os.ReadFile(filepath.Join(w.Layout.RunFiles(), name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Fatalf("%s = %q, want %q", name, data, want)
		}
	}

	matches, err := filepath.Glob(filepath.Join(w.Layout.Configs(), "config_extract_overlaps_*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the NESD overlap descriptor, got %v", matches)
	}
}

func TestWriterRemovesPartialOutputOnFailure(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSqueeSAR, Merge: true})
	w := sampleWriter(t, in)
	w.Project = ""
	stages := Generate(WorkflowSLC, in)

	if _, err := w.Write(stages, in); err == nil || !strings.Contains(err.Error(), "project name") {
		t.Fatalf("expected a missing project error, got %v", err)
	}
	for _, dir := range []string{w.Layout.RunFiles(), w.Layout.Configs()} {
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s left behind after a failed write: %v", dir, err)
		}
	}

	w.Project = "hawaii"
	if _, err := w.Write(stages, in); err != nil {
		t.Fatalf("Write after a failed write returned error: %v", err)
	}
}

func TestOutputRemoveKeepsForeignConfigs(t *testing.T) {
	in := sampleInput(Flags{Coregistration: CoregGeometry, Method: MethodSBAS})
	w := sampleWriter(t, in)
	if err := os.MkdirAll(w.Layout.Configs(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := filepath.Join(w.Layout.Configs(), "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := w.Write(Generate(WorkflowSLC, in), in)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := out.Remove(); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	entries, err := os.ReadDir(w.Layout.Configs())
	if err != nil {
		t.Fatalf("read configs: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "notes.txt" {
		t.Fatalf("unexpected configs left: %v", entries)
	}
	if _, err := os.Stat(w.Layout.RunFiles()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("run_files not removed: %v", err)
	}
}
