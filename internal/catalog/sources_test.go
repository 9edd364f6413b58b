package catalog

import (
	"archive/zip"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const overlayKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
  <Document>
    <GroundOverlay>
      <gx:LatLonQuad>
        <coordinates>-99.1,19.2 -98.2,19.4 -98.5,20.9 -99.4,20.7</coordinates>
      </gx:LatLonQuad>
    </GroundOverlay>
  </Document>
</kml>
`

func TestParseSource(t *testing.T) {
	t.Parallel()

	info, err := ParseSource("/data/S1B_IW_SLC__1SDV_20180113T120502_20180113T120529_009082_0103E2_A1B2.SAFE/")
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	if info.Date != "20180113" || info.Mission != "S1B" {
		t.Fatalf("ParseSource() = %+v", info)
	}
	if !info.SensingStart.Equal(time.Date(2018, 1, 13, 12, 5, 2, 0, time.UTC)) {
		t.Fatalf("SensingStart = %v", info.SensingStart)
	}
}

func TestResolveSourcesFromDirectoryAndManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	names := []string{
		"S1A_IW_SLC__1SDV_20180113T120001_20180113T120028_019951_021F8A_3C5E.zip",
		"S1A_IW_SLC__1SDV_20180101T120001_20180101T120028_019776_021A01_1F2E.zip",
	}
	for _, name := range append(names, "README.txt") {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := ResolveSources(dir)
	if err != nil {
		t.Fatalf("ResolveSources(dir) error = %v", err)
	}
	want := []string{filepath.Join(dir, names[1]), filepath.Join(dir, names[0])}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveSources(dir) = %v, want %v", got, want)
	}

	manifest := filepath.Join(t.TempDir(), ManifestName)
	if err := WriteManifest(manifest, want); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
	got, err = ResolveSources(manifest)
	if err != nil {
		t.Fatalf("ResolveSources(manifest) error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ResolveSources(manifest) = %v, want %v", got, want)
	}
}

func TestKMLFootprintFromDirectoryAndZip(t *testing.T) {
	t.Parallel()

	want := BoundingBox{South: 19.2, North: 20.9, West: -99.4, East: -98.2}

	safeDir := filepath.Join(t.TempDir(), "S1A_IW_SLC__1SDV_20180101T120001_20180101T120028_019776_021A01_1F2E.SAFE")
	if err := os.MkdirAll(filepath.Join(safeDir, "preview"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(safeDir, "preview", "map-overlay.kml"), []byte(overlayKML), 0o644); err != nil {
		t.Fatalf("write kml: %v", err)
	}
	got, err := KMLFootprintResolver{}.Footprint(safeDir)
	if err != nil {
		t.Fatalf("Footprint(dir) error = %v", err)
	}
	if got != want {
		t.Fatalf("Footprint(dir) = %+v, want %+v", got, want)
	}

	zipPath := safeDir + ".zip"
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create(filepath.Base(safeDir) + "/preview/map-overlay.kml")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	if _, err := w.Write([]byte(overlayKML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	got, err = KMLFootprintResolver{}.Footprint(zipPath)
	if err != nil {
		t.Fatalf("Footprint(zip) error = %v", err)
	}
	if got != want {
		t.Fatalf("Footprint(zip) = %+v, want %+v", got, want)
	}
}

func TestOrbitDirectoryPrefersPreciseOrbits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{
		"S1A_OPER_AUX_RESORB_OPOD_20180101T150000_V20180101T110000_20180101T143000.EOF",
		"S1A_OPER_AUX_POEORB_OPOD_20180121T120631_V20171231T225942_20180102T005942.EOF",
		"S1B_OPER_AUX_POEORB_OPOD_20180121T120631_V20171231T225942_20180102T005942.EOF",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	info, err := ParseSource("S1A_IW_SLC__1SDV_20180101T120001_20180101T120028_019776_021A01_1F2E.zip")
	if err != nil {
		t.Fatalf("ParseSource() error = %v", err)
	}
	got, err := OrbitDirectory{Dir: dir}.Orbit(info)
	if err != nil {
		t.Fatalf("Orbit() error = %v", err)
	}
	if want := filepath.Join(dir, files[1]); got != want {
		t.Fatalf("Orbit() = %q, want %q", got, want)
	}

	info.SensingStart = info.SensingStart.AddDate(0, 1, 0)
	got, err = OrbitDirectory{Dir: dir}.Orbit(info)
	if err != nil || got != "" {
		t.Fatalf("Orbit(uncovered) = %q, %v; want empty", got, err)
	}
}

func TestParseBoundingBoxAndDates(t *testing.T) {
	t.Parallel()

	box, err := ParseBoundingBox("19 20 -99.5 -98.5")
	if err != nil {
		t.Fatalf("ParseBoundingBox() error = %v", err)
	}
	if box != (BoundingBox{South: 19, North: 20, West: -99.5, East: -98.5}) {
		t.Fatalf("ParseBoundingBox() = %+v", box)
	}
	if _, err := ParseBoundingBox("19 20 -99.5"); err == nil {
		t.Fatal("ParseBoundingBox(3 values) error = nil, want non-nil")
	}

	dates, err := ParseDateList("20180113, 20180101,,")
	if err != nil {
		t.Fatalf("ParseDateList() error = %v", err)
	}
	if !reflect.DeepEqual(dates, []Date{"20180113", "20180101"}) {
		t.Fatalf("ParseDateList() = %v", dates)
	}
	if _, err := ParseDateList("2018-01-01"); err == nil {
		t.Fatal("ParseDateList(dashed) error = nil, want non-nil")
	}
}
