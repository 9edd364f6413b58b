package catalog

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// FootprintResolver computes the ground footprint of one raw source.
type FootprintResolver interface {
	Footprint(source string) (BoundingBox, error)
}

// OrbitResolver finds the orbit file used for one raw source.
// An empty result with a nil error means no orbit is available.
type OrbitResolver interface {
	Orbit(info SourceInfo) (string, error)
}

const previewKML = "preview/map-overlay.kml"

// KMLFootprintResolver reads the quick-look overlay shipped inside every SAFE
// product, either unpacked or zipped.
type KMLFootprintResolver struct{}

func (KMLFootprintResolver) Footprint(source string) (BoundingBox, error) {
	data, err := readPreview(source)
	if err != nil {
		return BoundingBox{}, err
	}
	return parseOverlayKML(data)
}

func readPreview(source string) ([]byte, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return os.ReadFile(filepath.Join(source, filepath.FromSlash(previewKML)))
	}

	archive, err := zip.OpenReader(source)
	if err != nil {
		return nil, fmt.Errorf("open source archive: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if !strings.HasSuffix(entry.Name, previewKML) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", entry.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: %s not found", filepath.Base(source), previewKML)
}

// parseOverlayKML reads the first <coordinates> element ("lon,lat lon,lat ...").
func parseOverlayKML(data []byte) (BoundingBox, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return BoundingBox{}, errors.New("overlay kml: no coordinates element")
		}
		if err != nil {
			return BoundingBox{}, fmt.Errorf("overlay kml: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "coordinates" {
			continue
		}
		var text string
		if err := decoder.DecodeElement(&text, &start); err != nil {
			return BoundingBox{}, fmt.Errorf("overlay kml: %w", err)
		}
		return boxFromCoordinates(text)
	}
}

func boxFromCoordinates(text string) (BoundingBox, error) {
	var lats, lons []float64
	for _, point := range strings.Fields(text) {
		parts := strings.Split(point, ",")
		if len(parts) < 2 {
			return BoundingBox{}, fmt.Errorf("overlay kml: malformed point %q", point)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("overlay kml: %w", err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("overlay kml: %w", err)
		}
		lons = append(lons, lon)
		lats = append(lats, lat)
	}
	if len(lats) == 0 {
		return BoundingBox{}, errors.New("overlay kml: empty coordinates")
	}
	return BoundingBox{
		South: floats.Min(lats),
		North: floats.Max(lats),
		West:  floats.Min(lons),
		East:  floats.Max(lons),
	}, nil
}

// unionBoxes returns the smallest box containing all boxes.
func unionBoxes(boxes []BoundingBox) BoundingBox {
	s, n, w, e := edges(boxes)
	return BoundingBox{South: floats.Min(s), North: floats.Max(n), West: floats.Min(w), East: floats.Max(e)}
}

// overlapBoxes returns the intersection of all boxes. It may be inverted.
func overlapBoxes(boxes []BoundingBox) BoundingBox {
	s, n, w, e := edges(boxes)
	return BoundingBox{South: floats.Max(s), North: floats.Min(n), West: floats.Max(w), East: floats.Min(e)}
}

func edges(boxes []BoundingBox) (s, n, w, e []float64) {
	s = make([]float64, len(boxes))
	n = make([]float64, len(boxes))
	w = make([]float64, len(boxes))
	e = make([]float64, len(boxes))
	for i, b := range boxes {
		s[i], n[i], w[i], e[i] = b.South, b.North, b.West, b.East
	}
	return s, n, w, e
}
