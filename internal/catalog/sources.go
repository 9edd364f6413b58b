package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourcePattern matches Sentinel-1 IW SLC products inside a source directory.
const SourcePattern = "S1*_IW_SLC*"

// ManifestName is the file the resolved raw inputs are written to.
const ManifestName = "SAFE_files.txt"

const sensingLayout = "20060102T150405"

// SourceInfo is what the product name tells us about a raw input.
type SourceInfo struct {
	Path         string
	Mission      string
	SensingStart time.Time
	Date         Date
}

// ParseSource extracts mission and sensing start from a SAFE product name,
// e.g. S1A_IW_SLC__1SDV_20180101T120001_20180101T120028_019951_021F8A_3C5E.zip.
func ParseSource(path string) (SourceInfo, error) {
	base := filepath.Base(strings.TrimRight(path, "/"))
	fields := strings.Split(base, "_")
	if len(fields) < 6 {
		return SourceInfo{}, fmt.Errorf("%w: %s", ErrInvalidSource, base)
	}
	start, err := time.Parse(sensingLayout, fields[5])
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %s: sensing start %q", ErrInvalidSource, base, fields[5])
	}
	return SourceInfo{
		Path:         path,
		Mission:      fields[0],
		SensingStart: start,
		Date:         Date(start.Format(dateLayout)),
	}, nil
}

// ResolveSources lists raw inputs from location. A directory is globbed for
// SourcePattern; a regular file is read as a manifest with one path per line.
func ResolveSources(location string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("stat source location: %w", err)
	}
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(location, SourcePattern))
		if err != nil {
			return nil, fmt.Errorf("glob sources: %w", err)
		}
		sort.Strings(matches)
		return matches, nil
	}
	return readManifest(location)
}

func readManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source manifest: %w", err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source manifest: %w", err)
	}
	return sources, nil
}

// WriteManifest records the resolved raw inputs, one per line.
func WriteManifest(path string, sources []string) error {
	var b strings.Builder
	for _, source := range sources {
		b.WriteString(source)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write source manifest: %w", err)
	}
	return nil
}
