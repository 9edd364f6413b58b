// Package config holds the options of a planning run and loads them from
// YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/pairs"
	"github.com/cochaviz/stackplan/internal/pipeline"
)

// Options are the operator inputs of a planning run. Field names follow the
// YAML keys accepted by Load.
type Options struct {
	SLCDirectory     string      `yaml:"slc_directory"`
	OrbitDirectory   string      `yaml:"orbit_directory"`
	AuxDirectory     string      `yaml:"aux_directory"`
	WorkingDirectory string      `yaml:"working_directory"`
	DEM              string      `yaml:"dem"`
	// Project names $TE/<project>.template for squeesar stacks. Empty derives
	// it from SLCDirectory.
	Project       string      `yaml:"project,omitempty"`
	ReferenceDate string      `yaml:"reference_date,omitempty"`
	ExcludeDates  string      `yaml:"exclude_dates,omitempty"`
	BBox          string      `yaml:"bbox,omitempty"`
	Connections   pairs.Width `yaml:"num_connections"`
	// OverlapConnections also sizes the reprocessing window of an update.
	OverlapConnections int    `yaml:"num_overlap_connections"`
	Swaths             string `yaml:"swath_num"`
	TextCmd            string `yaml:"text_cmd"`

	AzimuthLooks          int     `yaml:"azimuth_looks"`
	RangeLooks            int     `yaml:"range_looks"`
	FilterStrength        float64 `yaml:"filter_strength"`
	ESDCoherenceThreshold float64 `yaml:"esd_coherence_threshold"`
	SNRThreshold          float64 `yaml:"snr_misreg_threshold"`
	UnwrapMethod          string  `yaml:"unw_method"`
	Polarization          string  `yaml:"polarization"`

	Coregistration   string `yaml:"coregistration"`
	Workflow         string `yaml:"workflow"`
	ProcessingMethod string `yaml:"processing_method"`
}

// Default returns the options used when neither a file nor a flag sets them.
func Default() Options {
	return Options{
		WorkingDirectory:      "./",
		Connections:           1,
		OverlapConnections:    3,
		Swaths:                "1 2 3",
		TextCmd:               pipeline.DefaultTextCmd,
		AzimuthLooks:          3,
		RangeLooks:            9,
		FilterStrength:        0.5,
		ESDCoherenceThreshold: 0.85,
		SNRThreshold:          10,
		UnwrapMethod:          "snaphu",
		Polarization:          "vv",
		Coregistration:        string(pipeline.CoregNESD),
		Workflow:              string(pipeline.WorkflowInterferogram),
		ProcessingMethod:      string(pipeline.MethodSBAS),
	}
}

// Load reads options from a YAML file on top of Default. Unknown keys are
// rejected. The result is not validated.
func Load(path string) (Options, error) {
	opts := Default()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return opts, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks required inputs and enumerations.
func (o Options) Validate() error {
	var problems []string
	if strings.TrimSpace(o.SLCDirectory) == "" {
		problems = append(problems, "slc_directory is required")
	}
	if strings.TrimSpace(o.OrbitDirectory) == "" {
		problems = append(problems, "orbit_directory is required")
	}
	if strings.TrimSpace(o.AuxDirectory) == "" {
		problems = append(problems, "aux_directory is required")
	}
	if strings.TrimSpace(o.WorkingDirectory) == "" {
		problems = append(problems, "working_directory is required")
	}
	if strings.TrimSpace(o.DEM) == "" {
		problems = append(problems, "dem is required")
	}
	if o.Connections == 0 || o.Connections < pairs.All {
		problems = append(problems, fmt.Sprintf("num_connections %d: want a positive integer or \"all\"", o.Connections))
	}
	if o.OverlapConnections < 0 {
		problems = append(problems, fmt.Sprintf("num_overlap_connections %d must not be negative", o.OverlapConnections))
	}
	if o.AzimuthLooks < 1 || o.RangeLooks < 1 {
		problems = append(problems, "azimuth_looks and range_looks must be positive")
	}
	if _, err := pipeline.ParseCoregistration(o.Coregistration); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := pipeline.ParseMethod(o.ProcessingMethod); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := o.ExcludedDates(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := o.Reference(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := o.BoundingBox(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid options: %s", strings.Join(problems, "; "))
	}

	if _, err := pipeline.ParseWorkflow(o.Workflow); err != nil {
		return err
	}
	return nil
}

// Absolute returns a copy with every path made absolute against the current
// directory. Descriptors and their rewrite rely on absolute paths.
func (o Options) Absolute() (Options, error) {
	for _, p := range []*string{&o.SLCDirectory, &o.OrbitDirectory, &o.AuxDirectory, &o.WorkingDirectory, &o.DEM} {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return o, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return o, nil
}

// ProjectName returns Project, or the directory above the SLC directory: the
// project of /data/hawaiiSenDT87/SLC is hawaiiSenDT87.
func (o Options) ProjectName() string {
	if name := strings.TrimSpace(o.Project); name != "" {
		return name
	}
	dir := filepath.ToSlash(strings.TrimSpace(o.SLCDirectory))
	if dir == "" {
		return ""
	}
	if i := strings.Index(dir, "/SLC"); i >= 0 {
		dir = dir[:i]
	}
	name := path.Base(dir)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// ExcludedDates parses ExcludeDates.
func (o Options) ExcludedDates() ([]catalog.Date, error) {
	return catalog.ParseDateList(o.ExcludeDates)
}

// Reference parses ReferenceDate; empty means the earliest date.
func (o Options) Reference() (catalog.Date, error) {
	if strings.TrimSpace(o.ReferenceDate) == "" {
		return "", nil
	}
	return catalog.ParseDate(o.ReferenceDate)
}

// BoundingBox parses BBox; nil means no filter.
func (o Options) BoundingBox() (*catalog.BoundingBox, error) {
	if strings.TrimSpace(o.BBox) == "" {
		return nil, nil
	}
	box, err := catalog.ParseBoundingBox(o.BBox)
	if err != nil {
		return nil, err
	}
	return &box, nil
}

// Flags returns the stage selection switches; Validate must have passed.
func (o Options) Flags() pipeline.Flags {
	coreg, _ := pipeline.ParseCoregistration(o.Coregistration)
	method, _ := pipeline.ParseMethod(o.ProcessingMethod)
	return pipeline.Flags{Coregistration: coreg, Method: method}
}

// Parameters returns the processor parameters written into descriptors.
func (o Options) Parameters() pipeline.Parameters {
	box, _ := o.BoundingBox()
	return pipeline.Parameters{
		DEM:                   o.DEM,
		OrbitDir:              o.OrbitDirectory,
		AuxDir:                o.AuxDirectory,
		Swaths:                o.Swaths,
		Polarization:          o.Polarization,
		AzimuthLooks:          o.AzimuthLooks,
		RangeLooks:            o.RangeLooks,
		FilterStrength:        o.FilterStrength,
		ESDCoherenceThreshold: o.ESDCoherenceThreshold,
		SNRThreshold:          o.SNRThreshold,
		UnwrapMethod:          o.UnwrapMethod,
		BBox:                  box,
	}
}
