package main

import (
	"github.com/spf13/pflag"

	"github.com/cochaviz/stackplan/internal/config"
	"github.com/cochaviz/stackplan/internal/pairs"
)

// widthValue adapts pairs.Width to pflag.
type widthValue pairs.Width

func (w *widthValue) Set(value string) error {
	parsed, err := pairs.ParseWidth(value)
	if err != nil {
		return err
	}
	*w = widthValue(parsed)
	return nil
}

func (w *widthValue) String() string { return pairs.Width(*w).String() }

func (w *widthValue) Type() string { return "width" }

// optionFlags binds the planning options to command line flags. Values from
// --config sit between the defaults and the flags set explicitly.
type optionFlags struct {
	configPath  string
	opts        config.Options
	connections widthValue
}

// copies moves one flag's value from the flag-bound options onto the result.
var copies = map[string]func(dst, src *config.Options){
	"slc-directory":           func(d, s *config.Options) { d.SLCDirectory = s.SLCDirectory },
	"orbit-directory":         func(d, s *config.Options) { d.OrbitDirectory = s.OrbitDirectory },
	"aux-directory":           func(d, s *config.Options) { d.AuxDirectory = s.AuxDirectory },
	"working-directory":       func(d, s *config.Options) { d.WorkingDirectory = s.WorkingDirectory },
	"dem":                     func(d, s *config.Options) { d.DEM = s.DEM },
	"project":                 func(d, s *config.Options) { d.Project = s.Project },
	"reference-date":          func(d, s *config.Options) { d.ReferenceDate = s.ReferenceDate },
	"exclude-dates":           func(d, s *config.Options) { d.ExcludeDates = s.ExcludeDates },
	"bbox":                    func(d, s *config.Options) { d.BBox = s.BBox },
	"num-connections":         func(d, s *config.Options) { d.Connections = s.Connections },
	"num-overlap-connections": func(d, s *config.Options) { d.OverlapConnections = s.OverlapConnections },
	"swath-num":               func(d, s *config.Options) { d.Swaths = s.Swaths },
	"text-cmd":                func(d, s *config.Options) { d.TextCmd = s.TextCmd },
	"azimuth-looks":           func(d, s *config.Options) { d.AzimuthLooks = s.AzimuthLooks },
	"range-looks":             func(d, s *config.Options) { d.RangeLooks = s.RangeLooks },
	"filter-strength":         func(d, s *config.Options) { d.FilterStrength = s.FilterStrength },
	"esd-coherence-threshold": func(d, s *config.Options) { d.ESDCoherenceThreshold = s.ESDCoherenceThreshold },
	"snr-misreg-threshold":    func(d, s *config.Options) { d.SNRThreshold = s.SNRThreshold },
	"unw-method":              func(d, s *config.Options) { d.UnwrapMethod = s.UnwrapMethod },
	"polarization":            func(d, s *config.Options) { d.Polarization = s.Polarization },
	"coregistration":          func(d, s *config.Options) { d.Coregistration = s.Coregistration },
	"workflow":                func(d, s *config.Options) { d.Workflow = s.Workflow },
	"processing-method":       func(d, s *config.Options) { d.ProcessingMethod = s.ProcessingMethod },
}

func (f *optionFlags) register(fs *pflag.FlagSet) {
	def := config.Default()
	o := &f.opts
	f.connections = widthValue(def.Connections)

	fs.StringVar(&f.configPath, "config", "", "YAML file with planning options; explicit flags take precedence")

	fs.StringVarP(&o.SLCDirectory, "slc-directory", "s", def.SLCDirectory, "Directory with SLC products, or a file listing them one per line")
	fs.StringVarP(&o.OrbitDirectory, "orbit-directory", "o", def.OrbitDirectory, "Directory with precise or restituted orbit files")
	fs.StringVarP(&o.AuxDirectory, "aux-directory", "a", def.AuxDirectory, "Directory with auxiliary calibration files")
	fs.StringVarP(&o.WorkingDirectory, "working-directory", "w", def.WorkingDirectory, "Working directory of the stack")
	fs.StringVarP(&o.DEM, "dem", "d", def.DEM, "DEM file")
	fs.StringVar(&o.Project, "project", def.Project, "Project template name for squeesar stacks; defaults to the directory above the SLC directory")
	fs.StringVarP(&o.ReferenceDate, "reference-date", "m", def.ReferenceDate, "Reference date (YYYYMMDD); defaults to the earliest date")
	fs.StringVarP(&o.ExcludeDates, "exclude-dates", "x", def.ExcludeDates, "Comma separated dates to exclude")
	fs.StringVarP(&o.BBox, "bbox", "b", def.BBox, "Bounding box as \"S N W E\"")
	fs.VarP(&f.connections, "num-connections", "c", "Number of later dates each date is paired with, or \"all\"")
	fs.IntVarP(&o.OverlapConnections, "num-overlap-connections", "O", def.OverlapConnections, "Overlap pairs per date; twice this many dates are reprocessed on update")
	fs.StringVarP(&o.Swaths, "swath-num", "n", def.Swaths, "Space separated sub-swaths to process")
	fs.StringVarP(&o.TextCmd, "text-cmd", "t", def.TextCmd, "Command prefixed to every run file line")
	fs.IntVarP(&o.AzimuthLooks, "azimuth-looks", "z", def.AzimuthLooks, "Azimuth looks of merged interferograms")
	fs.IntVarP(&o.RangeLooks, "range-looks", "r", def.RangeLooks, "Range looks of merged interferograms")
	fs.Float64VarP(&o.FilterStrength, "filter-strength", "f", def.FilterStrength, "Interferogram filter strength")
	fs.Float64VarP(&o.ESDCoherenceThreshold, "esd-coherence-threshold", "e", def.ESDCoherenceThreshold, "Coherence threshold of the azimuth misregistration estimate")
	fs.Float64Var(&o.SNRThreshold, "snr-misreg-threshold", def.SNRThreshold, "SNR threshold of the range misregistration estimate")
	fs.StringVarP(&o.UnwrapMethod, "unw-method", "u", def.UnwrapMethod, "Unwrapping method")
	fs.StringVarP(&o.Polarization, "polarization", "p", def.Polarization, "Polarization to process")
	fs.StringVarP(&o.Coregistration, "coregistration", "C", def.Coregistration, "Coregistration mode (geometry, NESD)")
	fs.StringVarP(&o.Workflow, "workflow", "W", def.Workflow, "Workflow (interferogram, offset, correlation, slc)")
	fs.StringVarP(&o.ProcessingMethod, "processing-method", "P", def.ProcessingMethod, "Processing method (sbas, squeesar, ps)")
}

// resolve layers defaults, the --config file and the flags the user set.
func (f *optionFlags) resolve(fs *pflag.FlagSet) (config.Options, error) {
	f.opts.Connections = pairs.Width(f.connections)

	opts := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	fs.Visit(func(flag *pflag.Flag) {
		if apply, ok := copies[flag.Name]; ok {
			apply(&opts, &f.opts)
		}
	})
	return opts, nil
}
