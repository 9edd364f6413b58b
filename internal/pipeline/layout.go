package pipeline

import (
	"path/filepath"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/pairs"
	"github.com/cochaviz/stackplan/internal/stack"
)

// Directory names under the working directory. The processor and the prior
// state probe share them.
const (
	RunFilesDir  = "run_files"
	ConfigsDir   = "configs"
	ReferenceDir = "master"
	SecondaryDir = "slaves"
	CoregDir     = stack.CoregisteredDir
	GeometryDir  = "geom_master"
	BaselinesDir = "baselines"
	MisregDir    = "misreg"
	StackDir     = "stack"
	IgramDir     = "interferograms"
	MergedDir    = "merged"
)

// Layout resolves on-disk locations relative to the working directory.
type Layout struct {
	WorkDir string
}

func (l Layout) path(parts ...string) string {
	return filepath.Join(append([]string{l.WorkDir}, parts...)...)
}

func (l Layout) RunFiles() string  { return l.path(RunFilesDir) }
func (l Layout) Configs() string   { return l.path(ConfigsDir) }
func (l Layout) Reference() string { return l.path(ReferenceDir) }
func (l Layout) Geometry() string  { return l.path(GeometryDir) }
func (l Layout) Stack() string     { return l.path(StackDir) }

// Unpacked is where an acquisition is unpacked before coregistration.
func (l Layout) Unpacked(d catalog.Date, reference catalog.Date) string {
	if d == reference {
		return l.Reference()
	}
	return l.path(SecondaryDir, string(d))
}

// Coregistered is the coregistered secondary; the reference is its own grid.
func (l Layout) Coregistered(d catalog.Date, reference catalog.Date) string {
	if d == reference {
		return l.Reference()
	}
	return l.path(CoregDir, string(d))
}

func (l Layout) Baseline(reference, d catalog.Date) string {
	return l.path(BaselinesDir, string(reference)+"_"+string(d))
}

func (l Layout) Misreg(kind string, parts ...string) string {
	return l.path(append([]string{MisregDir, kind}, parts...)...)
}

func (l Layout) Interferogram(p pairs.Pair) string {
	return l.path(IgramDir, p.String())
}

func (l Layout) MergedSLC(d catalog.Date) string {
	return l.path(MergedDir, "SLC", string(d))
}

func (l Layout) MergedInterferogram(p pairs.Pair) string {
	return l.path(MergedDir, IgramDir, p.String())
}
