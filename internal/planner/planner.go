// Package planner wires catalog construction, update detection, pair
// selection and stage generation into one planning run.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/config"
	"github.com/cochaviz/stackplan/internal/logging"
	"github.com/cochaviz/stackplan/internal/pairs"
	"github.com/cochaviz/stackplan/internal/pipeline"
	"github.com/cochaviz/stackplan/internal/rewrite"
	"github.com/cochaviz/stackplan/internal/stack"
)

// PlanFile is written next to the run files.
const PlanFile = "plan.yaml"

// StageSummary is the plan.yaml view of one stage.
type StageSummary struct {
	Name      string             `yaml:"name"`
	Operation pipeline.Operation `yaml:"operation"`
	Units     int                `yaml:"units"`
}

// Plan summarizes one planning run.
type Plan struct {
	RunID            string                  `yaml:"run_id"`
	CreatedAt        time.Time               `yaml:"created_at"`
	Workflow         pipeline.Workflow       `yaml:"workflow"`
	Method           pipeline.Method         `yaml:"processing_method"`
	Coregistration   pipeline.Coregistration `yaml:"coregistration"`
	Reference        catalog.Date            `yaml:"reference"`
	IsUpdate         bool                    `yaml:"is_update"`
	ActiveDates      []catalog.Date          `yaml:"active_dates"`
	ProcessDates     []catalog.Date          `yaml:"process_dates"`
	NewDates         []catalog.Date          `yaml:"new_dates,omitempty"`
	ReprocessDates   []catalog.Date          `yaml:"reprocess_dates,omitempty"`
	Connections      pairs.Width             `yaml:"num_connections"`
	Pairs            []pairs.Pair            `yaml:"pairs"`
	Overlap          catalog.BoundingBox     `yaml:"overlap"`
	OverlapInverted  bool                    `yaml:"overlap_inverted,omitempty"`
	Stages           []StageSummary          `yaml:"stages,omitempty"`
	RewrittenConfigs int                     `yaml:"rewritten_configs,omitempty"`
}

// Service runs the planning flow against the filesystem.
type Service struct {
	Logger *slog.Logger
	// Footprints defaults to reading the preview KML of each product.
	Footprints catalog.FootprintResolver
	// Orbits defaults to the orbit directory of the options.
	Orbits catalog.OrbitResolver
	// Prior defaults to the coregistered directory of the working directory.
	Prior stack.PriorState
	Now   func() time.Time
}

// Run plans a stack: it writes the source manifest, the run files and their
// descriptors, and run_files/plan.yaml. A failed run removes the run files and
// descriptors it wrote, so it can be repeated once the cause is fixed.
func (s *Service) Run(ctx context.Context, opts config.Options) (*Plan, error) {
	logger := s.logger().With("component", "planner")
	opts, err := opts.Absolute()
	if err != nil {
		return nil, err
	}
	layout := pipeline.Layout{WorkDir: opts.WorkingDirectory}

	if _, err := os.Stat(layout.RunFiles()); err == nil {
		return nil, pipeline.ErrRunFilesExist
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.WorkingDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	plan, cat, sources, err := s.prepare(ctx, logger, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	written, err := s.materialize(ctx, logger, opts, layout, plan, cat)
	if err == nil {
		manifest := filepath.Join(opts.WorkingDirectory, catalog.ManifestName)
		if err = catalog.WriteManifest(manifest, sources); err == nil {
			logger.Debug("source manifest written", "path", manifest)
		}
	}
	if err != nil {
		// run_files did not exist when the run started.
		var errs []error
		if written != nil {
			errs = append(errs, written.Remove())
		}
		errs = append(errs, os.RemoveAll(layout.RunFiles()))
		if rmErr := errors.Join(errs...); rmErr != nil {
			logger.Warn("could not remove run files of the failed plan", "error", rmErr)
		}
		return nil, err
	}

	logger.Info("plan written", "run_id", plan.RunID, "stages", len(plan.Stages), "dir", layout.RunFiles())
	return plan, nil
}

// materialize writes the run files, descriptors and plan.yaml of plan. The
// returned output lists the descriptors written, also when err is set.
func (s *Service) materialize(ctx context.Context, logger *slog.Logger, opts config.Options, layout pipeline.Layout, plan *Plan, cat *catalog.StackCatalog) (*pipeline.Output, error) {
	if !pipeline.HasStages(plan.Workflow) {
		logger.Warn("workflow has no stage table; no run files generated", "workflow", plan.Workflow)
		if err := os.MkdirAll(layout.RunFiles(), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", layout.RunFiles(), err)
		}
		return nil, writePlan(filepath.Join(layout.RunFiles(), PlanFile), plan)
	}

	in := pipeline.Input{
		Reference:    plan.Reference,
		ActiveDates:  plan.ActiveDates,
		ProcessDates: plan.ProcessDates,
		Pairs:        plan.Pairs,
		OverlapWidth: pairs.Width(opts.OverlapConnections),
		Flags:        opts.Flags(),
	}
	in.IsUpdate = plan.IsUpdate
	in.Merge = true

	stages := pipeline.Generate(plan.Workflow, in)
	writer := &pipeline.Writer{
		Logger:  s.logger(),
		Layout:  layout,
		Params:  opts.Parameters(),
		Catalog: cat,
		TextCmd: opts.TextCmd,
		Project: opts.ProjectName(),
	}
	out, err := writer.Write(stages, in)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		plan.Stages = append(plan.Stages, StageSummary{
			Name:      stage.Name(),
			Operation: stage.Operation,
			Units:     len(stage.Units),
		})
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if plan.Method == pipeline.MethodSqueeSAR {
		rewriter := &rewrite.Rewriter{Logger: s.logger()}
		results, err := rewriter.Rewrite(layout.Configs())
		if err != nil {
			return out, err
		}
		plan.RewrittenConfigs = len(results)
	}
	return out, writePlan(filepath.Join(layout.RunFiles(), PlanFile), plan)
}

// Status reports what Run would plan without writing anything.
func (s *Service) Status(ctx context.Context, opts config.Options) (*Plan, error) {
	opts, err := opts.Absolute()
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	plan, _, _, err := s.prepare(ctx, s.logger().With("component", "planner"), opts)
	return plan, err
}

func (s *Service) prepare(ctx context.Context, logger *slog.Logger, opts config.Options) (*Plan, *catalog.StackCatalog, []string, error) {
	workflow, err := pipeline.ParseWorkflow(opts.Workflow)
	if err != nil {
		return nil, nil, nil, err
	}
	flags := opts.Flags()
	reference, _ := opts.Reference()
	excluded, _ := opts.ExcludedDates()
	box, _ := opts.BoundingBox()

	sources, err := catalog.ResolveSources(opts.SLCDirectory)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("sources resolved", "location", opts.SLCDirectory, "sources", len(sources))
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	builder := &catalog.Builder{
		Logger:     s.logger(),
		Footprints: s.Footprints,
		Orbits:     s.Orbits,
		Exclude:    excluded,
		BBox:       box,
		Reference:  reference,
	}
	if builder.Footprints == nil {
		builder.Footprints = catalog.KMLFootprintResolver{}
	}
	if builder.Orbits == nil {
		builder.Orbits = catalog.OrbitDirectory{Dir: opts.OrbitDirectory}
	}
	cat, err := builder.Build(sources)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	prior := s.Prior
	if prior == nil {
		prior = stack.NewDirectoryState(opts.WorkingDirectory, s.logger())
	}
	detector := &stack.Detector{Logger: s.logger(), Prior: prior}
	detection, err := detector.Detect(cat, opts.OverlapConnections)
	if err != nil {
		return nil, nil, nil, err
	}

	pairDates := detection.ActiveDates
	if detection.IsUpdate {
		pairDates = detection.ProcessDates
	}
	selected := pairs.Select(pairDates, opts.Connections)
	logger.Info("pairs selected", "pairs", len(selected), "num_connections", opts.Connections.String())

	return &Plan{
		RunID:           uuid.New().String(),
		CreatedAt:       s.now(),
		Workflow:        workflow,
		Method:          flags.Method,
		Coregistration:  flags.Coregistration,
		Reference:       detection.Reference,
		IsUpdate:        detection.IsUpdate,
		ActiveDates:     detection.ActiveDates,
		ProcessDates:    detection.ProcessDates,
		NewDates:        detection.NewDates,
		ReprocessDates:  detection.ReprocessDates,
		Connections:     opts.Connections,
		Pairs:           selected,
		Overlap:         cat.Overlap,
		OverlapInverted: cat.OverlapInverted,
	}, cat, sources, nil
}

func writePlan(path string, plan *Plan) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *slog.Logger {
	return logging.Ensure(s.Logger)
}
