package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/logging"
)

// DefaultTextCmd prefixes every run file command unless overridden.
const DefaultTextCmd = "source ~/.bash_profile;"

// ProcessorCommand is the wrapper that executes one descriptor.
const ProcessorCommand = "SentinelWrapper.py -c"

// TemplateDir is the shell variable holding the directory of project templates.
const TemplateDir = "$TE"

// templateScripts are the stages driven by the project template instead of a
// descriptor. Their run files hold a single command.
var templateScripts = map[Operation]string{
	OpCropStack:    "crop_sentinel.py",
	OpPhaseLinking: "sentinel_squeesar.py",
}

// Writer renders stages into run_files/ and configs/.
type Writer struct {
	Logger  *slog.Logger
	Layout  Layout
	Params  Parameters
	Catalog *catalog.StackCatalog
	// TextCmd is prepended to each command; empty disables the prefix.
	TextCmd string
	// Project names the template read by the crop and phase linking stages.
	Project string
}

// Output lists the files a Write produced.
type Output struct {
	RunFiles []string
	Configs  []string

	runDir     string
	configsDir string
	// createdConfigs is set when Write created the configs directory.
	createdConfigs bool
}

// Remove deletes everything the write produced. Other files in a configs
// directory that existed beforehand are left alone.
func (o *Output) Remove() error {
	var errs []error
	for _, path := range o.Configs {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if o.createdConfigs {
		if err := os.RemoveAll(o.configsDir); err != nil {
			errs = append(errs, err)
		}
	}
	if o.runDir != "" {
		if err := os.RemoveAll(o.runDir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write creates one run file per stage and one descriptor per unit. It refuses
// to run when run_files/ already exists, and removes what it wrote when it
// fails part way.
func (w *Writer) Write(stages []Stage, in Input) (*Output, error) {
	logger := logging.Ensure(w.Logger).With("component", "pipeline")

	runDir := w.Layout.RunFiles()
	if _, err := os.Stat(runDir); err == nil {
		return nil, ErrRunFilesExist
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if w.Catalog == nil {
		return nil, fmt.Errorf("writer has no catalog")
	}

	out := &Output{configsDir: w.Layout.Configs()}
	if _, err := os.Stat(out.configsDir); errors.Is(err, fs.ErrNotExist) {
		out.createdConfigs = true
	}
	if err := w.write(logger, out, runDir, stages, in); err != nil {
		if rmErr := out.Remove(); rmErr != nil {
			logger.Warn("could not remove partial run files", "error", rmErr)
		}
		return nil, err
	}

	logger.Info("run files written", "dir", runDir, "stages", len(out.RunFiles), "configs", len(out.Configs))
	return out, nil
}

func (w *Writer) write(logger *slog.Logger, out *Output, runDir string, stages []Stage, in Input) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", runDir, err)
	}
	out.runDir = runDir
	if err := os.MkdirAll(out.configsDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", out.configsDir, err)
	}

	builder := &descriptorBuilder{
		layout:    w.Layout,
		params:    w.Params,
		catalog:   w.Catalog,
		reference: in.Reference,
		flags:     in.Flags,
	}

	for _, stage := range stages {
		var commands []string
		if script, ok := templateScripts[stage.Operation]; ok {
			cmd, err := w.templateCommand(script)
			if err != nil {
				return fmt.Errorf("%s: %w", stage.Name(), err)
			}
			commands = []string{cmd}
		} else {
			for _, unit := range stage.Units {
				desc, err := builder.build(stage.Operation, unit)
				if err != nil {
					return fmt.Errorf("%s: %w", stage.Name(), err)
				}
				configPath := filepath.Join(out.configsDir, configName(stage.Operation, unit, in.Reference))
				if err := os.WriteFile(configPath, []byte(desc.String()), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", configPath, err)
				}
				out.Configs = append(out.Configs, configPath)
				commands = append(commands, w.command(configPath))
			}
		}

		runPath := filepath.Join(runDir, stage.Name())
		if err := writeLines(runPath, commands); err != nil {
			return err
		}
		out.RunFiles = append(out.RunFiles, runPath)
		logger.Debug("stage written", "stage", stage.Name(), "units", len(stage.Units))
	}
	return nil
}

func (w *Writer) command(configPath string) string {
	cmd := ProcessorCommand + " " + configPath
	if prefix := strings.TrimSpace(w.TextCmd); prefix != "" {
		return prefix + " " + cmd
	}
	return cmd
}

// templateCommand runs script on the project template, e.g.
// crop_sentinel.py $TE/hawaii.template.
func (w *Writer) templateCommand(script string) (string, error) {
	project := strings.TrimSpace(w.Project)
	if project == "" {
		return "", fmt.Errorf("%s needs a project name", script)
	}
	return script + " " + TemplateDir + "/" + project + ".template", nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
