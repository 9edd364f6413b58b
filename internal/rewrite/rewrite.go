// Package rewrite relocates the burst interferogram descriptors of a squeesar
// run onto the merged SLC products.
package rewrite

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/cochaviz/stackplan/internal/descriptor"
	"github.com/cochaviz/stackplan/internal/logging"
)

const (
	// Pattern selects the pair descriptors of the burst interferogram stage.
	Pattern = "config_igram_2*"

	Operation = "generateIgram_sq"

	primaryMarker = "[Function-1]"
	mergeMarker   = "[Function-2]"
)

// carried are the merge parameters that survive the truncation.
var carried = []string{"multilook", "range_looks", "azimuth_looks"}

// Result describes one rewritten descriptor.
type Result struct {
	Path string
	// Diff is the unified diff between the old and new contents.
	Diff string
}

// Rewriter applies the squeesar rewrite to every matching descriptor of a
// configs directory.
type Rewriter struct {
	Logger *slog.Logger
	// DryRun computes the results without touching any file.
	DryRun bool
}

// Rewrite transforms every descriptor in dir matching Pattern. All files are
// transformed in memory first, so a malformed descriptor leaves the directory
// untouched.
func (r *Rewriter) Rewrite(dir string) ([]Result, error) {
	logger := logging.Ensure(r.Logger).With("component", "rewrite", "dir", dir)

	matches, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	type pending struct {
		path     string
		mode     os.FileMode
		contents []byte
	}
	var (
		todo    []pending
		results []Result
	)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		old, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		desc, err := descriptor.Parse(bytes.NewReader(old))
		if err != nil {
			return nil, withPath(err, path)
		}
		if primary, ok := desc.Function(primaryMarker); ok && primary.Operation == Operation {
			logger.Debug("descriptor already rewritten", "file", filepath.Base(path))
			continue
		}
		if err := Descriptor(desc); err != nil {
			return nil, withPath(err, path)
		}

		updated := []byte(desc.String())
		diff, err := unified(path, old, updated)
		if err != nil {
			return nil, err
		}
		todo = append(todo, pending{path: path, mode: info.Mode().Perm(), contents: updated})
		results = append(results, Result{Path: path, Diff: diff})
		logger.Debug("descriptor rewritten", "file", filepath.Base(path), "diff", diff)
	}

	if r.DryRun {
		logger.Info("dry run; descriptors left unchanged", "descriptors", len(results))
		return results, nil
	}
	for _, p := range todo {
		if err := writeAtomic(p.path, p.contents, p.mode); err != nil {
			return nil, err
		}
	}
	logger.Info("descriptors rewritten", "descriptors", len(results))
	return results, nil
}

// Descriptor rewrites one parsed interferogram descriptor in place: it keeps
// the first function, renames its operation and points its inputs and output
// at the merged products. The multilook parameters of the merge function are
// carried over.
func Descriptor(d *descriptor.Descriptor) error {
	primary, ok := d.Function(primaryMarker)
	if !ok {
		return &descriptor.FormatError{Msg: "missing " + primaryMarker}
	}
	merge, ok := d.Function(mergeMarker)
	if !ok {
		return &descriptor.FormatError{Msg: "missing " + mergeMarker}
	}

	master, err := field(primary, "master")
	if err != nil {
		return err
	}
	slave, err := field(primary, "slave")
	if err != nil {
		return err
	}
	igram, err := field(primary, "interferogram")
	if err != nil {
		return err
	}

	newIgram, ok := replaceSegment(igram, "/interferograms", "/merged/interferograms")
	if !ok {
		return &descriptor.FormatError{Msg: fmt.Sprintf("interferogram %q has no /interferograms/ segment", igram)}
	}
	pair := filepath.Base(igram)
	earlier, _, found := strings.Cut(pair, "_")
	if !found {
		return &descriptor.FormatError{Msg: fmt.Sprintf("interferogram %q is not named after a pair", igram)}
	}

	var newMaster string
	if filepath.Base(master) == "master" {
		newMaster, ok = replaceTail(master, "/master", "/merged/SLC/"+earlier)
	} else {
		newMaster, ok = replaceSegment(master, "/coreg_slaves", "/merged/SLC")
	}
	if !ok {
		return &descriptor.FormatError{Msg: fmt.Sprintf("master %q has neither a /master nor a /coreg_slaves segment", master)}
	}
	newSlave, ok := replaceSegment(slave, "/coreg_slaves", "/merged/SLC")
	if !ok {
		return &descriptor.FormatError{Msg: fmt.Sprintf("slave %q has no /coreg_slaves segment", slave)}
	}

	params := make([]descriptor.Field, 0, len(carried))
	for _, key := range carried {
		value, ok := merge.Get(key)
		if !ok {
			return &descriptor.FormatError{Msg: fmt.Sprintf("%s has no %s parameter", mergeMarker, key)}
		}
		params = append(params, descriptor.Field{Key: key, Value: value})
	}

	primary.Operation = Operation
	primary.Set("master", newMaster)
	primary.Set("slave", newSlave)
	primary.Set("interferogram", newIgram)
	for _, p := range params {
		primary.Set(p.Key, p.Value)
	}
	d.Functions = []*descriptor.Function{primary}
	return nil
}

func field(f *descriptor.Function, key string) (string, error) {
	value, ok := f.Get(key)
	if !ok {
		return "", &descriptor.FormatError{Msg: fmt.Sprintf("%s has no %s parameter", f.Marker, key)}
	}
	return value, nil
}

// replaceSegment swaps the last whole path segment seg (e.g. "/coreg_slaves")
// for repl, keeping whatever follows it.
func replaceSegment(path, seg, repl string) (string, bool) {
	i := lastSegment(path, seg)
	if i < 0 {
		return path, false
	}
	return path[:i] + repl + path[i+len(seg):], true
}

// replaceTail swaps the last whole segment seg and everything after it for repl.
func replaceTail(path, seg, repl string) (string, bool) {
	i := lastSegment(path, seg)
	if i < 0 {
		return path, false
	}
	return path[:i] + repl, true
}

func lastSegment(path, seg string) int {
	for end := len(path); end > 0; {
		i := strings.LastIndex(path[:end], seg)
		if i < 0 {
			return -1
		}
		after := i + len(seg)
		if after == len(path) || path[after] == '/' {
			return i
		}
		end = i
	}
	return -1
}

func withPath(err error, path string) error {
	if ferr, ok := err.(*descriptor.FormatError); ok {
		copied := *ferr
		copied.Path = path
		return &copied
	}
	return fmt.Errorf("%s: %w", path, err)
}

func unified(path string, old, updated []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(updated)),
		FromFile: "a/" + filepath.Base(path),
		ToFile:   "b/" + filepath.Base(path),
		Context:  3,
	})
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
