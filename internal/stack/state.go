package stack

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/logging"
)

// CoregisteredDir is the working-directory subfolder holding one coregistered
// result per secondary date.
const CoregisteredDir = "coreg_slaves"

// Snapshot is what a previous run left behind.
type Snapshot struct {
	Exists bool
	Dates  []catalog.Date
}

// PriorState is a read-only view on previously coregistered dates.
type PriorState interface {
	Snapshot() (Snapshot, error)
}

// DirectoryState reads prior state from <workdir>/coreg_slaves.
type DirectoryState struct {
	Dir    string
	Logger *slog.Logger
}

// NewDirectoryState returns the prior state rooted at workDir.
func NewDirectoryState(workDir string, logger *slog.Logger) *DirectoryState {
	return &DirectoryState{Dir: filepath.Join(workDir, CoregisteredDir), Logger: logger}
}

// Snapshot lists the entries of Dir whose names are dates. A missing Dir means
// no stack exists.
func (s *DirectoryState) Snapshot() (Snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read prior stack: %w", err)
	}

	logger := logging.Ensure(s.Logger)
	snapshot := Snapshot{Exists: true}
	for _, entry := range entries {
		date, err := catalog.ParseDate(entry.Name())
		if err != nil {
			logger.Debug("ignoring non-date entry in prior stack", "dir", s.Dir, "entry", entry.Name())
			continue
		}
		snapshot.Dates = append(snapshot.Dates, date)
	}
	snapshot.Dates = catalog.SortDates(snapshot.Dates)
	return snapshot, nil
}
