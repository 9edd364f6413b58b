package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// OrbitDirectory resolves orbits from a flat directory of EOF files named like
// S1A_OPER_AUX_POEORB_OPOD_20180121T120631_V20171231T225942_20180102T005942.EOF.
type OrbitDirectory struct {
	Dir string
}

// orbit kinds in order of preference
var orbitKinds = []string{"POEORB", "RESORB"}

func (o OrbitDirectory) Orbit(info SourceInfo) (string, error) {
	if o.Dir == "" {
		return "", nil
	}
	matches, err := filepath.Glob(filepath.Join(o.Dir, "S1*_OPER_AUX_*.EOF"))
	if err != nil {
		return "", fmt.Errorf("glob orbits: %w", err)
	}
	sort.Strings(matches)

	for _, kind := range orbitKinds {
		for _, path := range matches {
			if orbitCovers(filepath.Base(path), kind, info) {
				return path, nil
			}
		}
	}
	return "", nil
}

func orbitCovers(name, kind string, info SourceInfo) bool {
	fields := strings.Split(strings.TrimSuffix(name, ".EOF"), "_")
	if len(fields) != 8 || fields[3] != kind {
		return false
	}
	if info.Mission != "" && fields[0] != info.Mission {
		return false
	}
	start, err := time.Parse(sensingLayout, strings.TrimPrefix(fields[6], "V"))
	if err != nil {
		return false
	}
	stop, err := time.Parse(sensingLayout, fields[7])
	if err != nil {
		return false
	}
	return !info.SensingStart.Before(start) && info.SensingStart.Before(stop)
}
