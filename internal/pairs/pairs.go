// Package pairs selects which acquisition dates are compared with each other.
package pairs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cochaviz/stackplan/internal/catalog"
)

// Width is the number of later dates each date is connected to.
type Width int

// All connects every date to every later date.
const All Width = -1

// ParseWidth accepts a positive integer or "all".
func ParseWidth(value string) (Width, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "all") {
		return All, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("connection width %q: want a positive integer or \"all\"", value)
	}
	return Width(n), nil
}

func (w Width) String() string {
	if w == All {
		return "all"
	}
	return strconv.Itoa(int(w))
}

// MarshalYAML keeps the "all" spelling in configuration and plan files.
func (w Width) MarshalYAML() (any, error) {
	if w == All {
		return "all", nil
	}
	return int(w), nil
}

// UnmarshalYAML accepts both integers and "all".
func (w *Width) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseWidth(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Pair is an ordered (earlier, later) date tuple.
type Pair struct {
	Earlier catalog.Date `yaml:"earlier"`
	Later   catalog.Date `yaml:"later"`
}

// String returns the interferogram name, EARLIER_LATER.
func (p Pair) String() string {
	return string(p.Earlier) + "_" + string(p.Later)
}

// Select connects dates[i] to each of dates[i+1..i+width], clipped to the
// list. dates must be ascending and free of duplicates. The result is grouped
// by earlier date, then by increasing gap.
func Select(dates []catalog.Date, width Width) []Pair {
	n := int(width)
	if width == All {
		n = len(dates) - 1
	}

	var out []Pair
	for i := 0; i < len(dates)-1; i++ {
		for j := i + 1; j <= i+n && j < len(dates); j++ {
			out = append(out, Pair{Earlier: dates[i], Later: dates[j]})
		}
	}
	return out
}
