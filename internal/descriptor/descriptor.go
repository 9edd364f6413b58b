// Package descriptor reads and writes the per-unit configuration files
// consumed by the external stack processor.
//
// A descriptor is a [Common] header followed by numbered [Function-N]
// sections. Each section names one operation and lists its parameters:
//
//	###################################
//	[Common]
//	###################################
//	[Function-1]
//	generateIgram :
//	    master : /work/master
//	    slave : /work/coreg_slaves/20180113
//
// Parsing is strict: any line that does not fit this layout is a FormatError.
package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	ruler        = "###################################"
	commonMarker = "[Common]"
	indent       = "    "
	separator    = " : "
)

// ErrFormat is returned for any descriptor that deviates from the layout.
var ErrFormat = errors.New("descriptor format error")

// FormatError points at the offending line of a descriptor.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	location := e.Path
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if location == "" {
		return fmt.Sprintf("%s: %s", ErrFormat, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFormat, location, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// Field is one "key : value" parameter.
type Field struct {
	Key   string
	Value string
}

// Function is one [Function-N] section.
type Function struct {
	Marker    string
	Operation string
	Fields    []Field
}

// Get returns the value of key.
func (f *Function) Get(key string) (string, bool) {
	for _, field := range f.Fields {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key, appending the field when absent.
func (f *Function) Set(key, value string) {
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			f.Fields[i].Value = value
			return
		}
	}
	f.Fields = append(f.Fields, Field{Key: key, Value: value})
}

// Descriptor is a parsed configuration file.
type Descriptor struct {
	Functions []*Function
}

// New returns a descriptor whose functions are numbered in order.
func New(functions ...*Function) *Descriptor {
	d := &Descriptor{}
	for _, f := range functions {
		d.Add(f)
	}
	return d
}

// Add appends f as the next numbered function.
func (d *Descriptor) Add(f *Function) {
	f.Marker = fmt.Sprintf("[Function-%d]", len(d.Functions)+1)
	d.Functions = append(d.Functions, f)
}

// Function returns the section introduced by marker, e.g. "[Function-2]".
func (d *Descriptor) Function(marker string) (*Function, bool) {
	for _, f := range d.Functions {
		if f.Marker == marker {
			return f, true
		}
	}
	return nil, false
}

// Parse reads a descriptor. Comment rulers and blank lines are skipped.
func Parse(r io.Reader) (*Descriptor, error) {
	d := &Descriptor{}
	var current *Function
	sawCommon := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == commonMarker:
			if sawCommon || len(d.Functions) > 0 {
				return nil, &FormatError{Line: lineNo, Msg: "unexpected [Common] section"}
			}
			sawCommon = true
		case strings.HasPrefix(line, "[Function-") && strings.HasSuffix(line, "]"):
			if current != nil && current.Operation == "" {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("%s has no operation", current.Marker)}
			}
			current = &Function{Marker: line}
			d.Functions = append(d.Functions, current)
		case strings.HasPrefix(line, "["):
			return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("unknown section %s", line)}
		default:
			if current == nil {
				return nil, &FormatError{Line: lineNo, Msg: "parameter outside of a [Function-N] section"}
			}
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("expected \"key : value\", got %q", line)}
			}
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if key == "" {
				return nil, &FormatError{Line: lineNo, Msg: "empty key"}
			}
			indented := strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")
			if current.Operation == "" && !indented {
				if value != "" {
					return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("operation %s carries a value", key)}
				}
				current.Operation = key
				continue
			}
			if current.Operation == "" || !indented {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("unexpected line %q in %s", line, current.Marker)}
			}
			current.Fields = append(current.Fields, Field{Key: key, Value: value})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	if current != nil && current.Operation == "" {
		return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("%s has no operation", current.Marker)}
	}
	if len(d.Functions) == 0 {
		return nil, &FormatError{Msg: "no [Function-N] section"}
	}
	return d, nil
}

// WriteTo renders the descriptor in the layout Parse accepts.
func (d *Descriptor) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(ruler + "\n")
	b.WriteString(commonMarker + "\n")
	b.WriteString(ruler + "\n")
	for _, f := range d.Functions {
		b.WriteString(f.Marker + "\n")
		b.WriteString(f.Operation + " :\n")
		for _, field := range f.Fields {
			b.WriteString(indent + field.Key + separator + field.Value + "\n")
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String renders the descriptor.
func (d *Descriptor) String() string {
	var b strings.Builder
	_, _ = d.WriteTo(&b)
	return b.String()
}
