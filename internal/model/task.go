package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// DefaultNameLength is the display width a derived task name is truncated to.
const DefaultNameLength = 32

// TaskSpec is one command given on the command line (or in a config file).
// It is created once before the run and never mutated.
type TaskSpec struct {
	Index   int    `json:"-" yaml:"-"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Command string `json:"command" yaml:"command"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Color   string `json:"color,omitempty" yaml:"color,omitempty"` // "#rrggbb" or ANSI palette index
}

// Label returns the name shown in front of task output.
func (s TaskSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return DefaultName(s.Index, s.Command, s.Dir, DefaultNameLength)
}

// DefaultName derives a task name: the working directory if one was given,
// otherwise "#<index+1>: <command>" truncated to width cells.
func DefaultName(index int, command, dir string, width int) string {
	if dir != "" {
		return dir
	}
	name := "#" + strconv.Itoa(index+1) + ": " + command
	if width <= 0 {
		return name
	}
	return ansi.Truncate(name, width, "…")
}

// palette holds ANSI 256 color indexes picked to stay readable on both dark
// and light backgrounds.
var palette = [...]string{"6", "3", "2", "5", "4", "1", "14", "11", "10", "13", "12", "9"}

// PaletteSize is the number of distinct automatic task colors.
const PaletteSize = len(palette)

// PaletteColor maps a task index to its automatic color.
func PaletteColor(index int) string {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)]
}

// ParseHexColor validates an "rrggbb" (or "#rrggbb") color and returns it in
// "#rrggbb" form.
func ParseHexColor(s string) (string, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return "", fmt.Errorf("invalid color %q: expected rrggbb", s)
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return "", fmt.Errorf("invalid color %q: expected rrggbb", s)
	}
	return "#" + strings.ToLower(h), nil
}

// Normalize fills Index, Color and Name so that every spec is complete. Colors
// already set are validated.
func Normalize(specs []TaskSpec, nameLength int) ([]TaskSpec, error) {
	out := make([]TaskSpec, len(specs))
	for i, s := range specs {
		s.Index = i
		if strings.TrimSpace(s.Command) == "" {
			return nil, fmt.Errorf("%w: task %d has an empty command", ErrInvalidSpecs, i+1)
		}
		if s.Color == "" {
			s.Color = PaletteColor(i)
		} else if !isPaletteIndex(s.Color) {
			c, err := ParseHexColor(s.Color)
			if err != nil {
				return nil, fmt.Errorf("%w: task %d: %w", ErrInvalidSpecs, i+1, err)
			}
			s.Color = c
		}
		if s.Name == "" {
			s.Name = DefaultName(i, s.Command, s.Dir, nameLength)
		}
		out[i] = s
	}
	return out, nil
}

// ValidateSpecs checks the invariants the supervisor relies on.
func ValidateSpecs(specs []TaskSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no tasks", ErrInvalidSpecs)
	}
	for i, s := range specs {
		if s.Index != i {
			return fmt.Errorf("%w: task %q has index %d, expected %d", ErrInvalidSpecs, s.Label(), s.Index, i)
		}
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%w: task %d has an empty command", ErrInvalidSpecs, i+1)
		}
	}
	return nil
}

func isPaletteIndex(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n < 256
}
