// Package sweep enumerates the parameter combinations of a test sweep.
package sweep

import (
	"fmt"
	"strings"

	"github.com/cs217/hlsweep/util"
)

// Axis is one swept design parameter and the values it takes.
type Axis struct {
	Name    string            `yaml:"name"`
	Values  []string          `yaml:"values"`
	Default string            `yaml:"default"`
	Paths   map[string]string `yaml:"paths"`
}

// Path returns the path associated with value, or value itself.
func (a Axis) Path(value string) string {
	if p, ok := a.Paths[value]; ok {
		return p
	}
	return value
}

// Setting is a single axis assignment inside a Combination.
type Setting struct {
	Name  string
	Value string
	Path  string
}

// Combination identifies one simulation run. It is never modified after
// being produced by Enumerate or Defaults.
type Combination struct {
	settings []Setting
}

// Settings returns a copy of the ordered axis assignments.
func (c Combination) Settings() []Setting {
	result := make([]Setting, len(c.settings))
	copy(result, c.settings)
	return result
}

// Value returns the value of the named axis, or "" if the axis is unknown.
func (c Combination) Value(name string) string {
	for _, s := range c.settings {
		if s.Name == name {
			return s.Value
		}
	}
	return ""
}

// Path returns the path mapped to the value of the named axis.
func (c Combination) Path(name string) string {
	for _, s := range c.settings {
		if s.Name == name {
			return s.Path
		}
	}
	return ""
}

// Values returns the axis values in sweep order.
func (c Combination) Values() []string {
	return util.MappedSlice(c.settings, func(s Setting) string { return s.Value })
}

// Map returns the combination as a name to value map.
func (c Combination) Map() map[string]string {
	m := make(map[string]string, len(c.settings))
	for _, s := range c.settings {
		m[s.Name] = s.Value
	}
	return m
}

// Dir returns the directory name used for generated artifacts of this
// combination, e.g. "kIntWordWidth_8_kVectorSize_16".
func (c Combination) Dir() string {
	parts := make([]string, 0, 2*len(c.settings))
	for _, s := range c.settings {
		parts = append(parts, s.Name, s.Value)
	}
	return strings.Join(parts, "_")
}

// String returns a human readable form, e.g. "kIntWordWidth = 8, kVectorSize = 16".
func (c Combination) String() string {
	parts := util.MappedSlice(c.settings, func(s Setting) string {
		return fmt.Sprintf("%s = %s", s.Name, s.Value)
	})
	return strings.Join(parts, ", ")
}

// Enumerate returns every combination of the axes values in nested
// lexicographic order: the first axis varies slowest. An empty axis list, or
// an axis without values, yields no combinations.
func Enumerate(axes []Axis) []Combination {
	if len(axes) == 0 {
		return nil
	}
	total := 1
	for _, axis := range axes {
		total *= len(axis.Values)
	}
	if total == 0 {
		return nil
	}

	result := make([]Combination, 0, total)
	indices := make([]int, len(axes))
	for {
		c := Combination{settings: make([]Setting, len(axes))}
		for i, axis := range axes {
			value := axis.Values[indices[i]]
			c.settings[i] = Setting{Name: axis.Name, Value: value, Path: axis.Path(value)}
		}
		result = append(result, c)

		// Advance the innermost axis first, carrying outwards.
		i := len(axes) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(axes[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return result
		}
	}
}

// Defaults returns the designated default combination of the axes.
func Defaults(axes []Axis) (Combination, error) {
	c := Combination{settings: make([]Setting, 0, len(axes))}
	for _, axis := range axes {
		if axis.Default == "" {
			return Combination{}, fmt.Errorf("axis '%s' has no default value", axis.Name)
		}
		found := false
		for _, v := range axis.Values {
			if v == axis.Default {
				found = true
				break
			}
		}
		if !found {
			return Combination{}, fmt.Errorf("default value '%s' of axis '%s' is not one of its values", axis.Default, axis.Name)
		}
		c.settings = append(c.settings, Setting{Name: axis.Name, Value: axis.Default, Path: axis.Path(axis.Default)})
	}
	return c, nil
}
