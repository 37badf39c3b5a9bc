// Package extract turns the captured text output of a simulation into a
// typed record: a pass/fail verdict plus named metrics.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NA marks a metric that could not be found in the output.
const NA = "N/A"

// Status is the verdict of a single run.
type Status int

const (
	Unknown Status = iota
	Passed
	Failed
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus parses the String form of a Status. The empty string is Unknown.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(s) {
	case "", "UNKNOWN":
		return Unknown, nil
	case "PASSED":
		return Passed, nil
	case "FAILED":
		return Failed, nil
	}
	return Unknown, fmt.Errorf("invalid status '%s'", s)
}

// UnmarshalYAML lets profiles spell statuses as text.
func (s *Status) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	status, err := ParseStatus(text)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Field selects which part of a matched line is the metric value.
const (
	// FieldColon takes the text after the first ':'.
	FieldColon = "colon"
	// FieldLast takes the last whitespace separated token.
	FieldLast = "last"
)

// Metric extracts one named value from lines starting with Prefix, or from
// the first capture group of Pattern. The first matching line wins unless
// Accumulate is set, in which case every match is kept in order.
type Metric struct {
	Name       string `yaml:"name"`
	Prefix     string `yaml:"prefix"`
	Pattern    string `yaml:"pattern"`
	Field      string `yaml:"field"`
	Accumulate bool   `yaml:"accumulate"`

	re *regexp.Regexp
}

// Block matches Pattern over the whole output; each match appends the text of
// capture group i to the metric Names[i]. It is used when one run reports
// several sub-test results.
type Block struct {
	Pattern string   `yaml:"pattern"`
	Names   []string `yaml:"names"`

	re *regexp.Regexp
}

// Rules describe how to read the output of one kind of run.
type Rules struct {
	Pass    []string `yaml:"pass"`
	Fail    []string `yaml:"fail"`
	Absent  Status   `yaml:"absent"`
	Metrics []Metric `yaml:"metrics"`
	Blocks  []Block  `yaml:"blocks"`
	Limits  []Limit  `yaml:"limits"`
}

// Compile validates and compiles the patterns of the rules.
func (r *Rules) Compile() error {
	for i := range r.Metrics {
		m := &r.Metrics[i]
		if m.Name == "" {
			return fmt.Errorf("metric %d has no name", i)
		}
		if (m.Prefix == "") == (m.Pattern == "") {
			return fmt.Errorf("metric '%s' needs exactly one of prefix or pattern", m.Name)
		}
		switch m.Field {
		case "", FieldColon, FieldLast:
		default:
			return fmt.Errorf("metric '%s' has invalid field '%s'", m.Name, m.Field)
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return fmt.Errorf("metric '%s': %s", m.Name, err)
			}
			if re.NumSubexp() < 1 {
				return fmt.Errorf("metric '%s': pattern has no capture group", m.Name)
			}
			m.re = re
		}
	}
	for i := range r.Blocks {
		b := &r.Blocks[i]
		re, err := regexp.Compile(b.Pattern)
		if err != nil {
			return fmt.Errorf("block %d: %s", i, err)
		}
		if re.NumSubexp() != len(b.Names) {
			return fmt.Errorf("block %d: pattern has %d groups for %d names", i, re.NumSubexp(), len(b.Names))
		}
		b.re = re
	}
	return nil
}

// Record is the typed result of scanning one run's output.
type Record struct {
	Status Status
	// FailMarker is set when a fail marker was seen, independently of limits.
	FailMarker bool
	Values     map[string][]string
	// Matched holds the output lines that triggered any rule, in order.
	Matched []string
}

// Value returns the first value of the named metric, or NA.
func (r Record) Value(name string) string {
	return r.ValueAt(name, 0)
}

// ValueAt returns the i-th value of the named metric, or NA. A label that
// matched without a value also reads as NA.
func (r Record) ValueAt(name string, i int) string {
	values := r.Values[name]
	if i < 0 || i >= len(values) || values[i] == "" {
		return NA
	}
	return values[i]
}

// Count returns how many values were found for the named metric.
func (r Record) Count(name string) int {
	return len(r.Values[name])
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func (m *Metric) match(line string) (string, bool) {
	if m.re != nil {
		sub := m.re.FindStringSubmatch(line)
		if sub == nil {
			return "", false
		}
		return strings.TrimSpace(sub[1]), true
	}
	if !strings.HasPrefix(line, m.Prefix) {
		return "", false
	}
	switch m.Field {
	case FieldLast:
		fields := strings.Fields(line)
		return fields[len(fields)-1], true
	case FieldColon:
		parts := strings.SplitN(line, ":", 2)
		if len(parts) < 2 {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	default:
		return strings.TrimSpace(strings.TrimPrefix(line, m.Prefix)), true
	}
}

// Scan reads text line by line and builds a Record. A fail marker wins over
// a pass marker. When neither is seen the status is rules.Absent. Values
// that cannot be found simply stay absent and read as NA.
func Scan(rules *Rules, text string) Record {
	record := Record{Values: map[string][]string{}}
	passed := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		hit := false
		if containsAny(line, rules.Fail) {
			record.FailMarker = true
			hit = true
		}
		if containsAny(line, rules.Pass) {
			passed = true
			hit = true
		}
		for i := range rules.Metrics {
			m := &rules.Metrics[i]
			if !m.Accumulate && len(record.Values[m.Name]) > 0 {
				continue
			}
			if value, ok := m.match(line); ok {
				record.Values[m.Name] = append(record.Values[m.Name], value)
				hit = true
			}
		}
		if hit {
			record.Matched = append(record.Matched, line)
		}
	}

	for i := range rules.Blocks {
		b := &rules.Blocks[i]
		if b.re == nil {
			continue
		}
		for _, match := range b.re.FindAllStringSubmatch(text, -1) {
			for j, name := range b.Names {
				record.Values[name] = append(record.Values[name], match[j+1])
			}
		}
	}

	switch {
	case record.FailMarker:
		record.Status = Failed
	case passed:
		record.Status = Passed
	default:
		record.Status = rules.Absent
	}
	return record
}

// Limit is the acceptance threshold applied after the tool's own verdict:
// a value strictly greater than Max (or equal to it when Inclusive) turns a
// PASSED run into a FAILED one. With Require a missing value does the same.
type Limit struct {
	Metric    string  `yaml:"metric"`
	Max       float64 `yaml:"max"`
	Inclusive bool    `yaml:"inclusive"`
	Require   bool    `yaml:"require"`
}

// Number parses a metric value, tolerating a trailing '%'.
func Number(value string) (float64, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "%")
	f, err := strconv.ParseFloat(value, 64)
	return f, err == nil
}

// Violated reports whether value breaks the limit.
func (l Limit) Violated(value string) bool {
	f, ok := Number(value)
	if !ok {
		return l.Require
	}
	if l.Inclusive {
		return f >= l.Max
	}
	return f > l.Max
}

// Judge applies limits to a verdict. Only PASSED can be downgraded.
func Judge(status Status, value func(metric string) string, limits []Limit) Status {
	if status != Passed {
		return status
	}
	for _, l := range limits {
		if l.Violated(value(l.Metric)) {
			return Failed
		}
	}
	return status
}
