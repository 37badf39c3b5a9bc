// Package profile describes a parameter sweep: which axes are swept, how
// their values reach the design, which tools run and how their output is
// judged and tabulated.
package profile

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/cs217/hlsweep/assets"
	"github.com/cs217/hlsweep/extract"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/report"
	"github.com/cs217/hlsweep/sweep"
	"github.com/cs217/hlsweep/util"
)

// CurrentVersion is the profile file format understood by this tool.
const CurrentVersion = 1

// Inject rewrites `<Keyword> <param> = <value>;` declarations in File.
// Params defaults to every axis.
type Inject struct {
	File    string   `yaml:"file"`
	Keyword string   `yaml:"keyword"`
	Params  []string `yaml:"params"`
}

// Stage copies the generated artifact From (per combination) to To.
type Stage struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Echo modes for tool output on the console.
const (
	EchoAll     = "all"
	EchoMatched = "matched"
	EchoNone    = "none"
)

// ActionSpec is how one sweep action invokes the toolchain.
type ActionSpec struct {
	Title    string   `yaml:"title"`
	Requires []string `yaml:"requires"`
	Dir      string   `yaml:"dir"`
	Build    string   `yaml:"build"`
	Run      string   `yaml:"run"`
	Log      string   `yaml:"log"`
	Echo     string   `yaml:"echo"`
	Collect  bool     `yaml:"collect"`
}

// Collect copies tool outputs into the per-combination artifact tree after
// each run.
type Collect struct {
	Files []string `yaml:"files"`
	To    string   `yaml:"to"`
}

// Area locates the synthesis report of each combination.
type Area struct {
	Requires []string     `yaml:"requires"`
	Report   string       `yaml:"report"`
	Log      string       `yaml:"log"`
	Table    report.Table `yaml:"table"`
}

// CleanSpec is the top-level clean procedure.
type CleanSpec struct {
	Dir     string   `yaml:"dir"`
	Command []string `yaml:"command"`
}

// Subtests expands one run into several result rows, one per value of Metric.
// With Fixed, exactly len(Names) rows are produced whatever was found.
type Subtests struct {
	Names  []string `yaml:"names"`
	Metric string   `yaml:"metric"`
	Fixed  bool     `yaml:"fixed"`
}

// Name returns the name of the i-th sub-test.
func (s *Subtests) Name(i int) string {
	if i < len(s.Names) {
		return s.Names[i]
	}
	return fmt.Sprintf("test%d", i)
}

// Profile is one sweep definition.
type Profile struct {
	Version       uint                  `yaml:"version"`
	Name          string                `yaml:"name"`
	Unit          string                `yaml:"unit"`
	Description   string                `yaml:"description"`
	DefaultAction Action                `yaml:"default_action"`
	Axes          []sweep.Axis          `yaml:"axes"`
	Inject        []Inject              `yaml:"inject"`
	Stage         *Stage                `yaml:"stage"`
	Prepare       []string              `yaml:"prepare"`
	Rules         extract.Rules         `yaml:"rules"`
	Subtests      *Subtests             `yaml:"subtests"`
	Actions       map[Action]ActionSpec `yaml:"actions"`
	Collect       *Collect              `yaml:"collect"`
	Area          *Area                 `yaml:"area"`
	CopyRTL       string                `yaml:"copy_rtl"`
	Clean         CleanSpec             `yaml:"clean"`
	Table         report.Table          `yaml:"table"`
}

// Injects reports whether a run changes files in the workspace that must be
// put back to the default combination afterwards.
func (p *Profile) Injects() bool {
	return len(p.Inject) > 0 || p.Stage != nil || len(p.Prepare) > 0
}

// Axis returns the named axis.
func (p *Profile) Axis(name string) (sweep.Axis, bool) {
	for _, a := range p.Axes {
		if a.Name == name {
			return a, true
		}
	}
	return sweep.Axis{}, false
}

// InjectParams returns the axis names injected by i.
func (p *Profile) InjectParams(i Inject) []string {
	if len(i.Params) > 0 {
		return i.Params
	}
	return util.MappedSlice(p.Axes, func(a sweep.Axis) string { return a.Name })
}

// Validate checks the profile for consistency and compiles its rules.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if p.Unit == "" {
		return fmt.Errorf("profile '%s' has no unit", p.Name)
	}
	if len(p.Axes) == 0 {
		return fmt.Errorf("profile '%s' has no axes", p.Name)
	}
	names := util.NewOrderedSet[string]()
	for _, a := range p.Axes {
		if a.Name == "" || len(a.Values) == 0 {
			return fmt.Errorf("profile '%s' has an axis without name or values", p.Name)
		}
		if !names.Add(a.Name) {
			return fmt.Errorf("profile '%s' declares axis '%s' twice", p.Name, a.Name)
		}
	}
	if p.Injects() {
		if _, err := sweep.Defaults(p.Axes); err != nil {
			return fmt.Errorf("profile '%s': %s", p.Name, err)
		}
	}
	for _, i := range p.Inject {
		if i.File == "" || i.Keyword == "" {
			return fmt.Errorf("profile '%s' has an inject entry without file or keyword", p.Name)
		}
		for _, param := range i.Params {
			if !names.Contains(param) {
				return fmt.Errorf("profile '%s' injects unknown axis '%s'", p.Name, param)
			}
		}
	}
	if p.Stage != nil && (p.Stage.From == "" || p.Stage.To == "") {
		return fmt.Errorf("profile '%s' has an incomplete stage entry", p.Name)
	}

	if len(p.Actions) == 0 {
		return fmt.Errorf("profile '%s' has no actions", p.Name)
	}
	for action, spec := range p.Actions {
		if !action.IsSweep() {
			return fmt.Errorf("profile '%s': '%s' is not a simulation action", p.Name, action)
		}
		if spec.Run == "" || spec.Log == "" {
			return fmt.Errorf("profile '%s': action '%s' needs run and log", p.Name, action)
		}
		switch spec.Echo {
		case "", EchoAll, EchoMatched, EchoNone:
		default:
			return fmt.Errorf("profile '%s': action '%s' has invalid echo '%s'", p.Name, action, spec.Echo)
		}
		if spec.Collect && p.Collect == nil {
			return fmt.Errorf("profile '%s': action '%s' collects but no collect entry exists", p.Name, action)
		}
	}
	if p.DefaultAction == "" {
		p.DefaultAction = SystemCSim
	}
	if _, ok := p.Actions[p.DefaultAction]; !ok {
		return fmt.Errorf("profile '%s' has no default action '%s'", p.Name, p.DefaultAction)
	}

	if err := p.Rules.Compile(); err != nil {
		return fmt.Errorf("profile '%s': %s", p.Name, err)
	}
	if p.Subtests != nil && p.Subtests.Metric == "" {
		return fmt.Errorf("profile '%s': subtests need a metric", p.Name)
	}
	if err := validateTable(&p.Table); err != nil {
		return fmt.Errorf("profile '%s': %s", p.Name, err)
	}
	if p.Area != nil {
		if p.Area.Report == "" || p.Area.Log == "" {
			return fmt.Errorf("profile '%s': area needs report and log", p.Name)
		}
		if err := validateTable(&p.Area.Table); err != nil {
			return fmt.Errorf("profile '%s' area: %s", p.Name, err)
		}
	}
	if len(p.Clean.Command) == 0 {
		p.Clean.Command = []string{"make", "clean"}
	}
	return nil
}

func validateTable(t *report.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	for _, c := range t.Columns {
		if c.Field == "" || c.Width <= 0 {
			return fmt.Errorf("table column '%s' needs a field and a positive width", c.Header)
		}
	}
	if t.Pivot != nil && (t.Pivot.RowField == "" || t.Pivot.GroupField == "") {
		return fmt.Errorf("pivot table needs row and group fields")
	}
	return nil
}

type profileVersion struct {
	Version uint `yaml:"version"`
}

// Parse decodes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	var v profileVersion
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "failed to decode yaml")
	}
	if v.Version > CurrentVersion {
		return nil, fmt.Errorf("profile has version %d that requires a newer version of hlsweep", v.Version)
	}
	var p Profile
	if err := util.DecodeYaml(data, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a profile file.
func Load(file string) (*Profile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read profile '%s'", file)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid profile '%s'", file)
	}
	log.Debug("Loaded profile '%s' from '%s'.\n", p.Name, file)
	return p, nil
}

const builtinDir = "profiles"

// BuiltinNames lists the profiles shipped with the tool.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(assets.Profiles, builtinDir)
	if err != nil {
		return nil
	}
	names := []string{}
	for _, e := range entries {
		if path.Ext(e.Name()) == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	return util.OrderedSlice(names)
}

// Builtin returns a profile shipped with the tool.
func Builtin(name string) (*Profile, error) {
	data, err := fs.ReadFile(assets.Profiles, path.Join(builtinDir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown profile '%s', available profiles are '%s'", name, strings.Join(BuiltinNames(), "', '"))
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid builtin profile '%s'", name)
	}
	return p, nil
}

// Find returns the profile called name, looking at files first and then at
// the built-in profiles.
func Find(name string, files []string) (*Profile, error) {
	for _, file := range files {
		p, err := Load(file)
		if err != nil {
			return nil, err
		}
		if p.Name == name {
			return p, nil
		}
	}
	return Builtin(name)
}
