// Package harness runs the sweeps described by a profile: it injects each
// parameter combination, drives the toolchain, judges the output and
// reports the results.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebeka/atexit"

	"github.com/cs217/hlsweep/extract"
	"github.com/cs217/hlsweep/inject"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/report"
	"github.com/cs217/hlsweep/sweep"
	"github.com/cs217/hlsweep/toolchain"
	"github.com/cs217/hlsweep/util"
	"github.com/cs217/hlsweep/workspace"
)

// Field names of result rows besides the axis names and metrics.
const (
	StatusField = "status"
	TestField   = "test"
	AreaField   = "area"
)

// CompilationFailure is the test name of the row recorded when the build
// step of a run fails.
const CompilationFailure = "Compilation"

// Outcome is the result of a sweep.
type Outcome struct {
	Rows   []report.Row
	Errors int
	Log    string
}

// Harness runs the actions of one profile in one workspace.
type Harness struct {
	Profile *profile.Profile
	Runner  toolchain.Runner
	// Env holds the environment roots available to the profile templates.
	Env map[string]string
	// Root is the workspace directory relative paths are resolved against.
	Root string
	// Out receives tool output and the rendered tables.
	Out io.Writer

	baseline *inject.Baseline
}

// New returns a harness writing to os.Stdout.
func New(p *profile.Profile, runner toolchain.Runner, env map[string]string, root string) *Harness {
	return &Harness{
		Profile: p,
		Runner:  runner,
		Env:     env,
		Root:    root,
		Out:     os.Stdout,
	}
}

// Dispatch performs action. Actions are mutually exclusive: clean only
// cleans. rtl_sim is followed by the area table and the RTL copy when the
// profile defines them.
func (h *Harness) Dispatch(ctx context.Context, action profile.Action) (*Outcome, error) {
	switch action {
	case profile.Clean:
		return nil, h.Clean(ctx)
	case profile.RTLArea:
		_, err := h.Area(ctx)
		return nil, err
	case profile.CopyRTL:
		return nil, h.CopyRTL(ctx)
	}

	outcome, err := h.Simulate(ctx, action)
	if err != nil {
		return outcome, err
	}
	if action == profile.RTLSim {
		if h.Profile.Area != nil {
			if _, err := h.Area(ctx); err != nil {
				return outcome, err
			}
		}
		if h.Profile.CopyRTL != "" {
			if err := h.CopyRTL(ctx); err != nil {
				return outcome, err
			}
		}
	}
	return outcome, nil
}

func (h *Harness) require(keys []string) error {
	missing := util.FilteredSlice(keys, func(key string) bool { return h.Env[key] == "" })
	if len(missing) > 0 {
		return fmt.Errorf("profile '%s' requires '%s' to be set", h.Profile.Name, strings.Join(missing, "', '"))
	}
	return nil
}

// path expands a path template and resolves it against the workspace root.
func (h *Harness) path(vars profile.Vars, text string) (string, error) {
	expanded, err := vars.Expand(text)
	if err != nil {
		return "", err
	}
	if expanded == "" || filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Join(h.Root, expanded), nil
}

func (h *Harness) dir(vars profile.Vars, text string) (string, error) {
	if text == "" {
		return h.Root, nil
	}
	return h.path(vars, text)
}

// apply puts combination c into the workspace: declarations are injected,
// the artifact staged and the prepare commands run. Any failure is fatal to
// the sweep.
func (h *Harness) apply(ctx context.Context, c sweep.Combination) error {
	p := h.Profile
	vars := profile.NewVars(p, h.Env, c)
	for _, i := range p.Inject {
		file, err := h.path(vars, i.File)
		if err != nil {
			return err
		}
		params := map[string]string{}
		for _, name := range p.InjectParams(i) {
			params[name] = c.Value(name)
		}
		if err := inject.InjectFile(file, i.Keyword, params); err != nil {
			return err
		}
	}
	if p.Stage != nil {
		from, err := h.path(vars, p.Stage.From)
		if err != nil {
			return err
		}
		to, err := h.path(vars, p.Stage.To)
		if err != nil {
			return err
		}
		if err := inject.Stage(from, to); err != nil {
			return err
		}
	}
	for _, text := range p.Prepare {
		script, err := vars.Expand(text)
		if err != nil {
			return err
		}
		if err := toolchain.Housekeep(ctx, h.Runner, toolchain.Command{Script: script, Dir: h.Root}); err != nil {
			return err
		}
	}
	return nil
}

// Restore puts the workspace back into the default combination. Within a
// sweep the restore happens once, whether the sweep completes, fails, is
// interrupted or the program exits.
func (h *Harness) Restore() error {
	if !h.Profile.Injects() {
		return nil
	}
	if h.baseline != nil {
		return h.baseline.Restore()
	}
	return h.restoreDefaults()
}

func (h *Harness) restoreDefaults() error {
	defaults, err := sweep.Defaults(h.Profile.Axes)
	if err != nil {
		return err
	}
	log.Log("Restoring %s.\n", defaults)
	// The sweep context may already be cancelled.
	if err := h.apply(context.Background(), defaults); err != nil {
		return fmt.Errorf("failed to restore %s: %s", defaults, err)
	}
	return nil
}

func (h *Harness) guard() {
	if !h.Profile.Injects() {
		return
	}
	h.baseline = inject.NewBaseline(h.restoreDefaults)
	atexit.Register(func() {
		if err := h.baseline.Restore(); err != nil {
			log.Error("%s.\n", err)
		}
	})
}

// Simulate runs one simulation action for every combination of the
// profile. Tool failures become FAILED rows; only housekeeping failures,
// missing artifacts and interruptions return an error. The default
// combination is restored in every case.
func (h *Harness) Simulate(ctx context.Context, action profile.Action) (outcome *Outcome, err error) {
	p := h.Profile
	spec, ok := p.Actions[action]
	if !ok {
		return nil, fmt.Errorf("profile '%s' does not support '%s'", p.Name, action)
	}
	if err := h.require(spec.Requires); err != nil {
		return nil, err
	}
	title := spec.Title
	if title == "" {
		title = string(action)
	}

	h.guard()
	defer func() {
		if restoreErr := h.Restore(); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	var sweepLog report.Log
	sweepLog.Printf("Starting %s %s Test Suite\n", p.Unit, title)
	sweepLog.Printf("Design revision: %s\n", workspace.Revision(h.Root))
	log.Log("--- Running %s ---\n", title)

	outcome = &Outcome{}
	for _, c := range sweep.Enumerate(p.Axes) {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		rows, err := h.runOne(ctx, spec, c, &sweepLog)
		if err != nil {
			return outcome, err
		}
		for _, row := range rows {
			if row.Get(StatusField) == extract.Failed.String() {
				outcome.Errors++
			}
		}
		outcome.Rows = append(outcome.Rows, rows...)
	}

	summary := h.table(&p.Table).Render(outcome.Rows)
	verdict := report.Verdict(outcome.Errors)
	fmt.Fprint(h.Out, summary)
	fmt.Fprintf(h.Out, "\n%s\n", verdict)
	sweepLog.Append(summary)
	sweepLog.Printf("\n%s\n", verdict)
	outcome.Log = sweepLog.String()

	logFile := spec.Log
	if !filepath.IsAbs(logFile) {
		logFile = filepath.Join(h.Root, logFile)
	}
	if err := sweepLog.WriteFile(logFile); err != nil {
		return outcome, err
	}
	log.Debug("Wrote '%s'.\n", logFile)
	if outcome.Errors == 0 {
		log.Success("%s\n", verdict)
	} else {
		log.Warning("%s\n", verdict)
	}
	return outcome, nil
}

// table fills in the pivot groups from the swept axis when the profile
// does not list them.
func (h *Harness) table(t *report.Table) *report.Table {
	if t.Pivot == nil || len(t.Pivot.Groups) > 0 {
		return t
	}
	axis, ok := h.Profile.Axis(t.Pivot.GroupField)
	if !ok {
		return t
	}
	table := *t
	pivot := *t.Pivot
	pivot.Groups = axis.Values
	table.Pivot = &pivot
	return &table
}

func (h *Harness) runOne(ctx context.Context, spec profile.ActionSpec, c sweep.Combination, sweepLog *report.Log) ([]report.Row, error) {
	vars := profile.NewVars(h.Profile, h.Env, c)
	message := fmt.Sprintf("Running test with %s", c)
	log.Log("%s\n", message)
	sweepLog.Printf("\n%s\n", message)

	if err := h.apply(ctx, c); err != nil {
		return nil, err
	}
	dir, err := h.dir(vars, spec.Dir)
	if err != nil {
		return nil, err
	}

	log.IndentationLevel++
	defer func() { log.IndentationLevel-- }()

	if spec.Build != "" {
		result, err := h.Runner.Run(ctx, toolchain.Command{Script: spec.Build, Dir: dir, Label: "build " + c.Dir()})
		if err != nil {
			return nil, err
		}
		sweepLog.Section(fmt.Sprintf("Build output for %s", c), result.Combined())
		if spec.Echo == profile.EchoAll {
			fmt.Fprintln(h.Out, result.Stdout)
		}
		if result.Failed() {
			log.Warning("FAILED: '%s' exited with status %d.\n", spec.Build, result.ExitCode)
			row := h.row(c, extract.Failed)
			row[TestField] = CompilationFailure
			return []report.Row{row}, nil
		}
	}

	result, err := h.Runner.Run(ctx, toolchain.Command{Script: spec.Run, Dir: dir, Label: "run " + c.Dir()})
	if err != nil {
		return nil, err
	}
	sweepLog.Section(fmt.Sprintf("Simulation output for %s", c), result.Combined())

	record := extract.Scan(&h.Profile.Rules, result.Stdout)
	switch spec.Echo {
	case profile.EchoAll:
		fmt.Fprintln(h.Out, result.Stdout)
	case profile.EchoMatched:
		for _, line := range record.Matched {
			fmt.Fprintln(h.Out, line)
		}
	}
	if result.Failed() {
		log.Warning("'%s' exited with status %d.\n", spec.Run, result.ExitCode)
		record.Status = extract.Failed
	}

	rows := h.judge(c, record)
	for _, row := range rows {
		h.logRow(row)
	}

	if spec.Collect {
		h.collect(vars)
	}
	return rows, nil
}

func (h *Harness) row(c sweep.Combination, status extract.Status) report.Row {
	row := report.Row{}
	for _, s := range c.Settings() {
		row[s.Name] = s.Value
	}
	row[StatusField] = status.String()
	return row
}

// metrics returns the metric names of the rules and whether each holds one
// value per sub-test.
func (h *Harness) metrics() ([]string, map[string]bool) {
	names := util.NewOrderedSet[string]()
	perTest := map[string]bool{}
	for _, m := range h.Profile.Rules.Metrics {
		names.Add(m.Name)
		perTest[m.Name] = m.Accumulate
	}
	for _, b := range h.Profile.Rules.Blocks {
		for _, name := range b.Names {
			names.Add(name)
			perTest[name] = true
		}
	}
	return names.Values(), perTest
}

// judge turns a scanned record into result rows, applying the limits of
// the profile.
func (h *Harness) judge(c sweep.Combination, record extract.Record) []report.Row {
	rules := &h.Profile.Rules
	names, perTest := h.metrics()

	subtests := h.Profile.Subtests
	if subtests == nil {
		row := h.row(c, extract.Judge(record.Status, record.Value, rules.Limits))
		for _, name := range names {
			row[name] = record.Value(name)
		}
		return []report.Row{row}
	}

	count := record.Count(subtests.Metric)
	if subtests.Fixed {
		count = len(subtests.Names)
	}
	if count == 0 {
		row := h.row(c, extract.Judge(record.Status, record.Value, rules.Limits))
		row[TestField] = extract.NA
		for _, name := range names {
			row[name] = record.Value(name)
		}
		return []report.Row{row}
	}

	rows := make([]report.Row, 0, count)
	for i := 0; i < count; i++ {
		value := func(name string) string {
			if perTest[name] {
				return record.ValueAt(name, i)
			}
			return record.Value(name)
		}
		status := record.Status
		if status == extract.Unknown && i < record.Count(subtests.Metric) {
			status = extract.Passed
		}
		row := h.row(c, extract.Judge(status, value, rules.Limits))
		row[TestField] = subtests.Name(i)
		for _, name := range names {
			row[name] = value(name)
		}
		rows = append(rows, row)
	}
	return rows
}

func (h *Harness) logRow(row report.Row) {
	names, _ := h.metrics()
	parts := []string{}
	if test, ok := row[TestField]; ok {
		parts = append(parts, test)
	}
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s = %s", name, row.Get(name)))
	}
	status := row.Get(StatusField)
	switch status {
	case extract.Passed.String():
		log.Success("%s: %s\n", status, strings.Join(parts, ", "))
	case extract.Failed.String():
		log.Warning("%s: %s\n", status, strings.Join(parts, ", "))
	default:
		log.Log("%s: %s\n", status, strings.Join(parts, ", "))
	}
}

// collect copies the generated outputs of a run into the artifact tree of
// its combination. Missing outputs belong to a failed run and only warn.
func (h *Harness) collect(vars profile.Vars) {
	c := h.Profile.Collect
	to, err := h.path(vars, c.To)
	if err != nil {
		log.Warning("%s.\n", err)
		return
	}
	if err := os.MkdirAll(to, util.DirMode); err != nil {
		log.Warning("Failed to create '%s': %s.\n", to, err)
		return
	}
	for _, text := range c.Files {
		file, err := h.path(vars, text)
		if err == nil {
			err = util.CopyFile(file, to)
		}
		if err != nil {
			log.Warning("%s.\n", err)
			continue
		}
		log.Debug("Collected '%s' into '%s'.\n", file, to)
	}
}
