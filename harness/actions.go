package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/cs217/hlsweep/area"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/report"
	"github.com/cs217/hlsweep/sweep"
	"github.com/cs217/hlsweep/toolchain"
	"github.com/cs217/hlsweep/util"
)

// Area tabulates the post-assignment area score of every combination. When
// a report is missing the table is skipped with a warning and nil is
// returned.
func (h *Harness) Area(ctx context.Context) ([]report.Row, error) {
	p := h.Profile
	if p.Area == nil {
		return nil, fmt.Errorf("profile '%s' has no area report", p.Name)
	}
	if err := h.require(p.Area.Requires); err != nil {
		return nil, err
	}

	rows := []report.Row{}
	for _, c := range sweep.Enumerate(p.Axes) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := h.path(profile.NewVars(p, h.Env, c), p.Area.Report)
		if err != nil {
			return nil, err
		}
		if !util.FileExists(file) {
			log.Warning("Report file not found for %s. Please generate RTL first.\n", c)
			return nil, nil
		}
		row := report.Row{}
		for _, s := range c.Settings() {
			row[s.Name] = s.Value
		}
		score, ok, err := area.Score(file)
		switch {
		case err != nil:
			log.Warning("Could not parse area score for %s: %s.\n", c, err)
		case ok:
			row[AreaField] = strconv.FormatFloat(score, 'f', -1, 64)
		default:
			log.Debug("'%s' has no area score.\n", file)
		}
		rows = append(rows, row)
	}

	text := p.Area.Table.Render(rows)
	fmt.Fprint(h.Out, text)
	file := p.Area.Log
	if !filepath.IsAbs(file) {
		file = filepath.Join(h.Root, file)
	}
	if err := util.WriteFile(file, []byte(text)); err != nil {
		return rows, err
	}
	return rows, nil
}

// CopyRTL copies the generated RTL into the hardware design tree. A
// failure aborts the run.
func (h *Harness) CopyRTL(ctx context.Context) error {
	p := h.Profile
	if p.CopyRTL == "" {
		return fmt.Errorf("profile '%s' does not support '%s'", p.Name, profile.CopyRTL)
	}
	log.Log("Copying RTL.\n")
	return toolchain.Housekeep(ctx, h.Runner, toolchain.Command{Script: p.CopyRTL, Dir: h.Root})
}

// Clean runs the top-level clean command once. A failing clean only warns.
func (h *Harness) Clean(ctx context.Context) error {
	p := h.Profile
	dir, err := h.dir(profile.Vars{Unit: p.Unit, Env: h.Env}, p.Clean.Dir)
	if err != nil {
		return err
	}
	cmd := toolchain.Command{Args: p.Clean.Command, Dir: dir}
	log.Log("--- Cleaning up generated files ---\n")
	log.Log("Running '%s' in %s\n", cmd, dir)
	result, err := h.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprint(h.Out, result.Stdout)
	if result.Failed() {
		log.Warning("'%s' exited with status %d.\n", cmd, result.ExitCode)
	}
	return nil
}
