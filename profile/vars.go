package profile

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/cs217/hlsweep/sweep"
)

// Vars is the data available to the templates of a profile: paths, commands
// and artifact locations.
//
//	{{.Unit}}           the design unit
//	{{.Env.AWS_HOME}}   an environment setting
//	{{.P.ppu}}          the value of an axis in the current combination
//	{{.Dir}}            the artifact directory name of the combination
//	{{.Path "block"}}   the path associated with the value of an axis
type Vars struct {
	Unit string
	Env  map[string]string
	P    map[string]string
	Dir  string

	combination sweep.Combination
}

// NewVars returns the template data for one combination.
func NewVars(p *Profile, env map[string]string, c sweep.Combination) Vars {
	return Vars{
		Unit:        p.Unit,
		Env:         env,
		P:           c.Map(),
		Dir:         c.Dir(),
		combination: c,
	}
}

// Path returns the path of the current value of axis.
func (v Vars) Path(axis string) string {
	return v.combination.Path(axis)
}

// Expand executes text as a template over v. Missing keys are errors.
func (v Vars) Expand(text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "invalid template '%s'", text)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, v); err != nil {
		return "", errors.Wrapf(err, "failed to expand '%s'", text)
	}
	return b.String(), nil
}
