// Package assets holds the files embedded in the hlsweep binary: the
// built-in sweep profiles and the templates used to generate files in a
// workspace.
package assets

import (
	"embed"
	"text/template"
)

// Profiles holds the built-in profiles under profiles/<name>.yaml.
//
//go:embed profiles/*.yaml
var Profiles embed.FS

//go:embed templates/*.tmpl
var templatesFS embed.FS

var Templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// ConfigFileName is the name of the workspace configuration file.
const ConfigFileName = "hlsweep.yaml"

// ConfigTmplParams is the data of the hlsweep.yaml template.
type ConfigTmplParams struct {
	Profile  string
	Profiles []string
	Env      map[string]string
}
