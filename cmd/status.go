package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/cs217/hlsweep/inject"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/sweep"
	"github.com/cs217/hlsweep/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Args:  cobra.NoArgs,
	Short: "Checks that the workspace is at the default parameters",
	Long: `Prints the workspace, configuration and profile in use and checks that the
design files touched by a sweep hold the default parameters. An interrupted
sweep that could not restore them leaves them modified; 'hlsweep restore'
puts them back.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	root, cfg := openWorkspace()
	log.Log("Workspace: '%s'\n", root)
	if cfg.File != "" {
		log.Log("Configuration: '%s'\n", cfg.File)
	}
	log.Log("Revision: %s\n", workspace.Revision(root))

	p := loadProfile(cfg)
	log.Log("Profile: '%s'\n", p.Name)
	if !p.Injects() {
		log.Success("Profile '%s' does not modify the workspace.\n", p.Name)
		return
	}

	defaults, err := sweep.Defaults(p.Axes)
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	vars := profile.NewVars(p, cfg.Env, defaults)
	log.IndentationLevel = 1
	defer func() { log.IndentationLevel = 0 }()

	clean := true
	files := []string{}
	for _, i := range p.Inject {
		file := resolve(root, vars, i.File)
		files = append(files, file)
		names := p.InjectParams(i)
		current, err := inject.Current(file, i.Keyword, names)
		if err != nil {
			log.Error("%s.\n", err)
			clean = false
			continue
		}
		for _, name := range names {
			value, ok := current[name]
			switch {
			case !ok:
				log.Warning("'%s' declares no '%s %s'.\n", file, i.Keyword, name)
			case value != defaults.Value(name):
				log.Error("'%s' has %s = %s, the default is %s.\n", file, name, value, defaults.Value(name))
				clean = false
			default:
				log.Debug("'%s' has %s = %s.\n", file, name, value)
			}
		}
	}
	if p.Stage != nil {
		files = append(files, resolve(root, vars, p.Stage.To))
	}

	repo, err := workspace.Open(root)
	if err != nil {
		log.Debug("%s.\n", err)
	} else {
		modified, err := repo.Modified(root, files)
		if err != nil {
			log.Error("%s.\n", err)
		} else if len(modified) > 0 {
			log.Warning("Modified relative to HEAD: '%s'.\n", strings.Join(modified, "', '"))
		}
	}

	if clean {
		log.Success("Workspace holds the default parameters %s.\n", defaults)
	} else {
		log.Log("Run 'hlsweep restore' to restore %s.\n", defaults)
	}
	if log.ErrorOccured() {
		atexit.Exit(1)
	}
}

func resolve(root string, vars profile.Vars, text string) string {
	path, err := vars.Expand(text)
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
