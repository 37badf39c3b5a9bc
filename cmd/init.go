package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cs217/hlsweep/assets"
	"github.com/cs217/hlsweep/config"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/util"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Args:  cobra.NoArgs,
	Short: "Creates hlsweep.yaml in the current workspace",
	Long: `Creates hlsweep.yaml in the workspace root, selecting the profile given with
--profile and recording the current environment settings.`,
	Run: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	root, cfg := openWorkspace()
	file := filepath.Join(root, assets.ConfigFileName)
	if util.FileExists(file) {
		log.Fatal("'%s' already exists.\n", file)
	}

	name := profileName
	if name == "" {
		name = cfg.Profile
	}
	if name != "" {
		if _, err := profile.Find(name, cfg.ProfileFiles); err != nil {
			log.Fatal("%s.\n", err)
		}
	}
	env := map[string]string{}
	for _, key := range config.EnvRoots {
		env[key] = cfg.Env[key]
	}

	params := assets.ConfigTmplParams{Profile: name, Profiles: profile.BuiltinNames(), Env: env}
	if err := util.GenerateFile(file, assets.Templates.Lookup("hlsweep.yaml.tmpl"), params); err != nil {
		log.Fatal("%s.\n", err)
	}
	log.Success("Created '%s'.\n", file)
}
