package cmd

import (
	"os"
	"strings"

	"github.com/cs217/hlsweep/config"
	"github.com/cs217/hlsweep/harness"
	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/toolchain"
	"github.com/cs217/hlsweep/workspace"
)

var (
	configFile  string
	rootDir     string
	profileName string
)

// openWorkspace locates the workspace root and loads its configuration.
func openWorkspace() (string, *config.Config) {
	root := rootDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatal("Failed to get working directory: %s.\n", err)
		}
		root, err = workspace.Root(wd)
		if err != nil {
			log.Fatal("Failed to locate the workspace root: %s.\n", err)
		}
	}
	log.Debug("Workspace: '%s'.\n", root)

	cfg, err := config.Load(root, configFile)
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	return root, cfg
}

func loadProfile(cfg *config.Config) *profile.Profile {
	name := profileName
	if name == "" {
		name = cfg.Profile
	}
	if name == "" {
		log.Fatal("No profile selected. Use --profile or set 'profile' in hlsweep.yaml. Built-in profiles are '%s'.\n", strings.Join(profile.BuiltinNames(), "', '"))
	}
	p, err := profile.Find(name, cfg.ProfileFiles)
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	return p
}

func newHarness(root string, cfg *config.Config, p *profile.Profile) *harness.Harness {
	runner := &toolchain.Shell{
		Env:     cfg.Environ(),
		Spinner: cfg.Spinner && !log.Verbose,
	}
	return harness.New(p, runner, cfg.Env, root)
}
