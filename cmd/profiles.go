package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/util"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Args:  cobra.NoArgs,
	Short: "Lists the available sweep profiles",
	Long: `Lists the built-in sweep profiles and those configured in hlsweep.yaml,
with their swept parameters and supported actions.`,
	Run: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) {
	_, cfg := openWorkspace()

	for _, file := range cfg.ProfileFiles {
		p, err := profile.Load(file)
		if err != nil {
			log.Error("%s.\n", err)
			continue
		}
		printProfile(p, file)
	}
	for _, name := range profile.BuiltinNames() {
		p, err := profile.Builtin(name)
		if err != nil {
			log.Error("%s.\n", err)
			continue
		}
		printProfile(p, "built-in")
	}
	if log.ErrorOccured() {
		log.IndentationLevel = 0
		log.Error("Some profiles failed to load.\n")
		atexit.Exit(1)
	}
}

func printProfile(p *profile.Profile, source string) {
	log.IndentationLevel = 0
	log.Log("%s (%s)\n", p.Name, source)
	log.IndentationLevel = 1
	defer func() { log.IndentationLevel = 0 }()

	if p.Description != "" {
		log.Log("%s\n", p.Description)
	}
	for _, axis := range p.Axes {
		value := strings.Join(axis.Values, ", ")
		if axis.Default != "" {
			value += fmt.Sprintf(" (default %s)", axis.Default)
		}
		log.Log("%s: %s\n", axis.Name, value)
	}
	actions := util.MappedSlice(util.OrderedKeys(p.Actions), func(a profile.Action) string {
		if a == p.DefaultAction {
			return string(a) + "*"
		}
		return string(a)
	})
	if p.Area != nil {
		actions = append(actions, string(profile.RTLArea))
	}
	if p.CopyRTL != "" {
		actions = append(actions, string(profile.CopyRTL))
	}
	actions = append(actions, string(profile.Clean))
	log.Log("actions: %s\n", strings.Join(actions, ", "))
}
