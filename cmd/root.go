package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/profile"
	"github.com/cs217/hlsweep/toolchain"
)

var actionFlag string

var rootCmd = &cobra.Command{
	Use:   "hlsweep",
	Short: "Parameter sweeps for HLS designs",
	Long: `hlsweep runs a design through SystemC simulation, HLS, RTL simulation or
hardware simulation once for every combination of its swept parameters,
judges every run and prints a summary table.

The sweep is described by a profile. Built-in profiles are listed by
'hlsweep profiles'; the profile is selected with --profile or in hlsweep.yaml.`,
	Args: cobra.NoArgs,
	Run:  runSweep,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&log.Verbose, "verbose", "v", false, "Print debug output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default: hlsweep.yaml in the workspace root)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Workspace root (default: nearest directory with hlsweep.yaml or .git)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "Sweep profile")
	rootCmd.Flags().StringVar(&actionFlag, "action", "", fmt.Sprintf("Action to perform: '%s' (default: the profile's default, usually 'systemc_sim')", strings.Join(profile.ActionNames(), "', '")))

	rootCmd.RegisterFlagCompletionFunc("action", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return profile.ActionNames(), cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.RegisterFlagCompletionFunc("profile", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return profile.BuiltinNames(), cobra.ShellCompDirectiveNoFileComp
	})

	if rootCmd.Execute() != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func runSweep(cmd *cobra.Command, args []string) {
	root, cfg := openWorkspace()
	p := loadProfile(cfg)

	action := p.DefaultAction
	if actionFlag != "" {
		var err error
		action, err = profile.ParseAction(actionFlag)
		if err != nil {
			log.Fatal("%s.\n", err)
		}
	}

	ctx, stop := toolchain.Interruptible(context.Background())
	defer stop()

	log.Debug("Running '%s' of profile '%s' in '%s'.\n", action, p.Name, root)
	h := newHarness(root, cfg, p)
	if _, err := h.Dispatch(ctx, action); err != nil {
		if ctx.Err() != nil {
			log.Warning("Interrupted.\n")
			atexit.Exit(130)
		}
		log.Fatal("%s.\n", err)
	}
}
