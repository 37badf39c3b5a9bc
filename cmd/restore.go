package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cs217/hlsweep/log"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Args:  cobra.NoArgs,
	Short: "Restores the default parameters of the profile",
	Long: `Puts the design files touched by the profile back to the default
combination, as a completed sweep does.`,
	Run: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) {
	root, cfg := openWorkspace()
	p := loadProfile(cfg)
	if !p.Injects() {
		log.Success("Profile '%s' does not modify the workspace.\n", p.Name)
		return
	}
	if err := newHarness(root, cfg, p).Restore(); err != nil {
		log.Fatal("%s.\n", err)
	}
	log.Success("Done.\n")
}
