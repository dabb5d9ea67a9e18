// Package commands provides the CLI commands for the tsar analyzer.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "tsar",
	Short: "tsar - dependence graph construction for C sources",
	Long: `tsar builds per-function dependence graphs from C source files.

Commands:
  functions   List the functions defined in a file
  scfg        Build the source control flow graph of a function
  domtree     Build the post-dominator tree over the source CFG
  cdg         Build the control dependence graph (source or IR flavour)
  pdg         Build the program dependence graph
  export      Serialize a program dependence graph to a file
  init        Write the tool configuration interactively

Use "tsar [command] --help" for more information about a command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(functionsCmd)
	RootCmd.AddCommand(scfgCmd)
	RootCmd.AddCommand(domtreeCmd)
	RootCmd.AddCommand(cdgCmd)
	RootCmd.AddCommand(pdgCmd)
	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(initCmd)
}
