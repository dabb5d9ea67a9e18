package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/oUaTEnCi/tsar/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize tsar configuration",
	Long: `Guides you through setting up the tsar configuration step by step.
Creates a config file with the default output format and the PDG
construction switches.

Use non-interactive mode with flags:
  tsar init --format dot --no-simplify

For the full flag list, run: tsar init --help`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	noSimplify, _ := cmd.Flags().GetBool("no-simplify")
	noPiBlocks, _ := cmd.Flags().GetBool("no-pi-blocks")
	noReachability, _ := cmd.Flags().GetBool("no-reachability")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := config.DefaultConfig()

	isNonInteractive := formatFlag != "" || noSimplify || noPiBlocks || noReachability

	if isNonInteractive {
		if formatFlag != "" {
			cfg.Format = config.OutputFormat(formatFlag)
		}
		cfg.Simplify = !noSimplify
		cfg.PiBlocks = !noPiBlocks
		cfg.SolveReachability = !noReachability
		cfg.Verbose = verbose
	} else {
		format := string(cfg.Format)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Default output format").
					Description("Recorded in the config file; graph commands pick their output from their own flags").
					Options(
						huh.NewOption("Text", "text"),
						huh.NewOption("JSON", "json"),
						huh.NewOption("DOT", "dot"),
						huh.NewOption("Msgpack", "msgpack"),
					).
					Value(&format),
				huh.NewConfirm().
					Title("Simplify def-use chains?").
					Description("Merge single-use producer chains into multi-instruction nodes").
					Value(&cfg.Simplify),
				huh.NewConfirm().
					Title("Form pi-blocks?").
					Description("Collapse non-trivial strongly connected components").
					Value(&cfg.PiBlocks),
				huh.NewConfirm().
					Title("Solve reachability?").
					Description("Restrict memory queries to reachable instruction pairs").
					Value(&cfg.SolveReachability),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("running setup form: %w", err)
		}
		cfg.Format = config.OutputFormat(format)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := cfg.Save()
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func init() {
	initCmd.Flags().String("format", "", "Default output format (text, json, dot, msgpack)")
	initCmd.Flags().Bool("no-simplify", false, "Disable def-use chain simplification")
	initCmd.Flags().Bool("no-pi-blocks", false, "Disable pi-block formation")
	initCmd.Flags().Bool("no-reachability", false, "Disable reachability solving")
	initCmd.Flags().Bool("verbose", false, "Enable verbose logging")
}
