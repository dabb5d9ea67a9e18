package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oUaTEnCi/tsar/internal/config"
	"github.com/oUaTEnCi/tsar/pkg/export"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <file> [function]",
	Short: "Serialize a program dependence graph to a file",
	Long: `Builds the PDG of a function and serializes it: JSON for human
consumption, msgpack for compact storage.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := openSource(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		functionName, err := resolveFunction(file, args[0], args)
		if err != nil {
			return err
		}

		graph := buildPDG(file, functionName, pdgOptions(cmd))
		doc := export.Snapshot(graph)

		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		var buf bytes.Buffer
		switch config.OutputFormat(format) {
		case config.FormatJSON:
			if err := export.SaveJSON(&buf, doc); err != nil {
				return err
			}
			buf.WriteByte('\n')
		case config.FormatMsgpack:
			if err := export.SaveMsgpack(&buf, doc); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported export format: %s (use json or msgpack)", format)
		}
		return writeOutput(outPath, buf.Bytes())
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "msgpack", "Export format (json or msgpack)")
	exportCmd.Flags().StringP("out", "o", "", "Write output to file instead of stdout")
	exportCmd.Flags().Bool("simplify", true, "Merge def-use chains into multi-instruction nodes")
	exportCmd.Flags().Bool("pi-blocks", true, "Collapse non-trivial SCCs into pi-blocks")
	exportCmd.Flags().Bool("reachability", true, "Solve block reachability before memory queries")
}
