package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oUaTEnCi/tsar/pkg/dot"
	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/postdom"
	"github.com/oUaTEnCi/tsar/pkg/scfg"
)

// domtreeCmd represents the domtree command
var domtreeCmd = &cobra.Command{
	Use:   "domtree <file> [function]",
	Short: "Build the post-dominator tree over the source CFG",
	Args:  cobra.RangeArgs(1, 2),
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

		g, diags, err := scfg.Build(file, functionName)
		if err != nil {
			return fmt.Errorf("building SCFG: %w", err)
		}
		for _, d := range diags {
			diagLogger("domtree").Warn("input defect", "function", functionName, "detail", d.String())
		}

		tree := postdom.Build[graph.NodeID](g.View())
		label := func(id graph.NodeID) string { return g.Node(id).String() }

		dotOutput, _ := cmd.Flags().GetBool("dot")
		outPath, _ := cmd.Flags().GetString("out")
		if dotOutput {
			var buf bytes.Buffer
			if err := dot.WritePostDomTree(&buf, tree, label); err != nil {
				return fmt.Errorf("rendering DOT: %w", err)
			}
			return writeOutput(outPath, buf.Bytes())
		}

		fmt.Printf("=== Post-dominator tree for function: %s ===\n", functionName)
		var printNode func(id graph.NodeID, depth int)
		printNode = func(id graph.NodeID, depth int) {
			for i := 0; i < depth; i++ {
				fmt.Print("  ")
			}
			fmt.Printf("n%d: %s\n", id, splitLabel(label(id))[0])
			for _, c := range tree.Children(id) {
				printNode(c, depth+1)
			}
		}
		for _, root := range tree.Roots() {
			printNode(root, 0)
		}
		return nil
	},
}

func init() {
	domtreeCmd.Flags().Bool("dot", false, "Output DOT")
	domtreeCmd.Flags().StringP("out", "o", "", "Write output to file instead of stdout")
}
