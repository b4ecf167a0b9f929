package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
)

func newOutboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outboard <file>",
		Short: "Build the outboard tree of a file",
		Long: `Build the outboard tree of a file, write it next to the file or to
--output, and print its root digest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			tree, err := outboard.Build(src)
			if err != nil {
				return fmt.Errorf("building outboard tree: %w", err)
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = args[0] + ".obao"
			}
			if err := os.WriteFile(out, tree.Bytes(), 0644); err != nil {
				return fmt.Errorf("writing outboard tree: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root: %s\n", tree.Root())
			fmt.Fprintf(cmd.OutOrStdout(), "chunks: %d\n", tree.NumChunks())
			fmt.Fprintf(cmd.OutOrStdout(), "outboard: %s (%d bytes)\n", out, len(tree.Bytes()))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Path to write the tree to (default <file>.obao)")
	return cmd
}
