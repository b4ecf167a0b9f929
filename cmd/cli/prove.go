package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

func newProveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove <file>",
		Short: "Create a slice proof for a byte range of a file",
		Long: `Create the slice proof for the range challenged by --block-hash, or the
range given by --offset and --size. The tree is read from --outboard when
given and built from the file otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			ch, err := challengeRange(cmd, src.Size())
			if err != nil {
				return err
			}

			proof, err := prove(cmd, src, ch)
			if err != nil {
				return fmt.Errorf("creating proof: %w", err)
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = args[0] + ".proof"
			}
			if err := os.WriteFile(out, proof, 0644); err != nil {
				return fmt.Errorf("writing proof: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "challenge: %s\n", ch)
			fmt.Fprintf(cmd.OutOrStdout(), "proof: %s (%d bytes)\n", out, len(proof))
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().String("outboard", "", "Outboard tree of the file, as written by the outboard command")
	cmd.Flags().StringP("output", "o", "", "Path to write the proof to (default <file>.proof)")
	return cmd
}

func prove(cmd *cobra.Command, src *source.File, ch types.Challenge) (types.ProofArtifact, error) {
	treePath, _ := cmd.Flags().GetString("outboard")
	if treePath == "" {
		tree, err := outboard.Build(src)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "root: %s\n", tree.Root())
		return tree.Slice(source.NewCursor(src), ch.Offset, ch.Size)
	}

	f, err := os.Open(treePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return outboard.ExtractSlice(source.NewCursor(src), f, ch.Offset, ch.Size)
}
