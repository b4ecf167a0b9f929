package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var errProofInvalid = errors.New("proof does not verify")

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <proof>",
		Short: "Check a slice proof against a root digest",
		Long: `Check a slice proof against a root digest for the range challenged by
--block-hash in a file of --file-size bytes, or the range given by --offset
and --size. With --extract the authenticated bytes are written out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proof, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading proof: %w", err)
			}
			rootStr, _ := cmd.Flags().GetString("root")
			root, err := types.ParseRootDigest(rootStr)
			if err != nil {
				return err
			}
			size, _ := cmd.Flags().GetUint64("file-size")
			if cmd.Flags().Changed("block-hash") && size == 0 {
				return fmt.Errorf("--file-size is required with --block-hash")
			}
			ch, err := challengeRange(cmd, size)
			if err != nil {
				return err
			}

			data, err := outboard.DecodeSlice(proof, root, ch.Offset, ch.Size)
			if err != nil {
				return fmt.Errorf("%w: %w", errProofInvalid, err)
			}
			if out, _ := cmd.Flags().GetString("extract"); out != "" {
				if err := os.WriteFile(out, data, 0644); err != nil {
					return fmt.Errorf("writing extracted bytes: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %d bytes at offset %d against %s\n", len(data), ch.Offset, root)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().String("root", "", "Root digest the proof must authenticate against")
	cmd.Flags().Uint64("file-size", 0, "Size of the proven file, needed with --block-hash")
	cmd.Flags().String("extract", "", "Write the authenticated bytes to this path")
	cobra.CheckErr(cmd.MarkFlagRequired("root"))
	return cmd
}
