package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
)

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Print the byte range a block hash challenges",
		Long: `Print the chunk, offset and size a block hash challenges in a file.
The file size is given with --file-size or taken from --file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, _ := cmd.Flags().GetUint64("file-size")
			if path, _ := cmd.Flags().GetString("file"); path != "" {
				var err error
				if size, err = fileSize(path); err != nil {
					return err
				}
			}
			hashStr, _ := cmd.Flags().GetString("block-hash")
			hash, err := parseBlockHash(hashStr)
			if err != nil {
				return err
			}
			ch, err := challenge.Derive(hash, size)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chunks: %d\n", challenge.NumChunks(size))
			fmt.Fprintf(cmd.OutOrStdout(), "chunk: %d\n", ch.ChunkIndex)
			fmt.Fprintf(cmd.OutOrStdout(), "offset: %d\n", ch.Offset)
			fmt.Fprintf(cmd.OutOrStdout(), "size: %d\n", ch.Size)
			return nil
		},
	}
	cmd.Flags().String("block-hash", "", "Hash of the window's target block")
	cmd.Flags().Uint64("file-size", 0, "Size of the file in bytes")
	cmd.Flags().String("file", "", "File to take the size from")
	cobra.CheckErr(cmd.MarkFlagRequired("block-hash"))
	cmd.MarkFlagsMutuallyExclusive("file-size", "file")
	cmd.MarkFlagsOneRequired("file-size", "file")
	return cmd
}
