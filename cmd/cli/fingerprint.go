package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/dealproof/fingerprint"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
)

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file>",
		Short: "Print the content id and blake3 root of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			fp, err := fingerprint.Compute(source.NewCursor(src))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cid: %s\n", fp.CID)
			fmt.Fprintf(cmd.OutOrStdout(), "root: %s\n", fp.Root)
			fmt.Fprintf(cmd.OutOrStdout(), "size: %d\n", fp.Size)
			return nil
		},
	}
}
