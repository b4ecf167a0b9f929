package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storacha/proofbuddy/pkg/config"
)

var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage proofbuddy configuration",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write a TOML configuration file holding every default setting and
placeholders for the chain endpoint and contract. Without --output the file is
printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := config.Template()
		if err != nil {
			return fmt.Errorf("rendering configuration: %w", err)
		}
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			_, err := cmd.OutOrStdout().Write(doc)
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(out); err == nil && !force {
			return fmt.Errorf("%s already exists, pass --force to overwrite it", out)
		}
		if err := os.WriteFile(out, doc, 0600); err != nil {
			return fmt.Errorf("writing configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("output", "o", "", "Path to write the configuration to")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	Cmd.AddCommand(initCmd)
}
