package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillorm/quill/pkg/config"
	"github.com/quillorm/quill/pkg/generator"
)

// NewGenerateCmd builds the `generate` command.
func NewGenerateCmd() *cobra.Command {
	var (
		schemaFile string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate typed client code from the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(schemaFile, configFile)
			if err != nil {
				return err
			}
			if len(cfg.Generators) == 0 {
				return fmt.Errorf("no generator targets configured")
			}
			return generator.Run(cfg.Schema, cfg.Generators)
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "schema.quill", "schema file path")
	cmd.Flags().StringVar(&configFile, "config", "quill.yaml", "project config path")
	return cmd
}
