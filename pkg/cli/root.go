// Package cli wires the quill commands together.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "v0.1.0"

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

// NewRootCmd builds the top-level `quill` command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quill",
		Short: "Schema-driven client generation and migrations",
		Long: `quill manages database migrations and generates typed client code
from a schema file.

Examples:
  quill generate --schema schema.quill --config quill.yaml
  quill migrate dev --schema schema.quill --dir migrations
  quill migrate deploy --schema schema.quill --dir migrations
  quill migrate status --schema schema.quill --dir migrations`,
	}
	root.AddCommand(NewGenerateCmd())
	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

func buildLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
