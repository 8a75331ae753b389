package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillorm/quill/pkg/config"
	"github.com/quillorm/quill/pkg/connector"
	"github.com/quillorm/quill/pkg/generator"
	"github.com/quillorm/quill/pkg/migrate"
)

// NewMigrateCmd builds the `migrate` command.
func NewMigrateCmd() *cobra.Command {
	var (
		schemaFile string
		configFile string
		dir        string
	)

	cmd := &cobra.Command{
		Use:       "migrate [dev|deploy|reset|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"dev", "deploy", "reset", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			cfg, err := config.Load(schemaFile, configFile)
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.Migrations = dir
			}
			logger := buildLogger(cfg.LogLevel)
			defer logger.Sync()
			sch := cfg.Schema

			conn, err := connector.Connect(connector.DriverFor(cfg.Provider), cfg.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			mgr, err := migrate.NewManager(conn.DB, cfg.Migrations, logger)
			if err != nil {
				return err
			}

			switch action {
			case "dev":
				if err := migrate.EnsureStubs(conn.DB, sch, cfg.Migrations, logger); err != nil {
					return fmt.Errorf("ensure stubs: %w", err)
				}
				if err := mgr.Dev(); err != nil {
					return err
				}
				// codegen after migrations
				return generator.Run(sch, cfg.Generators)
			case "deploy":
				return mgr.Deploy()
			case "reset":
				return mgr.Reset()
			case "status":
				status, err := mgr.Status()
				if err != nil {
					return err
				}
				cmd.Println(status)
				return nil
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "schema.quill", "schema file path")
	cmd.Flags().StringVar(&configFile, "config", "quill.yaml", "project config path")
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (overrides config)")
	return cmd
}
