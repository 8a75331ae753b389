// Package quill is the top-level handle for applications that want the
// whole toolkit behind one call: parse the schema, resolve the project
// config, connect, and hand back the mutation client.
package quill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quillorm/quill/pkg/client"
	"github.com/quillorm/quill/pkg/config"
	"github.com/quillorm/quill/pkg/connector"
	"github.com/quillorm/quill/pkg/generator"
	"github.com/quillorm/quill/pkg/migrate"
)

// DB bundles an open connection, the parsed schema and the project
// configuration.
type DB struct {
	Client *client.Client

	cfg    *config.Config
	conn   *connector.Conn
	logger *zap.Logger
}

// Open loads the schema and project config, connects to the datasource
// and returns a ready handle.
func Open(schemaPath, configPath string, opts ...client.Option) (*DB, error) {
	cfg, err := config.Load(schemaPath, configPath)
	if err != nil {
		return nil, err
	}
	conn, err := connector.Connect(connector.DriverFor(cfg.Provider), cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	c := client.New(conn, cfg.Schema, append([]client.Option{client.WithLogger(logger)}, opts...)...)
	return &DB{Client: c, cfg: cfg, conn: conn, logger: logger}, nil
}

// Connect verifies the datasource connection.
func (d *DB) Connect(ctx context.Context) error {
	return d.Client.Connect(ctx)
}

// Close closes the datasource connection.
func (d *DB) Close() error {
	return d.Client.Close()
}

// Config returns the resolved project configuration.
func (d *DB) Config() *config.Config {
	return d.cfg
}

// Migrate applies pending migrations from the configured directory,
// generating stubs for schema drift first.
func (d *DB) Migrate() error {
	mgr, err := migrate.NewManager(d.conn.DB, d.cfg.Migrations, d.logger)
	if err != nil {
		return err
	}
	if err := migrate.EnsureStubs(d.conn.DB, d.cfg.Schema, d.cfg.Migrations, d.logger); err != nil {
		return fmt.Errorf("ensure stubs: %w", err)
	}
	return mgr.Dev()
}

// Generate runs every configured generator target against the schema.
func (d *DB) Generate() error {
	return generator.Run(d.cfg.Schema, d.cfg.Generators)
}
