// Package client is the runtime the generated code calls into. It
// translates structured mutation payloads into SQL against the connected
// store and returns the affected records' scalar fields.
package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quillorm/quill/pkg/connector"
	"github.com/quillorm/quill/pkg/schema"
)

// Client dispatches mutations for the models of one parsed schema.
type Client struct {
	conn   *connector.Conn
	schema *schema.Schema
	logger *zap.Logger
	hooks  []Hooks
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHooks registers lifecycle hooks, invoked in registration order.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = append(c.hooks, h) }
}

// New wraps an existing connection.
func New(conn *connector.Conn, sch *schema.Schema, opts ...Option) *Client {
	c := &Client{conn: conn, schema: sch, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open connects to the store and returns a ready client.
func Open(driver, dsn string, sch *schema.Schema, opts ...Option) (*Client, error) {
	conn, err := connector.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return New(conn, sch, opts...), nil
}

// Connect verifies the store connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the store connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Schema returns the schema the client was built from.
func (c *Client) Schema() *schema.Schema {
	return c.schema
}

func (c *Client) model(name string) (*schema.Model, error) {
	m := c.schema.Model(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}
