package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Capabilities describes what the underlying store supports. The
// nested-write planner consults Transactions to decide between a single
// transaction and best-effort sequential execution.
type Capabilities struct {
	Transactions bool
}

var driverCaps = map[string]Capabilities{
	"postgres": {Transactions: true},
}

// Conn is an open database connection plus its capabilities.
type Conn struct {
	DB     *sqlx.DB
	driver string
	caps   Capabilities
}

// NewConn wraps an already-open connection with explicit capabilities.
func NewConn(db *sqlx.DB, driver string, caps Capabilities) *Conn {
	return &Conn{DB: db, driver: driver, caps: caps}
}

// DriverFor maps a datasource provider onto its database/sql driver name.
func DriverFor(provider string) string {
	switch provider {
	case "postgresql", "postgres", "":
		return "postgres"
	default:
		return provider
	}
}

// Connect opens a database connection using the given driver and DSN.
func Connect(driver, dsn string) (*Conn, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is empty")
	}
	dsn = NormalizeDSN(dsn)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &Conn{DB: db, driver: driver, caps: driverCaps[driver]}, nil
}

// NormalizeDSN disables SSL by default for postgres URLs that do not
// specify an sslmode.
func NormalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") && !strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + "sslmode=disable"
	}
	return dsn
}

// Driver returns the driver name the connection was opened with.
func (c *Conn) Driver() string {
	return c.driver
}

// Capabilities returns the store's capabilities.
func (c *Conn) Capabilities() Capabilities {
	return c.caps
}

// Ping verifies the connection.
func (c *Conn) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.DB.Close()
}
