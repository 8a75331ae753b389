// Package migrate applies versioned SQL migrations and generates
// migration stubs from the parsed schema.
package migrate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration holds one versioned migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Manager applies and rolls back migrations.
type Manager struct {
	db         *sqlx.DB
	dir        string
	logger     *zap.Logger
	migrations []Migration
}

var fileRe = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// NewManager loads migration files from the specified directory.
func NewManager(db *sqlx.DB, dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir: %w", err)
	}
	m := &Manager{db: db, dir: dir, logger: logger}
	if err := m.loadMigrations(); err != nil {
		return nil, err
	}
	return m, nil
}

// loadMigrations reads .up.sql/.down.sql files and organizes them by version.
func (m *Manager) loadMigrations() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	tmp := map[int]*Migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := fileRe.FindStringSubmatch(e.Name())
		if len(matches) != 4 {
			continue
		}
		ver, _ := strconv.Atoi(matches[1])
		name := matches[2]
		direction := matches[3]
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		mig, exists := tmp[ver]
		if !exists {
			mig = &Migration{Version: ver, Name: name}
			tmp[ver] = mig
		}
		if direction == "up" {
			mig.UpSQL = string(data)
		} else {
			mig.DownSQL = string(data)
		}
	}
	versions := make([]int, 0, len(tmp))
	for v := range tmp {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	m.migrations = m.migrations[:0]
	for _, v := range versions {
		m.migrations = append(m.migrations, *tmp[v])
	}
	return nil
}

// EnsureVersionTable creates schema_migrations if missing.
func (m *Manager) EnsureVersionTable() error {
	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	return err
}

// currentVersion returns the highest applied migration version.
func (m *Manager) currentVersion() (int, error) {
	var v sql.NullInt64
	row := m.db.QueryRow(`SELECT MAX(version) FROM schema_migrations;`)
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func (m *Manager) recordVersion(version int) error {
	_, err := m.db.Exec(`INSERT INTO schema_migrations(version) VALUES($1);`, version)
	return err
}

func (m *Manager) deleteVersion(version int) error {
	_, err := m.db.Exec(`DELETE FROM schema_migrations WHERE version = $1;`, version)
	return err
}

// Up applies all pending migrations.
func (m *Manager) Up() error {
	if err := m.EnsureVersionTable(); err != nil {
		return err
	}
	current, err := m.currentVersion()
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		m.logger.Info("applying migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		if _, err := m.db.Exec(mig.UpSQL); err != nil {
			return fmt.Errorf("apply up %d: %w", mig.Version, err)
		}
		if err := m.recordVersion(mig.Version); err != nil {
			return fmt.Errorf("record version %d: %w", mig.Version, err)
		}
	}
	return nil
}

// Down rolls back the latest applied migration.
func (m *Manager) Down() error {
	if err := m.EnsureVersionTable(); err != nil {
		return err
	}
	current, err := m.currentVersion()
	if err != nil {
		return err
	}
	if current == 0 {
		m.logger.Info("no migrations to roll back")
		return nil
	}
	var toRoll *Migration
	for i := len(m.migrations) - 1; i >= 0; i-- {
		if m.migrations[i].Version == current {
			toRoll = &m.migrations[i]
			break
		}
	}
	if toRoll == nil {
		return fmt.Errorf("migration not found for version %d", current)
	}
	m.logger.Info("rolling back migration", zap.Int("version", toRoll.Version), zap.String("name", toRoll.Name))
	if _, err := m.db.Exec(toRoll.DownSQL); err != nil {
		return fmt.Errorf("apply down %d: %w", toRoll.Version, err)
	}
	return m.deleteVersion(toRoll.Version)
}

// Dev applies pending migrations; callers generate stubs first.
func (m *Manager) Dev() error {
	if err := m.loadMigrations(); err != nil {
		return err
	}
	return m.Up()
}

// Deploy is Up without stub generation or drift detection.
func (m *Manager) Deploy() error {
	return m.Up()
}

// Reset rolls back every applied migration, then reapplies all of them.
func (m *Manager) Reset() error {
	if err := m.EnsureVersionTable(); err != nil {
		return err
	}
	current, err := m.currentVersion()
	if err != nil {
		return err
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if mig.Version > current {
			continue
		}
		m.logger.Info("reverting migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		if _, err := m.db.Exec(mig.DownSQL); err != nil {
			return fmt.Errorf("exec down migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.deleteVersion(mig.Version); err != nil {
			return fmt.Errorf("delete version %d: %w", mig.Version, err)
		}
	}
	return m.Up()
}

// Status reports the applied/pending state of every known migration.
func (m *Manager) Status() (string, error) {
	if err := m.EnsureVersionTable(); err != nil {
		return "", err
	}
	current, err := m.currentVersion()
	if err != nil {
		return "", err
	}
	lines := []string{fmt.Sprintf("Current version: %d", current)}
	for _, mig := range m.migrations {
		state := "pending"
		if mig.Version <= current {
			state = "applied"
		}
		lines = append(lines, fmt.Sprintf("%04d_%s: %s", mig.Version, mig.Name, state))
	}
	return strings.Join(lines, "\n"), nil
}
