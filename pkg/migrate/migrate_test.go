package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, dir string) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	mgr, err := NewManager(sqlx.NewDb(mockDB, "sqlmock"), dir, nil)
	require.NoError(t, err)
	return mgr, mock
}

func writeMigration(t *testing.T, dir string, version int, name, upSQL, downSQL string) {
	t.Helper()
	base := fmt.Sprintf("%04d_%s", version, name)
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".up.sql"), []byte(upSQL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".down.sql"), []byte(downSQL), 0o644))
}

func TestUp_AppliesPendingMigrations(t *testing.T) {
	dir := t.TempDir()
	upSQL := "CREATE TABLE foo();"
	writeMigration(t, dir, 1, "foo", upSQL, "DROP TABLE foo;")

	mgr, mock := newTestManager(t, dir)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// no rows yet, MAX(version) is NULL
	mock.ExpectQuery(`SELECT MAX\(version\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectExec(fmt.Sprintf("^%s$", regexp.QuoteMeta(upSQL))).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, mgr.Up())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_SkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, 1, "foo", "CREATE TABLE foo();", "DROP TABLE foo;")
	writeMigration(t, dir, 2, "bar", "CREATE TABLE bar();", "DROP TABLE bar;")

	mgr, mock := newTestManager(t, dir)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT MAX\(version\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	// only version 2 runs
	mock.ExpectExec(`^CREATE TABLE bar\(\);$`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, mgr.Up())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_RollsBackLatestMigration(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, 1, "foo", "X", "Y")

	mgr, mock := newTestManager(t, dir)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT MAX\(version\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectExec("^Y$").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM schema_migrations WHERE version = \$1`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, mgr.Down())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_NothingApplied(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, 1, "foo", "X", "Y")

	mgr, mock := newTestManager(t, dir)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT MAX\(version\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	require.NoError(t, mgr.Down())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_ReportsAppliedAndPending(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, 1, "foo", "X", "Y")
	writeMigration(t, dir, 2, "bar", "X", "Y")

	mgr, mock := newTestManager(t, dir)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT MAX\(version\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))

	out, err := mgr.Status()
	require.NoError(t, err)
	require.Contains(t, out, "Current version: 1")
	require.Contains(t, out, "0001_foo: applied")
	require.Contains(t, out, "0002_bar: pending")
	require.NoError(t, mock.ExpectationsWereMet())
}
