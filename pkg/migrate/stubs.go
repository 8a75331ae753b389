package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quillorm/quill/pkg/internal/typeconv"
	"github.com/quillorm/quill/pkg/schema"
)

var stubUpRe = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// EnsureStubs diffs the schema against the live database and writes
// migration stubs for new tables, column changes and implicit join tables.
func EnsureStubs(db *sqlx.DB, sch *schema.Schema, migrationsDir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Introspect live database for existing columns and types
	existingCols := map[string]map[string]bool{}
	existingTypes := map[string]map[string]string{}
	for _, model := range sch.Models {
		table := model.TableName()
		existingCols[table] = map[string]bool{}
		existingTypes[table] = map[string]string{}

		rows, err := db.Query(
			`SELECT column_name, udt_name
             FROM information_schema.columns
             WHERE table_schema = 'public' AND table_name = $1`,
			table,
		)
		if err != nil {
			return fmt.Errorf("introspect table %s: %w", table, err)
		}
		for rows.Next() {
			var col, udtName string
			if err := rows.Scan(&col, &udtName); err != nil {
				rows.Close()
				return fmt.Errorf("scan column for %s: %w", table, err)
			}
			existingCols[table][col] = true
			existingTypes[table][col] = strings.ToUpper(udtName)
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	seen := map[string]bool{}
	maxVer := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if m := stubUpRe.FindStringSubmatch(f.Name()); m != nil {
			seen[m[2]] = true
			if v, err := strconv.Atoi(m[1]); err == nil && v > maxVer {
				maxVer = v
			}
		}
	}

	write := func(name, upSQL, downSQL string) error {
		maxVer++
		upFile := fmt.Sprintf("%04d_%s.up.sql", maxVer, name)
		downFile := fmt.Sprintf("%04d_%s.down.sql", maxVer, name)
		if err := os.WriteFile(filepath.Join(migrationsDir, upFile), []byte(upSQL), 0o644); err != nil {
			return fmt.Errorf("write up stub: %w", err)
		}
		if err := os.WriteFile(filepath.Join(migrationsDir, downFile), []byte(downSQL), 0o644); err != nil {
			return fmt.Errorf("write down stub: %w", err)
		}
		logger.Info("generated migration stubs", zap.String("up", upFile), zap.String("down", downFile))
		return nil
	}

	for _, model := range sch.Models {
		table := model.TableName()
		existing := existingCols[table]
		types := existingTypes[table]

		if !seen[model.Name] {
			upSQL, downSQL := generateCreateTableSQL(&model)
			if err := write(model.Name, upSQL, downSQL); err != nil {
				return err
			}
			continue
		}

		// Existing table: detect adds, drops, and type changes
		qTable := schema.QuoteIdent(table)
		var alters []string
		var drops []string
		for _, f := range model.Fields {
			col := schema.ColumnName(f.Name)
			if !existing[col] {
				colType := typeconv.MapGoTypeToSQL(f.Type)
				null := ""
				if !f.Optional && f.Default == nil {
					null = " NOT NULL"
				}
				def := ""
				if f.Default != nil {
					def = fmt.Sprintf(" DEFAULT %s", defaultExpr(*f.Default))
				}
				alters = append(alters, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s%s%s;", qTable, schema.QuoteIdent(col), colType, null, def))
				drops = append(drops, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", qTable, schema.QuoteIdent(col)))
			}
		}
		for _, f := range model.Fields {
			col := schema.ColumnName(f.Name)
			if existing[col] {
				expected := typeconv.MapGoTypeToSQL(f.Type)
				actual := types[col]
				if typeconv.CanonicalType(expected) != typeconv.CanonicalType(actual) {
					alters = append(alters,
						fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", qTable, schema.QuoteIdent(col), typeconv.CanonicalType(expected)))
					drops = append(drops,
						fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", qTable, schema.QuoteIdent(col), typeconv.CanonicalType(actual)))
				}
			}
		}
		for col := range existing {
			found := false
			for _, f := range model.Fields {
				if schema.ColumnName(f.Name) == col {
					found = true
					break
				}
			}
			if !found {
				alters = append(alters, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", qTable, schema.QuoteIdent(col)))
				drops = append(drops, fmt.Sprintf("-- note: column %s dropped; manual re-add may be required", col))
			}
		}
		sort.Strings(alters)
		sort.Strings(drops)
		if len(alters) > 0 {
			if err := write(model.Name, strings.Join(alters, "\n"), strings.Join(drops, "\n")); err != nil {
				return err
			}
		}
	}

	// Implicit many-to-many join tables: reciprocal list relations with no
	// foreign key on either side.
	for _, model := range sch.Models {
		for _, rel := range model.Relations {
			if !rel.List || len(rel.Fields) > 0 {
				continue
			}
			other := sch.Model(rel.Model)
			if other == nil || model.Name >= other.Name {
				continue
			}
			reciprocal := false
			for _, r2 := range other.Relations {
				if r2.Model == model.Name && r2.List && len(r2.Fields) == 0 {
					reciprocal = true
					break
				}
			}
			if !reciprocal {
				continue
			}
			jtName := model.TableName() + "_" + other.TableName()
			if seen[jtName] {
				continue
			}
			pkA, pkB := model.PrimaryKey(), other.PrimaryKey()
			if pkA == nil || pkB == nil {
				continue
			}
			typeA := typeconv.MapGoTypeToSQL(pkA.Type)
			typeB := typeconv.MapGoTypeToSQL(pkB.Type)
			qJT := schema.QuoteIdent(jtName)
			colA := schema.QuoteIdent(model.TableName() + "_id")
			colB := schema.QuoteIdent(other.TableName() + "_id")
			upLines := []string{
				fmt.Sprintf("CREATE TABLE %s (\n    %s %s NOT NULL,\n    %s %s NOT NULL,\n    PRIMARY KEY (%s, %s)\n);",
					qJT,
					colA, typeA,
					colB, typeB,
					colA, colB),
				fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s);",
					qJT, colA, schema.QuoteIdent(model.TableName()), schema.QuoteIdent(schema.ColumnName(pkA.Name))),
				fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s);",
					qJT, colB, schema.QuoteIdent(other.TableName()), schema.QuoteIdent(schema.ColumnName(pkB.Name))),
			}
			if err := write(jtName, strings.Join(upLines, "\n\n"), fmt.Sprintf("DROP TABLE %s;", qJT)); err != nil {
				return err
			}
		}
	}
	return nil
}

func generateCreateTableSQL(model *schema.Model) (string, string) {
	table := model.TableName()
	var lines []string

	// Primary key column first
	if pk := model.PrimaryKey(); pk != nil {
		col := schema.ColumnName(pk.Name)
		var colType, defaultClause string
		switch {
		case pk.Type == "uuid.UUID":
			colType = "UUID"
			defaultClause = " DEFAULT uuid_generate_v4()"
		case pk.AutoIncrement && (pk.Type == "int" || pk.Type == "int32" || pk.Type == "int64"):
			colType = "SERIAL"
		default:
			colType = typeconv.MapGoTypeToSQL(pk.Type)
		}
		lines = append(lines, fmt.Sprintf("    %s %s PRIMARY KEY%s", schema.QuoteIdent(col), colType, defaultClause))
	}

	for _, f := range model.Fields {
		if f.PrimaryKey {
			continue
		}
		col := schema.ColumnName(f.Name)
		colType := typeconv.MapGoTypeToSQL(f.Type)
		clause := fmt.Sprintf("    %s %s", schema.QuoteIdent(col), colType)
		if !f.Optional {
			clause += " NOT NULL"
		}
		if f.Default != nil {
			clause += fmt.Sprintf(" DEFAULT %s", defaultExpr(*f.Default))
		}
		if f.Unique {
			clause += " UNIQUE"
		}
		lines = append(lines, clause)
	}

	// Compound unique sets (the pk and single @unique fields are already
	// constrained at the column level)
	for _, set := range model.UniqueSets {
		if len(set) < 2 {
			continue
		}
		cols := make([]string, len(set))
		for i, f := range set {
			cols[i] = schema.QuoteIdent(schema.ColumnName(f))
		}
		lines = append(lines, fmt.Sprintf("    UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	// Foreign keys from explicit relations
	for _, rel := range model.Relations {
		if len(rel.Fields) == 0 {
			continue
		}
		fks := make([]string, len(rel.Fields))
		for i, f := range rel.Fields {
			fks[i] = schema.QuoteIdent(schema.ColumnName(f))
		}
		refs := make([]string, len(rel.References))
		for i, f := range rel.References {
			refs[i] = schema.QuoteIdent(schema.ColumnName(f))
		}
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)",
			strings.Join(fks, ", "), schema.QuoteIdent(schema.SnakeCase(rel.Model)), strings.Join(refs, ", ")))
	}

	createTable := fmt.Sprintf("CREATE TABLE %s (\n%s\n);", schema.QuoteIdent(table), strings.Join(lines, ",\n"))

	var createIndexes []string
	var dropIndexes []string
	for idxNum, idx := range model.Indexes {
		idxName := fmt.Sprintf("idx_%s_%d", table, idxNum+1)
		cols := make([]string, len(idx))
		for i, f := range idx {
			cols[i] = schema.QuoteIdent(schema.ColumnName(f))
		}
		createIndexes = append(createIndexes, fmt.Sprintf(
			"CREATE INDEX %s ON %s (%s);", idxName, schema.QuoteIdent(table), strings.Join(cols, ", ")))
		dropIndexes = append(dropIndexes, fmt.Sprintf("DROP INDEX IF EXISTS %s;", idxName))
	}

	upLines := append([]string{createTable}, createIndexes...)
	upSQL := strings.Join(upLines, "\n\n")
	downLines := append(dropIndexes, fmt.Sprintf("DROP TABLE %s;", schema.QuoteIdent(table)))
	downSQL := strings.Join(downLines, "\n")
	return upSQL, downSQL
}

// defaultExpr maps a schema default expression onto its SQL form.
func defaultExpr(def string) string {
	switch def {
	case "now()":
		return "now()"
	case "uuid()":
		return "uuid_generate_v4()"
	default:
		return def
	}
}
