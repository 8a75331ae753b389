package schema

import (
	"strings"
	"unicode"
)

// Field describes a single scalar model field.
type Field struct {
	Name          string  // declared field name (e.g. "createdAt")
	Type          string  // Go type (e.g. "string", "int", "time.Time", "uuid.UUID")
	Optional      bool    // true if the field may be null
	Unique        bool    // true if the field carries @unique
	PrimaryKey    bool    // true if the field carries @id
	AutoIncrement bool    // true if the field defaults to autoincrement()
	Default       *string // default value expression, if any
}

// Relation describes a relation field to another model.
type Relation struct {
	Name       string   // field name on the declaring model
	Model      string   // target model name
	List       bool     // true for to-many relations
	Fields     []string // foreign key fields on the declaring model
	References []string // referenced fields on the target model
}

// Model describes one declared model.
type Model struct {
	Name       string
	Fields     []Field
	Relations  []Relation
	UniqueSets [][]string // selector field sets: the @id field, each @unique field, each @@unique group
	Indexes    [][]string // @@index groups
}

// GeneratorBlock is one generator entry from the schema file.
type GeneratorBlock struct {
	Name   string
	Target string // language target, e.g. "go"
	Output string
}

// Datasource holds the datasource block. URL is kept verbatim; env
// interpolation happens in pkg/config.
type Datasource struct {
	Provider string
	URL      string
}

// Schema is the parsed representation of a schema file.
type Schema struct {
	Datasource Datasource
	Generators []GeneratorBlock
	Models     []Model
}

// Model returns the model with the given name, or nil.
func (s *Schema) Model(name string) *Model {
	for i := range s.Models {
		if s.Models[i].Name == name {
			return &s.Models[i]
		}
	}
	return nil
}

// Field returns the scalar field with the given name, or nil.
func (m *Model) Field(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// Relation returns the relation field with the given name, or nil.
func (m *Model) Relation(name string) *Relation {
	for i := range m.Relations {
		if m.Relations[i].Name == name {
			return &m.Relations[i]
		}
	}
	return nil
}

// PrimaryKey returns the @id field of the model.
func (m *Model) PrimaryKey() *Field {
	for i := range m.Fields {
		if m.Fields[i].PrimaryKey {
			return &m.Fields[i]
		}
	}
	return nil
}

// HasUniqueSet reports whether the given field names form one of the
// model's declared unique selector sets, in any order.
func (m *Model) HasUniqueSet(fields []string) bool {
	for _, set := range m.UniqueSets {
		if len(set) != len(fields) {
			continue
		}
		matched := true
		for _, want := range set {
			found := false
			for _, got := range fields {
				if got == want {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// TableName returns the SQL table name for the model.
func (m *Model) TableName() string {
	return SnakeCase(m.Name)
}

// ColumnName returns the SQL column name for a declared field name.
func ColumnName(field string) string {
	return SnakeCase(field)
}

// QuoteIdent wraps an identifier in double quotes for SQL emission, so
// names that collide with reserved words (table "user") stay valid.
func QuoteIdent(name string) string {
	return `"` + name + `"`
}

// SnakeCase converts a declared name to its snake_case SQL form.
func SnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
