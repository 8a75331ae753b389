package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	blockRe     = regexp.MustCompile(`(datasource|generator|model)\s+(\w+)\s*{([^}]*)}`)
	assignRe    = regexp.MustCompile(`(\w+)\s*=\s*(.+)`)
	relationRe  = regexp.MustCompile(`@relation\(\s*fields:\s*\[([^\]]*)\]\s*,\s*references:\s*\[([^\]]*)\]\s*\)`)
	groupAttrRe = regexp.MustCompile(`@@(unique|index)\(\[([^\]]*)\]\)`)
)

// Parse parses a schema file into a Schema.
func Parse(input []byte) (*Schema, error) {
	matches := blockRe.FindAllStringSubmatch(string(input), -1)
	if len(matches) == 0 {
		return nil, errors.New("no blocks found in schema")
	}

	var s Schema
	for _, m := range matches {
		kind, name, body := m[1], m[2], m[3]
		switch kind {
		case "datasource":
			parseDatasource(&s, body)
		case "generator":
			s.Generators = append(s.Generators, parseGenerator(name, body))
		case "model":
			model, err := parseModel(name, body)
			if err != nil {
				return nil, err
			}
			s.Models = append(s.Models, model)
		}
	}
	if len(s.Models) == 0 {
		return nil, errors.New("no model definitions found")
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseDatasource(s *Schema, body string) {
	for _, line := range strings.Split(body, "\n") {
		m := assignRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		val := strings.Trim(strings.TrimSpace(m[2]), `"`)
		switch m[1] {
		case "provider":
			s.Datasource.Provider = val
		case "url":
			// keep env("X") / ${env:X} verbatim; config resolves them
			s.Datasource.URL = strings.TrimSpace(m[2])
		}
	}
}

func parseGenerator(name, body string) GeneratorBlock {
	g := GeneratorBlock{Name: name}
	for _, line := range strings.Split(body, "\n") {
		m := assignRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		val := strings.Trim(strings.TrimSpace(m[2]), `"`)
		switch m[1] {
		case "provider", "target":
			g.Target = val
		case "output":
			g.Output = val
		}
	}
	return g
}

func parseModel(name, body string) (Model, error) {
	model := Model{Name: name}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if m := groupAttrRe.FindStringSubmatch(line); m != nil {
			fields := splitList(m[2])
			if m[1] == "unique" {
				model.UniqueSets = append(model.UniqueSets, fields)
			} else {
				model.Indexes = append(model.Indexes, fields)
			}
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		fname, ftype := parts[0], parts[1]

		if rel := relationRe.FindStringSubmatch(line); rel != nil {
			model.Relations = append(model.Relations, Relation{
				Name:       fname,
				Model:      strings.TrimSuffix(strings.TrimSuffix(ftype, "?"), "[]"),
				List:       strings.HasSuffix(ftype, "[]"),
				Fields:     splitList(rel[1]),
				References: splitList(rel[2]),
			})
			continue
		}
		if strings.HasSuffix(ftype, "[]") && isModelType(ftype) {
			// list relation without an explicit @relation attribute; the
			// foreign key lives on the target model
			model.Relations = append(model.Relations, Relation{
				Name:  fname,
				Model: strings.TrimSuffix(ftype, "[]"),
				List:  true,
			})
			continue
		}
		if isModelType(ftype) {
			model.Relations = append(model.Relations, Relation{
				Name:  fname,
				Model: strings.TrimSuffix(ftype, "?"),
			})
			continue
		}

		f := Field{Name: fname, Type: goType(ftype), Optional: strings.HasSuffix(ftype, "?")}
		if strings.Contains(line, "@id") {
			f.PrimaryKey = true
		}
		if strings.Contains(line, "@unique") {
			f.Unique = true
		}
		if idx := strings.Index(line, "@default("); idx >= 0 {
			expr := line[idx+len("@default("):]
			// the expression may itself contain parens, e.g. uuid()
			if end := closingParen(expr); end >= 0 {
				def := expr[:end]
				if def == "autoincrement()" {
					f.AutoIncrement = true
				} else {
					f.Default = &def
				}
				if def == "uuid()" && f.Type == "string" {
					f.Type = "uuid.UUID"
				}
			}
		}
		if strings.Contains(line, "@db.Uuid") {
			f.Type = "uuid.UUID"
		}
		model.Fields = append(model.Fields, f)
	}

	// selector sets: @id first, then each @unique field
	if pk := model.PrimaryKey(); pk != nil {
		model.UniqueSets = append([][]string{{pk.Name}}, model.UniqueSets...)
	}
	for _, f := range model.Fields {
		if f.Unique {
			model.UniqueSets = append(model.UniqueSets, []string{f.Name})
		}
	}
	return model, nil
}

func validate(s *Schema) error {
	for _, m := range s.Models {
		if m.PrimaryKey() == nil {
			return fmt.Errorf("model %s: missing @id field", m.Name)
		}
		for _, rel := range m.Relations {
			if s.Model(rel.Model) == nil {
				return fmt.Errorf("model %s: relation %s references unknown model %s", m.Name, rel.Name, rel.Model)
			}
			for _, fk := range rel.Fields {
				if m.Field(fk) == nil {
					return fmt.Errorf("model %s: relation %s names unknown field %s", m.Name, rel.Name, fk)
				}
			}
		}
		for _, set := range m.UniqueSets {
			for _, f := range set {
				if m.Field(f) == nil {
					return fmt.Errorf("model %s: unique set names unknown field %s", m.Name, f)
				}
			}
		}
	}
	return nil
}

// closingParen returns the index of the paren that closes an expression
// starting at depth one, or -1.
func closingParen(s string) int {
	depth := 1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isModelType reports whether a declared type names another model rather
// than a scalar.
func isModelType(t string) bool {
	t = strings.TrimSuffix(strings.TrimSuffix(t, "?"), "[]")
	switch t {
	case "String", "Int", "BigInt", "Float", "Boolean", "DateTime", "Json", "Bytes", "Decimal":
		return false
	}
	return t != "" && t[0] >= 'A' && t[0] <= 'Z'
}

func goType(ftype string) string {
	base := strings.TrimSuffix(ftype, "?")
	switch base {
	case "String":
		return "string"
	case "Int":
		return "int"
	case "BigInt":
		return "int64"
	case "Float", "Decimal":
		return "float64"
	case "Boolean":
		return "bool"
	case "DateTime":
		return "time.Time"
	case "Json":
		return "map[string]interface{}"
	case "Bytes":
		return "[]byte"
	default:
		return base
	}
}
