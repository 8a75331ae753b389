// Package generator emits per-model typed client code from a parsed
// schema.
package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/quillorm/quill/pkg/config"
	"github.com/quillorm/quill/pkg/schema"
)

// ErrUnknownTarget is returned for a generator target no backend exists for.
var ErrUnknownTarget = fmt.Errorf("unknown generator target")

// Generator writes client code for one language target.
type Generator struct {
	modelTmpl  *template.Template
	clientTmpl *template.Template
}

type modelTemplateData struct {
	Package string
	schema.Model
}

type clientTemplateData struct {
	Package string
	Models  []schema.Model
}

func New() *Generator {
	funcMap := template.FuncMap{
		"lower":     strings.ToLower,
		"export":    exportName,
		"hasTime":   hasTime,
		"hasUUID":   hasUUID,
		"buildTags": buildTags,
	}
	return &Generator{
		modelTmpl:  template.Must(template.New("model").Funcs(funcMap).Parse(modelTemplate)),
		clientTmpl: template.Must(template.New("client").Funcs(funcMap).Parse(clientTemplate)),
	}
}

// Run executes every configured generator target against the schema.
func Run(sch *schema.Schema, targets []config.Target) error {
	for _, t := range targets {
		switch t.Generator {
		case "go":
			if err := New().Generate(sch, t.Output); err != nil {
				return fmt.Errorf("generate %s: %w", t.Output, err)
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownTarget, t.Generator)
		}
	}
	return nil
}

// Generate writes one file per model plus client.go under outDir.
func (g *Generator) Generate(sch *schema.Schema, outDir string) error {
	pkgName := filepath.Base(outDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, model := range sch.Models {
		data := modelTemplateData{Package: pkgName, Model: model}
		path := filepath.Join(outDir, fmt.Sprintf("%s.go", strings.ToLower(model.Name)))
		if err := writeTemplate(g.modelTmpl, path, data); err != nil {
			return err
		}
	}
	clientPath := filepath.Join(outDir, "client.go")
	return writeTemplate(g.clientTmpl, clientPath, clientTemplateData{Package: pkgName, Models: sch.Models})
}

func writeTemplate(tmpl *template.Template, path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// hasTime returns true if any field uses time.Time.
func hasTime(fields []schema.Field) bool {
	for _, f := range fields {
		if f.Type == "time.Time" {
			return true
		}
	}
	return false
}

// hasUUID returns true if any field uses uuid.UUID.
func hasUUID(fields []schema.Field) bool {
	for _, f := range fields {
		if f.Type == "uuid.UUID" {
			return true
		}
	}
	return false
}

// exportName uppercases the first letter so generated struct fields are
// exported regardless of how the schema spells them.
func exportName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildTags(f schema.Field) string {
	return "`db:\"" + schema.ColumnName(f.Name) + "\"`"
}
