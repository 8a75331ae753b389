package generator

const modelTemplate = `// Code generated by quill. DO NOT EDIT.

package {{ .Package }}

import (
	"context"
{{- if hasTime .Fields }}
	"time"
{{- end }}

{{- if hasUUID .Fields }}
	uuid "github.com/google/uuid"
{{- end }}
	"github.com/quillorm/quill/pkg/client"
)

// {{ .Name }} is the record type for the {{ .Name }} model.
type {{ .Name }} struct {
{{- range .Fields }}
	{{ export .Name }} {{ .Type }} {{ buildTags . }}
{{- end }}
}

// {{ .Name }}Service dispatches mutations for the {{ .Name }} model.
type {{ .Name }}Service struct {
	c *client.Client
}

func (s *{{ .Name }}Service) Create(ctx context.Context, input client.Mutation) ({{ .Name }}, error) {
	var out {{ .Name }}
	rec, err := s.c.Create(ctx, "{{ .Name }}", input)
	if err != nil {
		return out, err
	}
	err = client.DecodeRecord(rec, &out)
	return out, err
}

func (s *{{ .Name }}Service) Update(ctx context.Context, where client.UniqueWhere, data client.Mutation) ({{ .Name }}, error) {
	var out {{ .Name }}
	rec, err := s.c.Update(ctx, "{{ .Name }}", where, data)
	if err != nil {
		return out, err
	}
	err = client.DecodeRecord(rec, &out)
	return out, err
}

func (s *{{ .Name }}Service) Delete(ctx context.Context, where client.UniqueWhere) ({{ .Name }}, error) {
	var out {{ .Name }}
	rec, err := s.c.Delete(ctx, "{{ .Name }}", where)
	if err != nil {
		return out, err
	}
	err = client.DecodeRecord(rec, &out)
	return out, err
}

func (s *{{ .Name }}Service) Upsert(ctx context.Context, where client.UniqueWhere, create, update client.Mutation) ({{ .Name }}, error) {
	var out {{ .Name }}
	rec, err := s.c.Upsert(ctx, "{{ .Name }}", where, create, update)
	if err != nil {
		return out, err
	}
	err = client.DecodeRecord(rec, &out)
	return out, err
}

func (s *{{ .Name }}Service) UpdateMany(ctx context.Context, filter client.Filter, data client.Mutation) (client.BatchResult, error) {
	return s.c.UpdateMany(ctx, "{{ .Name }}", filter, data)
}

func (s *{{ .Name }}Service) DeleteMany(ctx context.Context, filter client.Filter) (client.BatchResult, error) {
	return s.c.DeleteMany(ctx, "{{ .Name }}", filter)
}

func (s *{{ .Name }}Service) FindUnique(ctx context.Context, where client.UniqueWhere) ({{ .Name }}, error) {
	var out {{ .Name }}
	rec, err := s.c.FindUnique(ctx, "{{ .Name }}", where)
	if err != nil {
		return out, err
	}
	err = client.DecodeRecord(rec, &out)
	return out, err
}

func (s *{{ .Name }}Service) FindMany(ctx context.Context, filter client.Filter) ([]{{ .Name }}, error) {
	recs, err := s.c.FindMany(ctx, "{{ .Name }}", filter)
	if err != nil {
		return nil, err
	}
	out := make([]{{ .Name }}, len(recs))
	for i, rec := range recs {
		if err := client.DecodeRecord(rec, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
`

const clientTemplate = `// Code generated by quill. DO NOT EDIT.

package {{ .Package }}

import (
	"github.com/quillorm/quill/pkg/client"
)

// Client bundles one service per model.
type Client struct {
	Runtime *client.Client
{{- range .Models }}
	{{ .Name }} *{{ .Name }}Service
{{- end }}
}

// NewClient wires the generated services onto a runtime client.
func NewClient(rt *client.Client) *Client {
	return &Client{
		Runtime: rt,
{{- range .Models }}
		{{ .Name }}: &{{ .Name }}Service{c: rt},
{{- end }}
	}
}
`
