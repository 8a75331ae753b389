package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/quillorm/quill/pkg/schema"
)

// createIn inserts a record, resolving relation directives relative to
// it: to-one relations whose foreign key lives on this model are settled
// before the insert, to-many relations after it.
func (c *Client) createIn(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, input Mutation) (Record, error) {
	cols, rels, err := c.splitInput(m, input)
	if err != nil {
		return nil, err
	}
	for _, rw := range rels {
		if rw.rel.List {
			continue
		}
		if err := c.applyToOne(ctx, ex, m, rw, cols); err != nil {
			return nil, err
		}
	}
	rec, err := c.insertRecord(ctx, ex, m, cols)
	if err != nil {
		return nil, err
	}
	for _, rw := range rels {
		if !rw.rel.List {
			continue
		}
		if err := c.applyToMany(ctx, ex, m, rec, rw); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// updateIn modifies the record addressed by where. A data payload with no
// scalar changes still resolves the record (and its to-many directives),
// so the caller always gets the record back or ErrNotFound.
func (c *Client) updateIn(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, where UniqueWhere, data Mutation) (Record, error) {
	if err := c.validateWhere(m, where); err != nil {
		return nil, err
	}
	cols, rels, err := c.splitInput(m, data)
	if err != nil {
		return nil, err
	}
	for _, rw := range rels {
		if rw.rel.List {
			continue
		}
		if err := c.applyToOne(ctx, ex, m, rw, cols); err != nil {
			return nil, err
		}
	}
	var rec Record
	if len(cols) == 0 {
		rec, err = c.findUniqueIn(ctx, ex, m, where)
	} else {
		rec, err = c.updateRecord(ctx, ex, m, where, cols)
	}
	if err != nil {
		return nil, err
	}
	for _, rw := range rels {
		if !rw.rel.List {
			continue
		}
		if err := c.applyToMany(ctx, ex, m, rec, rw); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// applyToOne settles a directive on a to-one relation by filling in (or
// clearing) the foreign key columns of the parent row being written.
func (c *Client) applyToOne(ctx context.Context, ex sqlx.ExtContext, parent *schema.Model, rw relWrite, cols map[string]any) error {
	rel := rw.rel
	if len(rel.Fields) == 0 {
		return fmt.Errorf("relation %s.%s: foreign key is not declared on %s", parent.Name, rel.Name, parent.Name)
	}
	target := c.schema.Model(rel.Model)
	switch rw.write.Directive {
	case DirectiveCreate:
		child, err := c.createIn(ctx, ex, target, rw.write.Data)
		if err != nil {
			return err
		}
		for i, fk := range rel.Fields {
			cols[schema.ColumnName(fk)] = child[schema.ColumnName(rel.References[i])]
		}
	case DirectiveConnect:
		vals, err := c.resolveRefs(ctx, ex, target, rw.write.Where, rel.References)
		if err != nil {
			return err
		}
		for i, fk := range rel.Fields {
			cols[schema.ColumnName(fk)] = vals[i]
		}
	case DirectiveDisconnect:
		for _, fk := range rel.Fields {
			cols[schema.ColumnName(fk)] = nil
		}
	default:
		return fmt.Errorf("%w: %s on to-one relation %s.%s", ErrUnsupportedDirective, rw.write.Directive, parent.Name, rel.Name)
	}
	return nil
}

// applyToMany settles a directive on a to-many relation, where the
// foreign key lives on the related model.
func (c *Client) applyToMany(ctx context.Context, ex sqlx.ExtContext, parent *schema.Model, parentRec Record, rw relWrite) error {
	rel := rw.rel
	target, back, err := c.childLink(parent, rel)
	if err != nil {
		return err
	}
	// link: child foreign key fields and their values taken from the parent
	link := make(Mutation, len(back.Fields))
	for i, fk := range back.Fields {
		link[fk] = parentRec[schema.ColumnName(back.References[i])]
	}

	switch rw.write.Directive {
	case DirectiveCreate:
		items := rw.write.Items
		if items == nil && rw.write.Data != nil {
			items = []Mutation{rw.write.Data}
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: Create on relation %s.%s carries no payload", ErrUnsupportedDirective, parent.Name, rel.Name)
		}
		for _, item := range items {
			data := cloneMutation(item)
			for k, v := range link {
				data[k] = v
			}
			if _, err := c.createIn(ctx, ex, target, data); err != nil {
				return err
			}
		}
	case DirectiveUpdate:
		if _, err := c.updateIn(ctx, ex, target, rw.write.Where, rw.write.Data); err != nil {
			return err
		}
	case DirectiveUpsert:
		_, err := c.updateIn(ctx, ex, target, rw.write.Where, rw.write.Update)
		if errors.Is(err, ErrNotFound) {
			data := cloneMutation(rw.write.Data)
			for k, v := range rw.write.Where {
				if _, ok := data[k]; !ok {
					data[k] = v
				}
			}
			for k, v := range link {
				data[k] = v
			}
			_, err = c.createIn(ctx, ex, target, data)
		}
		if err != nil {
			return err
		}
	case DirectiveDelete:
		if _, err := c.deleteIn(ctx, ex, target, rw.write.Where); err != nil {
			return err
		}
	case DirectiveConnect:
		for _, where := range targetsOf(rw.write) {
			if _, err := c.updateIn(ctx, ex, target, where, cloneMutation(link)); err != nil {
				return err
			}
		}
	case DirectiveDisconnect:
		nulls := make(Mutation, len(back.Fields))
		for _, fk := range back.Fields {
			nulls[fk] = nil
		}
		for _, where := range targetsOf(rw.write) {
			if _, err := c.updateIn(ctx, ex, target, where, cloneMutation(nulls)); err != nil {
				return err
			}
		}
	case DirectiveSet:
		// Set is a Disconnect of every current association followed by a
		// Connect of the given targets.
		if err := c.clearLinks(ctx, ex, target, back, parentRec); err != nil {
			return err
		}
		for _, where := range rw.write.Targets {
			if _, err := c.updateIn(ctx, ex, target, where, cloneMutation(link)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s on relation %s.%s", ErrUnsupportedDirective, rw.write.Directive, parent.Name, rel.Name)
	}
	return nil
}

// childLink resolves the relation on the target model that carries the
// foreign key back to the parent.
func (c *Client) childLink(parent *schema.Model, rel *schema.Relation) (*schema.Model, *schema.Relation, error) {
	target := c.schema.Model(rel.Model)
	if target == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModel, rel.Model)
	}
	for i := range target.Relations {
		back := &target.Relations[i]
		if back.Model == parent.Name && len(back.Fields) > 0 {
			return target, back, nil
		}
	}
	return nil, nil, fmt.Errorf("relation %s.%s: no foreign key back to %s declared on %s", parent.Name, rel.Name, parent.Name, target.Name)
}

// resolveRefs returns the referenced field values of the record addressed
// by where, reading the record only when the selector does not already
// carry them.
func (c *Client) resolveRefs(ctx context.Context, ex sqlx.ExtContext, target *schema.Model, where UniqueWhere, refs []string) ([]any, error) {
	if err := c.validateWhere(target, where); err != nil {
		return nil, err
	}
	vals := make([]any, len(refs))
	missing := false
	for i, ref := range refs {
		if v, ok := where[ref]; ok {
			vals[i] = v
		} else {
			missing = true
		}
	}
	if !missing {
		return vals, nil
	}
	rec, err := c.findUniqueIn(ctx, ex, target, where)
	if err != nil {
		return nil, err
	}
	for i, ref := range refs {
		vals[i] = rec[schema.ColumnName(ref)]
	}
	return vals, nil
}

// clearLinks nulls the foreign key of every record currently pointing at
// the parent.
func (c *Client) clearLinks(ctx context.Context, ex sqlx.ExtContext, target *schema.Model, back *schema.Relation, parentRec Record) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(tableIdent(target))
	assigns := make([]string, len(back.Fields))
	conds := make([]string, len(back.Fields))
	for i, fk := range back.Fields {
		col := schema.QuoteIdent(schema.ColumnName(fk))
		assigns[i] = ub.Assign(col, nil)
		conds[i] = ub.Equal(col, parentRec[schema.ColumnName(back.References[i])])
	}
	ub.Set(assigns...)
	ub.Where(conds...)
	query, args := ub.Build()
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return wrapDBErr(err)
	}
	return nil
}

func targetsOf(w RelationWrite) []UniqueWhere {
	if len(w.Targets) > 0 {
		return w.Targets
	}
	if len(w.Where) > 0 {
		return []UniqueWhere{w.Where}
	}
	return nil
}
