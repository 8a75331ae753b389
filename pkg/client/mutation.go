package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quillorm/quill/pkg/schema"
)

// Mutation maps field names to scalar values or, for relation fields,
// RelationWrite directives.
type Mutation map[string]any

// UniqueWhere addresses exactly one record by one of the model's
// declared unique field sets.
type UniqueWhere map[string]any

// Filter selects records by field equality for batch and find operations.
// A nil value matches NULL.
type Filter map[string]any

// Record holds the scalar fields of one record, keyed by column name.
type Record map[string]any

// BatchResult reports only the count of records a bulk operation affected.
type BatchResult struct {
	Count int64
}

// Directive names how a related record is affected as part of writing a
// parent record.
type Directive int

const (
	DirectiveCreate Directive = iota
	DirectiveUpdate
	DirectiveUpsert
	DirectiveDelete
	DirectiveConnect
	DirectiveDisconnect
	DirectiveSet
)

var directiveNames = [...]string{"Create", "Update", "Upsert", "Delete", "Connect", "Disconnect", "Set"}

func (d Directive) String() string {
	if int(d) >= 0 && int(d) < len(directiveNames) {
		return directiveNames[d]
	}
	return fmt.Sprintf("Directive(%d)", int(d))
}

// RelationWrite is a nested-write directive attached to a relation field.
type RelationWrite struct {
	Directive Directive
	Data      Mutation      // Create payload; Update payload for the Update directive
	Update    Mutation      // Upsert update payload
	Where     UniqueWhere   // target selector for Update, Upsert, Delete, Connect, Disconnect
	Targets   []UniqueWhere // targets for Connect and Set on to-many relations
	Items     []Mutation    // multiple Create payloads on to-many relations
}

// Create inserts a record and returns its scalar fields. Relation fields
// carrying directives are applied as part of the same request.
func (c *Client) Create(ctx context.Context, model string, input Mutation) (Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	for _, h := range c.hooks {
		if err := h.BeforeCreate(ctx, model, input); err != nil {
			return nil, err
		}
	}
	var rec Record
	err = c.runWrite(ctx, hasRelationWrites(input), func(ex sqlx.ExtContext) error {
		var err error
		rec, err = c.createIn(ctx, ex, m, input)
		if err != nil {
			return err
		}
		// After hooks run inside the write so a failing hook aborts it
		for _, h := range c.hooks {
			if err := h.AfterCreate(ctx, model, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("create failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// Update modifies the single record addressed by where and returns its
// updated scalar fields. It returns ErrNotFound when no record matches.
func (c *Client) Update(ctx context.Context, model string, where UniqueWhere, data Mutation) (Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	for _, h := range c.hooks {
		if err := h.BeforeUpdate(ctx, model, data); err != nil {
			return nil, err
		}
	}
	var rec Record
	err = c.runWrite(ctx, hasRelationWrites(data), func(ex sqlx.ExtContext) error {
		var err error
		rec, err = c.updateIn(ctx, ex, m, where, data)
		if err != nil {
			return err
		}
		for _, h := range c.hooks {
			if err := h.AfterUpdate(ctx, model, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("update failed", zap.String("model", model), zap.Error(err))
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the single record addressed by where and returns its
// scalar fields as they were prior to deletion. It returns ErrNotFound
// when no record matches.
func (c *Client) Delete(ctx context.Context, model string, where UniqueWhere) (Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	for _, h := range c.hooks {
		if err := h.BeforeDelete(ctx, model, where); err != nil {
			return nil, err
		}
	}
	rec, err := c.deleteIn(ctx, c.conn.DB, m, where)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("delete failed", zap.String("model", model), zap.Error(err))
		}
		return nil, err
	}
	for _, h := range c.hooks {
		if err := h.AfterDelete(ctx, model, rec); err != nil {
			// the row is already gone; hand the pre-image back with the error
			return rec, err
		}
	}
	return rec, nil
}

// Upsert attempts Update and falls back to Create when no record matches
// where. Unique fields from where are folded into the create payload when
// absent from it.
func (c *Client) Upsert(ctx context.Context, model string, where UniqueWhere, create, update Mutation) (Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	var rec Record
	nested := hasRelationWrites(create) || hasRelationWrites(update)
	err = c.runWrite(ctx, nested, func(ex sqlx.ExtContext) error {
		for _, h := range c.hooks {
			if err := h.BeforeUpdate(ctx, model, update); err != nil {
				return err
			}
		}
		r, err := c.updateIn(ctx, ex, m, where, update)
		if err == nil {
			for _, h := range c.hooks {
				if err := h.AfterUpdate(ctx, model, r); err != nil {
					return err
				}
			}
			rec = r
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		data := cloneMutation(create)
		for k, v := range where {
			if _, ok := data[k]; !ok {
				data[k] = v
			}
		}
		for _, h := range c.hooks {
			if err := h.BeforeCreate(ctx, model, data); err != nil {
				return err
			}
		}
		r, err = c.createIn(ctx, ex, m, data)
		if err != nil {
			return err
		}
		for _, h := range c.hooks {
			if err := h.AfterCreate(ctx, model, r); err != nil {
				return err
			}
		}
		rec = r
		return nil
	})
	if err != nil {
		c.logger.Error("upsert failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// UpdateMany applies scalar updates to every record matching filter and
// returns only the affected count. Zero matches is not an error.
func (c *Client) UpdateMany(ctx context.Context, model string, filter Filter, data Mutation) (BatchResult, error) {
	m, err := c.model(model)
	if err != nil {
		return BatchResult{}, err
	}
	cols, rels, err := c.splitInput(m, data)
	if err != nil {
		return BatchResult{}, err
	}
	if len(rels) > 0 {
		return BatchResult{}, fmt.Errorf("%w: nested writes do not apply to batch updates", ErrUnsupportedDirective)
	}
	names, vals := orderedCols(m, cols)
	if len(names) == 0 {
		return BatchResult{}, fmt.Errorf("update data for %s is empty", model)
	}
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(tableIdent(m))
	assigns := make([]string, len(names))
	for i := range names {
		assigns[i] = ub.Assign(names[i], vals[i])
	}
	ub.Set(assigns...)
	if conds := whereConds(&ub.Cond, filter); len(conds) > 0 {
		ub.Where(conds...)
	}
	query, args := ub.Build()
	res, err := c.conn.DB.ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("batch update failed", zap.String("model", model), zap.Error(err))
		return BatchResult{}, wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return BatchResult{}, err
	}
	return BatchResult{Count: n}, nil
}

// DeleteMany removes every record matching filter and returns only the
// affected count. Zero matches is not an error.
func (c *Client) DeleteMany(ctx context.Context, model string, filter Filter) (BatchResult, error) {
	m, err := c.model(model)
	if err != nil {
		return BatchResult{}, err
	}
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(tableIdent(m))
	if conds := whereConds(&db.Cond, filter); len(conds) > 0 {
		db.Where(conds...)
	}
	query, args := db.Build()
	res, err := c.conn.DB.ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("batch delete failed", zap.String("model", model), zap.Error(err))
		return BatchResult{}, wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return BatchResult{}, err
	}
	return BatchResult{Count: n}, nil
}

// FindUnique fetches the single record addressed by where, or ErrNotFound.
func (c *Client) FindUnique(ctx context.Context, model string, where UniqueWhere) (Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	return c.findUniqueIn(ctx, c.conn.DB, m, where)
}

// FindMany fetches every record matching filter.
func (c *Client) FindMany(ctx context.Context, model string, filter Filter) ([]Record, error) {
	m, err := c.model(model)
	if err != nil {
		return nil, err
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(scalarColumns(m)...)
	sb.From(tableIdent(m))
	if conds := whereConds(&sb.Cond, filter); len(conds) > 0 {
		sb.Where(conds...)
	}
	query, args := sb.Build()
	rows, err := c.conn.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec := Record{}
		if err := rows.MapScan(rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// runWrite executes fn inside a transaction when the write touches
// related records and the store supports multi-statement transactions.
// Stores without transaction support get best-effort sequential
// execution with no rollback on partial failure.
func (c *Client) runWrite(ctx context.Context, nested bool, fn func(ex sqlx.ExtContext) error) error {
	if !nested {
		return fn(c.conn.DB)
	}
	if !c.conn.Capabilities().Transactions {
		c.logger.Warn("store lacks transaction support; applying nested writes sequentially without rollback",
			zap.String("driver", c.conn.Driver()))
		return fn(c.conn.DB)
	}
	tx, err := c.conn.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type relWrite struct {
	rel   *schema.Relation
	write RelationWrite
}

// splitInput partitions a mutation into scalar column values and relation
// writes, rejecting field names absent from the model.
func (c *Client) splitInput(m *schema.Model, input Mutation) (map[string]any, []relWrite, error) {
	cols := map[string]any{}
	var rels []relWrite
	for name, val := range input {
		if rel := m.Relation(name); rel != nil {
			var rw RelationWrite
			switch v := val.(type) {
			case RelationWrite:
				rw = v
			case *RelationWrite:
				rw = *v
			default:
				return nil, nil, fmt.Errorf("relation field %s.%s requires a RelationWrite", m.Name, name)
			}
			rels = append(rels, relWrite{rel: rel, write: rw})
			continue
		}
		if m.Field(name) != nil {
			cols[schema.ColumnName(name)] = val
			continue
		}
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].rel.Name < rels[j].rel.Name })
	return cols, rels, nil
}

func hasRelationWrites(input Mutation) bool {
	for _, v := range input {
		switch v.(type) {
		case RelationWrite, *RelationWrite:
			return true
		}
	}
	return false
}

func (c *Client) validateWhere(m *schema.Model, where UniqueWhere) error {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	if !m.HasUniqueSet(keys) {
		sort.Strings(keys)
		return fmt.Errorf("%w: %s(%s)", ErrInvalidSelector, m.Name, strings.Join(keys, ", "))
	}
	return nil
}

// scalarColumns returns the model's column identifiers quoted for SQL.
func scalarColumns(m *schema.Model) []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = schema.QuoteIdent(schema.ColumnName(f.Name))
	}
	return cols
}

func tableIdent(m *schema.Model) string {
	return schema.QuoteIdent(m.TableName())
}

// orderedCols returns column names and values in model declaration order,
// so the emitted SQL is deterministic.
func orderedCols(m *schema.Model, cols map[string]any) ([]string, []any) {
	var names []string
	var vals []any
	for _, f := range m.Fields {
		col := schema.ColumnName(f.Name)
		if v, ok := cols[col]; ok {
			names = append(names, schema.QuoteIdent(col))
			vals = append(vals, v)
		}
	}
	return names, vals
}

// whereConds builds equality conditions from a field-keyed map, sorted by
// field name. A nil value becomes IS NULL.
func whereConds(cond *sqlbuilder.Cond, vals map[string]any) []string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	for _, k := range keys {
		col := schema.QuoteIdent(schema.ColumnName(k))
		if vals[k] == nil {
			conds = append(conds, cond.IsNull(col))
		} else {
			conds = append(conds, cond.Equal(col, vals[k]))
		}
	}
	return conds
}

func cloneMutation(m Mutation) Mutation {
	out := make(Mutation, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (c *Client) queryRecord(ctx context.Context, ex sqlx.ExtContext, query string, args []any) (Record, error) {
	rows, err := ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	rec := Record{}
	if err := rows.MapScan(rec); err != nil {
		return nil, err
	}
	return rec, rows.Err()
}

func (c *Client) insertRecord(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, cols map[string]any) (Record, error) {
	names, vals := orderedCols(m, cols)
	var query string
	var args []any
	if len(names) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", tableIdent(m))
	} else {
		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(tableIdent(m))
		ib.Cols(names...)
		ib.Values(vals...)
		query, args = ib.Build()
	}
	query += " RETURNING " + strings.Join(scalarColumns(m), ", ")
	return c.queryRecord(ctx, ex, query, args)
}

func (c *Client) updateRecord(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, where UniqueWhere, cols map[string]any) (Record, error) {
	names, vals := orderedCols(m, cols)
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(tableIdent(m))
	assigns := make([]string, len(names))
	for i := range names {
		assigns[i] = ub.Assign(names[i], vals[i])
	}
	ub.Set(assigns...)
	ub.Where(whereConds(&ub.Cond, where)...)
	query, args := ub.Build()
	query += " RETURNING " + strings.Join(scalarColumns(m), ", ")
	return c.queryRecord(ctx, ex, query, args)
}

func (c *Client) deleteIn(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, where UniqueWhere) (Record, error) {
	if err := c.validateWhere(m, where); err != nil {
		return nil, err
	}
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(tableIdent(m))
	db.Where(whereConds(&db.Cond, where)...)
	query, args := db.Build()
	query += " RETURNING " + strings.Join(scalarColumns(m), ", ")
	return c.queryRecord(ctx, ex, query, args)
}

func (c *Client) findUniqueIn(ctx context.Context, ex sqlx.ExtContext, m *schema.Model, where UniqueWhere) (Record, error) {
	if err := c.validateWhere(m, where); err != nil {
		return nil, err
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(scalarColumns(m)...)
	sb.From(tableIdent(m))
	sb.Where(whereConds(&sb.Cond, where)...)
	query, args := sb.Build()
	return c.queryRecord(ctx, ex, query, args)
}
