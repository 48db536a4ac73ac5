// Package transport fetches records for the engine from a MySQL source.
package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/fetch"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/sqlutil"
	"github.com/dbsmedya/gofetch/internal/types"
)

// DefaultBatchSize bounds the values of one IN list.
const DefaultBatchSize = 1000

// ErrCompositeID is returned for "id" params on models with a composite key.
var ErrCompositeID = errors.New("id params are not supported on composite keys")

// table maps a model onto its source table.
type table struct {
	schema  *schema.Schema
	name    string
	columns map[string]string // field -> column
}

// MySQL implements fetch.Transport and fetch.ExtraResolver with one SELECT
// per parameter set and IN-list chunk.
type MySQL struct {
	db        *sql.DB
	tables    map[string]*table // model name and aka
	batchSize int
	log       *logger.Logger
}

// NewMySQL maps every configured model onto its table. Table and column
// names must be plain identifiers.
func NewMySQL(db *sql.DB, cfg *config.Config, registry *schema.Registry, log *logger.Logger) (*MySQL, error) {
	if db == nil {
		return nil, fmt.Errorf("source database is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	m := &MySQL{
		db:        db,
		tables:    make(map[string]*table),
		batchSize: cfg.Transport.BatchSize,
		log:       log,
	}
	if m.batchSize <= 0 {
		m.batchSize = DefaultBatchSize
	}

	for i := range cfg.Models {
		mc := &cfg.Models[i]
		s, ok := registry.Lookup(mc.Name)
		if !ok {
			return nil, fmt.Errorf("model %q is not registered", mc.Name)
		}

		t := &table{schema: s, name: mc.TableName(), columns: mc.Columns()}
		if !sqlutil.IsValidIdentifier(t.name) {
			return nil, fmt.Errorf("model %s: %w", s.Name, &sqlutil.InvalidIdentifierError{Name: t.name})
		}
		for _, col := range t.columns {
			if !sqlutil.IsValidIdentifier(col) {
				return nil, fmt.Errorf("model %s: %w", s.Name, &sqlutil.InvalidIdentifierError{Name: col})
			}
		}

		m.tables[s.Name] = t
		m.tables[s.Aka] = t
	}

	return m, nil
}

func (m *MySQL) table(model string) (*table, error) {
	t, ok := m.tables[model]
	if !ok {
		return nil, fmt.Errorf("model %q has no source table", model)
	}
	return t, nil
}

// column returns the source column of a field; "id" addresses the single
// identity field.
func (t *table) column(field string) (string, error) {
	if col, ok := t.columns[field]; ok {
		return col, nil
	}
	if field == "id" {
		if len(t.schema.IDFields) > 1 {
			return "", fmt.Errorf("%s: %w", t.schema.Name, ErrCompositeID)
		}
		if col, ok := t.columns[t.schema.IDFields[0]]; ok {
			return col, nil
		}
	}
	return "", fmt.Errorf("model %s has no column for %q", t.schema.Name, field)
}

// Request implements fetch.Transport.
func (m *MySQL) Request(ctx context.Context, req *fetch.Request) ([]interface{}, error) {
	t, err := m.table(req.Model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out []interface{}

	for _, params := range req.Params {
		wheres, err := m.where(t, params)
		if err != nil {
			return nil, err
		}
		for _, w := range wheres {
			if req.Range != nil && len(req.Edges) == 2 {
				begin, err := t.column(req.Edges[0])
				if err != nil {
					return nil, err
				}
				end, err := t.column(req.Edges[1])
				if err != nil {
					return nil, err
				}
				w.Overlaps(begin, end, req.Range.Min, req.Range.Max)
			}

			rows, err := m.selectRows(ctx, t, w)
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
	}

	m.log.Debugw("Fetched rows",
		"model", req.Model, "sets", len(req.Params), "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// where turns one parameter set into conditions. The longest list above
// the batch size is split into several statements.
func (m *MySQL) where(t *table, params types.Params) ([]*sqlutil.Where, error) {
	base := &sqlutil.Where{}
	var split string
	var splitValues []interface{}

	for _, k := range params.Keys() {
		col, err := t.column(k)
		if err != nil {
			return nil, err
		}
		v := params[k]
		if !types.IsList(v) {
			base.Eq(col, v)
			continue
		}

		list := types.List(v)
		if len(list) > m.batchSize && len(list) > len(splitValues) {
			if split != "" {
				base.In(split, splitValues)
			}
			split, splitValues = col, list
			continue
		}
		base.In(col, list)
	}

	if split == "" {
		return []*sqlutil.Where{base}, nil
	}

	var out []*sqlutil.Where
	for i := 0; i < len(splitValues); i += m.batchSize {
		end := i + m.batchSize
		if end > len(splitValues) {
			end = len(splitValues)
		}
		w := base.Clone()
		w.In(split, splitValues[i:end])
		out = append(out, w)
	}
	return out, nil
}

func (m *MySQL) selectRows(ctx context.Context, t *table, w *sqlutil.Where) ([]interface{}, error) {
	fields := make([]string, 0, len(t.schema.Fields))
	cols := make([]string, 0, len(t.schema.Fields))
	for _, f := range t.schema.Fields {
		col, ok := t.columns[f.Name]
		if !ok {
			continue
		}
		fields = append(fields, f.Name)
		cols = append(cols, sqlutil.QuoteIdentifier(col))
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s",
		strings.Join(cols, ", "),
		sqlutil.QuoteIdentifier(t.name),
		w.String(),
	)

	rows, err := m.db.QueryContext(ctx, query, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query failed for %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		values := make([]interface{}, len(fields))
		ptrs := make([]interface{}, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
		}

		row := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			row[f] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", t.name, err)
	}
	return out, nil
}

// pluck returns the distinct values of field over rows whose key is in values.
func (m *MySQL) pluck(ctx context.Context, t *table, key string, values []interface{}, field string) ([]interface{}, error) {
	keyCol, err := t.column(key)
	if err != nil {
		return nil, err
	}
	col, err := t.column(field)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	for i := 0; i < len(values); i += m.batchSize {
		end := i + m.batchSize
		if end > len(values) {
			end = len(values)
		}

		var w sqlutil.Where
		w.In(keyCol, values[i:end])
		query := fmt.Sprintf("SELECT DISTINCT %s FROM %s%s",
			sqlutil.QuoteIdentifier(col), sqlutil.QuoteIdentifier(t.name), w.String())

		rows, err := m.db.QueryContext(ctx, query, w.Args()...)
		if err != nil {
			return nil, fmt.Errorf("query failed for %s: %w", t.name, err)
		}
		for rows.Next() {
			var v interface{}
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s.%s: %w", t.name, col, err)
			}
			if v = normalize(v); v != nil {
				out = append(out, v)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating %s results: %w", t.name, err)
		}
		rows.Close()
	}
	return out, nil
}

// normalize converts driver byte slices into strings.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
