package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/domain"
)

// alias is the table alias predicates are compiled against.
const alias = "t"

// Table runs the relational operations of one entity type.
type Table[T any] struct {
	desc *Descriptor[T]

	selectList string
	insertSQL  string
	updateSQL  string
}

// NewTable prepares the static SQL for desc.
func NewTable[T any](desc *Descriptor[T]) *Table[T] {
	cols := make([]string, 0, len(desc.Columns)+1)
	cols = append(cols, alias+".id")
	for _, c := range desc.Columns {
		cols = append(cols, alias+"."+c)
	}

	insertCols := desc.Columns
	if desc.SharedKey() {
		insertCols = append([]string{"id"}, desc.Columns...)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")

	sets := make([]string, len(desc.Columns))
	for i, c := range desc.Columns {
		sets[i] = c + " = ?"
	}

	return &Table[T]{
		desc:       desc,
		selectList: strings.Join(cols, ", "),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			desc.Table, strings.Join(insertCols, ", "), marks),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", desc.Table, strings.Join(sets, ", ")),
	}
}

// Descriptor returns the mapping the table was built from.
func (t *Table[T]) Descriptor() *Descriptor[T] {
	return t.desc
}

// Insert stores a new row and writes the assigned identity back into entity.
// Shared-key entities must already carry their owner's identity.
func (t *Table[T]) Insert(ctx context.Context, q db.Querier, entity *T) error {
	args := t.desc.Values(entity)
	if t.desc.SharedKey() {
		id := t.desc.ID(entity)
		if id == nil {
			return fmt.Errorf("insert %s: shared-key identity not bound: %w", t.desc.Entity, domain.ErrMissingOwner)
		}
		args = append([]any{*id}, args...)
	}

	var id int64
	if err := q.QueryRowContext(ctx, t.insertSQL, args...).Scan(&id); err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert %s: referenced entity does not exist: %w", t.desc.Entity, domain.ErrValidation)
		}
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("insert %s: entity already exists: %w", t.desc.Entity, domain.ErrValidation)
		}
		return fmt.Errorf("insert %s: %w", t.desc.Entity, err)
	}
	t.desc.SetID(entity, id)
	return t.writeLinks(ctx, q, entity, id)
}

// Update replaces every column of the row identified by entity's id.
func (t *Table[T]) Update(ctx context.Context, q db.Querier, entity *T) error {
	id := t.desc.ID(entity)
	if id == nil {
		return fmt.Errorf("update %s: %w", t.desc.Entity, domain.ErrMissingIdentity)
	}
	args := append(t.desc.Values(entity), *id)

	res, err := q.ExecContext(ctx, t.updateSQL, args...)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("update %s %d: referenced entity does not exist: %w", t.desc.Entity, *id, domain.ErrValidation)
		}
		return fmt.Errorf("update %s %d: %w", t.desc.Entity, *id, err)
	}
	if err := affectedOne(res, t.desc.Entity, *id); err != nil {
		return err
	}
	if err := t.clearLinks(ctx, q, *id); err != nil {
		return err
	}
	return t.writeLinks(ctx, q, entity, *id)
}

// Delete removes the row and its link rows. Rows of other tables that still
// reference it make the delete fail with domain.ErrReferenced.
func (t *Table[T]) Delete(ctx context.Context, q db.Querier, id int64) error {
	if err := t.clearLinks(ctx, q, id); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.desc.Table), id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("delete %s %d: %w", t.desc.Entity, id, domain.ErrReferenced)
		}
		return fmt.Errorf("delete %s %d: %w", t.desc.Entity, id, err)
	}
	return affectedOne(res, t.desc.Entity, id)
}

func affectedOne(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func (t *Table[T]) Get(ctx context.Context, q db.Querier, id int64) (T, error) {
	var entity T
	query := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s.id = ?", t.selectList, t.desc.Table, alias, alias)
	if err := q.QueryRowContext(ctx, query, id).Scan(t.desc.Scan(&entity)...); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s %d: %w", t.desc.Entity, id, domain.ErrNotFound)
		}
		return zero, fmt.Errorf("get %s %d: %w", t.desc.Entity, id, err)
	}
	t.afterScan(&entity)
	items := []T{entity}
	if err := t.loadLinks(ctx, q, items); err != nil {
		var zero T
		return zero, err
	}
	return items[0], nil
}

func (t *Table[T]) Exists(ctx context.Context, q db.Querier, id int64) (bool, error) {
	return Exists(ctx, q, t.desc.Table, id)
}

// Exists reports whether table holds a row with the given id.
func Exists(ctx context.Context, q db.Querier, table string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %d exists: %w", table, id, err)
	}
	return true, nil
}

// Page returns the rows matching pred in the requested window together with
// the total number of matching rows. Both statements share the same FROM and
// WHERE text and the same arguments.
func (t *Table[T]) Page(ctx context.Context, q db.Querier, pred criteria.Predicate, sorts []domain.EntitySort, page domain.PageRequest) ([]T, int64, error) {
	total, err := t.Count(ctx, q, pred)
	if err != nil {
		return nil, 0, err
	}

	args := pred.Args()
	query := fmt.Sprintf("SELECT %s %s %s", t.selectList, t.from(pred), criteria.OrderClause(t.desc.Schema, alias, sorts))
	if page.Paged() {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	items, err := t.query(ctx, q, query, args)
	if err != nil {
		return nil, 0, err
	}
	// Links are read once the row cursor is closed; a transaction on SQLite
	// holds a single connection.
	if err := t.loadLinks(ctx, q, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (t *Table[T]) query(ctx context.Context, q db.Querier, query string, args []any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.desc.Entity, err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var entity T
		if err := rows.Scan(t.desc.Scan(&entity)...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.desc.Entity, err)
		}
		t.afterScan(&entity)
		items = append(items, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", t.desc.Entity, err)
	}
	return items, nil
}

func (t *Table[T]) Count(ctx context.Context, q db.Querier, pred criteria.Predicate) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) "+t.from(pred), pred.Args()...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.desc.Entity, err)
	}
	return total, nil
}

func (t *Table[T]) from(pred criteria.Predicate) string {
	from := fmt.Sprintf("FROM %s %s", t.desc.Table, alias)
	if where := pred.Where(); where != "" {
		from += " " + where
	}
	return from
}

// afterScan restores the owner reference of shared-key entities, which is
// not stored separately from the identity.
func (t *Table[T]) afterScan(entity *T) {
	if t.desc.Owner == nil {
		return
	}
	if id := t.desc.ID(entity); id != nil {
		t.desc.Owner.SetRef(entity, domain.RefTo(*id))
	}
}

// Alias is the table alias predicates must be compiled for.
func Alias() string {
	return alias
}
