package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/domain"
)

// writeLinks inserts one link row per reference of every link of entity.
func (t *Table[T]) writeLinks(ctx context.Context, q db.Querier, entity *T, id int64) error {
	for _, l := range t.desc.Links {
		stmt := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", l.Table, l.OwnerColumn, l.TargetColumn)
		for _, ref := range l.Get(entity) {
			if _, err := q.ExecContext(ctx, stmt, id, ref.ID); err != nil {
				switch {
				case db.IsForeignKeyViolation(err):
					return fmt.Errorf("link %s %d to %s %d: referenced entity does not exist: %w",
						t.desc.Entity, id, l.Name, ref.ID, domain.ErrValidation)
				case db.IsUniqueViolation(err):
					return fmt.Errorf("link %s %d to %s %d: duplicate reference: %w",
						t.desc.Entity, id, l.Name, ref.ID, domain.ErrValidation)
				}
				return fmt.Errorf("link %s %d to %s %d: %w", t.desc.Entity, id, l.Name, ref.ID, err)
			}
		}
	}
	return nil
}

func (t *Table[T]) clearLinks(ctx context.Context, q db.Querier, id int64) error {
	for _, l := range t.desc.Links {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", l.Table, l.OwnerColumn)
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("unlink %s %d from %s: %w", t.desc.Entity, id, l.Name, err)
		}
	}
	return nil
}

// loadLinks fills the links of items with one query per link. Entities
// without link rows get an empty, non-nil slice.
func (t *Table[T]) loadLinks(ctx context.Context, q db.Querier, items []T) error {
	if len(t.desc.Links) == 0 || len(items) == 0 {
		return nil
	}

	index := make(map[int64][]int, len(items))
	args := make([]any, 0, len(items))
	for i := range items {
		id := t.desc.ID(&items[i])
		if id == nil {
			continue
		}
		if _, seen := index[*id]; !seen {
			args = append(args, *id)
		}
		index[*id] = append(index[*id], i)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	for _, l := range t.desc.Links {
		for i := range items {
			l.Set(&items[i], []domain.Ref{})
		}
		if len(args) == 0 {
			continue
		}

		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s, %s",
			l.OwnerColumn, l.TargetColumn, l.Table, l.OwnerColumn, marks, l.OwnerColumn, l.TargetColumn)
		linked, err := readLinks(ctx, q, query, args)
		if err != nil {
			return fmt.Errorf("load %s of %s: %w", l.Name, t.desc.Entity, err)
		}
		for owner, refs := range linked {
			for _, i := range index[owner] {
				l.Set(&items[i], refs)
			}
		}
	}
	return nil
}

func readLinks(ctx context.Context, q db.Querier, query string, args []any) (map[int64][]domain.Ref, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Ref)
	for rows.Next() {
		var owner, target int64
		if err := rows.Scan(&owner, &target); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], domain.Ref{ID: target})
	}
	return out, rows.Err()
}
