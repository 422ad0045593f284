// Package search maintains full-text indexes over committed entities.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rpattn/projectledger/internal/domain"
)

// Index is the search side of an entity type. Writes are issued only after
// the relational commit; the relational store remains the source of truth.
type Index[T any] interface {
	Index(ctx context.Context, entity T) error
	Remove(ctx context.Context, id int64) error
	Query(ctx context.Context, text string, page domain.PageRequest) (domain.Page[T], error)
}

// Op names an index operation.
type Op string

const (
	OpIndex  Op = "index"
	OpRemove Op = "remove"
	OpQuery  Op = "query"
)

// ErrNoIdentity is wrapped when an uncommitted entity is handed to an index.
var ErrNoIdentity = errors.New("entity has no id")

// IndexError is returned by every Index implementation.
type IndexError struct {
	Op     Op
	Entity string
	ID     int64
	Err    error
}

func (e *IndexError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("search %s %s %d: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("search %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Mapping tells an index how to identify and tokenize one entity type.
type Mapping[T any] struct {
	Entity string
	ID     func(*T) *int64
	Text   func(*T) []string
}

// Document is the indexed form of an entity.
type Document[T any] struct {
	ID      int64
	Terms   []string
	Payload T
}

func (m Mapping[T]) document(entity T) (Document[T], error) {
	id := m.ID(&entity)
	if id == nil {
		return Document[T]{}, ErrNoIdentity
	}
	return Document[T]{ID: *id, Terms: Tokenize(m.Text(&entity)...), Payload: entity}, nil
}

// Tokenize lower-cases values and splits them on anything that is not a
// letter or digit. The result is sorted and free of duplicates.
func Tokenize(values ...string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, tok := range strings.FieldsFunc(strings.ToLower(v), isSeparator) {
			seen[tok] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// matchAll reports whether a query selects every document.
func matchAll(text string) bool {
	text = strings.TrimSpace(text)
	return text == "" || text == "*"
}

// window returns the ids of the requested page out of ids sorted descending.
func window(ids []int64, page domain.PageRequest) []int64 {
	if !page.Paged() {
		return ids
	}
	start := page.Offset()
	if start >= len(ids) {
		return nil
	}
	end := start + page.Size
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}

func sortDesc(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
}
