package search

import (
	"context"
	"sync"

	"github.com/rpattn/projectledger/internal/domain"
)

// MemoryIndex is an in-process inverted index. It backs the default
// configuration and the api tests.
type MemoryIndex[T any] struct {
	mapping Mapping[T]

	mu    sync.RWMutex
	docs  map[int64]Document[T]
	terms map[string]map[int64]struct{}
}

func NewMemoryIndex[T any](mapping Mapping[T]) *MemoryIndex[T] {
	return &MemoryIndex[T]{
		mapping: mapping,
		docs:    make(map[int64]Document[T]),
		terms:   make(map[string]map[int64]struct{}),
	}
}

// Index adds entity or replaces its previous document.
func (m *MemoryIndex[T]) Index(ctx context.Context, entity T) error {
	doc, err := m.mapping.document(entity)
	if err != nil {
		return &IndexError{Op: OpIndex, Entity: m.mapping.Entity, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &IndexError{Op: OpIndex, Entity: m.mapping.Entity, ID: doc.ID, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlink(doc.ID)
	m.docs[doc.ID] = doc
	for _, term := range doc.Terms {
		set, ok := m.terms[term]
		if !ok {
			set = make(map[int64]struct{})
			m.terms[term] = set
		}
		set[doc.ID] = struct{}{}
	}
	return nil
}

// Remove drops the document for id. Removing an unknown id is not an error.
func (m *MemoryIndex[T]) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return &IndexError{Op: OpRemove, Entity: m.mapping.Entity, ID: id, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlink(id)
	delete(m.docs, id)
	return nil
}

// unlink removes id from the term sets of its current document.
// Callers hold mu.
func (m *MemoryIndex[T]) unlink(id int64) {
	old, ok := m.docs[id]
	if !ok {
		return
	}
	for _, term := range old.Terms {
		set := m.terms[term]
		delete(set, id)
		if len(set) == 0 {
			delete(m.terms, term)
		}
	}
}

// Query returns the documents containing every term of text, newest first.
func (m *MemoryIndex[T]) Query(ctx context.Context, text string, page domain.PageRequest) (domain.Page[T], error) {
	if err := ctx.Err(); err != nil {
		return domain.Page[T]{}, &IndexError{Op: OpQuery, Entity: m.mapping.Entity, Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	if matchAll(text) {
		ids = make([]int64, 0, len(m.docs))
		for id := range m.docs {
			ids = append(ids, id)
		}
	} else {
		ids = m.intersect(Tokenize(text))
	}
	sortDesc(ids)

	items := make([]T, 0)
	for _, id := range window(ids, page) {
		items = append(items, m.docs[id].Payload)
	}
	return domain.Page[T]{Items: items, Total: int64(len(ids))}, nil
}

func (m *MemoryIndex[T]) intersect(terms []string) []int64 {
	if len(terms) == 0 {
		return nil
	}
	smallest := m.terms[terms[0]]
	for _, term := range terms[1:] {
		if set := m.terms[term]; len(set) < len(smallest) {
			smallest = set
		}
	}

	ids := make([]int64, 0, len(smallest))
candidates:
	for id := range smallest {
		for _, term := range terms {
			if _, ok := m.terms[term][id]; !ok {
				continue candidates
			}
		}
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of indexed documents.
func (m *MemoryIndex[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
