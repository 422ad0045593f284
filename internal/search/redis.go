package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rpattn/projectledger/internal/domain"
)

// RedisIndex keeps an inverted index in Redis sets:
//
//	<prefix>:<entity>:doc:<id>    JSON payload
//	<prefix>:<entity>:term:<t>    ids containing term t
//	<prefix>:<entity>:terms:<id>  terms of document id
//	<prefix>:<entity>:all         every indexed id
type RedisIndex[T any] struct {
	client  redis.Cmdable
	mapping Mapping[T]
	prefix  string
}

func NewRedisIndex[T any](client redis.Cmdable, prefix string, mapping Mapping[T]) *RedisIndex[T] {
	return &RedisIndex[T]{
		client:  client,
		mapping: mapping,
		prefix:  prefix + ":" + mapping.Entity,
	}
}

func (r *RedisIndex[T]) docKey(id int64) string   { return r.prefix + ":doc:" + strconv.FormatInt(id, 10) }
func (r *RedisIndex[T]) termsKey(id int64) string { return r.prefix + ":terms:" + strconv.FormatInt(id, 10) }
func (r *RedisIndex[T]) termKey(t string) string  { return r.prefix + ":term:" + t }
func (r *RedisIndex[T]) allKey() string           { return r.prefix + ":all" }

func (r *RedisIndex[T]) fail(op Op, id int64, err error) error {
	return &IndexError{Op: op, Entity: r.mapping.Entity, ID: id, Err: err}
}

// Index writes the document and its term memberships in one MULTI block,
// clearing the memberships of any previous version first.
func (r *RedisIndex[T]) Index(ctx context.Context, entity T) error {
	doc, err := r.mapping.document(entity)
	if err != nil {
		return r.fail(OpIndex, 0, err)
	}
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return r.fail(OpIndex, doc.ID, fmt.Errorf("marshal payload: %w", err))
	}
	old, err := r.client.SMembers(ctx, r.termsKey(doc.ID)).Result()
	if err != nil {
		return r.fail(OpIndex, doc.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range old {
			pipe.SRem(ctx, r.termKey(t), doc.ID)
		}
		pipe.Del(ctx, r.termsKey(doc.ID))
		pipe.Set(ctx, r.docKey(doc.ID), payload, 0)
		for _, t := range doc.Terms {
			pipe.SAdd(ctx, r.termKey(t), doc.ID)
			pipe.SAdd(ctx, r.termsKey(doc.ID), t)
		}
		pipe.SAdd(ctx, r.allKey(), doc.ID)
		return nil
	})
	if err != nil {
		return r.fail(OpIndex, doc.ID, err)
	}
	return nil
}

func (r *RedisIndex[T]) Remove(ctx context.Context, id int64) error {
	old, err := r.client.SMembers(ctx, r.termsKey(id)).Result()
	if err != nil {
		return r.fail(OpRemove, id, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range old {
			pipe.SRem(ctx, r.termKey(t), id)
		}
		pipe.Del(ctx, r.termsKey(id), r.docKey(id))
		pipe.SRem(ctx, r.allKey(), id)
		return nil
	})
	if err != nil {
		return r.fail(OpRemove, id, err)
	}
	return nil
}

// Query intersects the term sets of text, orders ids newest first and loads
// the requested window with MGET.
func (r *RedisIndex[T]) Query(ctx context.Context, text string, page domain.PageRequest) (domain.Page[T], error) {
	var members []string
	var err error
	if matchAll(text) {
		members, err = r.client.SMembers(ctx, r.allKey()).Result()
	} else if terms := Tokenize(text); len(terms) > 0 {
		keys := make([]string, len(terms))
		for i, t := range terms {
			keys[i] = r.termKey(t)
		}
		members, err = r.client.SInter(ctx, keys...).Result()
	}
	if err != nil {
		return domain.Page[T]{}, r.fail(OpQuery, 0, err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return domain.Page[T]{}, r.fail(OpQuery, 0, fmt.Errorf("corrupt member %q: %w", m, err))
		}
		ids = append(ids, id)
	}
	sortDesc(ids)

	items := make([]T, 0)
	selected := window(ids, page)
	if len(selected) == 0 {
		return domain.Page[T]{Items: items, Total: int64(len(ids))}, nil
	}

	keys := make([]string, len(selected))
	for i, id := range selected {
		keys[i] = r.docKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return domain.Page[T]{}, r.fail(OpQuery, 0, err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entity T
		if err := json.Unmarshal([]byte(raw), &entity); err != nil {
			return domain.Page[T]{}, r.fail(OpQuery, selected[i], fmt.Errorf("unmarshal payload: %w", err))
		}
		items = append(items, entity)
	}
	return domain.Page[T]{Items: items, Total: int64(len(ids))}, nil
}
