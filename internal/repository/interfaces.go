package repository

import (
	"context"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/domain"
)

// Repository defines the relational operations available for one entity type.
// Every method takes the querier to run on, so callers decide whether it
// joins a transaction.
type Repository[T any] interface {
	Insert(ctx context.Context, q db.Querier, entity *T) error
	Update(ctx context.Context, q db.Querier, entity *T) error
	Delete(ctx context.Context, q db.Querier, id int64) error
	Get(ctx context.Context, q db.Querier, id int64) (T, error)
	Exists(ctx context.Context, q db.Querier, id int64) (bool, error)
	Page(ctx context.Context, q db.Querier, pred criteria.Predicate, sorts []domain.EntitySort, page domain.PageRequest) ([]T, int64, error)
	Count(ctx context.Context, q db.Querier, pred criteria.Predicate) (int64, error)
}

var _ Repository[domain.Bill] = (*Table[domain.Bill])(nil)
