// Package app wires configuration, storage, search and HTTP into one service.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/api"
	"github.com/rpattn/projectledger/internal/config"
	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/ingestion"
	"github.com/rpattn/projectledger/internal/metrics"
	"github.com/rpattn/projectledger/internal/persistence"
	"github.com/rpattn/projectledger/internal/repository"
	"github.com/rpattn/projectledger/internal/search"
	"github.com/rpattn/projectledger/internal/service"
)

// App holds the assembled service.
type App struct {
	Handler http.Handler
	Metrics *metrics.Metrics

	redis *redis.Client
}

// indexFactory builds the search index of one entity type.
type indexFactory struct {
	backend string
	client  redis.Cmdable
	prefix  string
}

func newIndex[T any](f indexFactory, desc *repository.Descriptor[T]) search.Index[T] {
	mapping := search.Mapping[T]{Entity: desc.Entity, ID: desc.ID, Text: desc.Text}
	if f.backend == config.BackendRedis {
		return search.NewRedisIndex(f.client, f.prefix, mapping)
	}
	return search.NewMemoryIndex(mapping)
}

func coordinator[T any](runner *persistence.Runner, f indexFactory, desc *repository.Descriptor[T]) *persistence.Coordinator[T] {
	return persistence.NewCoordinator(runner, repository.NewTable(desc), newIndex(f, desc))
}

// New builds the service on an open, migrated connection.
func New(ctx context.Context, cfg *config.Config, conn *db.Connection, logger *zap.Logger) (*App, error) {
	a := &App{Metrics: metrics.New()}

	factory := indexFactory{backend: cfg.Search.Backend}
	if cfg.Search.Backend == config.BackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Search.Redis.Addr,
			Password: cfg.Search.Redis.Password,
			DB:       cfg.Search.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Search.Redis.Addr, err)
		}
		factory.client = a.redis
		factory.prefix = cfg.Search.Redis.Prefix
		logger.Info("search backend ready", zap.String("backend", "redis"), zap.String("addr", cfg.Search.Redis.Addr))
	} else {
		logger.Warn("search backend is in memory; the index starts empty and is lost on restart")
	}

	runner := persistence.NewRunner(conn, logger,
		persistence.WithObserver(a.Metrics),
		persistence.WithIndexTimeout(cfg.Search.IndexTimeout))

	projects := coordinator(runner, factory, repository.Projects)
	members := coordinator(runner, factory, repository.ProjectMembers)
	bills := coordinator(runner, factory, repository.Bills)
	positions := coordinator(runner, factory, repository.BillPositions)
	roles := coordinator(runner, factory, repository.ProjectMemberRoles)
	roleAssignments := coordinator(runner, factory, repository.ProjectMemberRoleAssignments)

	a.Handler = api.NewRouter(api.Deps{
		Logger:                   logger,
		Metrics:                  a.Metrics,
		AllowedOrigins:           cfg.Server.AllowedOrigins,
		Projects:                 projects,
		ProjectSettings:          coordinator(runner, factory, repository.ProjectSettings),
		ProjectMembers:           members,
		Bills:                    bills,
		BillPositions:            positions,
		ProjectMemberPermissions: coordinator(runner, factory, repository.ProjectMemberPermissions),

		ProjectMemberRoles:                 roles,
		ProjectMemberRoleAssignments:       roleAssignments,
		ProjectMemberPermissionAssignments: coordinator(runner, factory, repository.ProjectMemberPermissionAssignments),
		Products:                           coordinator(runner, factory, repository.Products),
		Stocks:                             coordinator(runner, factory, repository.Stocks),

		ProjectService: service.NewProjectService(runner, projects, members, roles, roleAssignments),
		BillService:    service.NewBillService(runner, bills, positions),
		Importer:       ingestion.NewService(runner, bills, positions),
	})
	return a, nil
}

// Close releases the search backend. The connection belongs to the caller.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
