// Package api exposes the ledger entities over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/ingestion"
	"github.com/rpattn/projectledger/internal/metrics"
	"github.com/rpattn/projectledger/internal/middleware"
	"github.com/rpattn/projectledger/internal/persistence"
	"github.com/rpattn/projectledger/internal/service"
)

// Deps is everything the router serves.
type Deps struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string

	Projects                 *persistence.Coordinator[domain.Project]
	ProjectSettings          *persistence.Coordinator[domain.ProjectSettings]
	ProjectMembers           *persistence.Coordinator[domain.ProjectMember]
	Bills                    *persistence.Coordinator[domain.Bill]
	BillPositions            *persistence.Coordinator[domain.BillPosition]
	ProjectMemberPermissions *persistence.Coordinator[domain.ProjectMemberPermission]

	ProjectMemberRoles                 *persistence.Coordinator[domain.ProjectMemberRole]
	ProjectMemberRoleAssignments       *persistence.Coordinator[domain.ProjectMemberRoleAssignment]
	ProjectMemberPermissionAssignments *persistence.Coordinator[domain.ProjectMemberPermissionAssignment]
	Products                           *persistence.Coordinator[domain.Product]
	Stocks                             *persistence.Coordinator[domain.Stock]

	ProjectService *service.ProjectService
	BillService    *service.BillService
	Importer       *ingestion.Service
}

// NewRouter builds the HTTP handler with CORS, request ids, panic recovery and
// request logging applied.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	r := mux.NewRouter()

	cmd := &commands{logger: logger, projects: deps.ProjectService, bills: deps.BillService, importer: deps.Importer}
	r.HandleFunc("/api/projects/bootstrap", cmd.bootstrap).Methods(http.MethodPost)
	r.HandleFunc("/api/bills/{id:[0-9]+}/close", cmd.closeBill).Methods(http.MethodPost)
	r.HandleFunc("/api/bills/{id:[0-9]+}/positions/import", cmd.importPositions).Methods(http.MethodPost)

	mount(r, "projects", deps.Projects, logger)
	mount(r, "project-settings", deps.ProjectSettings, logger)
	mount(r, "project-members", deps.ProjectMembers, logger)
	mount(r, "bills", deps.Bills, logger)
	mount(r, "bill-positions", deps.BillPositions, logger)
	mount(r, "project-member-permissions", deps.ProjectMemberPermissions, logger)
	mount(r, "project-member-roles", deps.ProjectMemberRoles, logger)
	mount(r, "project-member-role-assignments", deps.ProjectMemberRoleAssignments, logger)
	mount(r, "project-member-permission-assignments", deps.ProjectMemberPermissionAssignments, logger)
	mount(r, "products", deps.Products, logger)
	mount(r, "stocks", deps.Stocks, logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, logger, errMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, logger, errRouteNotFound)
	})

	r.Use(middleware.Route)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Total-Count", "Link", "Location", middleware.RequestIDHeader},
	})

	logged := middleware.Logging(logger, deps.Metrics)(r)
	return middleware.RequestID(middleware.Recovery(logger)(corsHandler.Handler(logged)))
}
