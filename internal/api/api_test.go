package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rpattn/projectledger/internal/api"
	"github.com/rpattn/projectledger/internal/db/dbtest"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/ingestion"
	"github.com/rpattn/projectledger/internal/metrics"
	"github.com/rpattn/projectledger/internal/persistence"
	"github.com/rpattn/projectledger/internal/repository"
	"github.com/rpattn/projectledger/internal/search"
	"github.com/rpattn/projectledger/internal/search/searchtest"
	"github.com/rpattn/projectledger/internal/service"
)

type server struct {
	handler   http.Handler
	metrics   *metrics.Metrics
	billIndex *searchtest.Recorder[domain.Bill]
}

func memory[T any](desc *repository.Descriptor[T]) search.Index[T] {
	return search.NewMemoryIndex(search.Mapping[T]{Entity: desc.Entity, ID: desc.ID, Text: desc.Text})
}

func coordinator[T any](runner *persistence.Runner, desc *repository.Descriptor[T], index search.Index[T]) *persistence.Coordinator[T] {
	return persistence.NewCoordinator(runner, repository.NewTable(desc), index)
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	runner := persistence.NewRunner(dbtest.Open(t), logger)
	s := &server{metrics: metrics.New(), billIndex: searchtest.NewRecorder[domain.Bill]()}

	projects := coordinator(runner, repository.Projects, memory(repository.Projects))
	members := coordinator(runner, repository.ProjectMembers, memory(repository.ProjectMembers))
	bills := coordinator(runner, repository.Bills, search.Index[domain.Bill](s.billIndex))
	positions := coordinator(runner, repository.BillPositions, memory(repository.BillPositions))
	roles := coordinator(runner, repository.ProjectMemberRoles, memory(repository.ProjectMemberRoles))
	assignments := coordinator(runner, repository.ProjectMemberRoleAssignments, memory(repository.ProjectMemberRoleAssignments))

	s.handler = api.NewRouter(api.Deps{
		Logger:                   logger,
		Metrics:                  s.metrics,
		AllowedOrigins:           []string{"http://localhost:3000"},
		Projects:                 projects,
		ProjectSettings:          coordinator(runner, repository.ProjectSettings, memory(repository.ProjectSettings)),
		ProjectMembers:           members,
		Bills:                    bills,
		BillPositions:            positions,
		ProjectMemberPermissions: coordinator(runner, repository.ProjectMemberPermissions, memory(repository.ProjectMemberPermissions)),

		ProjectMemberRoles:           roles,
		ProjectMemberRoleAssignments: assignments,
		ProjectMemberPermissionAssignments: coordinator(runner, repository.ProjectMemberPermissionAssignments,
			memory(repository.ProjectMemberPermissionAssignments)),
		Products: coordinator(runner, repository.Products, memory(repository.Products)),
		Stocks:   coordinator(runner, repository.Stocks, memory(repository.Stocks)),

		ProjectService: service.NewProjectService(runner, projects, members, roles, assignments),
		BillService:    service.NewBillService(runner, bills, positions),
		Importer:       ingestion.NewService(runner, bills, positions),
	})
	return s
}

func (s *server) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) json(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, "application/json", body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, code, body.ErrorCode)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
}

func (s *server) project(t *testing.T, name string) int64 {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/projects",
		fmt.Sprintf(`{"name":%q,"key":%q,"createTimestamp":"2024-05-17T09:30:00Z"}`, name, name))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return *decode[domain.Project](t, rec).ID
}

func (s *server) bill(t *testing.T, projectID int64, title string) int64 {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/bills",
		fmt.Sprintf(`{"title":%q,"project":{"id":%d}}`, title, projectID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return *decode[domain.Bill](t, rec).ID
}

func TestBills_CreateThenUpdate(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")

	rec := s.json(t, http.MethodPost, "/api/bills",
		fmt.Sprintf(`{"title":"AAAAAAAAAA","project":{"id":%d}}`, projectID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Bill](t, rec)
	require.NotNil(t, created.ID)
	assert.Equal(t, fmt.Sprintf("/api/bills/%d", *created.ID), rec.Header().Get("Location"))
	assert.Len(t, s.billIndex.CallsOf(search.OpIndex), 1)

	rec = s.json(t, http.MethodPut, fmt.Sprintf("/api/bills/%d", *created.ID),
		fmt.Sprintf(`{"id":%d,"title":"BBBBBBBBBB","project":{"id":%d}}`, *created.ID, projectID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/bills/%d", *created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[domain.Bill](t, rec)
	assert.Equal(t, "BBBBBBBBBB", *stored.Title)
	assert.Equal(t, projectID, stored.Project.ID)

	calls := s.billIndex.CallsOf(search.OpIndex)
	require.Len(t, calls, 2)
	assert.Equal(t, *created.ID, calls[1].ID)
}

func TestBills_CreateRejections(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")

	rec := s.json(t, http.MethodPost, "/api/bills",
		fmt.Sprintf(`{"id":5,"title":"AAAAAAAAAA","project":{"id":%d}}`, projectID))
	assertError(t, rec, http.StatusBadRequest, "DUPLICATE_IDENTITY")

	rec = s.json(t, http.MethodPost, "/api/bills", fmt.Sprintf(`{"project":{"id":%d}}`, projectID))
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.json(t, http.MethodPost, "/api/bills", `{"title":"AAAAAAAAAA","project":{"id":424242}}`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.json(t, http.MethodPost, "/api/bills", `{"title":`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	assert.Empty(t, s.billIndex.Calls())
}

func TestBills_UpdateIdentityErrors(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	id := s.bill(t, projectID, "AAAAAAAAAA")

	rec := s.json(t, http.MethodPut, "/api/bills/999999999",
		fmt.Sprintf(`{"id":999999999,"title":"BBBBBBBBBB","project":{"id":%d}}`, projectID))
	assertError(t, rec, http.StatusBadRequest, "UNKNOWN_IDENTITY")

	rec = s.json(t, http.MethodPut, fmt.Sprintf("/api/bills/%d", id),
		fmt.Sprintf(`{"title":"BBBBBBBBBB","project":{"id":%d}}`, projectID))
	assertError(t, rec, http.StatusBadRequest, "MISSING_IDENTITY")

	rec = s.json(t, http.MethodPut, fmt.Sprintf("/api/bills/%d", id),
		fmt.Sprintf(`{"id":%d,"title":"BBBBBBBBBB","project":{"id":%d}}`, id+1, projectID))
	assertError(t, rec, http.StatusBadRequest, "IDENTITY_MISMATCH")

	rec = s.json(t, http.MethodPut, "/api/bills",
		fmt.Sprintf(`{"id":%d,"title":"BBBBBBBBBB","project":{"id":%d}}`, id, projectID))
	assertError(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	rec = s.do(t, http.MethodPatch, "/api/bills", "application/merge-patch+json", fmt.Sprintf(`{"id":%d}`, id))
	assertError(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	assert.Len(t, s.billIndex.CallsOf(search.OpIndex), 1)
}

func TestBills_Patch(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	id := s.bill(t, projectID, "AAAAAAAAAA")
	path := fmt.Sprintf("/api/bills/%d", id)
	patch := fmt.Sprintf(`{"id":%d,"title":"BBBBBBBBBB","finalAmount":null}`, id)

	rec := s.do(t, http.MethodPatch, path, "text/plain", patch)
	assertError(t, rec, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE")

	for _, contentType := range []string{"application/merge-patch+json", "application/json; charset=utf-8"} {
		rec = s.do(t, http.MethodPatch, path, contentType, patch)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		patched := decode[domain.Bill](t, rec)
		assert.Equal(t, "BBBBBBBBBB", *patched.Title)
		assert.Equal(t, projectID, patched.Project.ID)
		assert.Nil(t, patched.FinalAmount)
	}

	rec = s.do(t, http.MethodPatch, path, "application/merge-patch+json", `{"title":"CCCCCCCCCC"}`)
	assertError(t, rec, http.StatusBadRequest, "MISSING_IDENTITY")
}

func TestBills_DeleteAndNotFound(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	id := s.bill(t, projectID, "AAAAAAAAAA")

	rec := s.json(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", projectID), "")
	assertError(t, rec, http.StatusConflict, "REFERENCED")

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/bills/%d", id), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Len(t, s.billIndex.CallsOf(search.OpRemove), 1)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/bills/%d", id), "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/bills/%d", id), "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
	assert.Len(t, s.billIndex.CallsOf(search.OpRemove), 1)

	rec = s.json(t, http.MethodGet, "/api/nothing-here", "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestRequestMetrics_CountUnmatchedRoutes(t *testing.T) {
	s := newServer(t)

	rec := s.json(t, http.MethodGet, "/api/nothing-here", "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
	rec = s.json(t, http.MethodPut, "/api/bills", `{}`)
	assertError(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	rec = s.json(t, http.MethodGet, "/api/bills", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues(http.MethodPut, "unmatched", "405")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/api/bills", "200")))
}

func TestBills_ListPagingAndCount(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	for _, title := range []string{"AAAAAAAAAA", "AAAAAAAAAB", "BBBBBBBBBB"} {
		s.bill(t, projectID, title)
	}

	rec := s.json(t, http.MethodGet, "/api/bills?size=2&title.contains=aaa", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	assert.Len(t, decode[[]domain.Bill](t, rec), 2)

	rec = s.json(t, http.MethodGet, "/api/bills?size=2&sort=title,asc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	link := rec.Header().Get("Link")
	assert.Contains(t, link, `rel="next"`)
	assert.Contains(t, link, `rel="last"`)
	assert.NotContains(t, link, `rel="prev"`)
	page := decode[[]domain.Bill](t, rec)
	require.Len(t, page, 2)
	assert.Equal(t, "AAAAAAAAAA", *page[0].Title)

	rec = s.json(t, http.MethodGet, "/api/bills/count?title.contains=aaa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[int64](t, rec))

	rec = s.json(t, http.MethodGet, "/api/bills?nope.equals=1", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_FILTER")

	rec = s.json(t, http.MethodGet, "/api/bills?size=0", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_FILTER")

	rec = s.json(t, http.MethodGet, "/api/bills?page=9223372036854775807&size=2000", "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_FILTER")
	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/bills?page=%d&size=20", math.MaxInt/20+1), "")
	assertError(t, rec, http.StatusBadRequest, "INVALID_FILTER")

	rec = s.json(t, http.MethodGet, "/api/bills?page=1000000&size=20", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]domain.Bill](t, rec))
}

func TestSearch(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")

	rec := s.json(t, http.MethodGet, "/api/_search/projects?query=apollo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	found := decode[[]domain.Project](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, projectID, *found[0].ID)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	s.billIndex.Fail(search.OpQuery, errors.New("connection refused"))
	rec = s.json(t, http.MethodGet, "/api/_search/bills?query=anything", "")
	assertError(t, rec, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE")
}

func TestWrites_SurviveIndexFailure(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	s.billIndex.Fail(search.OpIndex, errors.New("connection refused"))

	id := s.bill(t, projectID, "AAAAAAAAAA")

	rec := s.json(t, http.MethodGet, fmt.Sprintf("/api/bills/%d", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExport(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	s.bill(t, projectID, "AAAAAAAAAA")
	s.bill(t, projectID, "BBBBBBBBBB")

	rec := s.json(t, http.MethodGet, "/api/bills/export.csv?sort=title,asc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,title,closedTimestamp,finalAmount,project", lines[0])
	assert.Contains(t, lines[1], "AAAAAAAAAA")

	rec = s.json(t, http.MethodGet, "/api/bills/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bills.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestBootstrap(t *testing.T) {
	s := newServer(t)

	rec := s.json(t, http.MethodPost, "/api/projects/bootstrap", `{"name":"Straße Ausflug","userId":"user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[service.BootstrapResult](t, rec)
	assert.Equal(t, "Strae Ausflug", *result.Project.Key)
	assert.Equal(t, *result.Project.ID, *result.Member.ID)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/project-members/%d", *result.Project.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user-1", *decode[domain.ProjectMember](t, rec).UserID)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/project-member-role-assignments/%d", *result.Project.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assignment := decode[domain.ProjectMemberRoleAssignment](t, rec)
	assert.Equal(t, *result.Member.ID, assignment.ProjectMember.ID)
	require.Len(t, assignment.ProjectMemberRoles, 1)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/project-member-roles/%d", assignment.ProjectMemberRoles[0].ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RoleProjectAdmin, *decode[domain.ProjectMemberRole](t, rec).ProjectMemberRole)

	rec = s.json(t, http.MethodPost, "/api/projects/bootstrap", `{"name":"Apollo","userId":" "}`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")
}

func TestRoleAssignments(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")

	rec := s.json(t, http.MethodPost, "/api/project-member-role-assignments",
		fmt.Sprintf(`{"assignmentTimestamp":"2024-05-17T09:30:00Z","projectMember":{"id":%d}}`, projectID))
	assertError(t, rec, http.StatusBadRequest, "MISSING_OWNER")

	rec = s.json(t, http.MethodPost, "/api/project-members",
		fmt.Sprintf(`{"addedTimestamp":"2024-05-17T09:30:00Z","userId":"user-1","project":{"id":%d}}`, projectID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var roleIDs []int64
	for _, role := range []string{"PROJECT_ADMIN", "BILL_CONTRIBUTOR"} {
		rec = s.json(t, http.MethodPost, "/api/project-member-roles",
			fmt.Sprintf(`{"createdTimestamp":"2024-05-17T09:30:00Z","projectMemberRole":%q}`, role))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		roleIDs = append(roleIDs, *decode[domain.ProjectMemberRole](t, rec).ID)
	}
	rec = s.json(t, http.MethodPost, "/api/project-member-roles",
		`{"createdTimestamp":"2024-05-17T09:30:00Z","projectMemberRole":"OWNER"}`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.json(t, http.MethodPost, "/api/project-member-role-assignments",
		fmt.Sprintf(`{"assignmentTimestamp":"2024-05-17T09:30:00Z","projectMember":{"id":%d},"projectMemberRoles":[{"id":%d},{"id":%d}]}`,
			projectID, roleIDs[1], roleIDs[0]))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.ProjectMemberRoleAssignment](t, rec)
	assert.Equal(t, projectID, *created.ID)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/project-member-role-assignments?projectMemberRoleId.equals=%d", roleIDs[1]), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	found := decode[[]domain.ProjectMemberRoleAssignment](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, []domain.Ref{{ID: roleIDs[0]}, {ID: roleIDs[1]}}, found[0].ProjectMemberRoles)

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/project-member-roles/%d", roleIDs[0]), "")
	assertError(t, rec, http.StatusConflict, "REFERENCED")

	rec = s.json(t, http.MethodPut, fmt.Sprintf("/api/project-member-role-assignments/%d", projectID),
		fmt.Sprintf(`{"id":%d,"assignmentTimestamp":"2024-05-18T09:30:00Z","projectMemberRoles":[{"id":%d}]}`, projectID, roleIDs[1]))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/project-member-role-assignments/count?projectMemberRoleId.equals=%d", roleIDs[0]), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(0), decode[int64](t, rec))

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/project-member-roles/%d", roleIDs[0]), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/project-member-role-assignments/%d", projectID), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/project-member-roles/%d", roleIDs[1]), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestProductsAndStock(t *testing.T) {
	s := newServer(t)

	rec := s.json(t, http.MethodPost, "/api/products",
		`{"title":"Milk","scannerId":"4006040","usualDurationFromBuyTillExpire":"168h","expireMeansBad":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[domain.Product](t, rec)
	assert.Equal(t, domain.Duration(7*24*time.Hour), *product.UsualDurationFromBuyTillExpire)

	rec = s.json(t, http.MethodPost, "/api/products", `{"title":"Milk","scannerId":"1","usualDurationFromBuyTillExpire":"a week"}`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.json(t, http.MethodPost, "/api/stocks",
		fmt.Sprintf(`{"addedTimestamp":"2024-05-17T09:30:00Z","storageLocation":"fridge","calculatedExpiryTimestamp":"2024-05-24T09:30:00Z","product":{"id":%d}}`, *product.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodPost, "/api/stocks",
		`{"addedTimestamp":"2024-05-17T09:30:00Z","calculatedExpiryTimestamp":"2024-05-24T09:30:00Z"}`)
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.json(t, http.MethodGet,
		fmt.Sprintf("/api/stocks?productId.equals=%d&calculatedExpiryTimestamp.lessThan=2024-06-01T00:00:00Z", *product.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stocks := decode[[]domain.Stock](t, rec)
	require.Len(t, stocks, 1)
	assert.Equal(t, "fridge", *stocks[0].StorageLocation)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/products/%d", *product.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"usualDurationFromBuyTillExpire":"168h0m0s"`)

	rec = s.json(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", *product.ID), "")
	assertError(t, rec, http.StatusConflict, "REFERENCED")
}

func TestSharedKeyDependent(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	other := s.project(t, "Gemini")

	rec := s.json(t, http.MethodPost, "/api/project-settings",
		fmt.Sprintf(`{"mustProvideBillCopyByDefault":true,"project":{"id":%d}}`, projectID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, projectID, *decode[domain.ProjectSettings](t, rec).ID)

	rec = s.json(t, http.MethodPost, "/api/project-settings", `{"mustProvideBillCopyByDefault":true}`)
	assertError(t, rec, http.StatusBadRequest, "MISSING_OWNER")

	rec = s.json(t, http.MethodPut, fmt.Sprintf("/api/project-settings/%d", projectID),
		fmt.Sprintf(`{"id":%d,"mustProvideBillCopyByDefault":false,"project":{"id":%d}}`, projectID, other))
	assertError(t, rec, http.StatusBadRequest, "OWNER_REASSIGNED")
}

func TestCloseBill(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	billID := s.bill(t, projectID, "AAAAAAAAAA")
	for _, cost := range []string{"100.25", "50.25"} {
		rec := s.json(t, http.MethodPost, "/api/bill-positions",
			fmt.Sprintf(`{"title":"pos","cost":%s,"bill":{"id":%d}}`, cost, billID))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.json(t, http.MethodPost, fmt.Sprintf("/api/bills/%d/close", billID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[domain.Bill](t, rec)
	require.NotNil(t, closed.FinalAmount)
	assert.InDelta(t, 150.5, *closed.FinalAmount, 1e-9)
	assert.NotNil(t, closed.ClosedTimestamp)

	rec = s.json(t, http.MethodPost, "/api/bills/999999999/close", "")
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func upload(t *testing.T, fileName, content string) (string, *bytes.Buffer) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w.FormDataContentType(), &body
}

func TestImportPositions(t *testing.T) {
	s := newServer(t)
	projectID := s.project(t, "Apollo")
	billID := s.bill(t, projectID, "AAAAAAAAAA")
	path := fmt.Sprintf("/api/bills/%d/positions/import", billID)

	contentType, body := upload(t, "positions.csv", "title,cost\nHotel,120.5\nTrain,30\n")
	rec := s.do(t, http.MethodPost, path, contentType, body.String())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	summary := decode[ingestion.Summary](t, rec)
	assert.Equal(t, 2, summary.Imported)

	rec = s.json(t, http.MethodGet, fmt.Sprintf("/api/bill-positions/count?billId.equals=%d", billID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decode[int64](t, rec))

	contentType, body = upload(t, "positions.txt", "title,cost\n")
	rec = s.do(t, http.MethodPost, path, contentType, body.String())
	assertError(t, rec, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE")

	contentType, body = upload(t, "positions.csv", "title,cost\nHotel,120.5\n")
	rec = s.do(t, http.MethodPost, "/api/bills/999999999/positions/import", contentType, body.String())
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestCORSExposesPagingHeaders(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Total-Count")
}
