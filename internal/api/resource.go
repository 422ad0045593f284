package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/export"
	"github.com/rpattn/projectledger/internal/persistence"
)

const maxBodyBytes = 1 << 20

// resource serves the CRUD, count, search and export routes of one entity.
type resource[T any] struct {
	path   string
	c      *persistence.Coordinator[T]
	logger *zap.Logger
}

func mount[T any](r *mux.Router, path string, c *persistence.Coordinator[T], logger *zap.Logger) {
	res := &resource[T]{path: path, c: c, logger: logger}
	base := "/api/" + path

	r.HandleFunc(base, res.list).Methods(http.MethodGet)
	r.HandleFunc(base, res.create).Methods(http.MethodPost)
	r.HandleFunc(base+"/count", res.count).Methods(http.MethodGet)
	r.HandleFunc(base+"/export.xlsx", res.exportXLSX).Methods(http.MethodGet)
	r.HandleFunc(base+"/export.csv", res.exportCSV).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id:[0-9]+}", res.get).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id:[0-9]+}", res.update).Methods(http.MethodPut)
	r.HandleFunc(base+"/{id:[0-9]+}", res.patch).Methods(http.MethodPatch)
	r.HandleFunc(base+"/{id:[0-9]+}", res.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/_search/"+path, res.search).Methods(http.MethodGet)
}

func (res *resource[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, res.logger, err)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.FieldError{Entity: "path", Field: "id", Reason: fmt.Sprintf("%q is not an id", raw)}
	}
	return id, nil
}

func (res *resource[T]) decode(w http.ResponseWriter, r *http.Request, dst *T) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return &domain.FieldError{Entity: res.c.Entity(), Field: "body", Reason: err.Error()}
	}
	return nil
}

// query parses the filter and sort parameters of a listing request.
func (res *resource[T]) query(r *http.Request) (criteria.Spec, []domain.EntitySort, error) {
	q := r.URL.Query()
	spec, err := criteria.Parse(res.c.Schema(), q)
	if err != nil {
		return criteria.Spec{}, nil, err
	}
	sorts, err := criteria.ParseSort(res.c.Schema(), q["sort"])
	if err != nil {
		return criteria.Spec{}, nil, err
	}
	return spec, sorts, nil
}

func (res *resource[T]) list(w http.ResponseWriter, r *http.Request) {
	spec, sorts, err := res.query(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	page, err := parsePage(r.URL.Query())
	if err != nil {
		res.fail(w, r, err)
		return
	}
	result, err := res.c.List(r.Context(), spec, sorts, page)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	writePageHeaders(w, r, page, result.Total)
	writeJSON(w, http.StatusOK, result.Items)
}

func (res *resource[T]) count(w http.ResponseWriter, r *http.Request) {
	spec, err := criteria.Parse(res.c.Schema(), r.URL.Query())
	if err != nil {
		res.fail(w, r, err)
		return
	}
	n, err := res.c.Count(r.Context(), spec)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (res *resource[T]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	entity, err := res.c.Get(r.Context(), id)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (res *resource[T]) create(w http.ResponseWriter, r *http.Request) {
	var entity T
	if err := res.decode(w, r, &entity); err != nil {
		res.fail(w, r, err)
		return
	}
	if err := res.c.Create(r.Context(), &entity); err != nil {
		res.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/%s/%d", res.path, *res.c.ID(&entity)))
	writeJSON(w, http.StatusCreated, entity)
}

func (res *resource[T]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	var entity T
	if err := res.decode(w, r, &entity); err != nil {
		res.fail(w, r, err)
		return
	}
	if err := res.c.Update(r.Context(), id, &entity); err != nil {
		res.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// mergePatchTypes are the media types PATCH accepts.
var mergePatchTypes = map[string]bool{
	"application/json":             true,
	"application/merge-patch+json": true,
}

func (res *resource[T]) patch(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !mergePatchTypes[mediaType] {
		res.fail(w, r, fmt.Errorf("%q: %w", r.Header.Get("Content-Type"), errUnsupportedMediaType))
		return
	}
	id, err := pathID(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		res.fail(w, r, &domain.FieldError{Entity: res.c.Entity(), Field: "body", Reason: err.Error()})
		return
	}
	entity, err := res.c.Patch(r.Context(), id, body)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (res *resource[T]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	if err := res.c.Delete(r.Context(), id); err != nil {
		res.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *resource[T]) search(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		res.fail(w, r, err)
		return
	}
	result, err := res.c.Search(r.Context(), r.URL.Query().Get("query"), page)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	writePageHeaders(w, r, page, result.Total)
	writeJSON(w, http.StatusOK, result.Items)
}

func (res *resource[T]) exportXLSX(w http.ResponseWriter, r *http.Request) {
	res.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		func(ctx context.Context, out io.Writer, src export.Source[T]) error {
			_, err := export.WriteXLSX(ctx, out, res.c.Entity(), 0, src)
			return err
		})
}

func (res *resource[T]) exportCSV(w http.ResponseWriter, r *http.Request) {
	res.export(w, r, "csv", "text/csv",
		func(ctx context.Context, out io.Writer, src export.Source[T]) error {
			_, err := export.WriteCSV(ctx, out, 0, src)
			return err
		})
}

// export renders the filtered, sorted listing into a buffer first so a
// failure can still be reported with a proper status.
func (res *resource[T]) export(w http.ResponseWriter, r *http.Request, ext, contentType string,
	write func(context.Context, io.Writer, export.Source[T]) error) {
	spec, sorts, err := res.query(r)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	src := func(ctx context.Context, page domain.PageRequest) (domain.Page[T], error) {
		return res.c.List(ctx, spec, sorts, page)
	}

	var buf bytes.Buffer
	if err := write(r.Context(), &buf, src); err != nil {
		res.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.path+"."+ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
