package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/ingestion"
	"github.com/rpattn/projectledger/internal/service"
)

const maxUploadBytes = 32 << 20

// commands serves the operations that span more than one entity.
type commands struct {
	logger   *zap.Logger
	projects *service.ProjectService
	bills    *service.BillService
	importer *ingestion.Service
}

func (c *commands) bootstrap(w http.ResponseWriter, r *http.Request) {
	var req service.BootstrapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, c.logger, &domain.FieldError{Entity: "project", Field: "body", Reason: err.Error()})
		return
	}
	result, err := c.projects.Bootstrap(r.Context(), req)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/projects/%d", *result.Project.ID))
	writeJSON(w, http.StatusCreated, result)
}

func (c *commands) closeBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	bill, err := c.bills.Close(r.Context(), id)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (c *commands) importPositions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, c.logger, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, c.logger, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: "multipart field file is required"})
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := c.importer.Import(r.Context(), ingestion.Request{
		BillID:   id,
		FileName: header.Filename,
		Data:     file,
	})
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	c.logger.Info("bill positions imported",
		zap.Int64("bill_id", id),
		zap.String("file", header.Filename),
		zap.Int("imported", summary.Imported))
	writeJSON(w, http.StatusCreated, summary)
}
