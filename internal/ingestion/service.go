// Package ingestion imports bill positions from CSV and Excel files.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/persistence"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Service imports the positions of a bill.
type Service struct {
	runner    *persistence.Runner
	bills     *persistence.Coordinator[domain.Bill]
	positions *persistence.Coordinator[domain.BillPosition]
}

func NewService(
	runner *persistence.Runner,
	bills *persistence.Coordinator[domain.Bill],
	positions *persistence.Coordinator[domain.BillPosition],
) *Service {
	return &Service{runner: runner, bills: bills, positions: positions}
}

// Request describes one uploaded position sheet.
type Request struct {
	BillID   int64
	FileName string
	Data     io.Reader
}

// Summary reports the positions created by an import.
type Summary struct {
	BillID    int64                 `json:"billId"`
	Imported  int                   `json:"imported"`
	Positions []domain.BillPosition `json:"positions"`
}

// Import reads a sheet with a title and a cost column and creates one
// position per data row. The import is all or nothing: a bad row rolls back
// every position of the file.
func (s *Service) Import(ctx context.Context, req Request) (Summary, error) {
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read upload: %w", err)
	}
	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return Summary{}, err
	}
	positions, err := table.positions(req.BillID)
	if err != nil {
		return Summary{}, err
	}

	err = s.runner.Do(ctx, func(u *persistence.Unit) error {
		if _, err := s.bills.GetIn(u, req.BillID); err != nil {
			return err
		}
		for i := range positions {
			if err := s.positions.CreateIn(u, &positions[i]); err != nil {
				return fmt.Errorf("row %d: %w", table.rowNumbers[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return Summary{BillID: req.BillID, Imported: len(positions), Positions: positions}, nil
}

type tableData struct {
	headers    []string
	rows       [][]string
	rowNumbers []int
}

func (t tableData) column(name string) int {
	for i, h := range t.headers {
		if h == name {
			return i
		}
	}
	return -1
}

func (t tableData) positions(billID int64) ([]domain.BillPosition, error) {
	titleCol, costCol := t.column("title"), t.column("cost")
	if titleCol < 0 || costCol < 0 {
		return nil, &domain.FieldError{Entity: "billPosition", Field: "header", Reason: "columns title and cost are required"}
	}

	out := make([]domain.BillPosition, 0, len(t.rows))
	for i, row := range t.rows {
		title := strings.TrimSpace(row[titleCol])
		rawCost := strings.TrimSpace(row[costCol])
		cost, err := strconv.ParseFloat(rawCost, 64)
		if err != nil {
			return nil, &domain.FieldError{
				Entity: "billPosition",
				Field:  "cost",
				Reason: fmt.Sprintf("row %d: %q is not a number", t.rowNumbers[i], rawCost),
			}
		}
		out = append(out, domain.BillPosition{Title: &title, Cost: &cost, Bill: domain.RefTo(billID)})
	}
	return out, nil
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: fmt.Sprintf("failed to read csv: %v", err)}
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: fmt.Sprintf("failed to open xlsx: %v", err)}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: "excel file has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows)
}

// normalizeTable takes the first non-empty row as the header and keeps every
// later non-empty row, padded to the header width. Row numbers count
// records from 1.
func normalizeTable(records [][]string) (tableData, error) {
	var table tableData
	for idx, row := range records {
		if isEmptyRow(row) {
			continue
		}
		if table.headers == nil {
			table.headers = sanitizeHeaders(row)
			continue
		}
		table.rows = append(table.rows, padRow(row, len(table.headers)))
		table.rowNumbers = append(table.rowNumbers, idx+1)
	}
	if table.headers == nil {
		return tableData{}, &domain.FieldError{Entity: "billPosition", Field: "file", Reason: "no rows found in file"}
	}
	return table, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		headers[idx] = strings.ToLower(strings.TrimSpace(value))
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
