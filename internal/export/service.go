// Package export streams entity listings into CSV and Excel files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/projectledger/internal/domain"
)

// DefaultPageSize is the number of rows fetched per round trip.
const DefaultPageSize = 500

// Source returns one window of the rows to export.
type Source[T any] func(ctx context.Context, page domain.PageRequest) (domain.Page[T], error)

// Columns returns the JSON names of T's exported fields in declaration order.
func Columns[T any]() []string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name, ok := jsonName(t.Field(i)); ok {
			cols = append(cols, name)
		}
	}
	return cols
}

func jsonName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch tag {
	case "-":
		return "", false
	case "":
		return f.Name, true
	}
	return tag, true
}

// row renders the exported fields of entity in Columns order.
func row[T any](entity T) []string {
	v := reflect.ValueOf(entity)
	out := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if _, ok := jsonName(v.Type().Field(i)); !ok {
			continue
		}
		out = append(out, formatValue(v.Field(i).Interface()))
	}
	return out
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case *domain.Ref:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%d", v.ID)
	case []domain.Ref:
		ids := make([]string, len(v))
		for i, ref := range v {
			ids[i] = strconv.FormatInt(ref.ID, 10)
		}
		return strings.Join(ids, ",")
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case string:
		return v
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return formatValue(rv.Elem().Interface())
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", value)
}

// each walks src page by page until every row has been visited.
func each[T any](ctx context.Context, pageSize int, src Source[T], visit func(T) error) (int64, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var written int64
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		res, err := src(ctx, domain.PageRequest{Page: page, Size: pageSize})
		if err != nil {
			return written, fmt.Errorf("list rows: %w", err)
		}
		for _, item := range res.Items {
			if err := visit(item); err != nil {
				return written, err
			}
			written++
		}
		if len(res.Items) < pageSize || written >= res.Total {
			return written, nil
		}
	}
}

// WriteCSV writes a header row followed by every row of src.
func WriteCSV[T any](ctx context.Context, w io.Writer, pageSize int, src Source[T]) (int64, error) {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(Columns[T]()); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n, err := each(ctx, pageSize, src, func(item T) error {
		return csvWriter.Write(row(item))
	})
	if err != nil {
		return n, err
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return n, fmt.Errorf("flush csv: %w", err)
	}
	return n, nil
}

// WriteXLSX writes every row of src into a single sheet through excelize's
// stream writer.
func WriteXLSX[T any](ctx context.Context, w io.Writer, sheet string, pageSize int, src Source[T]) (int64, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}
	stream, err := book.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("open sheet stream: %w", err)
	}

	line := 1
	writeLine := func(values []string) error {
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		line++
		return stream.SetRow(cell, cells)
	}

	if err := writeLine(Columns[T]()); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n, err := each(ctx, pageSize, src, func(item T) error {
		return writeLine(row(item))
	})
	if err != nil {
		return n, err
	}
	if err := stream.Flush(); err != nil {
		return n, fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := book.WriteTo(w); err != nil {
		return n, fmt.Errorf("write workbook: %w", err)
	}
	return n, nil
}
