// Package spreadsheet moves student records in and out of .xlsx workbooks.
//
// Export writes two sheets: "Students" and "Marks". Import reads students
// from the first sheet of an uploaded workbook, one per row after the
// header, in the column order firstName, lastName, dateOfBirth, email, age.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/utils/response"
	"github.com/aanand-mishra/students-api/internal/utils/validate"
)

const (
	StudentsSheet = "Students"
	MarksSheet    = "Marks"

	// ContentType is the MIME type of an .xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrBadWorkbook is returned by Import when the upload cannot be read as
// an .xlsx workbook.
var ErrBadWorkbook = errors.New("file is not a readable .xlsx workbook")

var (
	studentHeader = []any{"ID", "First name", "Last name", "Date of birth", "Email", "Age", "Created at"}
	markHeader    = []any{"ID", "Student ID", "Student email", "Subject", "Marks"}
)

// Export builds a workbook of every student matching search, newest first,
// with their marks. The caller must Close the returned file.
//
// Students are read a page at a time, each page in its own read. A student
// created while the export runs pushes older rows onto later pages; those
// rows are written once. A student deleted while it runs can move a row
// onto a page already read, and that row is missing from the workbook.
func Export(ctx context.Context, s storage.Storage, search string) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), StudentsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("Export: naming sheet: %w", err)
	}
	if _, err := f.NewSheet(MarksSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("Export: adding sheet: %w", err)
	}

	if err := writeRows(ctx, f, s, search); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRows(ctx context.Context, f *excelize.File, s storage.Storage, search string) error {
	if err := setRow(f, StudentsSheet, 1, studentHeader); err != nil {
		return err
	}
	if err := setRow(f, MarksSheet, 1, markHeader); err != nil {
		return err
	}

	studentRow, markRow := 2, 2
	seen := make(map[string]bool)
	p := query.Params{Page: 1, Limit: query.MaxLimit, Search: search}
	for {
		page, err := s.ListStudents(ctx, p)
		if err != nil {
			return fmt.Errorf("Export: listing page %d: %w", p.Page, err)
		}

		for _, st := range page.Items {
			if seen[st.ID] {
				continue
			}
			seen[st.ID] = true

			row := []any{st.ID, st.FirstName, st.LastName, st.DateOfBirth, st.Email, st.Age,
				st.CreatedAt.UTC().Format(time.RFC3339)}
			if err := setRow(f, StudentsSheet, studentRow, row); err != nil {
				return err
			}
			studentRow++

			for _, m := range st.Marks {
				if err := setRow(f, MarksSheet, markRow, []any{m.ID, st.ID, st.Email, m.Subject, m.Marks}); err != nil {
					return err
				}
				markRow++
			}
		}

		if p.Page >= query.TotalPages(page.Total, p.Limit) {
			break
		}
		p.Page++
	}

	slog.Debug("spreadsheet export built",
		slog.Int("students", studentRow-2), slog.Int("marks", markRow-2))
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("Export: %s row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("Export: %s row %d: %w", sheet, row, err)
	}
	return nil
}

// RowError reports one skipped import row. Row is 1-based, as shown by
// spreadsheet applications.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarises an import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped"`
}

// Import creates a student for every valid row of the first sheet in r.
// Rows that fail validation or reuse a taken email are reported in
// Skipped; blank rows are ignored. Any other storage failure aborts the
// import and returns what was done so far.
func Import(ctx context.Context, s storage.Storage, r io.Reader) (ImportResult, error) {
	res := ImportResult{Skipped: []RowError{}}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("Import: %w: %w", ErrBadWorkbook, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing workbook", slog.String("error", err.Error()))
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return res, fmt.Errorf("Import: no sheets: %w", ErrBadWorkbook)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return res, fmt.Errorf("Import: reading sheet %s: %w: %w", sheet, ErrBadWorkbook, err)
	}

	for i, row := range rows {
		if i == 0 || blank(row) {
			continue
		}
		line := i + 1

		in, err := parseRow(row)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: line, Reason: err.Error()})
			continue
		}

		if err := validate.Struct(in); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				res.Skipped = append(res.Skipped, RowError{Row: line, Reason: response.ValidationError(verrs).Error})
				continue
			}
			return res, fmt.Errorf("Import: row %d: %w", line, err)
		}

		if _, err := s.CreateStudent(ctx, in); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				res.Skipped = append(res.Skipped, RowError{Row: line, Reason: "email already taken"})
				continue
			}
			return res, fmt.Errorf("Import: row %d: %w", line, err)
		}
		res.Imported++
	}

	slog.Info("spreadsheet import finished",
		slog.Int("imported", res.Imported), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func parseRow(row []string) (types.StudentInput, error) {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	in := types.StudentInput{
		FirstName:   cell(0),
		LastName:    cell(1),
		DateOfBirth: cell(2),
		Email:       cell(3),
	}.Normalize()

	if raw := strings.TrimSpace(cell(4)); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return in, fmt.Errorf("age %q is not a whole number", raw)
		}
		in.Age = age
	}
	return in, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
