package db

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"review-tracker-go/models"
)

// ImportResult reports how many rows of a spreadsheet became students.
type ImportResult struct {
	ClassName string `json:"className"`
	Imported  int    `json:"importedCount"`
	Skipped   int    `json:"skippedCount"`
}

// ImportStudentsFromExcel reads the first sheet of a workbook and adds one
// student per row to className. The first row is a header. Columns are name,
// age, parent names, parent occupation, phone, living area. Rows without a
// name or with an age outside 3-20 are skipped. All rows are written in one
// transaction.
func (s *ReviewStore) ImportStudentsFromExcel(ctx context.Context, file io.Reader, className string) (ImportResult, error) {
	result := ImportResult{ClassName: className}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return result, errors.Wrap(err, "failed to open excel file")
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing excel file")
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return result, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return result, errors.Wrapf(err, "failed to get rows from sheet %s", sheetName)
	}

	var students []models.NewStudent
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		ns, ok := studentFromRow(row, className)
		if !ok {
			s.logger.Debug().Int("row", i+1).Msg("skipping spreadsheet row")
			result.Skipped++
			continue
		}
		students = append(students, ns)
	}

	err = s.withWriteLock(ctx, func() error {
		tx, err := s.DB.BeginTxx(ctx, nil)
		if err != nil {
			return storageErr("begin import", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, ns := range students {
			if _, err := s.insertStudent(ctx, tx, ns); err != nil {
				return err
			}
		}
		return storageErr("commit import", tx.Commit())
	})
	if err != nil {
		return result, err
	}

	result.Imported = len(students)
	s.logger.Info().
		Str("class", className).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("imported students from excel")
	return result, nil
}

func studentFromRow(row []string, className string) (models.NewStudent, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	age, err := strconv.Atoi(cell(1))
	if err != nil {
		return models.NewStudent{}, false
	}

	ns := models.NewStudent{
		ClassName:   className,
		Name:        cell(0),
		Age:         age,
		ParentNames: cell(2),
		ParentOcc:   cell(3),
		Phone:       cell(4),
		LivingArea:  cell(5),
	}
	if ns.Validate() != nil {
		return models.NewStudent{}, false
	}
	return ns, true
}
