package db

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExportTables lists the tables that can be dumped. Table names are only ever
// taken from this list, never from user input.
var ExportTables = []string{"students", "reviews"}

func exportQuery(table string) (string, error) {
	switch table {
	case "students":
		return `SELECT * FROM students ORDER BY id`, nil
	case "reviews":
		return `SELECT * FROM reviews ORDER BY id`, nil
	}
	return "", errors.Wrapf(ErrUnknownTable, "table %q", table)
}

// dumpTable returns the column names and every row as driver values
// (int64, float64, string, []byte or nil).
func (s *ReviewStore) dumpTable(ctx context.Context, table string) ([]string, [][]any, error) {
	query, err := exportQuery(table)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, storageErr("export "+table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, storageErr("export "+table, err)
	}

	var records [][]any
	for rows.Next() {
		record := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range record {
			dest[i] = &record[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, storageErr("export "+table, err)
		}
		for i, v := range record {
			if b, ok := v.([]byte); ok {
				record[i] = string(b)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storageErr("export "+table, err)
	}
	return columns, records, nil
}

// cellText renders a driver value for CSV. NULL becomes "".
func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// ExportTable dumps students or reviews as CSV with a header row of column
// names.
func (s *ReviewStore) ExportTable(ctx context.Context, table string) (string, error) {
	columns, records, err := s.dumpTable(ctx, table)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return "", errors.Wrap(err, "failed to write csv header")
	}
	for _, record := range records {
		line := make([]string, len(record))
		for i, v := range record {
			line[i] = cellText(v)
		}
		if err := w.Write(line); err != nil {
			return "", errors.Wrap(err, "failed to write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "failed to flush csv")
	}

	s.logger.Info().Str("table", table).Int("rows", len(records)).Msg("exported table as csv")
	return buf.String(), nil
}

// ExportTableXLSX dumps students or reviews into a workbook with a single
// sheet named after the table. Integer columns stay numeric.
func (s *ReviewStore) ExportTableXLSX(ctx context.Context, table string) ([]byte, error) {
	columns, records, err := s.dumpTable(ctx, table)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", table); err != nil {
		return nil, errors.Wrap(err, "failed to name sheet")
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := setRow(f, table, 1, header); err != nil {
		return nil, err
	}
	for i, record := range records {
		if err := setRow(f, table, i+2, record); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}

	s.logger.Info().Str("table", table).Int("rows", len(records)).Msg("exported table as xlsx")
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrapf(err, "failed to address row %d", row)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "failed to write row %d", row)
	}
	return nil
}
