package db_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"review-tracker-go/models"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportStudentsFromExcel(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	buf := workbook(t, [][]any{
		{"Name", "Age", "Parents", "Occupation", "Phone", "Area"},
		{"Asha", 8, "R&S", "Eng/Doc", "555-1234", "Downtown"},
		{"", 9, "missing name"},
		{"Ravi", "ten"},
		{"Old", 42},
		{"Meera", "11"},
	})

	result, err := store.ImportStudentsFromExcel(ctx, buf, "Class 1A")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Skipped)

	students, err := store.ListStudents(ctx, "Class 1A")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Asha", students[0].Name)
	assert.Equal(t, 8, students[0].Age)
	assert.Equal(t, "Downtown", students[0].LivingArea)
	assert.Equal(t, "Meera", students[1].Name)
	assert.Equal(t, "", students[1].Phone)
}

func TestImportStudentsFromExcel_NotAWorkbook(t *testing.T) {
	store, _ := openStore(t)

	_, err := store.ImportStudentsFromExcel(context.Background(), bytes.NewBufferString("name,age\n"), "Class 1A")
	assert.Error(t, err)
}

func TestExportTableXLSX(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	_, err := store.AddStudent(ctx, asha())
	require.NoError(t, err)
	_, err = store.AddReview(ctx, models.NewReview{StudentID: 1, SubjectName: "Maths", ReviewDate: "2024-01-10", EduReview: "Good"})
	require.NoError(t, err)

	data, err := store.ExportTableXLSX(ctx, "students")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "students", f.GetSheetName(0))
	rows, err := f.GetRows("students")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "class_name", "name", "age", "parent_names", "parent_occ", "phone", "living_area"}, rows[0])
	assert.Equal(t, "Asha", rows[1][2])

	for _, cell := range []string{"A2", "D2"} {
		typ, err := f.GetCellType("students", cell)
		require.NoError(t, err)
		assert.NotEqual(t, excelize.CellTypeSharedString, typ, cell)
		assert.NotEqual(t, excelize.CellTypeInlineString, typ, cell)
	}
	age, err := f.GetCellValue("students", "D2")
	require.NoError(t, err)
	assert.Equal(t, "8", age)

	data, err = store.ExportTableXLSX(ctx, "reviews")
	require.NoError(t, err)
	f2, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows("reviews")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Good", rows[1][4])
}
