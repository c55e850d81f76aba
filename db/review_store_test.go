package db_test

import (
	"context"
	"encoding/csv"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-tracker-go/config"
	"review-tracker-go/db"
	"review-tracker-go/models"
)

func openStore(t *testing.T) (*db.ReviewStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.db")
	store, err := db.OpenReviewStore(context.Background(), config.DatabaseConfig{Path: path}, db.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func asha() models.NewStudent {
	return models.NewStudent{
		ClassName:   "Class 1A",
		Name:        "Asha",
		Age:         8,
		ParentNames: "R&S",
		ParentOcc:   "Eng/Doc",
		Phone:       "555-1234",
		LivingArea:  "Downtown",
	}
}

func TestInitialize_SeedsDefaultSubjects(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	subjects, err := store.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths", "EVS", "Social", "English"}, subjects)
}

func TestInitialize_Idempotent(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx))

	// reopening the same file runs Initialize again
	reopened, err := db.OpenReviewStore(ctx, config.DatabaseConfig{Path: path}, db.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer reopened.Close()

	subjects, err := reopened.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subjects, 4)

	var tables int
	require.NoError(t, reopened.DB.GetContext(ctx, &tables,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('classes', 'subjects', 'students', 'reviews')`))
	assert.Equal(t, 4, tables)
}

func TestInitialize_KeepsExistingSubjects(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	_, err := store.DB.ExecContext(ctx, `DELETE FROM subjects WHERE name != 'Maths'`)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))

	subjects, err := store.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths"}, subjects)
}

func TestAddClass(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		classes, err := store.ListClasses(ctx)
		require.NoError(t, err)
		assert.Empty(t, classes)
		assert.NotNil(t, classes)
	})

	t.Run("Duplicate", func(t *testing.T) {
		clazz, err := store.AddClass(ctx, "Class 1A")
		require.NoError(t, err)
		assert.Positive(t, clazz.ID)

		_, err = store.AddClass(ctx, "Class 1A")
		assert.ErrorIs(t, err, db.ErrDuplicateKey)
		assert.NotErrorIs(t, err, db.ErrStorageUnavailable)

		classes, err := store.ListClasses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Class 1A"}, classes)
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		_, err := store.AddClass(ctx, "Class 2B")
		require.NoError(t, err)
		_, err = store.AddClass(ctx, "Class 0Z")
		require.NoError(t, err)

		classes, err := store.ListClasses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Class 1A", "Class 2B", "Class 0Z"}, classes)

		exists, err := store.ClassExists(ctx, "Class 2B")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.ClassExists(ctx, "Class 9")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestAddSubject_Duplicate(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	_, err := store.AddSubject(ctx, "Maths")
	assert.ErrorIs(t, err, db.ErrDuplicateKey)

	subject, err := store.AddSubject(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, "Science", subject.Name)

	subjects, err := store.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths", "EVS", "Social", "English", "Science"}, subjects)
}

func TestListStudents_FiltersByClass(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	a, err := store.AddStudent(ctx, asha())
	require.NoError(t, err)

	other := asha()
	other.ClassName = "Class 2B"
	other.Name = "Ravi"
	b, err := store.AddStudent(ctx, other)
	require.NoError(t, err)

	inA, err := store.ListStudents(ctx, "Class 1A")
	require.NoError(t, err)
	require.Len(t, inA, 1)
	assert.Equal(t, a, inA[0])

	inB, err := store.ListStudents(ctx, "Class 2B")
	require.NoError(t, err)
	require.Len(t, inB, 1)
	assert.Equal(t, b.ID, inB[0].ID)

	none, err := store.ListStudents(ctx, "Class 3C")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListStudents_QuotesAreData(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	ns := asha()
	ns.ClassName = "O'Brien's class"
	_, err := store.AddStudent(ctx, ns)
	require.NoError(t, err)

	students, err := store.ListStudents(ctx, "O'Brien's class")
	require.NoError(t, err)
	assert.Len(t, students, 1)

	students, err = store.ListStudents(ctx, "x' OR '1'='1")
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestGetStudent(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	added, err := store.AddStudent(ctx, asha())
	require.NoError(t, err)

	got, err := store.GetStudent(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added, got)

	_, err = store.GetStudent(ctx, added.ID+100)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestReviews_Ordering(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	add := func(subject, date, edu string) models.Review {
		r, err := store.AddReview(ctx, models.NewReview{
			StudentID: 1, SubjectName: subject, ReviewDate: date, EduReview: edu,
		})
		require.NoError(t, err)
		return r
	}

	add("Maths", "2024-01-10", "first")
	add("Maths", "2024-03-01", "latest")
	add("EVS", "2024-02-15", "evs")
	add("Maths", "2024-01-10", "same day")
	add("Maths", "2023-12-31", "oldest")

	maths, err := store.ListReviewsForStudentAndSubject(ctx, 1, "Maths")
	require.NoError(t, err)
	var got []string
	for _, r := range maths {
		got = append(got, r.EduReview)
	}
	assert.Equal(t, []string{"latest", "first", "same day", "oldest"}, got)

	all, err := store.ListReviewsForStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "Maths", all[0].SubjectName)
	assert.Equal(t, "EVS", all[1].SubjectName)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].ReviewDate, all[i].ReviewDate)
	}

	other, err := store.ListReviewsForStudent(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestScenario_ClassStudentReview(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	classes, err := store.ListClasses(ctx)
	require.NoError(t, err)
	assert.Empty(t, classes)

	_, err = store.AddClass(ctx, "Class 1A")
	require.NoError(t, err)

	classes, err = store.ListClasses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Class 1A"}, classes)

	_, err = store.AddStudent(ctx, asha())
	require.NoError(t, err)

	students, err := store.ListStudents(ctx, "Class 1A")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Asha", students[0].Name)

	nr := models.NewReview{
		StudentID:   students[0].ID,
		SubjectName: "Maths",
		ReviewDate:  "2024-01-10",
		EduReview:   "Good progress",
		DiscReview:  "No issues",
		ParentNotes: "Keep practicing",
	}
	_, err = store.AddReview(ctx, nr)
	require.NoError(t, err)

	reviews, err := store.ListReviewsForStudentAndSubject(ctx, students[0].ID, "Maths")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	r := reviews[0]
	assert.Equal(t, students[0].ID, r.StudentID)
	assert.Equal(t, "Maths", r.SubjectName)
	assert.Equal(t, "2024-01-10", r.ReviewDate)
	assert.Equal(t, "Good progress", r.EduReview)
	assert.Equal(t, "No issues", r.DiscReview)
	assert.Equal(t, "Keep practicing", r.ParentNotes)
}

func TestExportTable_StudentsRoundTrip(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	tricky := asha()
	tricky.Name = "Mary, \"Molly\""
	tricky.LivingArea = "Line one\nLine two"

	var inserted []models.Student
	for _, ns := range []models.NewStudent{asha(), tricky} {
		s, err := store.AddStudent(ctx, ns)
		require.NoError(t, err)
		inserted = append(inserted, s)
	}

	out, err := store.ExportTable(ctx, "students")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "class_name", "name", "age", "parent_names", "parent_occ", "phone", "living_area"}, records[0])

	for i, s := range inserted {
		assert.Equal(t, []string{
			strconv.Itoa(s.ID), s.ClassName, s.Name, strconv.Itoa(s.Age),
			s.ParentNames, s.ParentOcc, s.Phone, s.LivingArea,
		}, records[i+1])
	}
}

func TestExportTable_Reviews(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	out, err := store.ExportTable(ctx, "reviews")
	require.NoError(t, err)
	assert.Equal(t, "id,student_id,subject_name,review_date,edu_review,disc_review,parent_notes\n", out)

	_, err = store.AddReview(ctx, models.NewReview{StudentID: 3, SubjectName: "EVS", ReviewDate: "2024-05-01"})
	require.NoError(t, err)

	out, err = store.ExportTable(ctx, "reviews")
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"1", "3", "EVS", "2024-05-01", "", "", ""}, records[1])
}

func TestExportTable_UnknownTable(t *testing.T) {
	store, _ := openStore(t)

	for _, table := range []string{"classes", "subjects", "students; DROP TABLE reviews", ""} {
		_, err := store.ExportTable(context.Background(), table)
		assert.ErrorIs(t, err, db.ErrUnknownTable, table)
	}
}

func TestOpenReviewStore_Unavailable(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be opened as a database file
	_, err := db.OpenReviewStore(context.Background(), config.DatabaseConfig{Path: dir}, db.Options{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)
}

func TestClosedStore_ReportsStorageUnavailable(t *testing.T) {
	store, _ := openStore(t)
	require.NoError(t, store.Close())

	_, err := store.AddClass(context.Background(), "Class 1A")
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)

	_, err = store.ListClasses(context.Background())
	assert.ErrorIs(t, err, db.ErrStorageUnavailable)
}
