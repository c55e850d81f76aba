package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"review-tracker-go/config"
	"review-tracker-go/models"
)

// DefaultSubjects are seeded, in this order, when the subjects table is empty.
var DefaultSubjects = []string{"Maths", "EVS", "Social", "English"}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS classes (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`,
	`CREATE TABLE IF NOT EXISTS subjects (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`,
	`CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY, class_name TEXT, name TEXT, age INTEGER,
		parent_names TEXT, parent_occ TEXT, phone TEXT, living_area TEXT)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY, student_id INTEGER, subject_name TEXT,
		review_date TEXT, edu_review TEXT, disc_review TEXT, parent_notes TEXT)`,
}

// The tables carry no NOT NULL constraints, so rows written by other tools
// may hold NULLs.
const studentColumns = `id, COALESCE(class_name, '') AS class_name, COALESCE(name, '') AS name,
	COALESCE(age, 0) AS age, COALESCE(parent_names, '') AS parent_names,
	COALESCE(parent_occ, '') AS parent_occ, COALESCE(phone, '') AS phone,
	COALESCE(living_area, '') AS living_area`

const reviewColumns = `id, COALESCE(student_id, 0) AS student_id, COALESCE(subject_name, '') AS subject_name,
	COALESCE(review_date, '') AS review_date, COALESCE(edu_review, '') AS edu_review,
	COALESCE(disc_review, '') AS disc_review, COALESCE(parent_notes, '') AS parent_notes`

// Options configures a ReviewStore.
type Options struct {
	// Locker serializes writes; a LocalLocker is used when nil.
	Locker WriteLocker
	Logger zerolog.Logger
}

// ReviewStore owns the classes, subjects, students and reviews tables.
// There is no caching: every read goes to the database.
type ReviewStore struct {
	DB     *sqlx.DB
	locker WriteLocker
	logger zerolog.Logger
}

// OpenReviewStore opens (creating if needed) the database file and
// initializes it. The caller owns the returned store and must Close it.
func OpenReviewStore(ctx context.Context, cfg config.DatabaseConfig, opts Options) (*ReviewStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("create database directory", err)
		}
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", cfg.Path, busyTimeout)

	sqlDB, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open database", err)
	}
	// one connection: the process is a single writer against the file
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, storageErr("ping database", err)
	}

	store := NewReviewStore(sqlDB, opts)
	if err := store.Initialize(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store.logger.Info().Str("path", cfg.Path).Msg("review store ready")
	return store, nil
}

// NewReviewStore wraps an already opened database. Initialize must be called
// before use.
func NewReviewStore(sqlDB *sqlx.DB, opts Options) *ReviewStore {
	locker := opts.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &ReviewStore{
		DB:     sqlDB,
		locker: locker,
		logger: opts.Logger.With().Str("component", "review_store").Logger(),
	}
}

func (s *ReviewStore) Close() error {
	return s.DB.Close()
}

func (s *ReviewStore) Ping(ctx context.Context) error {
	return storageErr("ping database", s.DB.PingContext(ctx))
}

func (s *ReviewStore) withWriteLock(ctx context.Context, fn func() error) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Initialize creates the tables if absent and seeds the default subjects when
// the subjects table is empty. It is safe to call on every startup.
func (s *ReviewStore) Initialize(ctx context.Context) error {
	return s.withWriteLock(ctx, func() error {
		for _, stmt := range schema {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return storageErr("create schema", err)
			}
		}

		tx, err := s.DB.BeginTxx(ctx, nil)
		if err != nil {
			return storageErr("begin seed", err)
		}
		defer func() { _ = tx.Rollback() }()

		var count int
		if err := tx.GetContext(ctx, &count, `SELECT count(*) FROM subjects`); err != nil {
			return storageErr("count subjects", err)
		}
		if count == 0 {
			s.logger.Info().Strs("subjects", DefaultSubjects).Msg("seeding default subjects")
			for _, name := range DefaultSubjects {
				if _, err := tx.ExecContext(ctx, `INSERT INTO subjects (name) VALUES (?)`, name); err != nil {
					return storageErr("seed subjects", err)
				}
			}
		}
		return storageErr("commit seed", tx.Commit())
	})
}

// --- Class Operations ---

// AddClass inserts a class. It returns ErrDuplicateKey when the name exists.
func (s *ReviewStore) AddClass(ctx context.Context, name string) (models.Clazz, error) {
	var clazz models.Clazz
	err := s.withWriteLock(ctx, func() error {
		res, err := s.DB.ExecContext(ctx, `INSERT INTO classes (name) VALUES (?)`, name)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateKey
			}
			return storageErr("insert class", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("insert class", err)
		}
		clazz = models.Clazz{ID: int(id), Name: name}
		return nil
	})
	if err != nil {
		return models.Clazz{}, err
	}
	s.logger.Info().Str("class", name).Msg("added class")
	return clazz, nil
}

// ListClasses returns all class names in insertion order.
func (s *ReviewStore) ListClasses(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.DB.SelectContext(ctx, &names, `SELECT name FROM classes WHERE name IS NOT NULL ORDER BY id`); err != nil {
		return nil, storageErr("list classes", err)
	}
	return names, nil
}

func (s *ReviewStore) ClassExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.DB.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM classes WHERE name = ?)`, name)
	if err != nil {
		return false, storageErr("check class", err)
	}
	return exists, nil
}

// --- Subject Operations ---

// ListSubjects returns all subject names in insertion order.
func (s *ReviewStore) ListSubjects(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.DB.SelectContext(ctx, &names, `SELECT name FROM subjects WHERE name IS NOT NULL ORDER BY id`); err != nil {
		return nil, storageErr("list subjects", err)
	}
	return names, nil
}

// AddSubject inserts a subject. It returns ErrDuplicateKey when the name exists.
func (s *ReviewStore) AddSubject(ctx context.Context, name string) (models.Subject, error) {
	var subject models.Subject
	err := s.withWriteLock(ctx, func() error {
		res, err := s.DB.ExecContext(ctx, `INSERT INTO subjects (name) VALUES (?)`, name)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateKey
			}
			return storageErr("insert subject", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("insert subject", err)
		}
		subject = models.Subject{ID: int(id), Name: name}
		return nil
	})
	if err != nil {
		return models.Subject{}, err
	}
	s.logger.Info().Str("subject", name).Msg("added subject")
	return subject, nil
}

// --- Student Operations ---

// AddStudent inserts a student. The class is referenced by name and is not
// checked here.
func (s *ReviewStore) AddStudent(ctx context.Context, ns models.NewStudent) (models.Student, error) {
	var student models.Student
	err := s.withWriteLock(ctx, func() error {
		var err error
		student, err = s.insertStudent(ctx, s.DB, ns)
		return err
	})
	if err != nil {
		return models.Student{}, err
	}
	s.logger.Debug().Int("id", student.ID).Str("class", student.ClassName).Msg("added student")
	return student, nil
}

func (s *ReviewStore) insertStudent(ctx context.Context, ex sqlx.ExecerContext, ns models.NewStudent) (models.Student, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO students (class_name, name, age, parent_names, parent_occ, phone, living_area)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ns.ClassName, ns.Name, ns.Age, ns.ParentNames, ns.ParentOcc, ns.Phone, ns.LivingArea,
	)
	if err != nil {
		return models.Student{}, storageErr("insert student", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Student{}, storageErr("insert student", err)
	}
	return models.Student{
		ID:          int(id),
		ClassName:   ns.ClassName,
		Name:        ns.Name,
		Age:         ns.Age,
		ParentNames: ns.ParentNames,
		ParentOcc:   ns.ParentOcc,
		Phone:       ns.Phone,
		LivingArea:  ns.LivingArea,
	}, nil
}

// ListStudents returns the students of a class in insertion order.
func (s *ReviewStore) ListStudents(ctx context.Context, className string) ([]models.Student, error) {
	students := []models.Student{}
	err := s.DB.SelectContext(ctx, &students,
		`SELECT `+studentColumns+` FROM students WHERE class_name = ? ORDER BY id`, className)
	if err != nil {
		return nil, storageErr("list students", err)
	}
	return students, nil
}

// GetStudent returns ErrNotFound when no student has the id.
func (s *ReviewStore) GetStudent(ctx context.Context, id int) (models.Student, error) {
	var student models.Student
	err := s.DB.GetContext(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return models.Student{}, ErrNotFound
	}
	if err != nil {
		return models.Student{}, storageErr("get student", err)
	}
	return student, nil
}

// --- Review Operations ---

// AddReview inserts a review. Student and subject are not checked here.
func (s *ReviewStore) AddReview(ctx context.Context, nr models.NewReview) (models.Review, error) {
	var review models.Review
	err := s.withWriteLock(ctx, func() error {
		res, err := s.DB.ExecContext(ctx,
			`INSERT INTO reviews (student_id, subject_name, review_date, edu_review, disc_review, parent_notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nr.StudentID, nr.SubjectName, nr.ReviewDate, nr.EduReview, nr.DiscReview, nr.ParentNotes,
		)
		if err != nil {
			return storageErr("insert review", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("insert review", err)
		}
		review = models.Review{
			ID:          int(id),
			StudentID:   nr.StudentID,
			SubjectName: nr.SubjectName,
			ReviewDate:  nr.ReviewDate,
			EduReview:   nr.EduReview,
			DiscReview:  nr.DiscReview,
			ParentNotes: nr.ParentNotes,
		}
		return nil
	})
	if err != nil {
		return models.Review{}, err
	}
	s.logger.Debug().Int("student_id", nr.StudentID).Str("subject", nr.SubjectName).Msg("added review")
	return review, nil
}

// ListReviewsForStudentAndSubject returns newest first; reviews on the same
// date keep insertion order.
func (s *ReviewStore) ListReviewsForStudentAndSubject(ctx context.Context, studentID int, subject string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.DB.SelectContext(ctx, &reviews,
		`SELECT `+reviewColumns+` FROM reviews
		WHERE student_id = ? AND subject_name = ?
		ORDER BY review_date DESC, id ASC`, studentID, subject)
	if err != nil {
		return nil, storageErr("list reviews", err)
	}
	return reviews, nil
}

// ListReviewsForStudent returns the reviews of every subject, newest first.
func (s *ReviewStore) ListReviewsForStudent(ctx context.Context, studentID int) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.DB.SelectContext(ctx, &reviews,
		`SELECT `+reviewColumns+` FROM reviews
		WHERE student_id = ?
		ORDER BY review_date DESC, id ASC`, studentID)
	if err != nil {
		return nil, storageErr("list reviews", err)
	}
	return reviews, nil
}
