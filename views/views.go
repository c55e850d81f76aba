// Package views maps the four screens of the tracker (review entry, summary,
// settings, export) to the store operations they run. Plan is pure; Render
// executes a plan against a Reader.
package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"review-tracker-go/models"
)

type View int

const (
	ViewEntry View = iota
	ViewSummary
	ViewSettings
	ViewExport
)

var viewNames = map[View]string{
	ViewEntry:    "entry",
	ViewSummary:  "summary",
	ViewSettings: "settings",
	ViewExport:   "export",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return fmt.Sprintf("View(%d)", int(v))
}

var ErrUnknownView = errors.New("unknown view")

func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range viewNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Operation names a read the view performs.
type Operation string

const (
	OpListClasses                     Operation = "ListClasses"
	OpListStudents                    Operation = "ListStudents"
	OpListSubjects                    Operation = "ListSubjects"
	OpListReviewsForStudentAndSubject Operation = "ListReviewsForStudentAndSubject"
	OpListReviewsForStudent           Operation = "ListReviewsForStudent"
	OpListExportTables                Operation = "ListExportTables"
)

// Selection is the class and student picked in the UI. Zero values mean
// "first available".
type Selection struct {
	ClassName string
	StudentID int
}

// Plan returns, in order, the operations rendering view runs when every
// prerequisite is present. The entry view runs
// OpListReviewsForStudentAndSubject once per subject. Settings only lists a
// roster when a class is selected.
func Plan(view View, sel Selection) []Operation {
	switch view {
	case ViewEntry:
		return []Operation{OpListClasses, OpListStudents, OpListSubjects, OpListReviewsForStudentAndSubject}
	case ViewSummary:
		return []Operation{OpListClasses, OpListStudents, OpListReviewsForStudent}
	case ViewSettings:
		if sel.ClassName != "" {
			return []Operation{OpListClasses, OpListSubjects, OpListStudents}
		}
		return []Operation{OpListClasses, OpListSubjects}
	case ViewExport:
		return []Operation{OpListExportTables}
	}
	return nil
}

// Guidance messages shown instead of querying an empty selection.
const (
	NoticeNoClasses      = "No classes found. Please add classes and students in Settings."
	NoticeAddClassFirst  = "Please add a class first."
	noticeNoStudentsFmt  = "No students found in %s."
	NoticeUnknownStudent = "Selected student is not in this class."
)

func NoticeNoStudents(className string) string {
	return fmt.Sprintf(noticeNoStudentsFmt, className)
}

// Reader is the read side of the review store.
type Reader interface {
	ListClasses(ctx context.Context) ([]string, error)
	ListStudents(ctx context.Context, className string) ([]models.Student, error)
	ListSubjects(ctx context.Context) ([]string, error)
	ListReviewsForStudentAndSubject(ctx context.Context, studentID int, subject string) ([]models.Review, error)
	ListReviewsForStudent(ctx context.Context, studentID int) ([]models.Review, error)
}

// SubjectReviews is one subject tab of the entry view.
type SubjectReviews struct {
	Subject string          `json:"subject"`
	Reviews []models.Review `json:"reviews"`
}

// Page is everything a view displays.
type Page struct {
	View          string           `json:"view"`
	Notice        string           `json:"notice,omitempty"`
	Classes       []string         `json:"classes,omitempty"`
	SelectedClass string           `json:"selectedClass,omitempty"`
	Students      []models.Student `json:"students,omitempty"`
	Student       *models.Student  `json:"student,omitempty"`
	Subjects      []string         `json:"subjects,omitempty"`
	BySubject     []SubjectReviews `json:"bySubject,omitempty"`
	Reviews       []models.Review  `json:"reviews,omitempty"`
	ExportTables  []string         `json:"exportTables,omitempty"`
}

// Render runs Plan(view, sel) against r. Missing classes or students end the
// plan early with a guidance Notice rather than an error.
func Render(ctx context.Context, r Reader, view View, sel Selection, exportTables []string) (Page, error) {
	page := Page{View: view.String()}

	for _, op := range Plan(view, sel) {
		done, err := page.apply(ctx, r, op, view, sel, exportTables)
		if err != nil {
			return Page{}, err
		}
		if done {
			break
		}
	}
	return page, nil
}

func (p *Page) apply(ctx context.Context, r Reader, op Operation, view View, sel Selection, exportTables []string) (bool, error) {
	switch op {
	case OpListClasses:
		classes, err := r.ListClasses(ctx)
		if err != nil {
			return false, err
		}
		p.Classes = classes
		if len(classes) == 0 {
			if view == ViewSettings {
				// settings still lists subjects, only the student form is guarded
				p.Notice = NoticeAddClassFirst
				return false, nil
			}
			p.Notice = NoticeNoClasses
			return true, nil
		}
		p.SelectedClass = classes[0]
		if sel.ClassName != "" {
			p.SelectedClass = sel.ClassName
		}

	case OpListStudents:
		students, err := r.ListStudents(ctx, p.SelectedClass)
		if err != nil {
			return false, err
		}
		p.Students = students
		if view == ViewSettings {
			return false, nil
		}
		if len(students) == 0 {
			p.Notice = NoticeNoStudents(p.SelectedClass)
			return true, nil
		}
		student := &students[0]
		if sel.StudentID != 0 {
			student = nil
			for i := range students {
				if students[i].ID == sel.StudentID {
					student = &students[i]
					break
				}
			}
			if student == nil {
				p.Notice = NoticeUnknownStudent
				return true, nil
			}
		}
		p.Student = student

	case OpListSubjects:
		subjects, err := r.ListSubjects(ctx)
		if err != nil {
			return false, err
		}
		p.Subjects = subjects

	case OpListReviewsForStudentAndSubject:
		p.BySubject = make([]SubjectReviews, 0, len(p.Subjects))
		for _, subject := range p.Subjects {
			reviews, err := r.ListReviewsForStudentAndSubject(ctx, p.Student.ID, subject)
			if err != nil {
				return false, err
			}
			p.BySubject = append(p.BySubject, SubjectReviews{Subject: subject, Reviews: reviews})
		}

	case OpListReviewsForStudent:
		reviews, err := r.ListReviewsForStudent(ctx, p.Student.ID)
		if err != nil {
			return false, err
		}
		p.Reviews = reviews

	case OpListExportTables:
		p.ExportTables = exportTables
	}
	return false, nil
}
