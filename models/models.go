package models

// Clazz represents a class
type Clazz struct {
	ID   int    `db:"id" json:"id"`     // Row id
	Name string `db:"name" json:"name"` // Unique class name (e.g. "Class 1A")
}

// Subject represents a subject reviews are filed under
type Subject struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"` // Unique subject name
}

// Student represents a student profile
type Student struct {
	ID          int    `db:"id" json:"id"`
	ClassName   string `db:"class_name" json:"className"` // Name of the class the student belongs to
	Name        string `db:"name" json:"name"`
	Age         int    `db:"age" json:"age"`
	ParentNames string `db:"parent_names" json:"parentNames"`
	ParentOcc   string `db:"parent_occ" json:"parentOcc"` // Parent occupation
	Phone       string `db:"phone" json:"phone"`
	LivingArea  string `db:"living_area" json:"livingArea"`
}

// Review represents one dated review entry for a student under a subject
type Review struct {
	ID          int    `db:"id" json:"id"`
	StudentID   int    `db:"student_id" json:"studentId"`
	SubjectName string `db:"subject_name" json:"subjectName"`
	ReviewDate  string `db:"review_date" json:"reviewDate"` // YYYY-MM-DD
	EduReview   string `db:"edu_review" json:"eduReview"`
	DiscReview  string `db:"disc_review" json:"discReview"`
	ParentNotes string `db:"parent_notes" json:"parentNotes"`
}

// NewClass is the payload for adding a class
type NewClass struct {
	Name string `json:"name" validate:"required,max=100"`
}

// NewSubject is the payload for adding a subject
type NewSubject struct {
	Name string `json:"name" validate:"required,max=100"`
}

// NewStudent contains the fields needed to add a student.
// The age bounds are enforced by the input surface, not by the store.
type NewStudent struct {
	ClassName   string `json:"className" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Age         int    `json:"age" validate:"min=3,max=20"`
	ParentNames string `json:"parentNames"`
	ParentOcc   string `json:"parentOcc"`
	Phone       string `json:"phone"`
	LivingArea  string `json:"livingArea"`
}

// NewReview contains the fields needed to add a review
type NewReview struct {
	StudentID   int    `json:"studentId" validate:"required,gt=0"`
	SubjectName string `json:"subjectName" validate:"required"`
	ReviewDate  string `json:"reviewDate" validate:"required,datetime=2006-01-02"`
	EduReview   string `json:"eduReview"`
	DiscReview  string `json:"discReview"`
	ParentNotes string `json:"parentNotes"`
}
