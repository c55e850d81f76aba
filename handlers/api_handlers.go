package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"review-tracker-go/db"
	"review-tracker-go/models"
	"review-tracker-go/views"
)

// Store is what the handlers need from the review store.
type Store interface {
	views.Reader
	Ping(ctx context.Context) error
	AddClass(ctx context.Context, name string) (models.Clazz, error)
	ClassExists(ctx context.Context, name string) (bool, error)
	AddSubject(ctx context.Context, name string) (models.Subject, error)
	AddStudent(ctx context.Context, ns models.NewStudent) (models.Student, error)
	GetStudent(ctx context.Context, id int) (models.Student, error)
	AddReview(ctx context.Context, nr models.NewReview) (models.Review, error)
	ExportTable(ctx context.Context, table string) (string, error)
	ExportTableXLSX(ctx context.Context, table string) ([]byte, error)
	ImportStudentsFromExcel(ctx context.Context, file io.Reader, className string) (db.ImportResult, error)
}

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Store  Store
	logger zerolog.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store Store, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		Store:  store,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// handleStoreError maps store errors to status codes. Storage failures are
// logged with their cause and reported without it.
func (h *APIHandler) handleStoreError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, db.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrUnknownTable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrStorageUnavailable):
		h.logger.Error().Err(err).Str("op", op).Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
	default:
		h.logger.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
	}
}

func studentIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("studentId"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return 0, false
	}
	return id, true
}

// --- View Handlers ---

// GetView handles GET /api/views/:view?class=&student=
func (h *APIHandler) GetView(c *gin.Context) {
	view, err := views.ParseView(c.Param("view"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	sel := views.Selection{ClassName: c.Query("class")}
	if raw := c.Query("student"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
			return
		}
		sel.StudentID = id
	}

	page, err := views.Render(c.Request.Context(), h.Store, view, sel, db.ExportTables)
	if err != nil {
		h.handleStoreError(c, "render view", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// --- Class Handlers ---

// GetAllClasses handles GET /api/classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := h.Store.ListClasses(c.Request.Context())
	if err != nil {
		h.handleStoreError(c, "retrieve classes", err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// AddClass handles POST /api/classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var req models.NewClass
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Class name is required"})
		return
	}

	clazz, err := h.Store.AddClass(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Class already exists."})
			return
		}
		h.handleStoreError(c, "add class", err)
		return
	}

	c.JSON(http.StatusCreated, clazz)
}

// --- Subject Handlers ---

// GetAllSubjects handles GET /api/subjects
func (h *APIHandler) GetAllSubjects(c *gin.Context) {
	subjects, err := h.Store.ListSubjects(c.Request.Context())
	if err != nil {
		h.handleStoreError(c, "retrieve subjects", err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

// AddSubject handles POST /api/subjects
func (h *APIHandler) AddSubject(c *gin.Context) {
	var req models.NewSubject
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject name is required"})
		return
	}

	subject, err := h.Store.AddSubject(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Subject already exists."})
			return
		}
		h.handleStoreError(c, "add subject", err)
		return
	}

	c.JSON(http.StatusCreated, subject)
}

// --- Student Handlers ---

// GetStudentsByClass handles GET /api/classes/:className/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	className := c.Param("className")

	students, err := h.Store.ListStudents(c.Request.Context(), className)
	if err != nil {
		h.handleStoreError(c, "retrieve students for the class", err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// AddStudent handles POST /api/classes/:className/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req models.NewStudent
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.ClassName = c.Param("className")
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	exists, err := h.Store.ClassExists(c.Request.Context(), req.ClassName)
	if err != nil {
		h.handleStoreError(c, "verify class", err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": views.NoticeAddClassFirst})
		return
	}

	student, err := h.Store.AddStudent(c.Request.Context(), req)
	if err != nil {
		h.handleStoreError(c, "add student", err)
		return
	}

	c.JSON(http.StatusCreated, student)
}

// GetStudent handles GET /api/students/:studentId
func (h *APIHandler) GetStudent(c *gin.Context) {
	id, ok := studentIDParam(c)
	if !ok {
		return
	}

	student, err := h.Store.GetStudent(c.Request.Context(), id)
	if err != nil {
		h.handleStoreError(c, "retrieve student", err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// --- Review Handlers ---

// GetReviews handles GET /api/students/:studentId/reviews?subject=
// Without a subject it returns the chronological summary across subjects.
func (h *APIHandler) GetReviews(c *gin.Context) {
	id, ok := studentIDParam(c)
	if !ok {
		return
	}

	var (
		reviews []models.Review
		err     error
	)
	if subject := c.Query("subject"); subject != "" {
		reviews, err = h.Store.ListReviewsForStudentAndSubject(c.Request.Context(), id, subject)
	} else {
		reviews, err = h.Store.ListReviewsForStudent(c.Request.Context(), id)
	}
	if err != nil {
		h.handleStoreError(c, "retrieve reviews", err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// AddReview handles POST /api/students/:studentId/reviews
func (h *APIHandler) AddReview(c *gin.Context) {
	id, ok := studentIDParam(c)
	if !ok {
		return
	}

	var req models.NewReview
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.StudentID = id
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	if _, err := h.Store.GetStudent(c.Request.Context(), id); err != nil {
		h.handleStoreError(c, "verify student", err)
		return
	}

	review, err := h.Store.AddReview(c.Request.Context(), req)
	if err != nil {
		h.handleStoreError(c, "add review", err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// --- Export / Import Handlers ---

// ExportTable handles GET /api/export/:table?format=csv|xlsx
func (h *APIHandler) ExportTable(c *gin.Context) {
	table := c.Param("table")

	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		out, err := h.Store.ExportTable(c.Request.Context(), table)
		if err != nil {
			h.handleStoreError(c, "export "+table, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_export.csv"`, table))
		c.Data(http.StatusOK, "text/csv", []byte(out))
	case "xlsx":
		out, err := h.Store.ExportTableXLSX(c.Request.Context(), table)
		if err != nil {
			h.handleStoreError(c, "export "+table, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_export.xlsx"`, table))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format: " + format})
	}
}

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	className := c.PostForm("className")
	if className == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'className' in form data"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	exists, err := h.Store.ClassExists(c.Request.Context(), className)
	if err != nil {
		h.handleStoreError(c, "verify class", err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": views.NoticeAddClassFirst})
		return
	}

	h.logger.Info().Str("file", header.Filename).Str("class", className).Msg("received student import")

	result, err := h.Store.ImportStudentsFromExcel(c.Request.Context(), file, className)
	if err != nil {
		if errors.Is(err, db.ErrStorageUnavailable) {
			h.handleStoreError(c, "import students", err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to import students: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// PingHandler handles GET /api/ping
func (h *APIHandler) PingHandler(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.handleStoreError(c, "ping", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
