package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter builds the gin engine with every API route registered.
func NewRouter(h *APIHandler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	api := router.Group("/api")
	{
		// Views
		api.GET("/views/:view", h.GetView)

		// Class routes
		api.GET("/classes", h.GetAllClasses)
		api.POST("/classes", h.AddClass)

		// Student routes within a class
		api.GET("/classes/:className/students", h.GetStudentsByClass)
		api.POST("/classes/:className/students", h.AddStudent)

		// Subject routes
		api.GET("/subjects", h.GetAllSubjects)
		api.POST("/subjects", h.AddSubject)

		// Student and review routes
		api.GET("/students/:studentId", h.GetStudent)
		api.GET("/students/:studentId/reviews", h.GetReviews)
		api.POST("/students/:studentId/reviews", h.AddReview)

		// Export / import
		api.GET("/export/:table", h.ExportTable)
		api.POST("/import/students", h.ImportStudents)

		api.GET("/ping", h.PingHandler)
	}
	return router
}

// RequestLogger logs one line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
