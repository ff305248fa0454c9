// Package router assembles the gin engine serving the API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/handlers"
	"github.com/aanand-mishra/students-api/internal/http/handlers/mark"
	"github.com/aanand-mishra/students-api/internal/http/handlers/student"
	"github.com/aanand-mishra/students-api/internal/http/middleware"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

// New registers every route on a fresh engine.
//
//	GET    /healthz
//	GET    /api/students                  list (?page&limit&search)
//	POST   /api/students                  create
//	GET    /api/students/export           .xlsx download (?search)
//	POST   /api/students/import           .xlsx upload, form field "file"
//	GET    /api/students/:id              get with marks
//	PUT    /api/students/:id              replace
//	DELETE /api/students/:id              delete, marks included
//	POST   /api/students/:id/delete-token confirmation token
//
// /api/marks mirrors the student routes without export and import.
func New(cfg *config.Config, s storage.Storage, tokens *confirm.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/healthz", health(s))

	api := r.Group("/api")
	if cfg.Auth.JWTSecret != "" {
		api.Use(middleware.Auth(cfg.Auth.JWTSecret))
	}

	guard := &handlers.DeleteGuard{Tokens: tokens, Required: cfg.Confirmation.Required}
	maxLimit := cfg.Pagination.MaxLimit

	students := api.Group("/students")
	students.GET("", student.GetList(s, maxLimit))
	students.POST("", student.New(s))
	students.GET("/export", student.Export(s))
	students.POST("/import", student.Import(s))
	students.GET("/:id", student.GetByID(s))
	students.PUT("/:id", student.Update(s))
	students.DELETE("/:id", student.Delete(s, guard))
	students.POST("/:id/delete-token", student.DeleteToken(s, guard))

	marks := api.Group("/marks")
	marks.GET("", mark.GetList(s, maxLimit))
	marks.POST("", mark.New(s))
	marks.GET("/:id", mark.GetByID(s))
	marks.PUT("/:id", mark.Update(s))
	marks.DELETE("/:id", mark.Delete(s, guard))
	marks.POST("/:id/delete-token", mark.DeleteToken(s, guard))

	r.NoRoute(func(c *gin.Context) {
		response.WriteJSON(c, http.StatusNotFound, response.Failure("Route not found!"))
	})

	return r
}

func health(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Ping(c.Request.Context()); err != nil {
			response.WriteJSON(c, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(c, http.StatusOK, response.Message("ok"))
	}
}
