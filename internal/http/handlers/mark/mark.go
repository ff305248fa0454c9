// Package mark contains the HTTP handlers for the Mark resource. They
// mirror the student handlers.
package mark

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/handlers"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

const resource = "Mark"

// New handles POST /api/marks.
//
//	{ "subject": "Math", "marks": 90, "studentId": "0190..." }
//
// 404 when studentId names no student.
func New(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Info("creating a mark")

		var in types.MarkInput
		if !handlers.Bind(c, &in) {
			return
		}

		m, err := s.CreateMark(c.Request.Context(), in)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		slog.Info("mark created", slog.String("id", m.ID), slog.String("studentId", m.StudentID))
		response.WriteJSON(c, http.StatusCreated, response.OK(m))
	}
}

// GetList handles GET /api/marks?page=&limit=&search=; search matches the
// subject only.
func GetList(s storage.Storage, maxLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := handlers.ListParams(c, maxLimit)
		if !ok {
			return
		}
		slog.Info("listing marks",
			slog.Int("page", p.Page), slog.Int("limit", p.Limit), slog.String("search", p.Search))

		page, err := s.ListMarks(c.Request.Context(), p)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.Page(page.Items, page.Total, p))
	}
}

// GetByID handles GET /api/marks/:id.
func GetByID(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("getting a mark", slog.String("id", id))

		m, err := s.GetMarkByID(c.Request.Context(), id)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.OK(m))
	}
}

// Update handles PUT /api/marks/:id.
func Update(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("updating a mark", slog.String("id", id))

		var in types.MarkInput
		if !handlers.Bind(c, &in) {
			return
		}

		m, err := s.UpdateMarkByID(c.Request.Context(), id, in)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.OK(m))
	}
}

// Delete handles DELETE /api/marks/:id. An unknown id is a 404 before
// the confirmation token is looked at.
func Delete(s storage.Storage, guard *handlers.DeleteGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("deleting a mark", slog.String("id", id))

		if _, err := s.GetMarkByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		if !guard.Check(c, confirm.Subject("mark", id)) {
			return
		}

		if err := s.DeleteMarkByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.Message("Mark deleted"))
	}
}

// DeleteToken handles POST /api/marks/:id/delete-token.
func DeleteToken(s storage.Storage, guard *handlers.DeleteGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := s.GetMarkByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		guard.Issue(c, confirm.Subject("mark", id))
	}
}
