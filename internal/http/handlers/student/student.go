// Package student contains the HTTP handlers for the Student resource.
//
// HANDLER PATTERN: every exported function is a factory. It receives its
// dependencies once, at route registration, and returns the gin.HandlerFunc
// that gin calls on every request. The returned closure keeps access to
// the storage even after the factory has returned.
//
//	api.POST("/students", student.New(storage))
//	//                    ^^^^^^^^^^^^^^^^^^^^
//	//        called ONCE at startup, the result runs per request
package student

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

const resource = "Student"

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
// Creates a student from the JSON request body.
//
// Request body (JSON):
//
//	{ "firstName": "Ann", "lastName": "Lee", "email": "ann@x.com", "age": 20 }
//
// Success response (201 Created):
//
//	{ "status": true, "data": { "id": "…", "firstName": "Ann", …, "marks": [] } }
//
// Error responses:
//
//	400 Bad Request : empty body, malformed JSON, failed validation or a taken email
//	500 Internal    : database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Info("creating a student")

		// ── Step 1: Decode, normalise and validate the body ───────────
		var in types.StudentInput
		if !handlers.Bind(c, &in) {
			return
		}

		// ── Step 2: Persist ───────────────────────────────────────────
		// The store assigns the id and timestamps and enforces the
		// unique email.
		st, err := s.CreateStudent(c.Request.Context(), in)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		slog.Info("student created", slog.String("id", st.ID))
		response.WriteJSON(c, http.StatusCreated, response.OK(st))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students?page=&limit=&search=
// Returns one page of students, newest first, each with its marks.
//
// search is a case-insensitive substring match over first name, last name
// and email. A limit above pagination.max_limit is clamped.
//
// Success response (200 OK):
//
//	{ "status": true, "data": [ … ], "total": 3, "page": 1, "limit": 10, "totalPages": 1 }
//
// Error responses:
//
//	400 Bad Request : page or limit is not a positive integer
//	500 Internal    : database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetList(s storage.Storage, maxLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── Step 1: Parse the query string ────────────────────────────
		p, ok := handlers.ListParams(c, maxLimit)
		if !ok {
			return
		}
		slog.Info("listing students",
			slog.Int("page", p.Page), slog.Int("limit", p.Limit), slog.String("search", p.Search))

		// ── Step 2: Fetch the page and its total in one read ──────────
		page, err := s.ListStudents(c.Request.Context(), p)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.Page(page.Items, page.Total, p))
	}
}

// GetByID handles GET /api/students/:id
// 200 with the student and its marks, 404 when the id is unknown.
func GetByID(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("getting a student", slog.String("id", id))

		st, err := s.GetStudentByID(c.Request.Context(), id)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.OK(st))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/students/:id
// The body replaces the whole record and is validated like a create.
// Changing the email to one another student holds is a 400.
//
// Error responses:
//
//	400 Bad Request : invalid body or a taken email
//	404 Not Found   : unknown id
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("updating a student", slog.String("id", id))

		var in types.StudentInput
		if !handlers.Bind(c, &in) {
			return
		}

		st, err := s.UpdateStudentByID(c.Request.Context(), id, in)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.WriteJSON(c, http.StatusOK, response.OK(st))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /api/students/:id
// Removes the student together with all of its marks.
//
// The X-Confirm-Token header carries a token from DeleteToken. It is
// mandatory when confirmation.required is set and checked whenever sent.
//
// Error responses:
//
//	404 Not Found   : unknown id, reported before any token check
//	400 Bad Request : missing, expired or mismatched token
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(s storage.Storage, guard *handlers.DeleteGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("deleting a student", slog.String("id", id))

		// ── Step 1: The student must exist ────────────────────────────
		if _, err := s.GetStudentByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		// ── Step 2: Redeem the confirmation token ─────────────────────
		if !guard.Check(c, confirm.Subject("student", id)) {
			return
		}

		// ── Step 3: Delete, cascading to marks ────────────────────────
		if err := s.DeleteStudentByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		response.WriteJSON(c, http.StatusOK, response.Message("Student deleted"))
	}
}

// DeleteToken handles POST /api/students/:id/delete-token
// First step of a confirmed delete: 201 with a single-use token bound to
// this student, 404 when the id is unknown.
func DeleteToken(s storage.Storage, guard *handlers.DeleteGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := s.GetStudentByID(c.Request.Context(), id); err != nil {
			handlers.StorageError(c, err, resource)
			return
		}

		guard.Issue(c, confirm.Subject("student", id))
	}
}
