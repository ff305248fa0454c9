package router

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/handlers"
	"github.com/aanand-mishra/students-api/internal/spreadsheet"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status     bool            `json:"status"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

type studentBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Marks []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		Marks   int    `json:"marks"`
	} `json:"marks"`
}

type server struct {
	t *testing.T
	h http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "dev",
		CORS:         config.CORS{AllowedOrigins: []string{"*"}},
		Pagination:   config.Pagination{MaxLimit: 100},
		Confirmation: config.Confirmation{TTL: time.Minute},
	}
}

func newServer(t *testing.T, cfg *config.Config) *server {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tokens := confirm.NewService(confirm.NewMemoryStore(), cfg.Confirmation.TTL)
	return &server{t: t, h: New(cfg, s, tokens)}
}

func (s *server) do(method, path string, body any, header ...string) (int, envelope) {
	s.t.Helper()

	var r io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(s.t, err)
			raw = string(b)
		}
		r = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func ann() map[string]any {
	return map[string]any{"firstName": "Ann", "lastName": "Lee", "email": "ann@x.com", "age": 20}
}

func TestEndToEnd(t *testing.T) {
	s := newServer(t, testConfig())

	code, env := s.do(http.MethodPost, "/api/students", ann())
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decode[studentBody](t, env.Data)
	require.NotEmpty(t, created.ID)
	assert.Empty(t, created.Marks)

	code, env = s.do(http.MethodGet, "/api/students?search=ann", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), env.Total)
	assert.Equal(t, 1, env.TotalPages)

	code, env = s.do(http.MethodPost, "/api/marks",
		map[string]any{"subject": "Math", "marks": 90, "studentId": created.ID})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(http.MethodGet, "/api/students/"+created.ID, nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[studentBody](t, env.Data)
	require.Len(t, got.Marks, 1)
	assert.Equal(t, "Math", got.Marks[0].Subject)
	assert.Equal(t, 90, got.Marks[0].Marks)

	code, env = s.do(http.MethodDelete, "/api/students/"+created.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Student deleted", env.Message)

	code, env = s.do(http.MethodGet, "/api/students/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Student not found!", env.Message)

	code, env = s.do(http.MethodGet, "/api/marks", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, env.Total, "marks are deleted with their student")
}

func TestStudentErrors(t *testing.T) {
	s := newServer(t, testConfig())

	code, _ := s.do(http.MethodPost, "/api/students", ann())
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		code    int
		message string
		error   string
	}{
		{"duplicate email", http.MethodPost, "/api/students", ann(), http.StatusBadRequest,
			"Email already taken, please use a different email!", ""},
		{"missing fields", http.MethodPost, "/api/students", map[string]any{"lastName": "Lee"}, http.StatusBadRequest,
			"", "field firstName is required, field email is required, field age is required"},
		{"blank first name", http.MethodPost, "/api/students",
			map[string]any{"firstName": "  ", "email": "b@x.com", "age": 20}, http.StatusBadRequest,
			"", "field firstName is required"},
		{"empty body", http.MethodPost, "/api/students", "", http.StatusBadRequest, "", "request body is empty"},
		{"malformed body", http.MethodPost, "/api/students", "{", http.StatusBadRequest, "", ""},
		{"bad page", http.MethodGet, "/api/students?page=0", nil, http.StatusBadRequest, "", ""},
		{"non-numeric limit", http.MethodGet, "/api/students?limit=ten", nil, http.StatusBadRequest, "", ""},
		{"page past int range", http.MethodGet, "/api/students?page=9223372036854775807&limit=10", nil, http.StatusBadRequest, "", ""},
		{"get missing", http.MethodGet, "/api/students/nope", nil, http.StatusNotFound, "Student not found!", ""},
		{"update missing", http.MethodPut, "/api/students/nope",
			map[string]any{"firstName": "X", "email": "x@x.com", "age": 30}, http.StatusNotFound, "Student not found!", ""},
		{"delete missing", http.MethodDelete, "/api/students/nope", nil, http.StatusNotFound, "Student not found!", ""},
		{"token for missing", http.MethodPost, "/api/students/nope/delete-token", nil, http.StatusNotFound, "Student not found!", ""},
		{"unknown route", http.MethodGet, "/api/courses", nil, http.StatusNotFound, "Route not found!", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, code)
			assert.False(t, env.Status)
			if tc.message != "" {
				assert.Equal(t, tc.message, env.Message)
			}
			if tc.error != "" {
				assert.Equal(t, tc.error, env.Error)
			}
			if tc.message == "" && tc.error == "" {
				assert.NotEmpty(t, env.Error)
			}
		})
	}
}

func TestListClampsLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Pagination.MaxLimit = 5
	s := newServer(t, cfg)

	code, env := s.do(http.MethodGet, "/api/students?limit=50", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, env.Limit)
	assert.Equal(t, 1, env.Page)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestUpdateStudent(t *testing.T) {
	s := newServer(t, testConfig())

	_, env := s.do(http.MethodPost, "/api/students", ann())
	created := decode[studentBody](t, env.Data)
	_, _ = s.do(http.MethodPost, "/api/students",
		map[string]any{"firstName": "Bob", "email": "bob@x.com", "age": 21})

	code, env := s.do(http.MethodPut, "/api/students/"+created.ID,
		map[string]any{"firstName": "Ann", "email": "ann.lee@x.com", "age": 21})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "ann.lee@x.com", decode[studentBody](t, env.Data).Email)

	code, env = s.do(http.MethodPut, "/api/students/"+created.ID,
		map[string]any{"firstName": "Ann", "email": "bob@x.com", "age": 21})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already taken, please use a different email!", env.Message)
}

func TestMarkErrors(t *testing.T) {
	s := newServer(t, testConfig())

	code, env := s.do(http.MethodPost, "/api/marks",
		map[string]any{"subject": "Math", "marks": 90, "studentId": "nope"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Student not found!", env.Message)

	code, env = s.do(http.MethodPost, "/api/marks", map[string]any{"subject": "Math", "marks": -1, "studentId": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "field marks must be at least 0", env.Error)

	code, env = s.do(http.MethodGet, "/api/marks/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Mark not found!", env.Message)
}

func TestMarkCRUD(t *testing.T) {
	s := newServer(t, testConfig())

	_, env := s.do(http.MethodPost, "/api/students", ann())
	owner := decode[studentBody](t, env.Data)

	code, env := s.do(http.MethodPost, "/api/marks",
		map[string]any{"subject": "Physics", "marks": 0, "studentId": owner.ID})
	require.Equal(t, http.StatusCreated, code, env.Error)
	m := decode[struct {
		ID      string `json:"id"`
		Marks   int    `json:"marks"`
		Student struct {
			Email string `json:"email"`
		} `json:"student"`
	}](t, env.Data)
	assert.Equal(t, 0, m.Marks)

	code, env = s.do(http.MethodPut, "/api/marks/"+m.ID,
		map[string]any{"subject": "Physics", "marks": 75, "studentId": owner.ID})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = s.do(http.MethodGet, "/api/marks?search=PHYS", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), env.Total)

	code, env = s.do(http.MethodDelete, "/api/marks/"+m.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Mark deleted", env.Message)

	code, _ = s.do(http.MethodDelete, "/api/marks/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeleteConfirmation(t *testing.T) {
	cfg := testConfig()
	cfg.Confirmation.Required = true
	s := newServer(t, cfg)

	_, env := s.do(http.MethodPost, "/api/students", ann())
	id := decode[studentBody](t, env.Data).ID

	code, env := s.do(http.MethodDelete, "/api/students/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, confirm.ErrInvalidToken.Error(), env.Error)

	// An unknown id is reported as such, token or not.
	code, env = s.do(http.MethodDelete, "/api/students/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Student not found!", env.Message)
	code, env = s.do(http.MethodDelete, "/api/marks/nope", nil, handlers.ConfirmHeader, "whatever")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Mark not found!", env.Message)

	code, env = s.do(http.MethodPost, "/api/students/"+id+"/delete-token", nil)
	require.Equal(t, http.StatusCreated, code)
	tok := decode[confirm.Token](t, env.Data)
	require.NotEmpty(t, tok.Token)

	code, _ = s.do(http.MethodDelete, "/api/students/"+id, nil, handlers.ConfirmHeader, "wrong")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodDelete, "/api/students/"+id, nil, handlers.ConfirmHeader, tok.Token)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/students/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOptionalConfirmationStillChecksToken(t *testing.T) {
	s := newServer(t, testConfig())

	_, env := s.do(http.MethodPost, "/api/students", ann())
	id := decode[studentBody](t, env.Data).ID

	code, _ := s.do(http.MethodDelete, "/api/students/"+id, nil, handlers.ConfirmHeader, "forged")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/students/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth(t *testing.T) {
	s := newServer(t, testConfig())

	code, env := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Status)
}

func TestAuthGuardsAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "s3cret"
	s := newServer(t, cfg)

	code, _ := s.do(http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestImportExport(t *testing.T) {
	s := newServer(t, testConfig())

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"firstName", "lastName", "dateOfBirth", "email", "age"},
		{"Ann", "Lee", "2004-05-06", "ann@x.com", 20},
		{"Bob", "", "06/05/2004", "bob@x.com", 21},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	book, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = io.Copy(part, book)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/students/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	res := decode[spreadsheet.ImportResult](t, env.Data)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Skipped[0].Row)

	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/students/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spreadsheet.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	out, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer out.Close()
	exported, err := out.GetRows(spreadsheet.StudentsSheet)
	require.NoError(t, err)
	require.Len(t, exported, 2)
	assert.Equal(t, "ann@x.com", exported[1][4])
}

func TestImportRequiresFile(t *testing.T) {
	s := newServer(t, testConfig())

	code, env := s.do(http.MethodPost, "/api/students/import", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "file")
}
