package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/router"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
	"github.com/aanand-mishra/students-api/internal/types"
)

func newClient(t *testing.T, required bool) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{
		Env:          "dev",
		Pagination:   config.Pagination{MaxLimit: 100},
		Confirmation: config.Confirmation{Required: required, TTL: time.Minute},
	}
	srv := httptest.NewServer(router.New(cfg, s, confirm.NewService(confirm.NewMemoryStore(), time.Minute)))
	t.Cleanup(srv.Close)

	return New(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func TestStudentRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, true)

	st, err := c.CreateStudent(ctx, types.StudentInput{FirstName: "Ann", Email: "ann@x.com", Age: 20})
	require.NoError(t, err)

	_, err = c.CreateStudent(ctx, types.StudentInput{FirstName: "Ann", Email: "ann@x.com", Age: 20})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Email already taken, please use a different email!", apiErr.Message)

	page, err := c.ListStudents(ctx, query.Params{Page: 1, Limit: 5, Search: "ANN"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, st.ID, page.Items[0].ID)

	updated, err := c.UpdateStudent(ctx, st.ID, types.StudentInput{FirstName: "Annie", Email: "ann@x.com", Age: 21})
	require.NoError(t, err)
	assert.Equal(t, 21, updated.Age)

	require.Error(t, c.Delete(ctx, "student", st.ID, ""), "confirmation is required")

	tok, err := c.DeleteToken(ctx, "student", st.ID)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "student", st.ID, tok.Token))

	_, err = c.GetStudent(ctx, st.ID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestMarks(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, false)

	st, err := c.CreateStudent(ctx, types.StudentInput{FirstName: "Ann", Email: "ann@x.com", Age: 20})
	require.NoError(t, err)

	page, err := c.ListMarks(ctx, query.Default())
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	score := 0
	_, err = c.UpdateMark(ctx, "missing", types.MarkInput{Subject: "Math", Marks: &score, StudentID: st.ID})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Mark not found!", apiErr.Message)

	assert.Error(t, c.Delete(ctx, "mark", "missing", ""))

	m, err := c.CreateMark(ctx, types.MarkInput{Subject: "Math", Marks: &score, StudentID: st.ID})
	require.NoError(t, err)
	score = 88
	m, err = c.UpdateMark(ctx, m.ID, types.MarkInput{Subject: "Math", Marks: &score, StudentID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, 88, m.Marks)

	got, err := c.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, got.Marks, 1)

	require.NoError(t, c.Delete(ctx, "mark", m.ID, ""))
}
