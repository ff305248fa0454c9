package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/client"
	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/http/router"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/view"
)

func TestParse(t *testing.T) {
	s, _ := view.New(10)

	actions, quit, err := parse(s, "  ")
	assert.Empty(t, actions)
	assert.False(t, quit)
	assert.NoError(t, err)

	_, quit, _ = parse(s, "q")
	assert.True(t, quit)

	actions, _, err = parse(s, "s  ann lee ")
	require.NoError(t, err)
	assert.Equal(t, []view.Action{view.SetSearch{Search: "ann lee"}}, actions)

	actions, _, err = parse(s, "limit 25")
	require.NoError(t, err)
	assert.Equal(t, []view.Action{view.SetLimit{Limit: 25}}, actions)

	_, _, err = parse(s, "d 1")
	assert.EqualError(t, err, "no row 1 on this page")

	_, _, err = parse(s, "g two")
	assert.Error(t, err)

	_, _, err = parse(s, "zap")
	assert.EqualError(t, err, `unknown command "zap"`)

	_, _, err = parse(s, "ma Math 90")
	assert.ErrorIs(t, err, errNoMarks)

	ann := types.Student{StudentInfo: types.StudentInfo{ID: "s1", FirstName: "Ann", LastName: "Lee", Email: "ann@x.com", Age: 20}}
	s, _ = view.Update(s, view.PageLoaded{Seq: s.Seq(), Records: []types.Student{ann}, Total: 1, TotalPages: 1})

	actions, _, err = parse(s, "e 1 Anna anna@x.com 21")
	require.NoError(t, err)
	assert.Equal(t, []view.Action{
		view.OpenEdit{Student: ann},
		view.EditDraft{Draft: types.StudentInput{FirstName: "Anna", LastName: "Lee", Email: "anna@x.com", Age: 21}},
		view.Submit{},
	}, actions)

	s, _ = view.Update(s, view.OpenMarks{StudentID: "s1"})
	s, _ = view.Update(s, view.MarksLoaded{StudentID: "s1", Marks: []types.Mark{{ID: "m1", Subject: "Math", Marks: 80, StudentID: "s1"}}})

	actions, _, err = parse(s, "ma Computer Science 75")
	require.NoError(t, err)
	score := 75
	assert.Equal(t, []view.Action{view.AddMark{Input: types.MarkInput{Subject: "Computer Science", Marks: &score}}}, actions)

	_, _, err = parse(s, "ms 1 Math 85")
	assert.EqualError(t, err, "mark 1 is not in edit mode, use me 1 first")

	actions, _, err = parse(s, "me 1")
	require.NoError(t, err)
	assert.Equal(t, []view.Action{view.ToggleMarkEdit{ID: "m1"}}, actions)
	s, _ = view.Update(s, actions[0])

	actions, _, err = parse(s, "ms 1 Math 85")
	require.NoError(t, err)
	score = 85
	assert.Equal(t, []view.Action{view.SaveMark{ID: "m1", Input: types.MarkInput{Subject: "Math", Marks: &score, StudentID: "s1"}}}, actions)

	actions, _, err = parse(s, "md 1")
	require.NoError(t, err)
	assert.Equal(t, []view.Action{view.RequestDelete{Kind: view.KindMark, ID: "m1"}}, actions)

	_, _, err = parse(s, "md 2")
	assert.EqualError(t, err, "no mark 2")
}

func TestRunSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Env:          "dev",
		Pagination:   config.Pagination{MaxLimit: 100},
		Confirmation: config.Confirmation{Required: true, TTL: time.Minute},
	}
	srv := httptest.NewServer(router.New(cfg, store, confirm.NewService(confirm.NewMemoryStore(), time.Minute)))
	t.Cleanup(srv.Close)

	input := strings.Join([]string{
		"add Ann ann@x.com 20",
		"add Bob bob@x.com 21",
		"add Cid cid@x.com 22",
		"l",
		"d 1",
		"y",
		"q",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), client.New(srv.URL), 2, strings.NewReader(input), &out))

	text := out.String()
	assert.Contains(t, text, "page 2/2  total 3")
	assert.Contains(t, text, "delete student ")
	assert.Contains(t, text, "page 1/1  total 2")
	assert.NotContains(t, text, "error:")
}

func TestRunEditsStudentAndMarks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Env:          "dev",
		Pagination:   config.Pagination{MaxLimit: 100},
		Confirmation: config.Confirmation{Required: true, TTL: time.Minute},
	}
	srv := httptest.NewServer(router.New(cfg, store, confirm.NewService(confirm.NewMemoryStore(), time.Minute)))
	t.Cleanup(srv.Close)

	input := strings.Join([]string{
		"add Ann ann@x.com 20",
		"e 1 Anna anna@x.com 21",
		"m 1",
		"ma Math 80",
		"ma Art 70",
		"me 1",
		"ms 1 Physics 95",
		"md 2",
		"y",
		"q",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), client.New(srv.URL), 10, strings.NewReader(input), &out))
	assert.NotContains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "delete mark ")

	page, err := store.ListStudents(context.Background(), query.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	st := page.Items[0]
	assert.Equal(t, "Anna", st.FirstName)
	assert.Equal(t, "anna@x.com", st.Email)
	assert.Equal(t, 21, st.Age)
	require.Len(t, st.Marks, 1)
	assert.Equal(t, "Physics", st.Marks[0].Subject)
	assert.Equal(t, 95, st.Marks[0].Marks)
}
