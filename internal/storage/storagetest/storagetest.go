// Package storagetest is a conformance suite for storage.Storage
// implementations. Each backend's tests call Run with a constructor that
// returns a fresh, empty store.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
)

// Opener returns an empty store; the suite closes it.
type Opener func(t *testing.T) storage.Storage

// Run executes every conformance test against stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"CreateGetRoundTrip", testCreateGetRoundTrip},
		{"DuplicateEmailConflicts", testDuplicateEmailConflicts},
		{"UpdateEmailConflicts", testUpdateEmailConflicts},
		{"UpdateReplacesFields", testUpdateReplacesFields},
		{"UpdateMissingStudent", testUpdateMissingStudent},
		{"SearchIsCaseInsensitiveSubstring", testSearchCaseInsensitive},
		{"SearchFoldsNonASCII", testSearchFoldsNonASCII},
		{"SearchEscapesWildcards", testSearchEscapesWildcards},
		{"PaginationBoundsAndOrder", testPagination},
		{"DeleteMissingLeavesStoreUnchanged", testDeleteMissing},
		{"DeleteStudentCascadesMarks", testDeleteCascades},
		{"MarkRequiresExistingStudent", testMarkRequiresStudent},
		{"MarkLifecycle", testMarkLifecycle},
		{"ListMarksSearchAndOrder", testListMarks},
		{"Ping", testPing},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func studentInput(first, email string) types.StudentInput {
	return types.StudentInput{FirstName: first, LastName: "Tester", Email: email, Age: 20}
}

func markInput(subject string, score int, studentID string) types.MarkInput {
	return types.MarkInput{Subject: subject, Marks: &score, StudentID: studentID}
}

func mustCreateStudent(t *testing.T, s storage.Storage, in types.StudentInput) types.Student {
	t.Helper()
	st, err := s.CreateStudent(context.Background(), in)
	require.NoError(t, err)
	return st
}

func mustCreateMark(t *testing.T, s storage.Storage, in types.MarkInput) types.Mark {
	t.Helper()
	m, err := s.CreateMark(context.Background(), in)
	require.NoError(t, err)
	return m
}

func all() query.Params {
	return query.Params{Page: 1, Limit: query.MaxLimit}
}

func testCreateGetRoundTrip(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	in := types.StudentInput{FirstName: "Ann", LastName: "Lee", DateOfBirth: "2004-05-06", Email: "ann@x.com", Age: 20}

	created, err := s.CreateStudent(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NotNil(t, created.Marks)
	assert.Empty(t, created.Marks)

	got, err := s.GetStudentByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Ann", got.FirstName)
	assert.Equal(t, "Lee", got.LastName)
	assert.Equal(t, "2004-05-06", got.DateOfBirth)
	assert.Equal(t, "ann@x.com", got.Email)
	assert.Equal(t, 20, got.Age)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "created %v, got %v", created.CreatedAt, got.CreatedAt)
	assert.NotNil(t, got.Marks)
	assert.Empty(t, got.Marks)

	_, err = s.GetStudentByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateEmailConflicts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))

	_, err := s.CreateStudent(ctx, studentInput("Other", "ann@x.com"))
	require.ErrorIs(t, err, storage.ErrConflict)

	page, err := s.ListStudents(ctx, all())
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, "Ann", page.Items[0].FirstName)
}

func testUpdateEmailConflicts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	bob := mustCreateStudent(t, s, studentInput("Bob", "bob@x.com"))

	_, err := s.UpdateStudentByID(ctx, bob.ID, studentInput("Bob", "ann@x.com"))
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetStudentByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", got.Email)

	// Keeping one's own email is not a conflict.
	_, err = s.UpdateStudentByID(ctx, bob.ID, studentInput("Robert", "bob@x.com"))
	assert.NoError(t, err)
}

func testUpdateReplacesFields(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	st := mustCreateStudent(t, s, types.StudentInput{FirstName: "Ann", LastName: "Lee", DateOfBirth: "2004-05-06", Email: "ann@x.com", Age: 20})
	mustCreateMark(t, s, markInput("Math", 90, st.ID))

	updated, err := s.UpdateStudentByID(ctx, st.ID, types.StudentInput{FirstName: "Anna", Email: "anna@x.com", Age: 21})
	require.NoError(t, err)
	assert.Equal(t, st.ID, updated.ID)
	assert.Equal(t, "Anna", updated.FirstName)
	assert.Empty(t, updated.LastName, "omitted fields are replaced, not merged")
	assert.Empty(t, updated.DateOfBirth)
	assert.Equal(t, "anna@x.com", updated.Email)
	assert.Equal(t, 21, updated.Age)
	assert.True(t, st.CreatedAt.Equal(updated.CreatedAt))
	assert.Len(t, updated.Marks, 1)
}

func testUpdateMissingStudent(t *testing.T, s storage.Storage) {
	_, err := s.UpdateStudentByID(context.Background(), "missing", studentInput("Ann", "ann@x.com"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSearchCaseInsensitive(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	target := mustCreateStudent(t, s, types.StudentInput{FirstName: "Zed", LastName: "Quinn", Email: "A@B.com", Age: 30})
	mustCreateStudent(t, s, types.StudentInput{FirstName: "Ann", LastName: "Marsh", Email: "ann@x.com", Age: 20})
	mustCreateStudent(t, s, types.StudentInput{FirstName: "Joanne", LastName: "Holt", Email: "jo@x.com", Age: 22})

	page, err := s.ListStudents(ctx, query.Params{Page: 1, Limit: 10, Search: "a@b"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, target.ID, page.Items[0].ID)

	// First name substring, any case: Ann and JoANNe.
	page, err = s.ListStudents(ctx, query.Params{Page: 1, Limit: 10, Search: "ANN"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	// Last name.
	page, err = s.ListStudents(ctx, query.Params{Page: 1, Limit: 10, Search: "quin"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	// Empty search matches everything.
	page, err = s.ListStudents(ctx, query.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	page, err = s.ListStudents(ctx, query.Params{Page: 1, Limit: 10, Search: "nobody"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func testSearchFoldsNonASCII(t *testing.T, s storage.Storage) {
	target := mustCreateStudent(t, s, types.StudentInput{FirstName: "Émile", LastName: "Ørsted", Email: "emile@x.com", Age: 21})
	mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))

	for _, search := range []string{"Émile", "émile", "ÉMILE", "mIL", "ørsted", "ØRST"} {
		page, err := s.ListStudents(context.Background(), query.Params{Page: 1, Limit: 10, Search: search})
		require.NoError(t, err, search)
		require.EqualValues(t, 1, page.Total, search)
		assert.Equal(t, target.ID, page.Items[0].ID, search)
	}

	owner := mustCreateStudent(t, s, studentInput("Zoë", "zoe@x.com"))
	mustCreateMark(t, s, markInput("Économie", 70, owner.ID))
	marks, err := s.ListMarks(context.Background(), query.Params{Page: 1, Limit: 10, Search: "économie"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, marks.Total)
}

func testSearchEscapesWildcards(t *testing.T, s storage.Storage) {
	mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	mustCreateStudent(t, s, studentInput("Per_cent", "per@x.com"))

	page, err := s.ListStudents(context.Background(), query.Params{Page: 1, Limit: 10, Search: "_"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "Per_cent", page.Items[0].FirstName)

	page, err = s.ListStudents(context.Background(), query.Params{Page: 1, Limit: 10, Search: "%"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
}

func testPagination(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const n = 23
	created := make([]types.Student, 0, n)
	for i := 0; i < n; i++ {
		created = append(created, mustCreateStudent(t, s, studentInput(fmt.Sprintf("S%02d", i), fmt.Sprintf("s%02d@x.com", i))))
	}

	limit := 10
	seen := make(map[string]bool)
	var order []string
	for page := 1; page <= query.TotalPages(n, limit); page++ {
		res, err := s.ListStudents(ctx, query.Params{Page: page, Limit: limit})
		require.NoError(t, err)
		assert.EqualValues(t, n, res.Total)
		assert.LessOrEqual(t, len(res.Items), limit)
		for _, st := range res.Items {
			assert.False(t, seen[st.ID], "student %s returned twice", st.ID)
			seen[st.ID] = true
			order = append(order, st.ID)
		}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, 3, query.TotalPages(n, limit))

	// Most recent first.
	require.Len(t, order, n)
	assert.Equal(t, created[n-1].ID, order[0])
	assert.Equal(t, created[0].ID, order[n-1])

	// Past the last page is empty but still reports the total.
	res, err := s.ListStudents(ctx, query.Params{Page: 4, Limit: limit})
	require.NoError(t, err)
	assert.EqualValues(t, n, res.Total)
	assert.Empty(t, res.Items)
}

func testDeleteMissing(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	st := mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	mustCreateMark(t, s, markInput("Math", 90, st.ID))

	assert.ErrorIs(t, s.DeleteStudentByID(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMarkByID(ctx, "missing"), storage.ErrNotFound)

	students, err := s.ListStudents(ctx, all())
	require.NoError(t, err)
	assert.EqualValues(t, 1, students.Total)
	marks, err := s.ListMarks(ctx, all())
	require.NoError(t, err)
	assert.EqualValues(t, 1, marks.Total)
}

func testDeleteCascades(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ann := mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	bob := mustCreateStudent(t, s, studentInput("Bob", "bob@x.com"))
	m1 := mustCreateMark(t, s, markInput("Math", 90, ann.ID))
	mustCreateMark(t, s, markInput("Art", 70, ann.ID))
	kept := mustCreateMark(t, s, markInput("Math", 60, bob.ID))

	require.NoError(t, s.DeleteStudentByID(ctx, ann.ID))

	_, err := s.GetStudentByID(ctx, ann.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetMarkByID(ctx, m1.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	marks, err := s.ListMarks(ctx, all())
	require.NoError(t, err)
	require.EqualValues(t, 1, marks.Total)
	assert.Equal(t, kept.ID, marks.Items[0].ID)
}

func testMarkRequiresStudent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	_, err := s.CreateMark(ctx, markInput("Math", 90, "missing"))
	require.ErrorIs(t, err, storage.ErrStudentNotFound)

	st := mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	m := mustCreateMark(t, s, markInput("Math", 90, st.ID))
	_, err = s.UpdateMarkByID(ctx, m.ID, markInput("Math", 90, "missing"))
	require.ErrorIs(t, err, storage.ErrStudentNotFound)

	marks, err := s.ListMarks(ctx, all())
	require.NoError(t, err)
	assert.EqualValues(t, 1, marks.Total)
	assert.Equal(t, st.ID, marks.Items[0].StudentID)
}

func testMarkLifecycle(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ann := mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	bob := mustCreateStudent(t, s, studentInput("Bob", "bob@x.com"))

	m, err := s.CreateMark(ctx, markInput("Math", 0, ann.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 0, m.Marks)

	got, err := s.GetMarkByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Math", got.Subject)
	require.NotNil(t, got.Student)
	assert.Equal(t, ann.ID, got.Student.ID)
	assert.Equal(t, "ann@x.com", got.Student.Email)

	st, err := s.GetStudentByID(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, st.Marks, 1)
	assert.Equal(t, m.ID, st.Marks[0].ID)

	updated, err := s.UpdateMarkByID(ctx, m.ID, markInput("Physics", 75, bob.ID))
	require.NoError(t, err)
	assert.Equal(t, "Physics", updated.Subject)
	assert.Equal(t, 75, updated.Marks)
	assert.Equal(t, bob.ID, updated.StudentID)

	st, err = s.GetStudentByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, st.Marks)

	_, err = s.UpdateMarkByID(ctx, "missing", markInput("Math", 1, ann.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.DeleteMarkByID(ctx, m.ID))
	_, err = s.GetMarkByID(ctx, m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListMarks(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	st := mustCreateStudent(t, s, studentInput("Ann", "ann@x.com"))
	subjects := []string{"Mathematics", "Art", "Applied MATH", "History", "Music"}
	var ids []string
	for i, subj := range subjects {
		ids = append(ids, mustCreateMark(t, s, markInput(subj, 50+i, st.ID)).ID)
	}

	page, err := s.ListMarks(ctx, query.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[:2], []string{page.Items[0].ID, page.Items[1].ID})
	require.NotNil(t, page.Items[0].Student)
	assert.Equal(t, st.ID, page.Items[0].Student.ID)

	page, err = s.ListMarks(ctx, query.Params{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[4], page.Items[0].ID)

	page, err = s.ListMarks(ctx, query.Params{Page: 1, Limit: 10, Search: "math"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, "Mathematics", page.Items[0].Subject)
	assert.Equal(t, "Applied MATH", page.Items[1].Subject)

	// Subject is the only searchable field of a mark.
	page, err = s.ListMarks(ctx, query.Params{Page: 1, Limit: 10, Search: "ann"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)
}

func testPing(t *testing.T, s storage.Storage) {
	assert.NoError(t, s.Ping(context.Background()))
}
