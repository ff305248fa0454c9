// Package view is the list screen of the students UI as a pure state
// machine. Update takes the current State and an Action and returns the
// next State plus the Commands to run; Run performs a Command against the
// API and turns the outcome back into an Action.
//
// The screen owns one State value split by concern: the query, the last
// fetched result, the create/edit modal, the marks editor and the pending
// delete confirmation.
package view

import (
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/types"
)

// Record kinds carried by delete actions.
const (
	KindStudent = "student"
	KindMark    = "mark"
)

type Query struct {
	Page   int
	Limit  int
	Search string
}

func (q Query) params() query.Params {
	return query.Params{Page: q.Page, Limit: q.Limit, Search: q.Search}
}

// Result is the last page applied to the screen.
type Result struct {
	Records    []types.Student
	Total      int64
	TotalPages int
	Loading    bool
}

// Modal is the create/edit form. An empty ID means create.
type Modal struct {
	Open   bool
	ID     string
	Draft  types.StudentInput
	Saving bool
}

// MarksEditor is the inline marks table of one student. Editing holds the
// rows currently in edit mode.
type MarksEditor struct {
	StudentID string
	Marks     []types.Mark
	Editing   map[string]bool
}

func (m MarksEditor) Open() bool { return m.StudentID != "" }

// Pending is a delete awaiting confirmation. Token is empty until the
// server has issued one.
type Pending struct {
	Kind  string
	ID    string
	Token string
}

type State struct {
	Query   Query
	Result  Result
	Modal   Modal
	Marks   MarksEditor
	Confirm *Pending
	Err     string

	seq uint64
}

// New returns the initial state and the fetch of its first page.
func New(limit int) (State, []Command) {
	if limit < 1 {
		limit = query.DefaultLimit
	}
	s := State{Query: Query{Page: query.DefaultPage, Limit: limit}}
	return s.fetch()
}

func (s State) CanFirst() bool { return s.Query.Page > 1 }
func (s State) CanPrev() bool  { return s.Query.Page > 1 }
func (s State) CanNext() bool  { return s.Query.Page < s.Result.TotalPages }
func (s State) CanLast() bool  { return s.Query.Page < s.Result.TotalPages }

// Seq is the sequence number of the latest issued fetch.
func (s State) Seq() uint64 { return s.seq }

func (s State) fetch() (State, []Command) {
	s.seq++
	s.Result.Loading = true
	return s, []Command{FetchPage{Seq: s.seq, Params: s.Query.params()}}
}

func (s State) withQuery(q Query) (State, []Command) {
	if q == s.Query {
		return s, nil
	}
	s.Query = q
	return s.fetch()
}

// Update applies a to s.
func Update(s State, a Action) (State, []Command) {
	switch a := a.(type) {
	case Refresh:
		return s.fetch()

	case GoTo:
		if a.Page < 1 || (s.Result.TotalPages > 0 && a.Page > s.Result.TotalPages) {
			return s, nil
		}
		q := s.Query
		q.Page = a.Page
		return s.withQuery(q)
	case First:
		if !s.CanFirst() {
			return s, nil
		}
		return Update(s, GoTo{Page: 1})
	case Prev:
		if !s.CanPrev() {
			return s, nil
		}
		return Update(s, GoTo{Page: s.Query.Page - 1})
	case Next:
		if !s.CanNext() {
			return s, nil
		}
		return Update(s, GoTo{Page: s.Query.Page + 1})
	case Last:
		if !s.CanLast() {
			return s, nil
		}
		return Update(s, GoTo{Page: s.Result.TotalPages})

	case SetLimit:
		if a.Limit < 1 || a.Limit == s.Query.Limit {
			return s, nil
		}
		return s.withQuery(Query{Page: 1, Limit: a.Limit, Search: s.Query.Search})
	case SetSearch:
		if a.Search == s.Query.Search {
			return s, nil
		}
		return s.withQuery(Query{Page: 1, Limit: s.Query.Limit, Search: a.Search})

	case PageLoaded:
		if a.Seq != s.seq {
			return s, nil
		}
		s.Result = Result{Records: a.Records, Total: a.Total, TotalPages: a.TotalPages}
		s.Err = ""
		if a.TotalPages > 0 && s.Query.Page > a.TotalPages {
			// The page emptied under us, typically after a delete.
			s.Query.Page = a.TotalPages
			return s.fetch()
		}
		return s, nil
	case PageFailed:
		if a.Seq != s.seq {
			return s, nil
		}
		s.Result.Loading = false
		s.Err = a.Err.Error()
		return s, nil

	case OpenCreate:
		s.Modal = Modal{Open: true}
		return s, nil
	case OpenEdit:
		st := a.Student
		s.Modal = Modal{Open: true, ID: st.ID, Draft: types.StudentInput{
			FirstName: st.FirstName, LastName: st.LastName, DateOfBirth: st.DateOfBirth,
			Email: st.Email, Age: st.Age,
		}}
		return s, nil
	case EditDraft:
		if !s.Modal.Open {
			return s, nil
		}
		s.Modal.Draft = a.Draft
		return s, nil
	case CloseModal:
		s.Modal = Modal{}
		return s, nil
	case Submit:
		if !s.Modal.Open || s.Modal.Saving {
			return s, nil
		}
		s.Modal.Saving = true
		return s, []Command{SaveStudent{ID: s.Modal.ID, Input: s.Modal.Draft}}
	case Saved:
		s.Modal = Modal{}
		s.Err = ""
		return s.fetch()
	case SaveFailed:
		s.Modal.Saving = false
		s.Err = a.Err.Error()
		return s, nil

	case OpenMarks:
		s.Marks = MarksEditor{StudentID: a.StudentID, Editing: map[string]bool{}}
		return s, []Command{FetchMarks{StudentID: a.StudentID}}
	case MarksLoaded:
		if a.StudentID != s.Marks.StudentID {
			return s, nil
		}
		s.Marks.Marks = a.Marks
		return s, nil
	case ToggleMarkEdit:
		if !s.Marks.Open() {
			return s, nil
		}
		editing := make(map[string]bool, len(s.Marks.Editing)+1)
		for id, on := range s.Marks.Editing {
			editing[id] = on
		}
		if editing[a.ID] {
			delete(editing, a.ID)
		} else {
			editing[a.ID] = true
		}
		s.Marks.Editing = editing
		return s, nil
	case SaveMark:
		if !s.Marks.Editing[a.ID] {
			return s, nil
		}
		return s, []Command{UpdateMark{ID: a.ID, Input: a.Input}}
	case MarkSaved:
		return s.markSaved(a.Mark)
	case AddMark:
		if !s.Marks.Open() {
			return s, nil
		}
		in := a.Input
		in.StudentID = s.Marks.StudentID
		return s, []Command{CreateMark{Input: in}}
	case MarkAdded:
		if a.Mark.StudentID != s.Marks.StudentID {
			return s, nil
		}
		s.Marks.Marks = append(s.Marks.Marks[:len(s.Marks.Marks):len(s.Marks.Marks)], a.Mark)
		s.Err = ""
		return s.fetch()
	case MarksFailed:
		if a.StudentID != "" && a.StudentID == s.Marks.StudentID {
			s.Marks = MarksEditor{}
		}
		s.Err = a.Err.Error()
		return s, nil
	case CloseMarks:
		s.Marks = MarksEditor{}
		return s, nil

	case RequestDelete:
		s.Confirm = &Pending{Kind: a.Kind, ID: a.ID}
		return s, []Command{RequestToken{Kind: a.Kind, ID: a.ID}}
	case TokenIssued:
		if s.Confirm == nil || s.Confirm.Kind != a.Kind || s.Confirm.ID != a.ID {
			return s, nil
		}
		p := *s.Confirm
		p.Token = a.Token
		s.Confirm = &p
		return s, nil
	case ConfirmDelete:
		if s.Confirm == nil || s.Confirm.Token == "" {
			return s, nil
		}
		p := *s.Confirm
		s.Confirm = nil
		return s, []Command{IssueDelete{Kind: p.Kind, ID: p.ID, Token: p.Token}}
	case CancelDelete:
		s.Confirm = nil
		return s, nil
	case Deleted:
		return s.deleted(a)
	case DeleteFailed:
		s.Confirm = nil
		s.Err = a.Err.Error()
		return s, nil
	}
	return s, nil
}

func (s State) markSaved(m types.Mark) (State, []Command) {
	if !s.Marks.Open() {
		return s, nil
	}
	marks := make([]types.Mark, 0, len(s.Marks.Marks))
	for _, old := range s.Marks.Marks {
		if old.ID == m.ID {
			if m.StudentID != s.Marks.StudentID {
				continue
			}
			old = m
		}
		marks = append(marks, old)
	}
	s.Marks.Marks = marks
	s, _ = Update(s, ToggleMarkEdit{ID: m.ID})
	return s.fetch()
}

func (s State) deleted(a Deleted) (State, []Command) {
	switch a.Kind {
	case KindStudent:
		if s.Marks.StudentID == a.ID {
			s.Marks = MarksEditor{}
		}
	case KindMark:
		if s.Marks.Open() {
			marks := make([]types.Mark, 0, len(s.Marks.Marks))
			for _, m := range s.Marks.Marks {
				if m.ID != a.ID {
					marks = append(marks, m)
				}
			}
			s.Marks.Marks = marks
		}
	}
	s.Err = ""
	return s.fetch()
}
