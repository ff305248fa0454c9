package view

import (
	"context"

	"github.com/aanand-mishra/students-api/internal/client"
	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/types"
)

// Command is a side effect requested by Update.
type Command interface{ command() }

type (
	FetchPage struct {
		Seq    uint64
		Params query.Params
	}
	FetchMarks  struct{ StudentID string }
	SaveStudent struct {
		ID    string // empty creates
		Input types.StudentInput
	}
	CreateMark struct{ Input types.MarkInput }
	UpdateMark struct {
		ID    string
		Input types.MarkInput
	}
	RequestToken struct{ Kind, ID string }
	IssueDelete  struct{ Kind, ID, Token string }
)

func (FetchPage) command()    {}
func (FetchMarks) command()   {}
func (SaveStudent) command()  {}
func (CreateMark) command()   {}
func (UpdateMark) command()   {}
func (RequestToken) command() {}
func (IssueDelete) command()  {}

// API is the part of client.Client the screen needs.
type API interface {
	ListStudents(ctx context.Context, p query.Params) (client.List[types.Student], error)
	GetStudent(ctx context.Context, id string) (types.Student, error)
	CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error)
	UpdateStudent(ctx context.Context, id string, in types.StudentInput) (types.Student, error)
	CreateMark(ctx context.Context, in types.MarkInput) (types.Mark, error)
	UpdateMark(ctx context.Context, id string, in types.MarkInput) (types.Mark, error)
	DeleteToken(ctx context.Context, kind, id string) (confirm.Token, error)
	Delete(ctx context.Context, kind, id, token string) error
}

// Run performs cmd and reports its outcome as an Action.
func Run(ctx context.Context, api API, cmd Command) Action {
	switch c := cmd.(type) {
	case FetchPage:
		page, err := api.ListStudents(ctx, c.Params)
		if err != nil {
			return PageFailed{Seq: c.Seq, Err: err}
		}
		return PageLoaded{Seq: c.Seq, Records: page.Items, Total: page.Total, TotalPages: page.TotalPages}

	case FetchMarks:
		st, err := api.GetStudent(ctx, c.StudentID)
		if err != nil {
			return MarksFailed{StudentID: c.StudentID, Err: err}
		}
		return MarksLoaded{StudentID: st.ID, Marks: st.Marks}

	case SaveStudent:
		var (
			st  types.Student
			err error
		)
		if c.ID == "" {
			st, err = api.CreateStudent(ctx, c.Input)
		} else {
			st, err = api.UpdateStudent(ctx, c.ID, c.Input)
		}
		if err != nil {
			return SaveFailed{Err: err}
		}
		return Saved{Student: st}

	case CreateMark:
		m, err := api.CreateMark(ctx, c.Input)
		if err != nil {
			return MarksFailed{Err: err}
		}
		return MarkAdded{Mark: m}

	case UpdateMark:
		m, err := api.UpdateMark(ctx, c.ID, c.Input)
		if err != nil {
			return MarksFailed{Err: err}
		}
		return MarkSaved{Mark: m}

	case RequestToken:
		tok, err := api.DeleteToken(ctx, c.Kind, c.ID)
		if err != nil {
			return DeleteFailed{Err: err}
		}
		return TokenIssued{Kind: c.Kind, ID: c.ID, Token: tok.Token}

	case IssueDelete:
		if err := api.Delete(ctx, c.Kind, c.ID, c.Token); err != nil {
			return DeleteFailed{Err: err}
		}
		return Deleted{Kind: c.Kind, ID: c.ID}
	}
	return nil
}

// Drain runs cmds and every command they lead to, in order, applying each
// outcome to s. It suits a synchronous front end such as a terminal.
func Drain(ctx context.Context, api API, s State, cmds []Command) State {
	for len(cmds) > 0 {
		cmd := cmds[0]
		cmds = cmds[1:]
		if a := Run(ctx, api, cmd); a != nil {
			var more []Command
			s, more = Update(s, a)
			cmds = append(cmds, more...)
		}
	}
	return s
}
