package view

import "github.com/aanand-mishra/students-api/internal/types"

// Action is an input to Update: a user intent or the outcome of a Command.
type Action interface{ action() }

// Navigation and query.
type (
	Refresh   struct{}
	GoTo      struct{ Page int }
	First     struct{}
	Prev      struct{}
	Next      struct{}
	Last      struct{}
	SetLimit  struct{ Limit int }
	SetSearch struct{ Search string }
)

// PageLoaded and PageFailed answer the FetchPage with the same Seq.
type (
	PageLoaded struct {
		Seq        uint64
		Records    []types.Student
		Total      int64
		TotalPages int
	}
	PageFailed struct {
		Seq uint64
		Err error
	}
)

// Create/edit modal.
type (
	OpenCreate struct{}
	OpenEdit   struct{ Student types.Student }
	EditDraft  struct{ Draft types.StudentInput }
	CloseModal struct{}
	Submit     struct{}
	Saved      struct{ Student types.Student }
	SaveFailed struct{ Err error }
)

// Marks editor.
type (
	OpenMarks   struct{ StudentID string }
	MarksLoaded struct {
		StudentID string
		Marks     []types.Mark
	}
	ToggleMarkEdit struct{ ID string }
	SaveMark       struct {
		ID    string
		Input types.MarkInput
	}
	MarkSaved struct{ Mark types.Mark }
	// AddMark creates a mark for the open student; Input.StudentID is
	// filled in by Update.
	AddMark   struct{ Input types.MarkInput }
	MarkAdded struct{ Mark types.Mark }
	// MarksFailed closes the editor when StudentID names the open student;
	// a failed row save leaves it open.
	MarksFailed struct {
		StudentID string
		Err       error
	}
	CloseMarks struct{}
)

// Two-step delete.
type (
	RequestDelete struct{ Kind, ID string }
	TokenIssued   struct{ Kind, ID, Token string }
	ConfirmDelete struct{}
	CancelDelete  struct{}
	Deleted       struct{ Kind, ID string }
	DeleteFailed  struct{ Err error }
)

func (Refresh) action()        {}
func (GoTo) action()           {}
func (First) action()          {}
func (Prev) action()           {}
func (Next) action()           {}
func (Last) action()           {}
func (SetLimit) action()       {}
func (SetSearch) action()      {}
func (PageLoaded) action()     {}
func (PageFailed) action()     {}
func (OpenCreate) action()     {}
func (OpenEdit) action()       {}
func (EditDraft) action()      {}
func (CloseModal) action()     {}
func (Submit) action()         {}
func (Saved) action()          {}
func (SaveFailed) action()     {}
func (OpenMarks) action()      {}
func (MarksLoaded) action()    {}
func (ToggleMarkEdit) action() {}
func (SaveMark) action()       {}
func (MarkSaved) action()      {}
func (AddMark) action()        {}
func (MarkAdded) action()      {}
func (MarksFailed) action()    {}
func (CloseMarks) action()     {}
func (RequestDelete) action()  {}
func (TokenIssued) action()    {}
func (ConfirmDelete) action()  {}
func (CancelDelete) action()   {}
func (Deleted) action()        {}
func (DeleteFailed) action()   {}
