package gormdb

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aanand-mishra/students-api/internal/types"
)

// studentRow is the gorm model of the students table. CreatedAt holds unix
// nanoseconds so ordering is exact on every dialect.
type studentRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	FirstName   string    `gorm:"size:100;not null"`
	LastName    string    `gorm:"size:100;not null"`
	DateOfBirth string    `gorm:"size:10;not null"`
	Email       string    `gorm:"size:255;not null;uniqueIndex"`
	Age         int       `gorm:"not null"`
	CreatedAt   int64     `gorm:"autoCreateTime:nano;not null;index"`
	Marks       []markRow `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

func (studentRow) TableName() string { return "students" }

func (r *studentRow) BeforeCreate(*gorm.DB) error {
	return assignID(&r.ID)
}

type markRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Subject   string `gorm:"size:100;not null"`
	Marks     int    `gorm:"not null"`
	StudentID string `gorm:"size:36;not null;index"`
}

func (markRow) TableName() string { return "marks" }

func (r *markRow) BeforeCreate(*gorm.DB) error {
	return assignID(&r.ID)
}

// assignID gives new rows a time-ordered UUID so ordering by id follows
// insertion order.
func assignID(id *string) error {
	if *id != "" {
		return nil
	}
	v, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = v.String()
	return nil
}

func studentFromInput(in types.StudentInput) studentRow {
	return studentRow{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		Email:       in.Email,
		Age:         in.Age,
	}
}

func (r studentRow) info() types.StudentInfo {
	return types.StudentInfo{
		ID:          r.ID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Email:       r.Email,
		Age:         r.Age,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
	}
}

func (r studentRow) student() types.Student {
	st := types.Student{StudentInfo: r.info(), Marks: make([]types.Mark, 0, len(r.Marks))}
	for _, m := range r.Marks {
		st.Marks = append(st.Marks, m.mark())
	}
	return st
}

func (r markRow) mark() types.Mark {
	return types.Mark{ID: r.ID, Subject: r.Subject, Marks: r.Marks, StudentID: r.StudentID}
}
