package class

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shuleapp/shule/core"
)

type Class struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	GradeLevel     int       `json:"gradeLevel"`
	Section        string    `json:"section,omitempty"`
	ClassTeacherID string    `json:"classTeacherId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"` // UTC

	Subjects []Link `json:"subjects,omitempty"`
}

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Link says a subject is taught in a class, optionally by a given teacher.
type Link struct {
	ID          string `json:"id"`
	ClassID     string `json:"classId"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	TeacherID   string `json:"teacherId,omitempty"`
}

// SubjectAssignment is one entry of the desired subject list of a class.
type SubjectAssignment struct {
	Name      string `json:"name"`
	TeacherID string `json:"teacherId" validate:"omitempty,uuid"`
}

func cleanAssignments(subjects []SubjectAssignment) {
	for i := range subjects {
		subjects[i].Name = core.CleanString(subjects[i].Name)
		subjects[i].TeacherID = core.CleanString(subjects[i].TeacherID, true /* lower */)
	}
}

type NewClass struct {
	Name           string              `json:"name" validate:"required,notblank"`
	GradeLevel     int                 `json:"gradeLevel" validate:"required,min=1"`
	Section        string              `json:"section"`
	ClassTeacherID string              `json:"classTeacherId" validate:"required,uuid"`
	Subjects       []SubjectAssignment `json:"subjects" validate:"dive"`
}

func (nc *NewClass) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	nc.ClassTeacherID = core.CleanString(nc.ClassTeacherID, true /* lower */)
	cleanAssignments(nc.Subjects)
}

func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate, teachers TeacherChecker) error {
	nc.Clean()
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return checkTeacher(ctx, teachers, "classTeacherId", nc.ClassTeacherID)
}

// UpdateClass holds a partial class update. A nil Subjects leaves the links untouched,
// a non-nil one (even empty) replaces them.
type UpdateClass struct {
	Name           *string              `json:"name"`
	GradeLevel     *int                 `json:"gradeLevel" validate:"omitempty,min=1"`
	Section        *string              `json:"section"`
	ClassTeacherID *string              `json:"classTeacherId" validate:"omitempty,uuid"`
	Subjects       *[]SubjectAssignment `json:"subjects" validate:"omitempty,dive"`
}

func (uc *UpdateClass) Validate(ctx context.Context, validate *validator.Validate, teachers TeacherChecker) error {
	uc.Name = core.CleanOptional(uc.Name)
	uc.Section = core.CleanOptional(uc.Section)
	uc.ClassTeacherID = core.CleanOptional(uc.ClassTeacherID)
	if uc.Subjects != nil {
		cleanAssignments(*uc.Subjects)
	}

	if uc.Name != nil && *uc.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field cannot be blank"})
	}
	if uc.ClassTeacherID != nil && *uc.ClassTeacherID == "" {
		uc.ClassTeacherID = nil
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.ClassTeacherID != nil {
		return checkTeacher(ctx, teachers, "classTeacherId", *uc.ClassTeacherID)
	}
	return nil
}

// AssignSubjects adds subjects to a class without touching the ones it already has.
type AssignSubjects struct {
	Subjects []SubjectAssignment `json:"subjects" validate:"required,min=1,dive"`
}

func (as *AssignSubjects) Validate(validate *validator.Validate) error {
	cleanAssignments(as.Subjects)
	for i := range as.Subjects {
		if as.Subjects[i].Name == "" || as.Subjects[i].TeacherID == "" {
			return core.NewValidationError(nil, core.FieldError{
				Field: "subjects",
				Error: "each subject needs a name and a teacher",
			})
		}
	}
	return validate.Struct(as)
}

type NewSubject struct {
	Name string `json:"name" validate:"required,notblank"`
}

type QueryFilter struct {
	Search       string `query:"search"`
	GradeLevel   int    `query:"grade_level"`
	ClassTeacher string `query:"class_teacher"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassTeacher = core.CleanString(qf.ClassTeacher, true /* lower */)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func checkTeacher(ctx context.Context, teachers TeacherChecker, field, id string) error {
	if teachers == nil {
		return nil
	}
	ok, err := teachers.IsTeacher(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "teacher not found"})
	}
	return nil
}
