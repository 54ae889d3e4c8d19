package grade

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("grade not found")
	errNoTeacher = errors.New("teacher is required")
)

type Grade struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	SubjectID     string    `json:"subject_id"`
	SubjectName   string    `json:"subject_name,omitempty"`
	TeacherID     string    `json:"teacher_id,omitempty"`
	ExamType      string    `json:"exam_type"`
	MarksObtained float64   `json:"marks_obtained"`
	TotalMarks    float64   `json:"total_marks"`
	ExamDate      string    `json:"exam_date,omitempty"` // YYYY-MM-DD
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC

	Percentage int    `json:"percentage"`
	Letter     string `json:"letter"`
}

// Percent returns the rounded share of marks obtained.
func Percent(obtained, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(obtained / total * 100))
}

// Letter maps a percentage to its letter grade.
func Letter(pct int) string {
	switch {
	case pct >= 90:
		return "A+"
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B"
	case pct >= 60:
		return "C"
	default:
		return "F"
	}
}

// WithDerived fills Percentage & Letter from the marks.
func (g Grade) WithDerived() Grade {
	g.Percentage = Percent(g.MarksObtained, g.TotalMarks)
	g.Letter = Letter(g.Percentage)
	return g
}

type NewGrade struct {
	StudentID     string  `json:"student_id" validate:"required,uuid"`
	SubjectID     string  `json:"subject_id" validate:"required,uuid"`
	TeacherID     string  `json:"teacher_id" validate:"omitempty,uuid"`
	ExamType      string  `json:"exam_type" validate:"required,notblank"`
	MarksObtained float64 `json:"marks_obtained" validate:"gte=0,ltefield=TotalMarks"`
	TotalMarks    float64 `json:"total_marks" validate:"required,gt=0"`
	ExamDate      string  `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
	Remarks       string  `json:"remarks"`
}

// Validate checks ng on behalf of caller. A teacher always records grades in their own name.
func (ng *NewGrade) Validate(caller user.User, validate *validator.Validate) error {
	ng.StudentID = core.CleanString(ng.StudentID, true /* lower */)
	ng.SubjectID = core.CleanString(ng.SubjectID, true /* lower */)
	ng.TeacherID = core.CleanString(ng.TeacherID, true /* lower */)
	ng.ExamType = core.CleanString(ng.ExamType)
	ng.ExamDate = core.CleanString(ng.ExamDate)
	ng.Remarks = core.CleanString(ng.Remarks)

	if caller.IsTeacher() {
		ng.TeacherID = caller.ID
	}
	if ng.TeacherID == "" {
		return core.NewValidationError(errNoTeacher, core.FieldError{Field: "teacher_id", Error: errNoTeacher.Error()})
	}
	return validate.Struct(ng)
}

// OrderingFields are the fields grades can be ordered by.
var OrderingFields = []string{"exam_date", "exam_type", "marks_obtained", "created_at"}

type QueryFilter struct {
	StudentID  string   `query:"student_id"`
	SubjectID  string   `query:"subject_id"`
	TeacherID  string   `query:"teacher_id"`
	StudentIDs []string
	Restricted bool // only StudentIDs are visible
}

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		// QueryGrades orders by exam date then creation, newest first, unless ordering is given.
		QueryGrades(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Grade, error)
		GetGradeByID(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// StudentScope tells which students a user may see.
	StudentScope interface {
		VisibleTo(ctx context.Context, caller user.User) (ids []string, restricted bool, err error)
	}

	Service struct {
		repo     Repository
		students StudentScope
	}
)

func NewService(repo Repository, students StudentScope) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) Create(ctx context.Context, ng NewGrade) (Grade, error) {
	g, err := svc.repo.CreateGrade(ctx, Grade{
		StudentID:     ng.StudentID,
		SubjectID:     ng.SubjectID,
		TeacherID:     ng.TeacherID,
		ExamType:      ng.ExamType,
		MarksObtained: ng.MarksObtained,
		TotalMarks:    ng.TotalMarks,
		ExamDate:      ng.ExamDate,
		Remarks:       ng.Remarks,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return Grade{}, errors.Wrap(err, "creating grade")
	}
	return g.WithDerived(), nil
}

// Query lists the grades matching filter that caller may see.
func (svc *Service) Query(ctx context.Context, caller user.User, filter QueryFilter, ordering []core.DBOrdering) ([]Grade, error) {
	ids, restricted, err := svc.students.VisibleTo(ctx, caller)
	if err != nil {
		return nil, errors.Wrap(err, "scoping grades")
	}
	filter.StudentIDs, filter.Restricted = ids, restricted

	ordering = core.FilterOrderings(ordering, OrderingFields...)
	grades, err := svc.repo.QueryGrades(ctx, &filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range grades {
		grades[i] = grades[i].WithDerived()
	}
	return grades, nil
}

// Average returns the mean percentage of the grades of studentID, or 0 without grades.
func (svc *Service) Average(ctx context.Context, studentID string) (float64, error) {
	grades, err := svc.repo.QueryGrades(ctx, &QueryFilter{StudentID: studentID}, nil)
	if err != nil {
		return 0, err
	}
	if len(grades) == 0 {
		return 0, nil
	}
	var sum int
	for _, g := range grades {
		sum += Percent(g.MarksObtained, g.TotalMarks)
	}
	return math.Round(float64(sum)/float64(len(grades))*10) / 10, nil
}

// Delete removes a grade. Teachers may only delete the grades they gave.
func (svc *Service) Delete(ctx context.Context, caller user.User, id string) error {
	g, err := svc.repo.GetGradeByID(ctx, id)
	if err != nil {
		return err
	}
	if caller.IsTeacher() && g.TeacherID != caller.ID {
		return core.ErrForbidden
	}
	return svc.repo.DeleteGrade(ctx, id)
}
