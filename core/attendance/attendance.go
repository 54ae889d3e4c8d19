package attendance

import (
	"context"
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

var (
	statusTag  = "attendance_status"
	statusText = "status must be one of present, absent or late"
)

type Record struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Status    string `json:"status"`
	Remarks   string `json:"remarks,omitempty"`
	MarkedBy  string `json:"marked_by,omitempty"`
}

type Mark struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"attendance_status"`
	Remarks   string `json:"remarks"`
}

// MarkClass is the attendance of a class for one day.
type MarkClass struct {
	ClassID string `json:"class_id" validate:"required,uuid"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Records []Mark `json:"records" validate:"required,min=1,dive"`
}

func (mc *MarkClass) Validate(validate *validator.Validate) error {
	mc.ClassID = core.CleanString(mc.ClassID, true /* lower */)
	mc.Date = core.CleanString(mc.Date)
	for i := range mc.Records {
		r := &mc.Records[i]
		r.StudentID = core.CleanString(r.StudentID, true /* lower */)
		r.Status = core.CleanString(r.Status, true /* lower */)
		r.Remarks = core.CleanString(r.Remarks)
		if r.Status == "" {
			r.Status = StatusPresent
		}
	}
	return validate.Struct(mc)
}

type QueryFilter struct {
	ClassID    string `query:"class_id"`
	StudentID  string `query:"student_id"`
	Date       string `query:"date"`
	From       string `query:"from"`
	To         string `query:"to"`
	StudentIDs []string
	Restricted bool // only StudentIDs are visible
}

// Summary counts records by status. Rate is the rounded share of present records.
type Summary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Rate    int `json:"rate"`
}

func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total++
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusAbsent:
			s.Absent++
		case StatusLate:
			s.Late++
		}
	}
	if s.Total > 0 {
		s.Rate = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
	}
	return s
}

type (
	Repository interface {
		// ReplaceMarked deletes the records markedBy gave for (classID, date).
		ReplaceMarked(ctx context.Context, classID, date, markedBy string, exec ...core.DBExecutor) error
		CreateRecords(ctx context.Context, recs []Record, exec ...core.DBExecutor) ([]Record, error)
		// QueryRecords orders by date desc.
		QueryRecords(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Record, error)
	}

	StudentScope interface {
		VisibleTo(ctx context.Context, caller user.User) (ids []string, restricted bool, err error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		students StudentScope
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(StatusPresent, StatusAbsent, StatusLate))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func NewService(db core.DB, repo Repository, students StudentScope) *Service {
	return &Service{db: db, repo: repo, students: students}
}

// Mark replaces what caller previously marked for the class & day with mc.
func (svc *Service) Mark(ctx context.Context, caller user.User, mc MarkClass) ([]Record, error) {
	recs := make([]Record, 0, len(mc.Records))
	for _, m := range mc.Records {
		recs = append(recs, Record{
			StudentID: m.StudentID,
			ClassID:   mc.ClassID,
			Date:      mc.Date,
			Status:    m.Status,
			Remarks:   m.Remarks,
			MarkedBy:  caller.ID,
		})
	}

	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.repo.ReplaceMarked(ctx, mc.ClassID, mc.Date, caller.ID, exec); err != nil {
			return errors.Wrap(err, "clearing attendance")
		}
		var err error
		recs, err = svc.repo.CreateRecords(ctx, recs, exec)
		return errors.Wrap(err, "recording attendance")
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (svc *Service) Query(ctx context.Context, caller user.User, filter QueryFilter) ([]Record, error) {
	ids, restricted, err := svc.students.VisibleTo(ctx, caller)
	if err != nil {
		return nil, errors.Wrap(err, "scoping attendance")
	}
	filter.StudentIDs, filter.Restricted = ids, restricted
	return svc.repo.QueryRecords(ctx, &filter)
}

// Summary summarizes the records matching filter, regardless of who asks.
func (svc *Service) Summary(ctx context.Context, filter QueryFilter) (Summary, error) {
	recs, err := svc.repo.QueryRecords(ctx, &filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(recs), nil
}
