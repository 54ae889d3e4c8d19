package fee

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

// Statuses
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
)

const dateLayout = "2006-01-02"

var (
	// errors
	ErrNotFound = errors.New("fee record not found")

	statusTag  = "fee_status"
	statusText = "status must be one of pending, paid or overdue"
)

type Record struct {
	ID           string  `json:"id"`
	StudentID    string  `json:"student_id"`
	Amount       float64 `json:"amount"`
	DueDate      string  `json:"due_date"` // YYYY-MM-DD
	FeeType      string  `json:"fee_type"`
	AcademicYear string  `json:"academic_year"`
	Status       string  `json:"status"`
	PaidDate     string  `json:"paid_date,omitempty"` // YYYY-MM-DD
	Remarks      string  `json:"remarks,omitempty"`
}

type NewRecord struct {
	StudentID    string  `json:"student_id" validate:"required,uuid"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	DueDate      string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	FeeType      string  `json:"fee_type" validate:"required,notblank"`
	AcademicYear string  `json:"academic_year" validate:"required,notblank"`
	Remarks      string  `json:"remarks"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID, true /* lower */)
	nr.DueDate = core.CleanString(nr.DueDate)
	nr.FeeType = core.CleanString(nr.FeeType)
	nr.AcademicYear = core.CleanString(nr.AcademicYear)
	nr.Remarks = core.CleanString(nr.Remarks)
	return validate.Struct(nr)
}

type UpdateStatus struct {
	Status   string  `json:"status" validate:"required,fee_status"`
	PaidDate string  `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	Remarks  *string `json:"remarks"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	us.PaidDate = core.CleanString(us.PaidDate)
	us.Remarks = core.CleanOptional(us.Remarks)
	return validate.Struct(us)
}

// OrderingFields are the fields fee records can be ordered by.
var OrderingFields = []string{"due_date", "amount", "fee_type", "academic_year", "status", "paid_date"}

type QueryFilter struct {
	StudentID    string `query:"student_id"`
	Status       string `query:"status"`
	AcademicYear string `query:"academic_year"`
	StudentIDs   []string
	Restricted   bool // only StudentIDs are visible
}

// Totals sums amounts by status. Collected is the paid amount, Pending the rest.
type Totals struct {
	Total     float64 `json:"total"`
	Collected float64 `json:"collected"`
	Pending   float64 `json:"pending"`
	Overdue   float64 `json:"overdue"`
}

func Sum(recs []Record) Totals {
	var t Totals
	for _, r := range recs {
		t.Total += r.Amount
		switch r.Status {
		case StatusPaid:
			t.Collected += r.Amount
		case StatusOverdue:
			t.Overdue += r.Amount
			t.Pending += r.Amount
		default:
			t.Pending += r.Amount
		}
	}
	return t
}

type (
	Repository interface {
		CreateRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		// QueryRecords orders by due date desc unless ordering is given.
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		UpdateRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
	}

	StudentScope interface {
		VisibleTo(ctx context.Context, caller user.User) (ids []string, restricted bool, err error)
	}

	// Exporter writes fee records as a spreadsheet.
	Exporter interface {
		ExportFees(recs []Record) ([]byte, error)
	}

	Service struct {
		repo     Repository
		students StudentScope
		exporter Exporter
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, core.OneOfValidation(StatusPending, StatusPaid, StatusOverdue))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func NewService(repo Repository, students StudentScope, exporter Exporter) *Service {
	return &Service{repo: repo, students: students, exporter: exporter}
}

func (svc *Service) Create(ctx context.Context, nr NewRecord) (Record, error) {
	r, err := svc.repo.CreateRecord(ctx, Record{
		StudentID:    nr.StudentID,
		Amount:       nr.Amount,
		DueDate:      nr.DueDate,
		FeeType:      nr.FeeType,
		AcademicYear: nr.AcademicYear,
		Status:       StatusPending,
		Remarks:      nr.Remarks,
	})
	return r, errors.Wrap(err, "creating fee record")
}

func (svc *Service) Query(ctx context.Context, caller user.User, filter QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	ids, restricted, err := svc.students.VisibleTo(ctx, caller)
	if err != nil {
		return nil, errors.Wrap(err, "scoping fees")
	}
	filter.StudentIDs, filter.Restricted = ids, restricted
	return svc.repo.QueryRecords(ctx, &filter, core.FilterOrderings(ordering, OrderingFields...))
}

// UpdateStatus changes the status of a record. Marking it paid sets the paid date to today if none is given.
func (svc *Service) UpdateStatus(ctx context.Context, id string, us UpdateStatus) (Record, error) {
	r, err := svc.repo.GetRecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}

	r.Status = us.Status
	switch {
	case us.Status != StatusPaid:
		r.PaidDate = ""
	case us.PaidDate != "":
		r.PaidDate = us.PaidDate
	case r.PaidDate == "":
		r.PaidDate = time.Now().UTC().Format(dateLayout)
	}
	if us.Remarks != nil {
		r.Remarks = *us.Remarks
	}
	return svc.repo.UpdateRecord(ctx, r)
}

// Totals sums the records matching filter that caller may see.
func (svc *Service) Totals(ctx context.Context, caller user.User, filter QueryFilter) (Totals, error) {
	recs, err := svc.Query(ctx, caller, filter, nil)
	if err != nil {
		return Totals{}, err
	}
	return Sum(recs), nil
}

// Export renders the records matching filter as an XLSX workbook.
func (svc *Service) Export(ctx context.Context, caller user.User, filter QueryFilter, ordering []core.DBOrdering) ([]byte, error) {
	recs, err := svc.Query(ctx, caller, filter, ordering)
	if err != nil {
		return nil, err
	}
	data, err := svc.exporter.ExportFees(recs)
	return data, errors.Wrap(err, "exporting fees")
}
