package student

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

var (
	// errors
	ErrNotFound              = errors.New("student not found")
	ErrStudentNumberExists   = errors.New("a student with this number already exists")
	errStudentNumberRequired = errors.New("student number is required")
	errParentNotFound        = errors.New("parent not found")
)

type Student struct {
	UserID           string    `json:"user_id"`
	StudentNumber    string    `json:"student_number"`
	ClassID          string    `json:"class_id,omitempty"`
	ParentID         string    `json:"parent_id,omitempty"`
	DateOfBirth      string    `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	MedicalInfo      string    `json:"medical_info,omitempty"`
	Fee              float64   `json:"fee,omitempty"`
	User             user.User `json:"user"`
}

type NewStudent struct {
	user.NewUser
	StudentNumber    string  `json:"student_number" validate:"required,notblank"`
	ClassID          string  `json:"class_id" validate:"omitempty,uuid"`
	ParentID         string  `json:"parent_id" validate:"omitempty,uuid"`
	DateOfBirth      string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	EmergencyContact string  `json:"emergency_contact"`
	MedicalInfo      string  `json:"medical_info"`
	Fee              float64 `json:"fee" validate:"gte=0"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Role = user.RoleStudent
	ns.Clean()
	ns.StudentNumber = core.CleanString(ns.StudentNumber)
	ns.ClassID = core.CleanString(ns.ClassID, true /* lower */)
	ns.ParentID = core.CleanString(ns.ParentID, true /* lower */)
	ns.DateOfBirth = core.CleanString(ns.DateOfBirth)
	ns.EmergencyContact = core.CleanString(ns.EmergencyContact)
	ns.MedicalInfo = core.CleanString(ns.MedicalInfo)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if err := svc.userSvc.CheckUniqueness(ctx, ns.Email); err != nil {
		return err
	}
	if err := svc.checkParent(ctx, ns.ParentID); err != nil {
		return err
	}
	return svc.checkStudentNumber(ctx, ns.StudentNumber)
}

// UpdateStudent holds a partial update of both the user and the profile of a student.
type UpdateStudent struct {
	user.UpdateUser
	StudentNumber    *string  `json:"student_number"`
	ClassID          *string  `json:"class_id" validate:"omitempty,uuid"`
	ParentID         *string  `json:"parent_id" validate:"omitempty,uuid"`
	DateOfBirth      *string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	EmergencyContact *string  `json:"emergency_contact"`
	MedicalInfo      *string  `json:"medical_info"`
	Fee              *float64 `json:"fee" validate:"omitempty,gte=0"`
}

func (us *UpdateStudent) Validate(ctx context.Context, orig Student, validate *validator.Validate, svc *Service) error {
	us.Role = "" // students stay students
	us.Clean(orig.User)
	us.StudentNumber = core.CleanOptional(us.StudentNumber)
	us.ClassID = core.CleanOptional(us.ClassID)
	us.ParentID = core.CleanOptional(us.ParentID)
	us.DateOfBirth = core.CleanOptional(us.DateOfBirth)
	us.EmergencyContact = core.CleanOptional(us.EmergencyContact)
	us.MedicalInfo = core.CleanOptional(us.MedicalInfo)

	if us.StudentNumber != nil && *us.StudentNumber == "" {
		return core.NewValidationError(errStudentNumberRequired, core.FieldError{Field: "student_number", Error: errStudentNumberRequired.Error()})
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if err := svc.userSvc.CheckUniqueness(ctx, us.Email, orig.User); err != nil {
		return err
	}
	if us.ParentID != nil && *us.ParentID != orig.ParentID {
		if err := svc.checkParent(ctx, *us.ParentID); err != nil {
			return err
		}
	}
	if us.StudentNumber != nil && *us.StudentNumber != orig.StudentNumber {
		return svc.checkStudentNumber(ctx, *us.StudentNumber)
	}
	return nil
}

type QueryFilter struct {
	Search   string `query:"search"`
	ClassID  string `query:"class_id"`
	ParentID string `query:"parent_id"`
}

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents orders by user name. Search matches name, email or student number.
		QueryStudents(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		GetStudentByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Student, error)
		StudentNumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, userID string, exec ...core.DBExecutor) error
		CountStudents(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		userSvc user.ServiceInterface
	}
)

func NewService(db core.DB, repo Repository, userSvc user.ServiceInterface) *Service {
	return &Service{db: db, repo: repo, userSvc: userSvc}
}

func (svc *Service) checkStudentNumber(ctx context.Context, number string) error {
	exists, err := svc.repo.StudentNumberExists(ctx, number)
	if err != nil {
		return errors.Wrap(err, "checking student number")
	}
	if exists {
		return core.NewValidationError(ErrStudentNumberExists, core.FieldError{Field: "student_number", Error: ErrStudentNumberExists.Error()})
	}
	return nil
}

func (svc *Service) checkParent(ctx context.Context, parentID string) error {
	if parentID == "" {
		return nil
	}
	usr, err := svc.userSvc.GetByID(ctx, parentID)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "looking up parent")
	}
	if err != nil || !usr.IsParent() {
		return core.NewValidationError(errParentNotFound, core.FieldError{Field: "parent_id", Error: errParentNotFound.Error()})
	}
	return nil
}

// Create stores the student user and its profile in one transaction.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	var s Student
	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		usr, err := svc.userSvc.Create(ctx, ns.NewUser, exec)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		s, err = svc.repo.CreateStudent(ctx, Student{
			UserID:           usr.ID,
			StudentNumber:    ns.StudentNumber,
			ClassID:          ns.ClassID,
			ParentID:         ns.ParentID,
			DateOfBirth:      ns.DateOfBirth,
			EmergencyContact: ns.EmergencyContact,
			MedicalInfo:      ns.MedicalInfo,
			Fee:              ns.Fee,
			User:             usr,
		}, exec)
		return errors.Wrap(err, "creating student")
	})
	if err != nil {
		return Student{}, err
	}
	svc.userSvc.SendWelcomeMail(s.User)
	return s, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

// ChildrenOf returns the ids of the students whose parent is parentID.
func (svc *Service) ChildrenOf(ctx context.Context, parentID string) ([]string, error) {
	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{ParentID: parentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.UserID)
	}
	return ids, nil
}

// VisibleTo returns the students whose records caller may see. restricted is false when
// caller may see every student, in which case ids is nil.
func (svc *Service) VisibleTo(ctx context.Context, caller user.User) (ids []string, restricted bool, err error) {
	switch caller.Role {
	case user.RoleStudent:
		return []string{caller.ID}, true, nil
	case user.RoleParent:
		ids, err = svc.ChildrenOf(ctx, caller.ID)
		return ids, true, err
	default:
		return nil, false, nil
	}
}

func (svc *Service) Update(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	var s Student
	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		usr, err := svc.userSvc.Update(ctx, orig.UserID, us.UpdateUser, exec)
		if err != nil {
			return errors.Wrap(err, "updating user")
		}

		s = orig
		if us.StudentNumber != nil {
			s.StudentNumber = *us.StudentNumber
		}
		if us.ClassID != nil {
			s.ClassID = *us.ClassID
		}
		if us.ParentID != nil {
			s.ParentID = *us.ParentID
		}
		if us.DateOfBirth != nil {
			s.DateOfBirth = *us.DateOfBirth
		}
		if us.EmergencyContact != nil {
			s.EmergencyContact = *us.EmergencyContact
		}
		if us.MedicalInfo != nil {
			s.MedicalInfo = *us.MedicalInfo
		}
		if us.Fee != nil {
			s.Fee = *us.Fee
		}
		if s, err = svc.repo.UpdateStudent(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating student")
		}
		s.User = usr
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// Delete removes the student profile then its user.
func (svc *Service) Delete(ctx context.Context, userID string) error {
	if err := svc.repo.DeleteStudent(ctx, userID); err != nil {
		return err
	}
	return svc.userSvc.Delete(ctx, userID)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx)
}
