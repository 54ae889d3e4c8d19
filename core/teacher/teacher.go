package teacher

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("teacher not found")
	ErrEmployeeIDExists   = errors.New("a teacher with this employee id already exists")
	errEmployeeIDRequired = errors.New("employee id is required")
)

type Teacher struct {
	UserID          string    `json:"user_id"`
	EmployeeID      string    `json:"employee_id"`
	Qualification   string    `json:"qualification,omitempty"`
	ExperienceYears int       `json:"experience_years"`
	Salary          float64   `json:"salary,omitempty"`
	User            user.User `json:"user"`
}

type NewTeacher struct {
	user.NewUser
	EmployeeID      string  `json:"employee_id" validate:"required,notblank"`
	Qualification   string  `json:"qualification"`
	ExperienceYears int     `json:"experience_years" validate:"gte=0"`
	Salary          float64 `json:"salary" validate:"gte=0"`
}

func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nt.Role = user.RoleTeacher
	nt.Clean()
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nt.Qualification = core.CleanString(nt.Qualification)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	if err := svc.userSvc.CheckUniqueness(ctx, nt.Email); err != nil {
		return err
	}
	return svc.checkEmployeeID(ctx, nt.EmployeeID)
}

// UpdateTeacher holds a partial update of both the user and the profile of a teacher.
type UpdateTeacher struct {
	user.UpdateUser
	EmployeeID      *string  `json:"employee_id"`
	Qualification   *string  `json:"qualification"`
	ExperienceYears *int     `json:"experience_years" validate:"omitempty,gte=0"`
	Salary          *float64 `json:"salary" validate:"omitempty,gte=0"`
}

func (ut *UpdateTeacher) Validate(ctx context.Context, orig Teacher, validate *validator.Validate, svc *Service) error {
	ut.Role = "" // teachers stay teachers
	ut.Clean(orig.User)
	ut.EmployeeID = core.CleanOptional(ut.EmployeeID)
	ut.Qualification = core.CleanOptional(ut.Qualification)

	if ut.EmployeeID != nil && *ut.EmployeeID == "" {
		return core.NewValidationError(errEmployeeIDRequired, core.FieldError{Field: "employee_id", Error: errEmployeeIDRequired.Error()})
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	if err := svc.userSvc.CheckUniqueness(ctx, ut.Email, orig.User); err != nil {
		return err
	}
	if ut.EmployeeID != nil && *ut.EmployeeID != orig.EmployeeID {
		return svc.checkEmployeeID(ctx, *ut.EmployeeID)
	}
	return nil
}

type QueryFilter struct {
	Search string `query:"search"`
}

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		// QueryTeachers orders by user name. Search matches name, email or employee id.
		QueryTeachers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (Teacher, error)
		EmployeeIDExists(ctx context.Context, employeeID string, exec ...core.DBExecutor) (bool, error)
		UpdateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		DeleteTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) error
		CountTeachers(ctx context.Context, exec ...core.DBExecutor) (int, error)
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

func (svc *Service) checkEmployeeID(ctx context.Context, employeeID string) error {
	exists, err := svc.repo.EmployeeIDExists(ctx, employeeID)
	if err != nil {
		return errors.Wrap(err, "checking employee id")
	}
	if exists {
		return core.NewValidationError(ErrEmployeeIDExists, core.FieldError{Field: "employee_id", Error: ErrEmployeeIDExists.Error()})
	}
	return nil
}

// Create stores the teacher user and its profile in one transaction.
func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	var t Teacher
	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		usr, err := svc.userSvc.Create(ctx, nt.NewUser, exec)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		t, err = svc.repo.CreateTeacher(ctx, Teacher{
			UserID:          usr.ID,
			EmployeeID:      nt.EmployeeID,
			Qualification:   nt.Qualification,
			ExperienceYears: nt.ExperienceYears,
			Salary:          nt.Salary,
			User:            usr,
		}, exec)
		return errors.Wrap(err, "creating teacher")
	})
	if err != nil {
		return Teacher{}, err
	}
	svc.userSvc.SendWelcomeMail(t.User)
	return t, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.GetTeacherByUserID(ctx, userID)
}

// IsTeacher reports whether userID has a teacher profile.
func (svc *Service) IsTeacher(ctx context.Context, userID string) (bool, error) {
	if _, err := svc.repo.GetTeacherByUserID(ctx, userID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) Update(ctx context.Context, orig Teacher, ut UpdateTeacher) (Teacher, error) {
	var t Teacher
	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		usr, err := svc.userSvc.Update(ctx, orig.UserID, ut.UpdateUser, exec)
		if err != nil {
			return errors.Wrap(err, "updating user")
		}

		t = orig
		if ut.EmployeeID != nil {
			t.EmployeeID = *ut.EmployeeID
		}
		if ut.Qualification != nil {
			t.Qualification = *ut.Qualification
		}
		if ut.ExperienceYears != nil {
			t.ExperienceYears = *ut.ExperienceYears
		}
		if ut.Salary != nil {
			t.Salary = *ut.Salary
		}
		if t, err = svc.repo.UpdateTeacher(ctx, t, exec); err != nil {
			return errors.Wrap(err, "updating teacher")
		}
		t.User = usr
		return nil
	})
	if err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// Delete removes the teacher profile then its user.
func (svc *Service) Delete(ctx context.Context, userID string) error {
	if err := svc.repo.DeleteTeacher(ctx, userID); err != nil {
		return err
	}
	return svc.userSvc.Delete(ctx, userID)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountTeachers(ctx)
}
