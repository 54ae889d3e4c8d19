package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
)

var (
	// errors
	ErrNotFound        = errors.New("class not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSubjectExists   = errors.New("a subject with this name already exists")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// QueryClasses orders by grade level then name.
		QueryClasses(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Class, error)
		GetClassByID(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// DeleteClass also removes the class links.
		DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error

		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
		// GetSubjectByName matches names case-insensitively.
		GetSubjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (Subject, error)
		CreateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error

		// ListLinks returns the links of a class with their subject names.
		ListLinks(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Link, error)
		ListLinksByTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]Link, error)
		CreateLink(ctx context.Context, link Link, exec ...core.DBExecutor) (Link, error)
		SetLinkTeacher(ctx context.Context, linkID, teacherID string, exec ...core.DBExecutor) error
		DeleteLink(ctx context.Context, linkID string, exec ...core.DBExecutor) error
		// SupportsLinkTeacher reports whether links can carry a teacher in the current schema.
		SupportsLinkTeacher(ctx context.Context, exec ...core.DBExecutor) (bool, error)
	}

	// TeacherChecker tells whether a user id belongs to a teacher.
	TeacherChecker interface {
		IsTeacher(ctx context.Context, userID string) (bool, error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		teachers   TeacherChecker
		reconciler *Reconciler
	}
)

// NewService builds a class Service. A nil db runs every operation without a transaction.
func NewService(db core.DB, repo Repository, teachers TeacherChecker, logger core.Logger) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		teachers:   teachers,
		reconciler: NewReconciler(repo, logger),
	}
}

func (svc *Service) Teachers() TeacherChecker { return svc.teachers }

// Create stores the class then adds its subjects.
func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	var cls Class
	err := core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		cls, err = svc.repo.CreateClass(ctx, Class{
			Name:           nc.Name,
			GradeLevel:     nc.GradeLevel,
			Section:        nc.Section,
			ClassTeacherID: nc.ClassTeacherID,
			CreatedAt:      time.Now().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating class")
		}
		if len(nc.Subjects) == 0 {
			return nil
		}
		return svc.reconciler.Reconcile(ctx, cls.ID, nc.Subjects, ReconcileOptions{Prune: false}, exec)
	})
	if err != nil {
		return Class{}, err
	}
	return svc.Get(ctx, cls.ID)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

// Get returns the class with its subject links.
func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	cls, err := svc.repo.GetClassByID(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if cls.Subjects, err = svc.repo.ListLinks(ctx, id); err != nil {
		return Class{}, errors.Wrap(err, "listing class subjects")
	}
	return cls, nil
}

// Update applies the base fields of uc, then reconciles the subjects when provided.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateClass) error {
	return core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		cls, err := svc.repo.GetClassByID(ctx, id, exec)
		if err != nil {
			return err
		}

		if uc.Name != nil || uc.GradeLevel != nil || uc.Section != nil || uc.ClassTeacherID != nil {
			if uc.Name != nil {
				cls.Name = *uc.Name
			}
			if uc.GradeLevel != nil {
				cls.GradeLevel = *uc.GradeLevel
			}
			if uc.Section != nil {
				cls.Section = *uc.Section
			}
			if uc.ClassTeacherID != nil {
				cls.ClassTeacherID = *uc.ClassTeacherID
			}
			if _, err = svc.repo.UpdateClass(ctx, cls, exec); err != nil {
				return errors.Wrap(err, "updating class")
			}
		}

		if uc.Subjects == nil {
			return nil
		}
		return svc.reconciler.Reconcile(ctx, id, *uc.Subjects, ReconcileOptions{Prune: true}, exec)
	})
}

// AssignSubjects adds subjects (and their teachers) to a class, keeping existing links.
func (svc *Service) AssignSubjects(ctx context.Context, id string, as AssignSubjects) error {
	return core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetClassByID(ctx, id, exec); err != nil {
			return err
		}
		return svc.reconciler.Reconcile(ctx, id, as.Subjects, ReconcileOptions{Prune: false}, exec)
	})
}

// Reconcile makes the subject links of a class match desired, removing the others.
func (svc *Service) Reconcile(ctx context.Context, id string, desired []SubjectAssignment) error {
	return core.InTx(ctx, svc.db, func(exec core.DBExecutor) error {
		return svc.reconciler.Reconcile(ctx, id, desired, ReconcileOptions{Prune: true}, exec)
	})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetClassByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	name := core.CleanString(ns.Name)
	if _, err := svc.repo.GetSubjectByName(ctx, name); err == nil {
		return Subject{}, core.NewValidationError(ErrSubjectExists, core.FieldError{Field: "name", Error: ErrSubjectExists.Error()})
	} else if errors.Cause(err) != ErrSubjectNotFound {
		return Subject{}, errors.Wrap(err, "looking up subject")
	}
	return svc.repo.CreateSubject(ctx, Subject{Name: name})
}

func (svc *Service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

// TaughtBy lists the links taught by a teacher.
func (svc *Service) TaughtBy(ctx context.Context, teacherID string) ([]Link, error) {
	return svc.repo.ListLinksByTeacher(ctx, teacherID)
}
