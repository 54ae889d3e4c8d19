package inmemdb

import (
	"context"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

// withUser must be called with the lock held.
func (repo *teacherRepository) withUser(t teacher.Teacher) teacher.Teacher {
	if usr, ok := repo.db.users[t.UserID]; ok {
		t.User = *usr
	}
	return t
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, t teacher.Teacher, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.User = repo.db.userOrZero(t.UserID)
	stored := t
	repo.db.teachers[t.UserID] = &stored
	return t, nil
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter *teacher.QueryFilter, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]teacher.Teacher, 0, len(repo.db.teachers))
	for _, t := range repo.db.teachers {
		tt := repo.withUser(*t)
		if filter != nil && filter.Search != "" &&
			!(containsFold(tt.User.Name, filter.Search) || containsFold(tt.User.Email, filter.Search) || containsFold(tt.EmployeeID, filter.Search)) {
			continue
		}
		teachers = append(teachers, tt)
	}
	sortByName(teachers, func(t teacher.Teacher) string { return t.User.Name })
	return teachers, nil
}

func (repo *teacherRepository) GetTeacherByUserID(_ context.Context, userID string, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.teachers[userID]; ok {
		return repo.withUser(*t), nil
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) EmployeeIDExists(_ context.Context, employeeID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.teachers {
		if t.EmployeeID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, t teacher.Teacher, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.teachers[t.UserID]; !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	stored := t
	repo.db.teachers[t.UserID] = &stored
	return repo.withUser(t), nil
}

func (repo *teacherRepository) DeleteTeacher(_ context.Context, userID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.teachers[userID]; !ok {
		return teacher.ErrNotFound
	}
	repo.db.dropTeacher(userID)
	return nil
}

func (repo *teacherRepository) CountTeachers(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.teachers), nil
}

// dropTeacher removes a teacher profile and the references to it. The lock must be held.
func (db *DB) dropTeacher(userID string) {
	delete(db.teachers, userID)
	for _, c := range db.classes {
		if c.ClassTeacherID == userID {
			c.ClassTeacherID = ""
		}
	}
	for _, l := range db.links {
		if l.TeacherID == userID {
			l.TeacherID = ""
		}
	}
	for _, g := range db.grades {
		if g.TeacherID == userID {
			g.TeacherID = ""
		}
	}
}
