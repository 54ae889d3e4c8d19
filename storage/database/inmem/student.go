package inmemdb

import (
	"context"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.User = repo.db.userOrZero(s.UserID)
	stored := s
	repo.db.students[s.UserID] = &stored
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		ss := *s
		ss.User = repo.db.userOrZero(s.UserID)
		if filter != nil {
			if filter.ClassID != "" && ss.ClassID != filter.ClassID {
				continue
			}
			if filter.ParentID != "" && ss.ParentID != filter.ParentID {
				continue
			}
			if filter.Search != "" &&
				!(containsFold(ss.User.Name, filter.Search) || containsFold(ss.User.Email, filter.Search) || containsFold(ss.StudentNumber, filter.Search)) {
				continue
			}
		}
		students = append(students, ss)
	}
	sortByName(students, func(s student.Student) string { return s.User.Name })
	return students, nil
}

func (repo *studentRepository) GetStudentByUserID(_ context.Context, userID string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[userID]; ok {
		ss := *s
		ss.User = repo.db.userOrZero(userID)
		return ss, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) StudentNumberExists(_ context.Context, number string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.students {
		if s.StudentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[s.UserID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	stored := s
	repo.db.students[s.UserID] = &stored
	s.User = repo.db.userOrZero(s.UserID)
	return s, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, userID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[userID]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.students, userID)
	for id, g := range repo.db.grades {
		if g.StudentID == userID {
			delete(repo.db.grades, id)
		}
	}
	for id, r := range repo.db.attendance {
		if r.StudentID == userID {
			delete(repo.db.attendance, id)
		}
	}
	for id, f := range repo.db.fees {
		if f.StudentID == userID {
			delete(repo.db.fees, id)
		}
	}
	return nil
}

func (repo *studentRepository) CountStudents(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.students), nil
}
