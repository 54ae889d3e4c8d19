package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

// withSubject must be called with the lock held.
func (repo *gradeRepository) withSubject(g grade.Grade) grade.Grade {
	if s, ok := repo.db.subjects[g.SubjectID]; ok {
		g.SubjectName = s.Name
	}
	return g
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g.ID = uuid.New().String()
	stored := g
	repo.db.grades[g.ID] = &stored
	return repo.withSubject(g), nil
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]grade.Grade, 0, len(repo.db.grades))
	for _, g := range repo.db.grades {
		if filter != nil {
			if filter.Restricted && !contains(filter.StudentIDs, g.StudentID) {
				continue
			}
			if filter.StudentID != "" && g.StudentID != filter.StudentID {
				continue
			}
			if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
				continue
			}
			if filter.TeacherID != "" && g.TeacherID != filter.TeacherID {
				continue
			}
		}
		grades = append(grades, repo.withSubject(*g))
	}
	sort.SliceStable(grades, func(i, j int) bool {
		if grades[i].ExamDate != grades[j].ExamDate {
			return grades[i].ExamDate > grades[j].ExamDate
		}
		return grades[i].CreatedAt.After(grades[j].CreatedAt)
	})
	applyOrdering(grades, ordering, lessGrade)
	return grades, nil
}

func lessGrade(a, b grade.Grade, field string) bool {
	switch field {
	case "exam_type":
		return a.ExamType < b.ExamType
	case "marks_obtained":
		return a.MarksObtained < b.MarksObtained
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.ExamDate < b.ExamDate
	}
}

func (repo *gradeRepository) GetGradeByID(_ context.Context, id string, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return repo.withSubject(*g), nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) DeleteGrade(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.grades, id)
	return nil
}
