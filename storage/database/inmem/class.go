package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls.ID = uuid.New().String()
	cls.Subjects = nil
	stored := cls
	repo.db.classes[cls.ID] = &stored
	return cls, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, _ ...core.DBExecutor) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		if filter != nil {
			if filter.Search != "" && !containsFold(c.Name, filter.Search) {
				continue
			}
			if filter.GradeLevel != 0 && c.GradeLevel != filter.GradeLevel {
				continue
			}
			if filter.ClassTeacher != "" && c.ClassTeacherID != filter.ClassTeacher {
				continue
			}
		}
		classes = append(classes, *c)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].GradeLevel != classes[j].GradeLevel {
			return classes[i].GradeLevel < classes[j].GradeLevel
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return *c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	cls.Subjects = nil
	stored := cls
	repo.db.classes[cls.ID] = &stored
	return cls, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.classes, id)
	for lid, l := range repo.db.links {
		if l.ClassID == id {
			delete(repo.db.links, lid)
		}
	}
	for _, s := range repo.db.students {
		if s.ClassID == id {
			s.ClassID = ""
		}
	}
	for rid, r := range repo.db.attendance {
		if r.ClassID == id {
			delete(repo.db.attendance, rid)
		}
	}
	return nil
}

func (repo *classRepository) QuerySubjects(_ context.Context, _ ...core.DBExecutor) ([]class.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]class.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subjects = append(subjects, *s)
	}
	sortByName(subjects, func(s class.Subject) string { return s.Name })
	return subjects, nil
}

func (repo *classRepository) GetSubjectByName(_ context.Context, name string, _ ...core.DBExecutor) (class.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.subjects {
		if strings.EqualFold(s.Name, name) {
			return *s, nil
		}
	}
	return class.Subject{}, class.ErrSubjectNotFound
}

func (repo *classRepository) CreateSubject(_ context.Context, subj class.Subject, _ ...core.DBExecutor) (class.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.subjects {
		if strings.EqualFold(s.Name, subj.Name) {
			return class.Subject{}, errors.Errorf("duplicate subject %q", subj.Name)
		}
	}
	subj.ID = uuid.New().String()
	stored := subj
	repo.db.subjects[subj.ID] = &stored
	return subj, nil
}

func (repo *classRepository) DeleteSubject(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return class.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	for lid, l := range repo.db.links {
		if l.SubjectID == id {
			delete(repo.db.links, lid)
		}
	}
	for gid, g := range repo.db.grades {
		if g.SubjectID == id {
			delete(repo.db.grades, gid)
		}
	}
	return nil
}

// links must be called with the lock held.
func (repo *classRepository) links(match func(l *class.Link) bool) []class.Link {
	links := make([]class.Link, 0)
	for _, l := range repo.db.links {
		if !match(l) {
			continue
		}
		ll := *l
		if s, ok := repo.db.subjects[l.SubjectID]; ok {
			ll.SubjectName = s.Name
		}
		links = append(links, ll)
	}
	sortByName(links, func(l class.Link) string { return l.SubjectName })
	return links
}

func (repo *classRepository) ListLinks(_ context.Context, classID string, _ ...core.DBExecutor) ([]class.Link, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.links(func(l *class.Link) bool { return l.ClassID == classID }), nil
}

func (repo *classRepository) ListLinksByTeacher(_ context.Context, teacherID string, _ ...core.DBExecutor) ([]class.Link, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.links(func(l *class.Link) bool { return l.TeacherID == teacherID }), nil
}

func (repo *classRepository) CreateLink(_ context.Context, link class.Link, _ ...core.DBExecutor) (class.Link, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[link.ClassID]; !ok {
		return class.Link{}, errors.Errorf("class %q does not exist", link.ClassID)
	}
	for _, l := range repo.db.links {
		if l.ClassID == link.ClassID && l.SubjectID == link.SubjectID {
			return class.Link{}, errors.New("duplicate class subject")
		}
	}
	link.ID = uuid.New().String()
	link.TeacherID = ""
	stored := link
	repo.db.links[link.ID] = &stored
	return link, nil
}

func (repo *classRepository) SetLinkTeacher(_ context.Context, linkID, teacherID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if !repo.db.LinkTeacher {
		return errors.New(`column "teacher_id" does not exist`)
	}
	l, ok := repo.db.links[linkID]
	if !ok {
		return errors.Errorf("link %q does not exist", linkID)
	}
	if _, ok = repo.db.teachers[teacherID]; !ok {
		return errors.Errorf("teacher %q does not exist", teacherID)
	}
	l.TeacherID = teacherID
	return nil
}

func (repo *classRepository) DeleteLink(_ context.Context, linkID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.links, linkID)
	return nil
}

func (repo *classRepository) SupportsLinkTeacher(_ context.Context, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.LinkTeacher, nil
}
