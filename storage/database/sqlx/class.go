package sqlxrepos

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/class"
)

const classColumns = `id, name, grade_level, section, class_teacher_id, created_at`

type classRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	GradeLevel     int         `db:"grade_level"`
	Section        null.String `db:"section"`
	ClassTeacherID null.String `db:"class_teacher_id"`
	CreatedAt      time.Time   `db:"created_at"`
}

func toClassRow(cls class.Class) classRow {
	return classRow{
		ID:             cls.ID,
		Name:           cls.Name,
		GradeLevel:     cls.GradeLevel,
		Section:        nullString(cls.Section),
		ClassTeacherID: nullString(cls.ClassTeacherID),
		CreatedAt:      cls.CreatedAt.UTC(),
	}
}

func (row classRow) class() class.Class {
	return class.Class{
		ID:             row.ID,
		Name:           row.Name,
		GradeLevel:     row.GradeLevel,
		Section:        row.Section.String,
		ClassTeacherID: row.ClassTeacherID.String,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

type linkRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	SubjectID   string      `db:"subject_id"`
	SubjectName string      `db:"subject_name"`
	TeacherID   null.String `db:"teacher_id"`
}

func (row linkRow) link() class.Link {
	return class.Link{
		ID:          row.ID,
		ClassID:     row.ClassID,
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
		TeacherID:   row.TeacherID.String,
	}
}

type classRepository struct {
	exec core.DBExecutor

	mu          sync.Mutex
	linkTeacher *bool // cached SupportsLinkTeacher answer
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(exec core.DBExecutor) *classRepository {
	return &classRepository{exec: exec}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	cls.ID = uuid.New().String()
	row := toClassRow(cls)
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO classes (`+classColumns+`)
		VALUES (:id, :name, :grade_level, :section, :class_teacher_id, :created_at)`,
		row)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return row.class(), nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, exec ...core.DBExecutor) ([]class.Class, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("name ILIKE ?", "%"+filter.Search+"%")
		}
		if filter.GradeLevel != 0 {
			w.add("grade_level = ?", filter.GradeLevel)
		}
		if filter.ClassTeacher != "" {
			if !isUUID(filter.ClassTeacher) {
				return []class.Class{}, nil
			}
			w.add("class_teacher_id = ?", filter.ClassTeacher)
		}
	}
	q, args, err := bind(exe, "SELECT "+classColumns+" FROM classes"+w.String()+" ORDER BY grade_level, name", w.args)
	if err != nil {
		return nil, err
	}

	var rows []classRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	if !isUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row, "SELECT "+classColumns+" FROM classes WHERE id = $1", id)
	if err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.class(), nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	row := toClassRow(cls)
	res, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		UPDATE classes SET name = :name, grade_level = :grade_level, section = :section, class_teacher_id = :class_teacher_id
		WHERE id = :id`,
		row)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return row.class(), nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return class.ErrNotFound
	}
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	return errors.Wrap(err, "deleting class")
}

func (repo *classRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]class.Subject, error) {
	var subjects []class.Subject
	err := sqlx.SelectContext(ctx, core.Exec(repo.exec, exec), &subjects, "SELECT id, name FROM subjects ORDER BY lower(name)")
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []class.Subject{}
	}
	return subjects, nil
}

func (repo *classRepository) GetSubjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (class.Subject, error) {
	var subj class.Subject
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &subj, "SELECT id, name FROM subjects WHERE lower(name) = lower($1)", name)
	if err != nil {
		return class.Subject{}, trapNoRowsErr(err, class.ErrSubjectNotFound, "finding subject")
	}
	return subj, nil
}

func (repo *classRepository) CreateSubject(ctx context.Context, subj class.Subject, exec ...core.DBExecutor) (class.Subject, error) {
	subj.ID = uuid.New().String()
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx, "INSERT INTO subjects (id, name) VALUES ($1, $2)", subj.ID, subj.Name)
	if err != nil {
		return class.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return subj, nil
}

func (repo *classRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return class.ErrSubjectNotFound
	}
	res, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.ErrSubjectNotFound
	}
	return nil
}

func (repo *classRepository) queryLinks(ctx context.Context, exe core.DBExecutor, cond string, arg string) ([]class.Link, error) {
	teacherCol := "NULL AS teacher_id"
	if ok, err := repo.SupportsLinkTeacher(ctx, exe); err != nil {
		return nil, err
	} else if ok {
		teacherCol = "cs.teacher_id"
	}

	var rows []linkRow
	err := sqlx.SelectContext(ctx, exe, &rows, `
		SELECT cs.id, cs.class_id, cs.subject_id, s.name AS subject_name, `+teacherCol+`
		FROM class_subjects cs JOIN subjects s ON s.id = cs.subject_id
		WHERE `+cond+` ORDER BY lower(s.name)`, arg)
	if err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	links := make([]class.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.link())
	}
	return links, nil
}

func (repo *classRepository) ListLinks(ctx context.Context, classID string, exec ...core.DBExecutor) ([]class.Link, error) {
	if !isUUID(classID) {
		return []class.Link{}, nil
	}
	return repo.queryLinks(ctx, core.Exec(repo.exec, exec), "cs.class_id = $1", classID)
}

func (repo *classRepository) ListLinksByTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) ([]class.Link, error) {
	exe := core.Exec(repo.exec, exec)
	if ok, err := repo.SupportsLinkTeacher(ctx, exe); err != nil || !ok || !isUUID(teacherID) {
		return []class.Link{}, err
	}
	return repo.queryLinks(ctx, exe, "cs.teacher_id = $1", teacherID)
}

func (repo *classRepository) CreateLink(ctx context.Context, link class.Link, exec ...core.DBExecutor) (class.Link, error) {
	link.ID = uuid.New().String()
	link.TeacherID = ""
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx,
		"INSERT INTO class_subjects (id, class_id, subject_id) VALUES ($1, $2, $3)",
		link.ID, link.ClassID, link.SubjectID)
	if err != nil {
		return class.Link{}, errors.Wrap(err, "inserting class subject")
	}
	return link, nil
}

// SetLinkTeacher runs under a savepoint when exec is a transaction, so that a failure
// leaves the transaction usable.
func (repo *classRepository) SetLinkTeacher(ctx context.Context, linkID, teacherID string, exec ...core.DBExecutor) error {
	if !isUUID(teacherID) {
		return errors.Errorf("invalid teacher id %q", teacherID)
	}
	exe := core.Exec(repo.exec, exec)
	q := "UPDATE class_subjects SET teacher_id = $1 WHERE id = $2"

	if _, inTx := exe.(*sqlx.Tx); !inTx {
		_, err := exe.ExecContext(ctx, q, teacherID, linkID)
		return errors.Wrap(err, "setting class subject teacher")
	}

	if _, err := exe.ExecContext(ctx, "SAVEPOINT link_teacher"); err != nil {
		return errors.Wrap(err, "creating savepoint")
	}
	if _, err := exe.ExecContext(ctx, q, teacherID, linkID); err != nil {
		if _, rbErr := exe.ExecContext(ctx, "ROLLBACK TO SAVEPOINT link_teacher"); rbErr != nil {
			return errors.Wrapf(err, "rolling back to savepoint: %v", rbErr)
		}
		return errors.Wrap(err, "setting class subject teacher")
	}
	_, err := exe.ExecContext(ctx, "RELEASE SAVEPOINT link_teacher")
	return errors.Wrap(err, "releasing savepoint")
}

func (repo *classRepository) DeleteLink(ctx context.Context, linkID string, exec ...core.DBExecutor) error {
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM class_subjects WHERE id = $1", linkID)
	return errors.Wrap(err, "deleting class subject")
}

// SupportsLinkTeacher looks for class_subjects.teacher_id once; the answer is kept for the
// life of the repository.
func (repo *classRepository) SupportsLinkTeacher(ctx context.Context, exec ...core.DBExecutor) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.linkTeacher != nil {
		return *repo.linkTeacher, nil
	}

	var ok bool
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &ok, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = 'class_subjects' AND column_name = 'teacher_id'
		)`)
	if err != nil {
		return false, errors.Wrap(err, "checking class_subjects columns")
	}
	repo.linkTeacher = &ok
	return ok, nil
}
