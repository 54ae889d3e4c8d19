package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/grade"
)

const gradeSelect = `
	SELECT g.id, g.student_id, g.subject_id, s.name AS subject_name, g.teacher_id, g.exam_type,
		g.marks_obtained, g.total_marks, g.exam_date, g.remarks, g.created_at
	FROM grades g JOIN subjects s ON s.id = g.subject_id`

type gradeRow struct {
	ID            string      `db:"id"`
	StudentID     string      `db:"student_id"`
	SubjectID     string      `db:"subject_id"`
	SubjectName   null.String `db:"subject_name"`
	TeacherID     null.String `db:"teacher_id"`
	ExamType      string      `db:"exam_type"`
	MarksObtained float64     `db:"marks_obtained"`
	TotalMarks    float64     `db:"total_marks"`
	ExamDate      null.Time   `db:"exam_date"`
	Remarks       null.String `db:"remarks"`
	CreatedAt     time.Time   `db:"created_at"`
}

func toGradeRow(g grade.Grade) gradeRow {
	return gradeRow{
		ID:            g.ID,
		StudentID:     g.StudentID,
		SubjectID:     g.SubjectID,
		TeacherID:     nullString(g.TeacherID),
		ExamType:      g.ExamType,
		MarksObtained: g.MarksObtained,
		TotalMarks:    g.TotalMarks,
		ExamDate:      nullDate(g.ExamDate),
		Remarks:       nullString(g.Remarks),
		CreatedAt:     g.CreatedAt.UTC(),
	}
}

func (row gradeRow) grade() grade.Grade {
	return grade.Grade{
		ID:            row.ID,
		StudentID:     row.StudentID,
		SubjectID:     row.SubjectID,
		SubjectName:   row.SubjectName.String,
		TeacherID:     row.TeacherID.String,
		ExamType:      row.ExamType,
		MarksObtained: row.MarksObtained,
		TotalMarks:    row.TotalMarks,
		ExamDate:      dateString(row.ExamDate),
		Remarks:       row.Remarks.String,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{exec: exec}
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	exe := core.Exec(repo.exec, exec)
	g.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, exe, `
		INSERT INTO grades (id, student_id, subject_id, teacher_id, exam_type, marks_obtained, total_marks, exam_date, remarks, created_at)
		VALUES (:id, :student_id, :subject_id, :teacher_id, :exam_type, :marks_obtained, :total_marks, :exam_date, :remarks, :created_at)`,
		toGradeRow(g))
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return repo.GetGradeByID(ctx, g.ID, exe)
}

func (repo gradeRepository) QueryGrades(ctx context.Context, filter *grade.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]grade.Grade, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil {
		if filter.Restricted {
			if len(filter.StudentIDs) == 0 {
				return []grade.Grade{}, nil
			}
			w.add("g.student_id IN (?)", filter.StudentIDs)
		}
		for col, val := range map[string]string{
			"g.student_id": filter.StudentID,
			"g.subject_id": filter.SubjectID,
			"g.teacher_id": filter.TeacherID,
		} {
			if val == "" {
				continue
			}
			if !isUUID(val) {
				return []grade.Grade{}, nil
			}
			w.add(col+" = ?", val)
		}
	}
	q, args, err := bind(exe, gradeSelect+w.String()+orderBy(qualified("g", ordering), "g.exam_date DESC NULLS LAST, g.created_at DESC"), w.args)
	if err != nil {
		return nil, err
	}

	var rows []gradeRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.grade())
	}
	return grades, nil
}

func (repo gradeRepository) GetGradeByID(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	if !isUUID(id) {
		return grade.Grade{}, grade.ErrNotFound
	}
	var row gradeRow
	if err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row, gradeSelect+" WHERE g.id = $1", id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return row.grade(), nil
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id)
	return errors.Wrap(err, "deleting grade")
}
