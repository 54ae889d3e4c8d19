package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/student"
)

const studentSelect = `
	SELECT s.user_id, s.student_number, s.class_id, s.parent_id, s.date_of_birth, s.emergency_contact,
		s.medical_info, s.fee,
		u.id AS "u.id", u.name AS "u.name", u.email AS "u.email", u.role AS "u.role", u.phone AS "u.phone",
		u.address AS "u.address", u.is_active AS "u.is_active", u.password_hash AS "u.password_hash",
		u.created_at AS "u.created_at", u.updated_at AS "u.updated_at", u.last_login AS "u.last_login"
	FROM students s JOIN users u ON u.id = s.user_id`

type studentRow struct {
	UserID           string       `db:"user_id"`
	StudentNumber    string       `db:"student_number"`
	ClassID          null.String  `db:"class_id"`
	ParentID         null.String  `db:"parent_id"`
	DateOfBirth      null.Time    `db:"date_of_birth"`
	EmergencyContact null.String  `db:"emergency_contact"`
	MedicalInfo      null.String  `db:"medical_info"`
	Fee              null.Float64 `db:"fee"`
	User             userRow      `db:"u"`
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		UserID:           s.UserID,
		StudentNumber:    s.StudentNumber,
		ClassID:          nullString(s.ClassID),
		ParentID:         nullString(s.ParentID),
		DateOfBirth:      nullDate(s.DateOfBirth),
		EmergencyContact: nullString(s.EmergencyContact),
		MedicalInfo:      nullString(s.MedicalInfo),
		Fee:              null.NewFloat64(s.Fee, s.Fee != 0),
	}
}

func (row studentRow) student() student.Student {
	return student.Student{
		UserID:           row.UserID,
		StudentNumber:    row.StudentNumber,
		ClassID:          row.ClassID.String,
		ParentID:         row.ParentID.String,
		DateOfBirth:      dateString(row.DateOfBirth),
		EmergencyContact: row.EmergencyContact.String,
		MedicalInfo:      row.MedicalInfo.String,
		Fee:              row.Fee.Float64,
		User:             row.User.user(),
	}
}

type studentRepository struct {
	exec core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{exec: exec}
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO students (user_id, student_number, class_id, parent_id, date_of_birth, emergency_contact, medical_info, fee)
		VALUES (:user_id, :student_number, :class_id, :parent_id, :date_of_birth, :emergency_contact, :medical_info, :fee)`,
		toStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(u.name ILIKE ? OR u.email ILIKE ? OR s.student_number ILIKE ?)", val, val, val)
		}
		if filter.ClassID != "" {
			if !isUUID(filter.ClassID) {
				return []student.Student{}, nil
			}
			w.add("s.class_id = ?", filter.ClassID)
		}
		if filter.ParentID != "" {
			if !isUUID(filter.ParentID) {
				return []student.Student{}, nil
			}
			w.add("s.parent_id = ?", filter.ParentID)
		}
	}
	q, args, err := bind(exe, studentSelect+w.String()+" ORDER BY u.name", w.args)
	if err != nil {
		return nil, err
	}

	var rows []studentRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo studentRepository) GetStudentByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (student.Student, error) {
	if !isUUID(userID) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row, studentSelect+" WHERE s.user_id = $1", userID); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) StudentNumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &exists,
		"SELECT EXISTS (SELECT 1 FROM students WHERE student_number = $1)", number)
	return exists, errors.Wrap(err, "checking student number")
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	res, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		UPDATE students SET student_number = :student_number, class_id = :class_id, parent_id = :parent_id,
			date_of_birth = :date_of_birth, emergency_contact = :emergency_contact, medical_info = :medical_info, fee = :fee
		WHERE user_id = :user_id`,
		toStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	if !isUUID(userID) {
		return student.ErrNotFound
	}
	res, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM students WHERE user_id = $1", userID)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) CountStudents(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &n, "SELECT count(*) FROM students")
	return n, errors.Wrap(err, "counting students")
}
