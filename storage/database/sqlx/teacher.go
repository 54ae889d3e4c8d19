package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/teacher"
)

const teacherSelect = `
	SELECT t.user_id, t.employee_id, t.qualification, t.experience_years, t.salary,
		u.id AS "u.id", u.name AS "u.name", u.email AS "u.email", u.role AS "u.role", u.phone AS "u.phone",
		u.address AS "u.address", u.is_active AS "u.is_active", u.password_hash AS "u.password_hash",
		u.created_at AS "u.created_at", u.updated_at AS "u.updated_at", u.last_login AS "u.last_login"
	FROM teachers t JOIN users u ON u.id = t.user_id`

type teacherRow struct {
	UserID          string       `db:"user_id"`
	EmployeeID      string       `db:"employee_id"`
	Qualification   null.String  `db:"qualification"`
	ExperienceYears null.Int     `db:"experience_years"`
	Salary          null.Float64 `db:"salary"`
	User            userRow      `db:"u"`
}

func toTeacherRow(t teacher.Teacher) teacherRow {
	return teacherRow{
		UserID:          t.UserID,
		EmployeeID:      t.EmployeeID,
		Qualification:   nullString(t.Qualification),
		ExperienceYears: null.IntFrom(t.ExperienceYears),
		Salary:          null.NewFloat64(t.Salary, t.Salary != 0),
	}
}

func (row teacherRow) teacher() teacher.Teacher {
	return teacher.Teacher{
		UserID:          row.UserID,
		EmployeeID:      row.EmployeeID,
		Qualification:   row.Qualification.String,
		ExperienceYears: row.ExperienceYears.Int,
		Salary:          row.Salary.Float64,
		User:            row.User.user(),
	}
}

type teacherRepository struct {
	exec core.DBExecutor
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(exec core.DBExecutor) *teacherRepository {
	return &teacherRepository{exec: exec}
}

func (repo teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO teachers (user_id, employee_id, qualification, experience_years, salary)
		VALUES (:user_id, :employee_id, :qualification, :experience_years, :salary)`,
		toTeacherRow(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo teacherRepository) QueryTeachers(ctx context.Context, filter *teacher.QueryFilter, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil && filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(u.name ILIKE ? OR u.email ILIKE ? OR t.employee_id ILIKE ?)", val, val, val)
	}
	q, args, err := bind(exe, teacherSelect+w.String()+" ORDER BY u.name", w.args)
	if err != nil {
		return nil, err
	}

	var rows []teacherRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, row.teacher())
	}
	return teachers, nil
}

func (repo teacherRepository) GetTeacherByUserID(ctx context.Context, userID string, exec ...core.DBExecutor) (teacher.Teacher, error) {
	if !isUUID(userID) {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	var row teacherRow
	if err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row, teacherSelect+" WHERE t.user_id = $1", userID); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "finding teacher")
	}
	return row.teacher(), nil
}

func (repo teacherRepository) EmployeeIDExists(ctx context.Context, employeeID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &exists,
		"SELECT EXISTS (SELECT 1 FROM teachers WHERE employee_id = $1)", employeeID)
	return exists, errors.Wrap(err, "checking employee id")
}

func (repo teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	res, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		UPDATE teachers SET employee_id = :employee_id, qualification = :qualification,
			experience_years = :experience_years, salary = :salary
		WHERE user_id = :user_id`,
		toTeacherRow(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (repo teacherRepository) DeleteTeacher(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	if !isUUID(userID) {
		return teacher.ErrNotFound
	}
	res, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM teachers WHERE user_id = $1", userID)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.ErrNotFound
	}
	return nil
}

func (repo teacherRepository) CountTeachers(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &n, "SELECT count(*) FROM teachers")
	return n, errors.Wrap(err, "counting teachers")
}
