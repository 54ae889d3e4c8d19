package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/attendance"
)

const attendanceColumns = `id, student_id, class_id, date, status, remarks, marked_by`

type attendanceRow struct {
	ID        string      `db:"id"`
	StudentID string      `db:"student_id"`
	ClassID   string      `db:"class_id"`
	Date      null.Time   `db:"date"`
	Status    string      `db:"status"`
	Remarks   null.String `db:"remarks"`
	MarkedBy  null.String `db:"marked_by"`
}

func toAttendanceRow(r attendance.Record) attendanceRow {
	return attendanceRow{
		ID:        r.ID,
		StudentID: r.StudentID,
		ClassID:   r.ClassID,
		Date:      nullDate(r.Date),
		Status:    r.Status,
		Remarks:   nullString(r.Remarks),
		MarkedBy:  nullString(r.MarkedBy),
	}
}

func (row attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		StudentID: row.StudentID,
		ClassID:   row.ClassID,
		Date:      dateString(row.Date),
		Status:    row.Status,
		Remarks:   row.Remarks.String,
		MarkedBy:  row.MarkedBy.String,
	}
}

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) ReplaceMarked(ctx context.Context, classID, date, markedBy string, exec ...core.DBExecutor) error {
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx,
		"DELETE FROM attendance WHERE class_id = $1 AND date = $2 AND marked_by = $3",
		classID, date, markedBy)
	return errors.Wrap(err, "deleting attendance")
}

func (repo attendanceRepository) CreateRecords(ctx context.Context, recs []attendance.Record, exec ...core.DBExecutor) ([]attendance.Record, error) {
	if len(recs) == 0 {
		return []attendance.Record{}, nil
	}
	rows := make([]attendanceRow, 0, len(recs))
	for i := range recs {
		recs[i].ID = uuid.New().String()
		rows = append(rows, toAttendanceRow(recs[i]))
	}
	// batch insert
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (:id, :student_id, :class_id, :date, :status, :remarks, :marked_by)`,
		rows)
	if err != nil {
		return nil, errors.Wrap(err, "inserting attendance")
	}
	return recs, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, exec ...core.DBExecutor) ([]attendance.Record, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil {
		if filter.Restricted {
			if len(filter.StudentIDs) == 0 {
				return []attendance.Record{}, nil
			}
			w.add("student_id IN (?)", filter.StudentIDs)
		}
		if filter.ClassID != "" {
			if !isUUID(filter.ClassID) {
				return []attendance.Record{}, nil
			}
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.StudentID != "" {
			if !isUUID(filter.StudentID) {
				return []attendance.Record{}, nil
			}
			w.add("student_id = ?", filter.StudentID)
		}
		for cond, val := range map[string]string{
			"date = ?":  filter.Date,
			"date >= ?": filter.From,
			"date <= ?": filter.To,
		} {
			if val == "" {
				continue
			}
			d := nullDate(val)
			if !d.Valid {
				return []attendance.Record{}, nil
			}
			w.add(cond, d.Time)
		}
	}
	q, args, err := bind(exe, "SELECT "+attendanceColumns+" FROM attendance"+w.String()+" ORDER BY date DESC", w.args)
	if err != nil {
		return nil, err
	}

	var rows []attendanceRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}
