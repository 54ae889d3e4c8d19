package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/fee"
)

const feeColumns = `id, student_id, amount, due_date, fee_type, academic_year, status, paid_date, remarks`

type feeRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	Amount       float64     `db:"amount"`
	DueDate      null.Time   `db:"due_date"`
	FeeType      string      `db:"fee_type"`
	AcademicYear string      `db:"academic_year"`
	Status       string      `db:"status"`
	PaidDate     null.Time   `db:"paid_date"`
	Remarks      null.String `db:"remarks"`
}

func toFeeRow(r fee.Record) feeRow {
	return feeRow{
		ID:           r.ID,
		StudentID:    r.StudentID,
		Amount:       r.Amount,
		DueDate:      nullDate(r.DueDate),
		FeeType:      r.FeeType,
		AcademicYear: r.AcademicYear,
		Status:       r.Status,
		PaidDate:     nullDate(r.PaidDate),
		Remarks:      nullString(r.Remarks),
	}
}

func (row feeRow) record() fee.Record {
	return fee.Record{
		ID:           row.ID,
		StudentID:    row.StudentID,
		Amount:       row.Amount,
		DueDate:      dateString(row.DueDate),
		FeeType:      row.FeeType,
		AcademicYear: row.AcademicYear,
		Status:       row.Status,
		PaidDate:     dateString(row.PaidDate),
		Remarks:      row.Remarks.String,
	}
}

type feeRepository struct {
	exec core.DBExecutor
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{exec: exec}
}

func (repo feeRepository) CreateRecord(ctx context.Context, r fee.Record, exec ...core.DBExecutor) (fee.Record, error) {
	r.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO fee_records (`+feeColumns+`)
		VALUES (:id, :student_id, :amount, :due_date, :fee_type, :academic_year, :status, :paid_date, :remarks)`,
		toFeeRow(r))
	if err != nil {
		return fee.Record{}, errors.Wrap(err, "inserting fee record")
	}
	return r, nil
}

func (repo feeRepository) QueryRecords(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.Record, error) {
	exe := core.Exec(repo.exec, exec)

	var w where
	if filter != nil {
		if filter.Restricted {
			if len(filter.StudentIDs) == 0 {
				return []fee.Record{}, nil
			}
			w.add("student_id IN (?)", filter.StudentIDs)
		}
		if filter.StudentID != "" {
			if !isUUID(filter.StudentID) {
				return []fee.Record{}, nil
			}
			w.add("student_id = ?", filter.StudentID)
		}
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if filter.AcademicYear != "" {
			w.add("academic_year = ?", filter.AcademicYear)
		}
	}
	q, args, err := bind(exe, "SELECT "+feeColumns+" FROM fee_records"+w.String()+orderBy(ordering, "due_date DESC"), w.args)
	if err != nil {
		return nil, err
	}

	var rows []feeRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying fee records")
	}
	recs := make([]fee.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (repo feeRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Record, error) {
	if !isUUID(id) {
		return fee.Record{}, fee.ErrNotFound
	}
	var row feeRow
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row, "SELECT "+feeColumns+" FROM fee_records WHERE id = $1", id)
	if err != nil {
		return fee.Record{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee record")
	}
	return row.record(), nil
}

func (repo feeRepository) UpdateRecord(ctx context.Context, r fee.Record, exec ...core.DBExecutor) (fee.Record, error) {
	res, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		UPDATE fee_records SET amount = :amount, due_date = :due_date, fee_type = :fee_type, academic_year = :academic_year,
			status = :status, paid_date = :paid_date, remarks = :remarks
		WHERE id = :id`,
		toFeeRow(r))
	if err != nil {
		return fee.Record{}, errors.Wrap(err, "updating fee record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Record{}, fee.ErrNotFound
	}
	return r, nil
}
