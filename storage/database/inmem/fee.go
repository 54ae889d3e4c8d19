package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateRecord(_ context.Context, r fee.Record, _ ...core.DBExecutor) (fee.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r.ID = uuid.New().String()
	stored := r
	repo.db.fees[r.ID] = &stored
	return r, nil
}

func (repo *feeRepository) QueryRecords(_ context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]fee.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]fee.Record, 0, len(repo.db.fees))
	for _, r := range repo.db.fees {
		if filter != nil {
			if filter.Restricted && !contains(filter.StudentIDs, r.StudentID) {
				continue
			}
			if filter.StudentID != "" && r.StudentID != filter.StudentID {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
			if filter.AcademicYear != "" && r.AcademicYear != filter.AcademicYear {
				continue
			}
		}
		recs = append(recs, *r)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].DueDate > recs[j].DueDate })
	applyOrdering(recs, ordering, lessFee)
	return recs, nil
}

func lessFee(a, b fee.Record, field string) bool {
	switch field {
	case "amount":
		return a.Amount < b.Amount
	case "fee_type":
		return a.FeeType < b.FeeType
	case "academic_year":
		return a.AcademicYear < b.AcademicYear
	case "status":
		return a.Status < b.Status
	case "paid_date":
		return a.PaidDate < b.PaidDate
	default:
		return a.DueDate < b.DueDate
	}
}

func (repo *feeRepository) GetRecordByID(_ context.Context, id string, _ ...core.DBExecutor) (fee.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.fees[id]; ok {
		return *r, nil
	}
	return fee.Record{}, fee.ErrNotFound
}

func (repo *feeRepository) UpdateRecord(_ context.Context, r fee.Record, _ ...core.DBExecutor) (fee.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.fees[r.ID]; !ok {
		return fee.Record{}, fee.ErrNotFound
	}
	stored := r
	repo.db.fees[r.ID] = &stored
	return r, nil
}
