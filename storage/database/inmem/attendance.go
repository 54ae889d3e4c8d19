package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) ReplaceMarked(_ context.Context, classID, date, markedBy string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, r := range repo.db.attendance {
		if r.ClassID == classID && r.Date == date && r.MarkedBy == markedBy {
			delete(repo.db.attendance, id)
		}
	}
	return nil
}

func (repo *attendanceRepository) CreateRecords(_ context.Context, recs []attendance.Record, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	res := make([]attendance.Record, 0, len(recs))
	for _, r := range recs {
		r.ID = uuid.New().String()
		stored := r
		repo.db.attendance[r.ID] = &stored
		res = append(res, r)
	}
	return res, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter *attendance.QueryFilter, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]attendance.Record, 0)
	for _, r := range repo.db.attendance {
		if filter != nil {
			if filter.Restricted && !contains(filter.StudentIDs, r.StudentID) {
				continue
			}
			if filter.ClassID != "" && r.ClassID != filter.ClassID {
				continue
			}
			if filter.StudentID != "" && r.StudentID != filter.StudentID {
				continue
			}
			if filter.Date != "" && r.Date != filter.Date {
				continue
			}
			if filter.From != "" && r.Date < filter.From {
				continue
			}
			if filter.To != "" && r.Date > filter.To {
				continue
			}
		}
		recs = append(recs, *r)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date > recs[j].Date })
	return recs, nil
}
