package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/announcement"
)

const announcementColumns = `id, title, content, target_roles, is_urgent, expires_at, created_by, created_at`

type announcementRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	TargetRoles pq.StringArray `db:"target_roles"`
	IsUrgent    bool           `db:"is_urgent"`
	ExpiresAt   null.Time      `db:"expires_at"`
	CreatedBy   null.String    `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
}

func toAnnouncementRow(a announcement.Announcement) announcementRow {
	row := announcementRow{
		ID:          a.ID,
		Title:       a.Title,
		Content:     a.Content,
		TargetRoles: pq.StringArray(a.TargetRoles),
		IsUrgent:    a.IsUrgent,
		CreatedBy:   nullString(a.CreatedBy),
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if row.TargetRoles == nil {
		row.TargetRoles = pq.StringArray{}
	}
	if a.ExpiresAt != nil {
		row.ExpiresAt = null.TimeFrom(a.ExpiresAt.UTC())
	}
	return row
}

func (row announcementRow) announcement() announcement.Announcement {
	a := announcement.Announcement{
		ID:          row.ID,
		Title:       row.Title,
		Content:     row.Content,
		TargetRoles: []string(row.TargetRoles),
		IsUrgent:    row.IsUrgent,
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if a.TargetRoles == nil {
		a.TargetRoles = []string{}
	}
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time.UTC()
		a.ExpiresAt = &t
	}
	return a
}

type announcementRepository struct {
	exec core.DBExecutor
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{exec: exec}
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	a.ID = uuid.New().String()
	row := toAnnouncementRow(a)
	_, err := sqlx.NamedExecContext(ctx, core.Exec(repo.exec, exec), `
		INSERT INTO announcements (`+announcementColumns+`)
		VALUES (:id, :title, :content, :target_roles, :is_urgent, :expires_at, :created_by, :created_at)`,
		row)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return row.announcement(), nil
}

func (repo announcementRepository) QueryAnnouncements(ctx context.Context, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	var rows []announcementRow
	err := sqlx.SelectContext(ctx, core.Exec(repo.exec, exec), &rows,
		"SELECT "+announcementColumns+" FROM announcements ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	res := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.announcement())
	}
	return res, nil
}

func (repo announcementRepository) GetAnnouncementByID(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if !isUUID(id) {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	var row announcementRow
	err := sqlx.GetContext(ctx, core.Exec(repo.exec, exec), &row,
		"SELECT "+announcementColumns+" FROM announcements WHERE id = $1", id)
	if err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding announcement")
	}
	return row.announcement(), nil
}

func (repo announcementRepository) DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := core.Exec(repo.exec, exec).ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	return errors.Wrap(err, "deleting announcement")
}
