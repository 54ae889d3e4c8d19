package announcement

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("announcement not found")
)

type Announcement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	TargetRoles []string   `json:"target_roles"`
	IsUrgent    bool       `json:"is_urgent"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"` // UTC
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

// VisibleTo reports whether role may see a at now.
func (a Announcement) VisibleTo(role string, now time.Time) bool {
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	if len(a.TargetRoles) == 0 {
		return true
	}
	for _, r := range a.TargetRoles {
		if r == role {
			return true
		}
	}
	return false
}

type NewAnnouncement struct {
	Title       string     `json:"title" validate:"required,notblank"`
	Content     string     `json:"content" validate:"required,notblank"`
	TargetRoles []string   `json:"target_roles" validate:"omitempty,roles"`
	IsUrgent    bool       `json:"is_urgent"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	roles := make([]string, 0, len(na.TargetRoles))
	seen := make(map[string]bool, len(na.TargetRoles))
	for _, r := range na.TargetRoles {
		r = core.CleanString(r, true /* lower */)
		if r != "" && !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	na.TargetRoles = roles
	if na.ExpiresAt != nil {
		t := na.ExpiresAt.UTC()
		na.ExpiresAt = &t
	}
	return validate.Struct(na)
}

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		// QueryAnnouncements returns every announcement, newest first.
		QueryAnnouncements(ctx context.Context, exec ...core.DBExecutor) ([]Announcement, error)
		GetAnnouncementByID(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo    Repository
		userSvc user.ServiceInterface
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, userSvc user.ServiceInterface, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, userSvc: userSvc, mailSvc: mailSvc, logger: logger}
}

// Create stores the announcement. Urgent ones are e-mailed to the active users they target.
func (svc *Service) Create(ctx context.Context, author user.User, na NewAnnouncement) (Announcement, error) {
	a, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		Title:       na.Title,
		Content:     na.Content,
		TargetRoles: na.TargetRoles,
		IsUrgent:    na.IsUrgent,
		ExpiresAt:   na.ExpiresAt,
		CreatedBy:   author.ID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}
	if a.IsUrgent {
		svc.notify(ctx, a)
	}
	return a, nil
}

func (svc *Service) notify(ctx context.Context, a Announcement) {
	active := true
	users, err := svc.userSvc.Query(ctx, &user.QueryFilter{Roles: a.TargetRoles, IsActive: &active}, nil)
	if err != nil {
		svc.logger.Error("announcement.Service: querying recipients", err)
		return
	}
	if len(users) == 0 {
		return
	}

	bcc := make([]mail.Address, 0, len(users))
	for _, u := range users {
		bcc = append(bcc, mail.Address{Name: u.Name, Address: u.Email})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		Bcc:          bcc,
		Subject:      a.Title,
		TemplateName: "announcement",
		TemplateData: a,
	})
}

// Active lists the unexpired announcements role may see.
func (svc *Service) Active(ctx context.Context, role string) ([]Announcement, error) {
	all, err := svc.repo.QueryAnnouncements(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res := make([]Announcement, 0, len(all))
	for _, a := range all {
		if a.VisibleTo(role, now) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetAnnouncementByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteAnnouncement(ctx, id)
}
