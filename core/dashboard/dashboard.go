package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/attendance"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/core/fee"
	"github.com/shuleapp/shule/core/user"
)

type (
	Counter interface {
		Count(ctx context.Context) (int, error)
	}

	ClassSource interface {
		Query(ctx context.Context, filter *class.QueryFilter) ([]class.Class, error)
		TaughtBy(ctx context.Context, teacherID string) ([]class.Link, error)
	}

	FeeSource interface {
		Totals(ctx context.Context, caller user.User, filter fee.QueryFilter) (fee.Totals, error)
	}

	AttendanceSource interface {
		Summary(ctx context.Context, filter attendance.QueryFilter) (attendance.Summary, error)
	}

	GradeSource interface {
		Average(ctx context.Context, studentID string) (float64, error)
	}

	ChildrenSource interface {
		ChildrenOf(ctx context.Context, parentID string) ([]string, error)
	}
)

// Stats holds the figures shown on a dashboard. Only the ones relevant to the caller's role are set.
type Stats struct {
	Role string `json:"role"`

	Students        *int                `json:"students,omitempty"`
	Teachers        *int                `json:"teachers,omitempty"`
	Classes         *int                `json:"classes,omitempty"`
	Fees            *fee.Totals         `json:"fees,omitempty"`
	TodayAttendance *attendance.Summary `json:"today_attendance,omitempty"`

	SubjectLinks []class.Link `json:"subject_links,omitempty"`

	GradeAverage   *float64 `json:"grade_average,omitempty"`
	AttendanceRate *int     `json:"attendance_rate,omitempty"`
	PendingFees    *float64 `json:"pending_fees,omitempty"`
	Children       *int     `json:"children,omitempty"`
}

type Service struct {
	students   Counter
	teachers   Counter
	classes    ClassSource
	fees       FeeSource
	attendance AttendanceSource
	grades     GradeSource
	children   ChildrenSource
	now        func() time.Time
}

func NewService(students Counter, teachers Counter, classes ClassSource, fees FeeSource,
	attendance AttendanceSource, grades GradeSource, children ChildrenSource) *Service {
	return &Service{
		students:   students,
		teachers:   teachers,
		classes:    classes,
		fees:       fees,
		attendance: attendance,
		grades:     grades,
		children:   children,
		now:        time.Now,
	}
}

func (svc *Service) today() string {
	return svc.now().UTC().Format("2006-01-02")
}

// For builds the dashboard of caller.
func (svc *Service) For(ctx context.Context, caller user.User) (Stats, error) {
	stats := Stats{Role: caller.Role}
	var err error

	switch caller.Role {
	case user.RoleAdmin:
		err = svc.admin(ctx, caller, &stats)
	case user.RoleReceptionist:
		err = svc.receptionist(ctx, caller, &stats)
	case user.RoleTeacher:
		err = svc.teacher(ctx, caller, &stats)
	case user.RoleStudent:
		err = svc.student(ctx, caller, &stats)
	case user.RoleParent:
		err = svc.parent(ctx, caller, &stats)
	}
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (svc *Service) admin(ctx context.Context, caller user.User, stats *Stats) error {
	students, err := svc.students.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	teachers, err := svc.teachers.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "counting teachers")
	}
	classes, err := svc.classes.Query(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	totals, err := svc.fees.Totals(ctx, caller, fee.QueryFilter{})
	if err != nil {
		return errors.Wrap(err, "summing fees")
	}
	today, err := svc.attendance.Summary(ctx, attendance.QueryFilter{Date: svc.today()})
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}

	nClasses := len(classes)
	stats.Students, stats.Teachers, stats.Classes = &students, &teachers, &nClasses
	stats.Fees, stats.TodayAttendance = &totals, &today
	return nil
}

func (svc *Service) receptionist(ctx context.Context, caller user.User, stats *Stats) error {
	totals, err := svc.fees.Totals(ctx, caller, fee.QueryFilter{})
	if err != nil {
		return errors.Wrap(err, "summing fees")
	}
	today, err := svc.attendance.Summary(ctx, attendance.QueryFilter{Date: svc.today()})
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	stats.PendingFees, stats.TodayAttendance = &totals.Pending, &today
	return nil
}

func (svc *Service) teacher(ctx context.Context, caller user.User, stats *Stats) error {
	classes, err := svc.classes.Query(ctx, &class.QueryFilter{ClassTeacher: caller.ID})
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	links, err := svc.classes.TaughtBy(ctx, caller.ID)
	if err != nil {
		return errors.Wrap(err, "querying subject links")
	}
	n := len(classes)
	stats.Classes, stats.SubjectLinks = &n, links
	return nil
}

func (svc *Service) student(ctx context.Context, caller user.User, stats *Stats) error {
	avg, err := svc.grades.Average(ctx, caller.ID)
	if err != nil {
		return errors.Wrap(err, "averaging grades")
	}
	att, err := svc.attendance.Summary(ctx, attendance.QueryFilter{StudentID: caller.ID})
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	totals, err := svc.fees.Totals(ctx, caller, fee.QueryFilter{})
	if err != nil {
		return errors.Wrap(err, "summing fees")
	}
	stats.GradeAverage, stats.AttendanceRate, stats.PendingFees = &avg, &att.Rate, &totals.Pending
	return nil
}

func (svc *Service) parent(ctx context.Context, caller user.User, stats *Stats) error {
	children, err := svc.children.ChildrenOf(ctx, caller.ID)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	totals, err := svc.fees.Totals(ctx, caller, fee.QueryFilter{})
	if err != nil {
		return errors.Wrap(err, "summing fees")
	}
	n := len(children)
	stats.Children, stats.PendingFees = &n, &totals.Pending
	return nil
}
