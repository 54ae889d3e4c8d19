package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/shuleapp/shule/apps/api/echo"
	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/announcement"
	"github.com/shuleapp/shule/core/assistant"
	"github.com/shuleapp/shule/core/attendance"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/core/dashboard"
	"github.com/shuleapp/shule/core/fee"
	"github.com/shuleapp/shule/core/grade"
	"github.com/shuleapp/shule/core/student"
	"github.com/shuleapp/shule/core/teacher"
	"github.com/shuleapp/shule/core/user"
	assistantsvc "github.com/shuleapp/shule/services/assistant"
	cachesvc "github.com/shuleapp/shule/services/cache"
	emailsvc "github.com/shuleapp/shule/services/email"
	logsvc "github.com/shuleapp/shule/services/logger"
	reportsvc "github.com/shuleapp/shule/services/report"
	"github.com/shuleapp/shule/storage/database"
	sqlxrepos "github.com/shuleapp/shule/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.Email.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate
}

// the services below depend on *student.Service & *teacher.Service through narrow interfaces

func newClassService(db core.DB, repo class.Repository, teachers *teacher.Service, logger core.Logger) *class.Service {
	return class.NewService(db, repo, teachers, logger)
}

func newGradeService(repo grade.Repository, students *student.Service) *grade.Service {
	return grade.NewService(repo, students)
}

func newAttendanceService(db core.DB, repo attendance.Repository, students *student.Service) *attendance.Service {
	return attendance.NewService(db, repo, students)
}

func newFeeService(repo fee.Repository, students *student.Service, exporter fee.Exporter) *fee.Service {
	return fee.NewService(repo, students, exporter)
}

func newDashboardService(
	students *student.Service,
	teachers *teacher.Service,
	classes *class.Service,
	fees *fee.Service,
	attendance *attendance.Service,
	grades *grade.Service,
) *dashboard.Service {
	return dashboard.NewService(students, teachers, classes, fees, attendance, grades, students)
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc         user.ServiceInterface
	StudentSvc      *student.Service
	TeacherSvc      *teacher.Service
	ClassSvc        *class.Service
	GradeSvc        *grade.Service
	AttendanceSvc   *attendance.Service
	FeeSvc          *fee.Service
	AnnouncementSvc *announcement.Service
	DashboardSvc    *dashboard.Service
	AssistantSvc    *assistant.Service
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		StudentSvc:      p.StudentSvc,
		TeacherSvc:      p.TeacherSvc,
		ClassSvc:        p.ClassSvc,
		GradeSvc:        p.GradeSvc,
		AttendanceSvc:   p.AttendanceSvc,
		FeeSvc:          p.FeeSvc,
		AnnouncementSvc: p.AnnouncementSvc,
		DashboardSvc:    p.DashboardSvc,
		AssistantSvc:    p.AssistantSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// storage
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewTeacherRepository, dig.As(new(teacher.Repository))))
	must(c.Provide(sqlxrepos.NewClassRepository, dig.As(new(class.Repository))))
	must(c.Provide(sqlxrepos.NewGradeRepository, dig.As(new(grade.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewFeeRepository, dig.As(new(fee.Repository))))
	must(c.Provide(sqlxrepos.NewAnnouncementRepository, dig.As(new(announcement.Repository))))

	// services
	must(c.Provide(cachesvc.NewUserCacheFromConfig))
	must(c.Provide(assistantsvc.NewModelFromConfig))
	must(c.Provide(reportsvc.NewXLSXExporter, dig.As(new(fee.Exporter))))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(student.NewService))
	must(c.Provide(teacher.NewService))
	must(c.Provide(newClassService))
	must(c.Provide(newGradeService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newFeeService))
	must(c.Provide(announcement.NewService))
	must(c.Provide(newDashboardService))
	must(c.Provide(assistant.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
