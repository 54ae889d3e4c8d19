package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

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
)

type Deps struct {
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

type Server struct {
	app      *echo.Echo
	deps     Deps
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

var _ http.Handler = (*Server)(nil)

func NewServer(deps Deps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerUserAPI(g, jwt, s.auth, s.deps)
	registerStudentAPI(g, jwt, s.deps)
	registerTeacherAPI(g, jwt, s.deps)
	registerClassAPI(g, jwt, s.deps)
	registerGradeAPI(g, jwt, s.deps)
	registerAttendanceAPI(g, jwt, s.deps)
	registerFeeAPI(g, jwt, s.deps)
	registerAnnouncementAPI(g, jwt, s.deps)
	registerDashboardAPI(g, jwt, s.deps)
	registerChatAPI(g, jwt, s.deps)
}

// Start listens until the server is shut down. Listen errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the owner of the server to shut it down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
