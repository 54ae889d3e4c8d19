package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

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
	"github.com/shuleapp/shule/services/email"
	"github.com/shuleapp/shule/services/report"
	"github.com/shuleapp/shule/storage/database/inmem"
	"github.com/shuleapp/shule/testutil"
)

// testPassword satisfies the password policy.
const testPassword = "s3cure-passw0rd"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
}

// testEnv is a server backed by an in-memory store.
type testEnv struct {
	server  *Server
	db      *inmemdb.DB
	usrRepo user.Repository
	tchRepo teacher.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	logger  *testutil.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	logger := &testutil.Logger{}
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	tchRepo := inmemdb.NewTeacherRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	usrSvc := user.NewService(usrRepo, user.NopCache{}, mailSvc, logger)
	studSvc := student.NewService(nil, inmemdb.NewStudentRepository(db), usrSvc)
	tchSvc := teacher.NewService(nil, tchRepo, usrSvc)
	clsSvc := class.NewService(nil, inmemdb.NewClassRepository(db), tchSvc, logger)
	grdSvc := grade.NewService(inmemdb.NewGradeRepository(db), studSvc)
	attSvc := attendance.NewService(nil, inmemdb.NewAttendanceRepository(db), studSvc)
	feeSvc := fee.NewService(inmemdb.NewFeeRepository(db), studSvc, reportsvc.NewXLSXExporter())

	server := NewServer(Deps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		StudentSvc:      studSvc,
		TeacherSvc:      tchSvc,
		ClassSvc:        clsSvc,
		GradeSvc:        grdSvc,
		AttendanceSvc:   attSvc,
		FeeSvc:          feeSvc,
		AnnouncementSvc: announcement.NewService(inmemdb.NewAnnouncementRepository(db), usrSvc, mailSvc, logger),
		DashboardSvc:    dashboard.NewService(studSvc, tchSvc, clsSvc, feeSvc, attSvc, grdSvc, studSvc),
		AssistantSvc:    assistant.NewService(nil, conf, logger),
	})

	return &testEnv{
		server:  server,
		db:      db,
		usrRepo: usrRepo,
		tchRepo: tchRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (env *testEnv) createUser(t *testing.T, name, email, role string) user.User {
	return testutil.CreateUser(t, env.usrRepo, name, email, testPassword, role, true)
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.server.auth.token(env.server.auth.claims(usr))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	env.server.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
