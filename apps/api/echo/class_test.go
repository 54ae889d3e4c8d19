package echoapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/core/user"
	"github.com/shuleapp/shule/testutil"
)

func Test_classApi_adminOnly(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	receptionist := env.createUser(t, "Recep", "recep@shule.test", user.RoleReceptionist)
	tchr := testutil.CreateTeacher(t, env.usrRepo, env.tchRepo, "Jane Doe", "jane@shule.test")

	body := marshalObj(t, class.NewClass{
		Name:           "Form 1",
		GradeLevel:     1,
		ClassTeacherID: tchr.UserID,
		Subjects:       []class.SubjectAssignment{{Name: "Math", TeacherID: tchr.UserID}},
	})

	tests := []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/api/classes", wantCode: http.StatusUnauthorized},
		{name: "receptionist list", method: http.MethodGet, path: "/api/classes", token: env.token(t, receptionist), wantCode: http.StatusForbidden},
		{name: "teacher list", method: http.MethodGet, path: "/api/classes", token: env.token(t, tchr.User), wantCode: http.StatusForbidden},
		{name: "teacher create", method: http.MethodPost, path: "/api/classes", body: body, token: env.token(t, tchr.User), wantCode: http.StatusForbidden},
		{
			name: "receptionist assign", method: http.MethodPost, path: "/api/classes/x/subjects", token: env.token(t, receptionist),
			body: []byte(`{"subjects":[{"name":"Math","teacherId":"x"}]}`), wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	// nothing was written by the rejected requests
	rec := env.do(t, httpTest{path: "/api/classes", token: env.token(t, admin)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	rec = env.do(t, httpTest{path: "/api/subjects", token: env.token(t, admin)})
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func Test_classApi_lifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	tchr := testutil.CreateTeacher(t, env.usrRepo, env.tchRepo, "Jane Doe", "jane@shule.test")
	other := testutil.CreateTeacher(t, env.usrRepo, env.tchRepo, "John Roe", "john@shule.test")
	token := env.token(t, admin)

	// create
	rec := env.do(t, httpTest{
		method: http.MethodPost, path: "/api/classes", token: token,
		body: marshalObj(t, class.NewClass{
			Name:           " Form 1 ",
			GradeLevel:     1,
			Section:        "A",
			ClassTeacherID: tchr.UserID,
			Subjects: []class.SubjectAssignment{
				{Name: "Math", TeacherID: tchr.UserID},
				{Name: " math ", TeacherID: other.UserID},
				{Name: "Physics", TeacherID: tchr.UserID},
			},
		}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cls class.Class
	unmarshal(t, rec, &cls)
	assert.Equal(t, "Form 1", cls.Name)
	assert.Contains(t, rec.Body.String(), `"gradeLevel":1`)
	assert.Contains(t, rec.Body.String(), `"classTeacherId"`)
	require.Len(t, cls.Subjects, 2)

	teachers := make(map[string]string)
	for _, l := range cls.Subjects {
		teachers[l.SubjectName] = l.TeacherID
	}
	assert.Equal(t, map[string]string{"Math": other.UserID, "Physics": tchr.UserID}, teachers)

	detail := "/api/classes/" + cls.ID

	// replace the subjects
	rec = env.do(t, httpTest{
		method: http.MethodPut, path: detail, token: token,
		body: []byte(fmt.Sprintf(`{"name":"Form 1B","subjects":[{"name":"Chemistry","teacherId":%q}]}`, other.UserID)),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, httpTest{path: detail, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	cls = class.Class{}
	unmarshal(t, rec, &cls)
	assert.Equal(t, "Form 1B", cls.Name)
	require.Len(t, cls.Subjects, 1)
	assert.Equal(t, "Chemistry", cls.Subjects[0].SubjectName)

	// additive assignment keeps Chemistry
	rec = env.do(t, httpTest{
		method: http.MethodPost, path: detail + "/subjects", token: token,
		body: []byte(fmt.Sprintf(`{"subjects":[{"name":"Biology","teacherId":%q}]}`, tchr.UserID)),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, httpTest{path: detail, token: token})
	cls = class.Class{}
	unmarshal(t, rec, &cls)
	assert.Len(t, cls.Subjects, 2)

	// subjects are global
	rec = env.do(t, httpTest{path: "/api/subjects", token: env.token(t, tchr.User)})
	require.Equal(t, http.StatusOK, rec.Code)
	var subjects []class.Subject
	unmarshal(t, rec, &subjects)
	assert.Len(t, subjects, 4) // Math, Physics, Chemistry, Biology

	// delete
	rec = env.do(t, httpTest{method: http.MethodDelete, path: detail, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, httpTest{path: detail, token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_classApi_validation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	parent := env.createUser(t, "Parent", "parent@shule.test", user.RoleParent)
	tchr := testutil.CreateTeacher(t, env.usrRepo, env.tchRepo, "Jane Doe", "jane@shule.test")
	token := env.token(t, admin)

	rec := env.do(t, httpTest{
		method: http.MethodPost, path: "/api/classes", token: token,
		body: marshalObj(t, class.NewClass{Name: "Form 1", GradeLevel: 1, ClassTeacherID: tchr.UserID}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cls class.Class
	unmarshal(t, rec, &cls)

	tests := []httpTest{
		{name: "missing fields", method: http.MethodPost, path: "/api/classes", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "class teacher is not a teacher", method: http.MethodPost, path: "/api/classes",
			body: marshalObj(t, class.NewClass{Name: "Form 2", GradeLevel: 2, ClassTeacherID: parent.ID}), wantCode: http.StatusBadRequest,
		},
		{name: "blank name", method: http.MethodPut, path: "/api/classes/" + cls.ID, body: []byte(`{"name":"  "}`), wantCode: http.StatusBadRequest},
		{name: "unknown class", method: http.MethodPut, path: "/api/classes/nope", body: []byte(`{"name":"X"}`), wantCode: http.StatusNotFound},
		{
			name: "assign without teacher", method: http.MethodPost, path: "/api/classes/" + cls.ID + "/subjects",
			body: []byte(`{"subjects":[{"name":"Math"}]}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "assign nothing", method: http.MethodPost, path: "/api/classes/" + cls.ID + "/subjects",
			body: []byte(`{"subjects":[]}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "malformed subject teacher", method: http.MethodPut, path: "/api/classes/" + cls.ID,
			body: []byte(`{"name":"Form 1B","subjects":[{"name":"Math","teacherId":"` + tchr.UserID + `"},{"name":"Art","teacherId":"t-1"}]}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = token
			rec := env.do(t, tt)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	// rejected before any write
	rec = env.do(t, httpTest{path: "/api/classes/" + cls.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var got class.Class
	unmarshal(t, rec, &got)
	assert.Equal(t, "Form 1", got.Name)
	assert.Empty(t, got.Subjects)

	rec = env.do(t, httpTest{path: "/api/subjects", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var subjects []class.Subject
	unmarshal(t, rec, &subjects)
	assert.Empty(t, subjects)
}
