package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	naughty := env.createUser(t, "N Dog", "ndog@shule.test", user.RoleStudent)
	naughty.IsActive = false
	_, err := env.usrRepo.UpdateUser(context.Background(), naughty)
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "missing fields", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "unknown email", body: `{"email":"nobody@shule.test","password":"s3cure-passw0rd"}`, wantCode: http.StatusBadRequest},
		{name: "wrong password", body: `{"email":"admin@shule.test","password":"nope"}`, wantCode: http.StatusBadRequest},
		{name: "deactivated", body: `{"email":"ndog@shule.test","password":"s3cure-passw0rd"}`, wantCode: http.StatusForbidden},
		{name: "ok", body: `{"email":" ADMIN@shule.test ","password":"s3cure-passw0rd"}`, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, httpTest{method: http.MethodPost, path: "/api/users/login", body: []byte(tt.body)})
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)

				// the token opens the authed endpoints
				rec = env.do(t, httpTest{path: "/api/users", token: resp.Token})
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func Test_userApi_auth(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	student := env.createUser(t, "Hero", "hero@shule.test", user.RoleStudent)
	studentToken := env.token(t, student)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, httpTest{path: "/api/users"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, string(marshalObj(t, errMissingToken)), rec.Body.String())
	})
	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, httpTest{path: "/api/users", token: "not.a.jwt"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("admin required", func(t *testing.T) {
		rec := env.do(t, httpTest{path: "/api/users", token: studentToken})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"permission denied"}`, rec.Body.String())
	})
	t.Run("own profile", func(t *testing.T) {
		rec := env.do(t, httpTest{path: "/api/users/" + student.ID, token: studentToken})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("someone else's profile", func(t *testing.T) {
		rec := env.do(t, httpTest{path: "/api/users/" + admin.ID, token: studentToken})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("admin fields", func(t *testing.T) {
		rec := env.do(t, httpTest{
			method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"role":"admin"}`),
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("deleted user", func(t *testing.T) {
		gone := env.createUser(t, "Gone", "gone@shule.test", user.RoleTeacher)
		token := env.token(t, gone)
		require.NoError(t, env.usrRepo.DeleteUsersByID(context.Background(), []string{gone.ID}))

		rec := env.do(t, httpTest{path: "/api/announcements", token: token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("refresh", func(t *testing.T) {
		rec := env.do(t, httpTest{method: http.MethodPost, path: "/api/users/token-refresh", token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp LoginResponse
		unmarshal(t, rec, &resp)

		claims, err := env.server.auth.parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, student.ID, claims.Subject)
		assert.Equal(t, user.RoleStudent, claims.Role)
	})
}

func Test_userApi_create(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "Admin", "admin@shule.test", user.RoleAdmin)
	token := env.token(t, admin)

	body := marshalObj(t, user.NewUser{
		Name:     "Recep",
		Email:    "Recep@Shule.test",
		Role:     user.RoleReceptionist,
		Password: testPassword,
	})

	rec := env.do(t, httpTest{method: http.MethodPost, path: "/api/users", token: token, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, "recep@shule.test", usr.Email)
	assert.NotContains(t, rec.Body.String(), testPassword)

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "recep@shule.test", sent[0].To[0].Address)

	// email is taken
	rec = env.do(t, httpTest{method: http.MethodPost, path: "/api/users", token: token, body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an admin cannot delete themselves
	rec = env.do(t, httpTest{method: http.MethodDelete, path: "/api/users/" + admin.ID, token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, httpTest{method: http.MethodDelete, path: "/api/users/" + usr.ID, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
