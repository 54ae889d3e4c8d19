package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core/user"
	"github.com/shuleapp/shule/storage/database/inmem"
	"github.com/shuleapp/shule/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	return &commandLine{
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, nil, nil, nil),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var ran []string
	gooseRunFunc = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command+":"+dir)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, []string{"up:migrations", "up-to:migrations", "down-to:migrations", "status:migrations", "version:migrations"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	t.Run("missing flags", func(t *testing.T) {
		mockPassword("pwd")
		assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-name", "Admin"}))
	})
	t.Run("no password", func(t *testing.T) {
		mockPassword("")
		assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-name", "Admin", "-email", "admin@shule.test"}))
	})
	t.Run("invalid role", func(t *testing.T) {
		mockPassword("pwd")
		assert.Equal(t, errInvalidRole, cli.run([]string{"admin", "adduser", "-name", "X", "-email", "x@shule.test", "-role", "janitor"}))
	})
	t.Run("create admin", func(t *testing.T) {
		mockPassword("pwd")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Admin", "-email", " Admin@Shule.test "}))

		usr, err := usrRepo.GetUserByEmail(ctx, "admin@shule.test")
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("pwd"))
	})
	t.Run("update existing", func(t *testing.T) {
		mockPassword("new-pwd")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Recep", "-email", "admin@shule.test", "-role", "receptionist"}))

		usr, err := usrRepo.GetUserByEmail(ctx, "admin@shule.test")
		require.NoError(t, err)
		assert.Equal(t, "Recep", usr.Name)
		assert.Equal(t, user.RoleReceptionist, usr.Role)
		assert.NoError(t, usr.CheckPassword("new-pwd"))

		users, err := usrRepo.QueryUsers(ctx, &user.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe@shule.test", "mdr", user.RoleTeacher, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(pwd))
		})
	}
}
