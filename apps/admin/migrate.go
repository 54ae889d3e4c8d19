package main

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/shuleapp/shule/fs"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(context.Background(), args[0], cli.db, "migrations", args[1:]...)
}
