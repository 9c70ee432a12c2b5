package main

import (
	"github.com/myschool/backend/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errSQLOnly
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
