package main

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/fs"
	"github.com/myschool/backend/services/email"
	"github.com/myschool/backend/services/logger"
	"github.com/myschool/backend/services/roster"
	"github.com/myschool/backend/storage"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	// set up DB
	ctx := context.Background()
	st, err := storage.Open(ctx, conf)
	if err != nil {
		std.Fatal(err)
	}

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	validator := user.NewValidator()
	usrSvc := user.NewService(
		st.Repo,
		classroom.NewAllocator(st.Sequencer),
		emailsvc.NewConsoleServiceMock(conf, logger), // no mails from the CLI
		conf,
		logger,
	)

	var db *sql.DB
	if st.SQL != nil {
		db = st.SQL.DB
	}

	// start CLI
	cli := commandLine{
		db:        db,
		usrSvc:    usrSvc,
		rosterSvc: rostersvc.NewService(usrSvc, validator, logger),
		validator: validator,
	}
	err = cli.run(os.Args)
	if cErr := st.Close(ctx); cErr != nil {
		std.Printf("closing database: %v\n", cErr)
	}
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
