package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/fs"
	"github.com/myschool/backend/services/email"
	"github.com/myschool/backend/services/logger"
	"github.com/myschool/backend/storage/database/inmem"
)

// NewConfig returns a TEST configuration backed by the in-memory store.
func NewConfig() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Database.Engine = "memory"
	conf.Roll.Sequencer = "store"
	conf.Server.DisableReqLogs = true
	return conf
}

// NewLogger returns a silent logger with rollbar disabled.
func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// Env bundles the collaborators of a user.Service running against a fresh in-memory store.
type Env struct {
	Conf    *core.Config
	Logger  core.Logger
	DB      *inmemdb.DB
	Repo    user.Repository
	Alloc   *classroom.Allocator
	MailSvc core.EmailService
	UserSvc user.Service
}

func NewEnv() *Env {
	conf := NewConfig()
	logger := NewLogger(conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	db := inmemdb.Open()
	alloc := classroom.NewAllocator(inmemdb.NewSequencer(db))
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	repo := inmemdb.NewUserRepository(db)
	return &Env{
		Conf:    conf,
		Logger:  logger,
		DB:      db,
		Repo:    repo,
		Alloc:   alloc,
		MailSvc: mailSvc,
		UserSvc: user.NewService(repo, alloc, mailSvc, conf, logger),
	}
}

// CreateUser stores a user of `role` directly through `repo`, bypassing validation.
// For students, level and typ must be set in `enr`.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	role user.Role,
	first, last, email, pwd string,
	enr *user.Enrollment,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Role:          role,
		FirstName:     first,
		LastName:      last,
		Email:         email,
		ContactNumber: "08012345678",
		Enrollment:    enr,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewStudent returns a valid student registration payload.
func NewStudent(first, email string, level int, typ string) user.NewUser {
	return user.NewUser{
		FirstName:     first,
		LastName:      "Doe",
		Email:         email,
		Password:      "password123",
		UserType:      string(user.RoleStudent),
		ContactNumber: "08012345678",
		ClassLevel:    user.FlexInt(level),
		ClassType:     typ,
	}
}
