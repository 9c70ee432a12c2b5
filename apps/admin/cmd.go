package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/services/roster"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errSQLOnly = errors.New("migrations are only available for the postgres and pgx engines")
)

type commandLine struct {
	db        *sql.DB // nil unless the engine is SQL
	usrSvc    user.Service
	rosterSvc *rostersvc.Service
	validator *user.Validator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -role ROLE -first FIRST -last LAST -contact CONTACT [-level LEVEL -type TYPE] - add a user; the password is prompted next")
	fmt.Println("  resetpassword -email EMAIL -role ROLE - reset a user's password; the password is prompted next")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose command (up, down, status, redo, version...)")
	fmt.Println("  import -file FILE.xlsx - enroll the students of a roster spreadsheet")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", "", "One of Admin, Teacher, Student, Parent.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")
	addUserContact := addUserCmd.String("contact", "", "The user's 11-digit contact number.")
	addUserLevel := addUserCmd.Int("level", 0, "The class level (students only).")
	addUserType := addUserCmd.String("type", "", "The class type: Science, Arts or Computer (students only).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")
	resetPasswordRole := resetPasswordCmd.String("role", "", "One of Admin, Teacher, Student, Parent.")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "The .xlsx roster to import.")

	switch args[1] {
	case "adduser":
		if err := parse(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(user.NewUser{
			FirstName:     *addUserFirst,
			LastName:      *addUserLast,
			Email:         *addUserEmail,
			Password:      pwd,
			UserType:      *addUserRole,
			ContactNumber: *addUserContact,
			ClassLevel:    user.FlexInt(*addUserLevel),
			ClassType:     *addUserType,
		})

	case "resetpassword":
		if err := parse(resetPasswordCmd, args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" || *resetPasswordRole == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, *resetPasswordRole, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "import":
		if err := parse(importCmd, args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRoster(*importFile)

	default:
		cli.printUsage()
		return errHelp
	}
}

func parse(cmd *flag.FlagSet, args []string) error {
	if err := cmd.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
