package main

import (
	"context"
	"fmt"

	"github.com/myschool/backend/core/user"
)

// addUser registers a user through the same checks as the API, students included.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	nu.RequirePassword()
	if err := nu.Validate(ctx, cli.validator, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s <%s> created (id: %s)\n", usr.Role, usr.FullName(), usr.Email, usr.ID)
	if usr.IsStudent() {
		fmt.Printf("roll number: %s\n", usr.RollNumber)
	}
	return nil
}
