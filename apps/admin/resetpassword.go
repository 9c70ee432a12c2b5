package main

import (
	"context"

	"github.com/myschool/backend/core/user"
)

func (cli *commandLine) resetPassword(email, userType, pwd string) error {
	ctx := context.Background()
	role, err := user.ParseRole(userType)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd}
	if err := uu.Validate(cli.validator); err != nil {
		return err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, role, email)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, role, usr.ID, uu)
	return err
}
