package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
)

const passwordResetSent = "If the email address supplied is associated with an account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type accountApi struct {
	svc       user.Service
	validator *user.Validator
	logger    core.Logger
}

func registerAccountAPI(g *echo.Group, svc user.Service, validator *user.Validator, logger core.Logger) {
	api := accountApi{
		svc:       svc,
		validator: validator,
		logger:    logger,
	}

	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.GET("/profile", api.profile)
	g.POST("/password-reset", api.resetPassword)
	g.POST("/password-reset-confirm", api.confirmPasswordReset)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.RequirePassword()
	if err := data.Validate(ctx.Request().Context(), api.validator, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}

	return ctx.JSON(http.StatusCreated, SuccessResponse{Message: "User registered successfully!", Data: usr})
}

func (api *accountApi) login(ctx echo.Context) error {
	var data user.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validator); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, usr.Profile())
}

// profile reads the `email` and `userType` headers, falling back to query params.
func (api *accountApi) profile(ctx echo.Context) error {
	email := ctx.Request().Header.Get("email")
	if email == "" {
		email = ctx.QueryParam("email")
	}
	userType := ctx.Request().Header.Get("userType")
	if userType == "" {
		userType = ctx.QueryParam("userType")
	}

	prof, err := api.svc.Profile(ctx.Request().Context(), email, userType)
	if err != nil {
		return errors.Wrap(err, "looking up profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data user.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validator); err != nil {
		return err
	}

	role, _ := user.ParseRole(data.UserType) // validated
	err := api.svc.RequestPasswordReset(ctx.Request().Context(), role, data.Email)
	if _, notFound := errors.Cause(err).(*core.NotFoundError); !(err == nil || notFound) {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: passwordResetSent})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validator); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: "Password has been reset with the new password."})
}
