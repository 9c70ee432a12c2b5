package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core/user"
)

// memberApi serves the records of a single Role under /api/<collection>.
type memberApi struct {
	role      user.Role
	svc       user.Service
	validator *user.Validator
}

func registerMemberAPI(g *echo.Group, role user.Role, svc user.Service, validator *user.Validator) {
	api := memberApi{
		role:      role,
		svc:       svc,
		validator: validator,
	}

	mg := g.Group("/" + role.Collection())
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.PUT("", api.update)
	mg.DELETE("", api.destroy)

	// detail endpoints
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
}

func (api *memberApi) message(action string) string {
	return fmt.Sprintf("%s %s successfully", api.role, action)
}

// Handlers

func (api *memberApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.UserType = string(api.role)
	if err := data.Validate(ctx.Request().Context(), api.validator, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.role)
	}

	return ctx.JSON(http.StatusCreated, SuccessResponse{Message: api.message("added"), Data: usr})
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return filterError(err)
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), api.role, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrapf(err, "querying %s", api.role.Collection())
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), api.role, ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "retrieving %s", api.role)
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *memberApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	id, err := targetID(ctx, data.ID)
	if err != nil {
		return err
	}
	if err := data.Validate(api.validator); err != nil {
		return err
	}

	usr, err := api.svc.Update(ctx.Request().Context(), api.role, id, data)
	if err != nil {
		return errors.Wrapf(err, "updating %s", api.role)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: api.message("updated"), Data: usr})
}

func (api *memberApi) destroy(ctx echo.Context) error {
	var data idRequest
	if ctx.Param("id") == "" {
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to idRequest")
		}
	}
	id, err := targetID(ctx, data.ID)
	if err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), api.role, id); err != nil {
		return errors.Wrapf(err, "deleting %s", api.role)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Message: api.message("deleted")})
}
