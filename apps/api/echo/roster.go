package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core/user"
	"github.com/myschool/backend/services/roster"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type rosterApi struct {
	svc *rostersvc.Service
}

func registerRosterAPI(g *echo.Group, svc *rostersvc.Service) {
	if svc == nil {
		return
	}
	api := rosterApi{svc: svc}

	sg := g.Group("/" + user.RoleStudent.Collection())
	sg.GET("/export", api.export)
	sg.POST("/import", api.importRoster)
}

// Handlers

func (api *rosterApi) export(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return filterError(err)
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	var buf bytes.Buffer
	if err := api.svc.Export(ctx.Request().Context(), &buf, filter, ordering.Orderings...); err != nil {
		return errors.Wrap(err, "exporting roster")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="students.xlsx"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *rosterApi) importRoster(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errMissingFile
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded roster")
	}
	defer f.Close()

	res, err := api.svc.Import(ctx.Request().Context(), f)
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	return ctx.JSON(http.StatusOK, res)
}
