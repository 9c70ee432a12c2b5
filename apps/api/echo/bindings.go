package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma separated `ordering` query param, e.g. "-classLevel,firstName".
// Unknown fields are dropped.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !isOrderingField(field) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func isOrderingField(field string) bool {
	for _, f := range user.OrderingFields {
		if f == field {
			return true
		}
	}
	return false
}

// idRequest carries the target of a PUT/DELETE that does not use the `/:id` path.
type idRequest struct {
	ID string `json:"id" query:"id"`
}

// targetID returns the `:id` path param or, when absent, the `id` already bound from the body.
func targetID(ctx echo.Context, bodyID string) (string, error) {
	id := core.CleanString(ctx.Param("id"))
	if id == "" {
		id = core.CleanString(bodyID)
	}
	if id == "" {
		return "", errMissingID
	}
	return id, nil
}

// SuccessResponse is the body of successful mutations.
type SuccessResponse struct {
	Message string      `json:"message"`
	Error   bool        `json:"error"`
	Data    interface{} `json:"data,omitempty"`
}
