package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core"
	"github.com/myschool/backend/core/user"
)

var (
	errMissingID   = core.NewCodedValidationError(user.ErrMissingField, user.CodeMissingField, core.FieldError{Field: "id", Error: "this field is required"})
	errMissingFile = core.NewCodedValidationError(user.ErrMissingField, user.CodeMissingField, core.FieldError{Field: "file", Error: "this field is required"})

	errInvalidFilter = errors.New("invalid query parameters")
)

// filterError reports a QueryFilter that could not be bound, e.g. a non-numeric classLevel.
func filterError(err error) error {
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		msg = fmt.Sprint(he.Message)
	}
	return core.NewValidationError(errInvalidFilter, core.FieldError{Field: "query", Error: msg})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func fieldsMap(flds []core.FieldError) map[string]string {
	if len(flds) == 0 {
		return nil
	}
	m := make(map[string]string, len(flds))
	for _, fErr := range flds {
		m[fErr.Field] = fErr.Error
	}
	return m
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp ErrorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp = ErrorResponse{Error: origErr.Error(), Code: origErr.Code, Fields: fieldsMap(origErr.Fields)}
			if resp.Error == "" {
				resp.Error = "invalid input"
			}
		case *core.ConflictError:
			code = http.StatusConflict
			resp = ErrorResponse{Error: origErr.Error(), Code: origErr.Code, Fields: fieldsMap(origErr.Fields)}
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp.Error = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			resp.Error = msg

			req := ctx.Request()
			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"method": req.Method,
				"path":   req.URL.Path,
			})

			if ctx.Echo().Debug {
				resp.Error = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
