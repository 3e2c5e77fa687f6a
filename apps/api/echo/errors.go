package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errNotActive       = echo.NewHTTPError(http.StatusForbidden, "only the active student can edit this activity")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errRunnerMissing   = echo.NewHTTPError(http.StatusServiceUnavailable, "no runner for this language")
	errPreviewTeachers = echo.NewHTTPError(http.StatusForbidden, "preview mode is for teachers")
)

// domainHTTPError maps the core sentinel errors to their HTTP response.
func domainHTTPError(err error) *echo.HTTPError {
	switch errors.Cause(err) {
	case instance.ErrNotFound, responses.ErrNotFound:
		return errHttpNotFound
	case instance.ErrNotMember:
		return errHttpForbidden
	case instance.ErrNoMembers, instance.ErrNotPresent:
		return echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
	case responses.ErrGroupComplete:
		return echo.NewHTTPError(http.StatusConflict, responses.ErrGroupComplete.Error())
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if herr := domainHTTPError(cause); herr != nil {
			cause = herr
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if fldErrs := origErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error, duplicate response keys included
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Path(),
			}}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, core.UserID(claims.Subject))
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) && signalShutdown != nil {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
