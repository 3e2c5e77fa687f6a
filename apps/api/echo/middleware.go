package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core/instance"
)

const instanceContextKey = "instance"

// instanceMiddleware loads the instance named by the :id param. Only its
// members and teachers get through.
func instanceMiddleware(svc *instance.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.Atoi(ctx.Param("id"))
			if err != nil || id <= 0 {
				return errHttpNotFound
			}
			claims, userID, err := actor(ctx)
			if err != nil {
				return err
			}
			inst, err := svc.Get(id)
			if err != nil {
				return errors.Wrap(err, "getting instance")
			}
			if !claims.IsTeacher && !inst.HasMember(userID) {
				return errHttpForbidden
			}
			ctx.Set(instanceContextKey, inst)
			return next(ctx)
		}
	}
}

func contextInstance(ctx echo.Context) instance.Instance {
	inst, _ := ctx.Get(instanceContextKey).(instance.Instance)
	return inst
}

// activeMiddleware only lets the instance's active student through.
func activeMiddleware(svc *instance.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			_, userID, err := actor(ctx)
			if err != nil {
				return err
			}
			active, err := svc.ActiveStudent(contextInstance(ctx).ID, userID)
			if err != nil {
				return errors.Wrap(err, "getting active student")
			}
			if active != userID {
				return errNotActive
			}
			return next(ctx)
		}
	}
}
