package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
)

type instanceApi struct {
	instances *instance.Service
	responses *responses.Service
	hub       *Hub
}

func registerInstanceAPI(g *echo.Group, jwt, wsJWT echo.MiddlewareFunc, deps *Deps) {
	api := instanceApi{
		instances: deps.InstanceSvc,
		responses: deps.ResponseSvc,
		hub:       deps.Hub,
	}
	member := instanceMiddleware(api.instances)
	active := activeMiddleware(api.instances)

	// websockets cannot set headers: the token comes as a query param
	g.GET("/instances/:id/live", api.live, wsJWT, member)

	ig := g.Group("/instances/:id", jwt, member)
	ig.GET("/responses", api.prefill)
	ig.GET("/active", api.activeStudent)
	ig.POST("/heartbeat", api.heartbeat)
	ig.POST("/submit", api.submit, active)
	ig.POST("/code", api.saveCode, active)
	ig.POST("/rotate", api.rotate, active)
}

// Handlers

func (api *instanceApi) prefill(ctx echo.Context) error {
	pf, err := api.responses.Prefill(contextInstance(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "loading prefill")
	}
	return ctx.JSON(http.StatusOK, pf)
}

func (api *instanceApi) activeStudent(ctx echo.Context) error {
	_, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	inst := contextInstance(ctx)
	if !inst.HasMember(userID) { // teachers only observe
		return ctx.JSON(http.StatusOK, ActiveResponse{ActiveStudentID: inst.ActiveStudentID.Int})
	}
	active, err := api.instances.ActiveStudent(inst.ID, userID)
	if err != nil {
		return errors.Wrap(err, "getting active student")
	}
	return ctx.JSON(http.StatusOK, ActiveResponse{ActiveStudentID: active, IsActive: active == userID})
}

func (api *instanceApi) heartbeat(ctx echo.Context) error {
	_, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	if err := api.instances.Heartbeat(contextInstance(ctx).ID, userID); err != nil {
		return errors.Wrap(err, "recording heartbeat")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instanceApi) submit(ctx echo.Context) error {
	var data SubmitRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	claims, userID, err := actor(ctx)
	if err != nil {
		return err
	}

	sub := responses.Submission{
		InstanceID: contextInstance(ctx).ID,
		GroupID:    data.GroupID,
		UserID:     userID,
		HTML:       data.HTML,
	}
	if data.SendReceipt && claims.Email != "" {
		sub.ReceiptTo = []mail.Address{{Name: claims.Name, Address: claims.Email}}
	}
	records, err := api.responses.Submit(sub)
	if err != nil {
		return errors.Wrap(err, "submitting responses")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *instanceApi) saveCode(ctx echo.Context) error {
	var data CodeChangeRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	_, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	if err := api.responses.SaveCode(data.change(contextInstance(ctx).ID, userID)); err != nil {
		return errors.Wrap(err, "saving code")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instanceApi) rotate(ctx echo.Context) error {
	_, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	next, err := api.instances.Rotate(contextInstance(ctx).ID, userID)
	if err != nil {
		return errors.Wrap(err, "rotating active student")
	}
	return ctx.JSON(http.StatusOK, ActiveResponse{ActiveStudentID: next, IsActive: next == userID})
}

func (api *instanceApi) live(ctx echo.Context) error {
	_, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	return api.hub.Serve(ctx.Response(), ctx.Request(), contextInstance(ctx).ID, userID)
}
