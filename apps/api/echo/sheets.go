package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/render"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

type sheetApi struct {
	parser    *sheet.Parser
	instances *instance.Service
	responses *responses.Service
}

func registerSheetAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := sheetApi{
		parser:    deps.Parser,
		instances: deps.InstanceSvc,
		responses: deps.ResponseSvc,
	}

	sg := g.Group("/sheets", jwt)
	sg.POST("/parse", api.parse)
	sg.POST("/render", api.render)
	sg.GET("/highlight.css", api.highlightCSS)
}

// Handlers

func (api *sheetApi) parse(ctx echo.Context) error {
	var data ParseRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	blocks := api.parser.Parse(data.Lines)
	return ctx.JSON(http.StatusOK, echo.Map{"blocks": blocks})
}

func (api *sheetApi) render(ctx echo.Context) error {
	var data RenderRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	claims, userID, err := actor(ctx)
	if err != nil {
		return err
	}

	opts := data.options()
	if opts.Mode == render.Preview && !claims.IsTeacher {
		return errPreviewTeachers
	}

	if data.InstanceID > 0 {
		inst, err := api.instances.Get(data.InstanceID)
		if err != nil {
			return errors.Wrap(err, "getting instance")
		}
		if !claims.IsTeacher && !inst.HasMember(userID) {
			return errHttpForbidden
		}
		if inst.HasMember(userID) {
			active, err := api.instances.ActiveStudent(inst.ID, userID)
			if err != nil {
				return errors.Wrap(err, "getting active student")
			}
			opts.IsActive = active == userID
		}
		if opts.Prefill, err = api.responses.Prefill(inst.ID); err != nil {
			return errors.Wrap(err, "loading prefill")
		}
	} else {
		// a sheet rendered outside any instance is the caller's own scratch copy
		opts.IsActive = true
	}

	blocks := api.parser.Parse(data.Lines)
	out, err := render.ToHTML([]*html.Node{render.Document(render.RenderSheet(blocks, opts))})
	if err != nil {
		return errors.Wrap(err, "rendering sheet")
	}
	return ctx.HTML(http.StatusOK, out)
}

func (api *sheetApi) highlightCSS(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := render.WriteCSS(&buf); err != nil {
		return errors.Wrap(err, "writing highlight css")
	}
	return ctx.Blob(http.StatusOK, "text/css; charset=utf-8", buf.Bytes())
}
