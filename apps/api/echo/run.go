package echoapi

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
)

type (
	cellID struct {
		instanceID int
		userID     int
		key        string
	}

	runApi struct {
		runners   map[string]coderun.Runner
		instances *instance.Service
		responses *responses.Service
		log       core.Logger

		mu    sync.Mutex
		cells map[cellID]*coderun.Editor
	}
)

func registerRunAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := &runApi{
		runners:   deps.Runners,
		instances: deps.InstanceSvc,
		responses: deps.ResponseSvc,
		log:       deps.Logger,
		cells:     make(map[cellID]*coderun.Editor),
	}
	g.POST("/run", api.run, jwt)
}

// cell returns the editor of a code cell, opening it when idle. A cell has
// at most one run in flight: a new run tears the previous one down.
func (api *runApi) cell(id cellID, editable bool, onChange coderun.ChangeFunc) *coderun.Editor {
	api.mu.Lock()
	defer api.mu.Unlock()
	if e, ok := api.cells[id]; ok {
		return e
	}
	e := coderun.NewEditor(id.key, "", editable, onChange, coderun.WithDebounce(core.Conf.Runner.BroadcastDebounce))
	api.cells[id] = e
	return e
}

func (api *runApi) release(id cellID, e *coderun.Editor) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if e.State() != coderun.Running && api.cells[id] == e {
		delete(api.cells, id)
		_ = e.Close()
	}
}

// Handlers

func (api *runApi) run(ctx echo.Context) error {
	var data RunRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	claims, userID, err := actor(ctx)
	if err != nil {
		return err
	}
	runner, ok := api.runners[data.Language]
	if !ok || runner == nil {
		return errRunnerMissing
	}

	var editable bool
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
			editable = active == userID
		}
	}

	id := cellID{instanceID: data.InstanceID, userID: userID, key: data.Key}
	onChange := func(key, value string, broadcastOnly bool) {
		err := api.responses.SaveCode(responses.CodeChange{
			InstanceID:    data.InstanceID,
			UserID:        userID,
			Key:           key,
			Value:         value,
			Language:      data.Language,
			BroadcastOnly: broadcastOnly,
		})
		if err != nil {
			api.log.Error("echoapi.run: saving code", err, core.UserID(claims.Subject))
		}
	}
	editor := api.cell(id, editable, onChange)
	defer api.release(id, editor)

	if editable {
		if _, err := editor.StartEditing(); err != nil {
			return errors.Wrap(err, "editing code cell")
		}
		if err := editor.Edit(data.Code); err != nil {
			return errors.Wrap(err, "editing code cell")
		}
		editor.DoneEditing()
	} else {
		editor.Remote(data.Code)
	}

	stdin := coderun.NewInputQueue()
	for _, line := range data.Stdin {
		stdin.Push(line)
	}
	_ = stdin.Close()

	files := coderun.NewFileStore(data.Files)
	res := editor.Run(ctx.Request().Context(), runner, coderun.Job{
		Include: data.Include,
		Files:   files,
		Stdin:   stdin,
	})

	out := RunResponse{OutputKey: res.OutputKey, Output: res.Output}
	out.Files, _ = files.Snapshot()
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return ctx.JSON(http.StatusOK, out)
}
