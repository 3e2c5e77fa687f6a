package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/render"
	"github.com/trezcool/pogil/core/responses"
)

type (
	ParseRequest struct {
		Lines []string `json:"lines" validate:"required"`
	}

	RenderRequest struct {
		Lines      []string          `json:"lines" validate:"required"`
		Mode       string            `json:"mode" validate:"rendermode"`
		Editable   bool              `json:"editable"`
		InstanceID int               `json:"instance_id" validate:"gte=0"`
		CodeStates map[string]string `json:"code_states"` // response key -> editing|viewing
	}

	SubmitRequest struct {
		HTML        string `json:"html" validate:"required"`
		GroupID     int    `json:"group_id" validate:"gte=0"`
		SendReceipt bool   `json:"send_receipt"`
	}

	CodeChangeRequest struct {
		Key           string `json:"response_key" validate:"required,responsekey"`
		Value         string `json:"value"`
		Language      string `json:"language" validate:"omitempty,oneof=python cpp"`
		BroadcastOnly bool   `json:"broadcast_only"`
	}

	RunRequest struct {
		Key        string            `json:"response_key" validate:"required,responsekey"`
		Language   string            `json:"language" validate:"required,oneof=python cpp"`
		Code       string            `json:"code"`
		Stdin      []string          `json:"stdin" validate:"max=64"`
		Include    []string          `json:"include"`
		Files      map[string]string `json:"files"`
		InstanceID int               `json:"instance_id" validate:"gte=0"`
	}

	RunResponse struct {
		OutputKey string            `json:"output_key"`
		Output    string            `json:"output"`
		Files     map[string]string `json:"files,omitempty"`
		Error     string            `json:"error,omitempty"`
	}

	ActiveResponse struct {
		ActiveStudentID int  `json:"active_student_id"`
		IsActive        bool `json:"is_active"`
	}
)

// bind decodes the request body into data then validates it.
func bind(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return core.Validate.Struct(data)
}

func (r RenderRequest) options() render.Options {
	opts := render.Options{Mode: render.Mode(r.Mode), Editable: r.Editable}
	if opts.Mode == "" {
		opts.Mode = render.Run
	}
	if len(r.CodeStates) > 0 {
		opts.CodeStates = make(map[string]coderun.State, len(r.CodeStates))
		for key, s := range r.CodeStates {
			if s == coderun.Editing.String() {
				opts.CodeStates[key] = coderun.Editing
			}
		}
	}
	return opts
}

func (r CodeChangeRequest) change(instanceID, userID int) responses.CodeChange {
	return responses.CodeChange{
		InstanceID:    instanceID,
		UserID:        userID,
		Key:           strings.TrimSpace(r.Key),
		Value:         r.Value,
		Language:      r.Language,
		BroadcastOnly: r.BroadcastOnly,
	}
}
