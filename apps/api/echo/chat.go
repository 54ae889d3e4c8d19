package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/assistant"
)

type chatApi struct {
	svc      *assistant.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := chatApi{svc: deps.AssistantSvc, validate: deps.Validate}
	g.POST("/chat", api.chat, jwt)
}

func (api *chatApi) chat(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var msg assistant.Message
	if err = ctx.Bind(&msg); err != nil {
		return errors.Wrap(err, "binding to Message")
	}
	if err = api.validate.Struct(&msg); err != nil {
		return err
	}

	reply, err := api.svc.Chat(ctx.Request().Context(), caller, msg)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply)
}
