package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/announcement"
	"github.com/shuleapp/shule/core/user"
)

type announcementApi struct {
	svc      *announcement.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := announcementApi{svc: deps.AnnouncementSvc, validate: deps.Validate}

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, roleMiddleware(user.RoleAdmin))
	ag.DELETE("/:id", api.destroy, roleMiddleware(user.RoleAdmin))
}

func (api *announcementApi) create(ctx echo.Context) error {
	author, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data announcement.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), author, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

// query lists the announcements currently addressed to the caller's role.
func (api *announcementApi) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	list, err := api.svc.Active(ctx.Request().Context(), caller.Role)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
