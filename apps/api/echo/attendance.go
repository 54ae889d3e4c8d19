package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/attendance"
	"github.com/shuleapp/shule/core/user"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := attendanceApi{svc: deps.AttendanceSvc, validate: deps.Validate}

	ag := g.Group("/attendance", jwt)
	ag.GET("", api.query)
	ag.POST("", api.mark, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	ag.GET("/summary", api.summary, roleMiddleware(user.StaffRoles...))
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data attendance.MarkClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.Mark(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, records)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var filter attendance.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}

	records, err := api.svc.Query(ctx.Request().Context(), caller, filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}
