package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core/fee"
	"github.com/shuleapp/shule/core/user"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := feeApi{svc: deps.FeeSvc, validate: deps.Validate}

	office := roleMiddleware(user.RoleAdmin, user.RoleReceptionist)

	fg := g.Group("/fees", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, office)
	fg.GET("/totals", api.totals)
	fg.GET("/export", api.export, office)
	fg.PUT("/:id", api.updateStatus, office)
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *feeApi) query(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var filter fee.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []fee.Record{})
	}

	recs, err := api.svc.Query(ctx.Request().Context(), caller, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying fee records")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *feeApi) totals(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var filter fee.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	totals, err := api.svc.Totals(ctx.Request().Context(), caller, filter)
	if err != nil {
		return errors.Wrap(err, "summing fee records")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *feeApi) export(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var filter fee.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	data, err := api.svc.Export(ctx.Request().Context(), caller, filter, bindOrdering(ctx))
	if err != nil {
		return err
	}

	filename := "fees-" + time.Now().Format("2006-01-02") + ".xlsx"
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, data)
}

func (api *feeApi) updateStatus(ctx echo.Context) error {
	var data fee.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee record")
	}
	return ctx.JSON(http.StatusOK, rec)
}
