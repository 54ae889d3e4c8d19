package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shuleapp/shule/core"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=field,-other`: a leading "-" sorts descending.
// Services drop the fields they do not allow.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return nil
	}

	var ordering []core.DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		ordering = append(ordering, core.DBOrdering{Field: field, Ascending: !desc})
	}
	return ordering
}
