package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/shuleapp/shule/core"
)

func Test_bindOrdering(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "none", query: ""},
		{name: "empty", query: "?ordering="},
		{name: "single", query: "?ordering=amount", want: []core.DBOrdering{{Field: "amount", Ascending: true}}},
		{
			name:  "several",
			query: "?ordering=status,%20-due_date",
			want:  []core.DBOrdering{{Field: "status", Ascending: true}, {Field: "due_date", Ascending: false}},
		},
		{name: "blank fields", query: "?ordering=,-,name", want: []core.DBOrdering{{Field: "name", Ascending: true}}},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, bindOrdering(ctx))
		})
	}
}
