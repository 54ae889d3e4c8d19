package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/assistant"
	"github.com/shuleapp/shule/core/class"
	"github.com/shuleapp/shule/testutil"
)

func Test_appHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantBody     string
		wantLogged   bool
		wantShutdown bool
	}{
		{
			name:     "persistence",
			err:      errors.Wrap(core.NewPersistenceError("link creation", errors.New("connection reset")), "updating class"),
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"link creation: connection reset"}`,
		},
		{
			name:     "validation fields",
			err:      core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field cannot be blank"}),
			wantCode: http.StatusBadRequest,
			wantBody: `{"name":"this field cannot be blank"}`,
		},
		{name: "forbidden", err: errors.Wrap(core.ErrForbidden, "deleting grade"), wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`},
		{name: "not found", err: errors.Wrap(class.ErrNotFound, "finding class"), wantCode: http.StatusNotFound},
		{name: "http error", err: errHttpForbidden, wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`},
		{name: "assistant disabled", err: assistant.ErrDisabled, wantCode: http.StatusServiceUnavailable},
		{
			name:     "assistant failed",
			err:      assistant.ErrFailed,
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Failed to process message"}`,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantBody:   `{"error":"Internal Server Error"}`,
			wantLogged: true,
		},
		{
			name:         "shutdown",
			err:          errors.Wrap(core.NewShutdownError("integrity issue"), "querying"),
			wantCode:     http.StatusInternalServerError,
			wantLogged:   true,
			wantShutdown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &testutil.Logger{}
			var shutdown bool
			handler := newAppHTTPErrorHandler(logger, core.NewTranslator(), func() { shutdown = true })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			handler(tt.err, echo.New().NewContext(req, rec))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			assert.Equal(t, tt.wantLogged, logger.Count("error") == 1, logger.String())
			assert.Equal(t, tt.wantShutdown, shutdown)
		})
	}
}
