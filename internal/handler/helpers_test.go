package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErr "github.com/sepworks/sepd/internal/pkg/errors"
)

func TestHandleErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{name: "invalid", err: fmt.Errorf("%w: bad url", appErr.ErrInvalid), code: http.StatusBadRequest, body: "bad url"},
		{name: "not found", err: appErr.ErrNotFound, code: http.StatusNotFound, body: "not_found"},
		{name: "fetch", err: fmt.Errorf("fetch x: %w", appErr.ErrFetch), code: http.StatusBadGateway, body: "fetch_failed"},
		{name: "extract", err: fmt.Errorf("extract x: %w", appErr.ErrExtract), code: http.StatusUnprocessableEntity, body: "extract_failed"},
		{name: "unexpected", err: errors.New("pq: relation does not exist"), code: http.StatusInternalServerError, body: "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			c.Request = httptest.NewRequest(http.MethodGet, "/entry", nil)

			handleError(c, tt.err)
			require.Equal(t, tt.code, recorder.Code)
			require.Contains(t, recorder.Body.String(), tt.body)
		})
	}
}

func TestHandleErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/entry", nil)

	handleError(c, errors.New("password=hunter2 dial failed"))
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.NotContains(t, recorder.Body.String(), "hunter2")
}
