package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/votepulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/votepulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMiddlewareWithStructuredError(t *testing.T) {
	c, rec := newContext()
	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return apperrors.ValidationError("invalid input", nil)
	})

	require.NoError(t, handler(c)) // handled, not returned

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "invalid input", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestMiddlewareWithStandardError(t *testing.T) {
	c, rec := newContext()
	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return errors.New("standard error")
	})

	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, apperrors.TypeInternal, resp.Type)
}

func TestMiddlewareWithNoError(t *testing.T) {
	c, rec := newContext()
	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestMiddlewarePassesEchoErrorsThrough(t *testing.T) {
	c, _ := newContext()
	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return echo.ErrNotFound
	})

	err := handler(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestMiddlewareHidesContextFromResponse(t *testing.T) {
	c, rec := newContext()
	handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return apperrors.NotFoundError("room not found").WithField("room", "votingRoom")
	})

	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"room not found","type":"not_found"}`, rec.Body.String())
}

func TestMiddlewareAllErrorTypes(t *testing.T) {
	tests := []struct {
		name       string
		err        *apperrors.Error
		wantStatus int
	}{
		{"validation", apperrors.ValidationError("invalid", nil), http.StatusBadRequest},
		{"not_found", apperrors.NotFoundError("missing"), http.StatusNotFound},
		{"unavailable", apperrors.UnavailableError("redis down", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"internal", apperrors.InternalError("failed", errors.New("cause")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext()
			handler := ErrorHandlingMiddleware()(func(c echo.Context) error {
				return tt.err
			})

			require.NoError(t, handler(c))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.err.Type, decodeError(t, rec).Type)
		})
	}
}

func TestHandleErrorWithNil(t *testing.T) {
	c, rec := newContext()

	assert.NoError(t, HandleError(c, nil))
	assert.Equal(t, 0, rec.Body.Len())
}

func TestCorrelationMiddleware_MintsID(t *testing.T) {
	c, rec := newContext()
	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(headerRequestID))
}

func TestCorrelationMiddleware_ReusesIncomingID(t *testing.T) {
	c, rec := newContext()
	c.Request().Header.Set(headerRequestID, "req-123")
	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
}
