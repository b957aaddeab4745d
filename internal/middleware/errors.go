package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/dto"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders every error as {"error": {kind, message}, "request_id"}. Provider
// internals are only included for administrators.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := ErrorBody(err, ActorFrom(c).IsAdmin())
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"request_id", requestID,
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", status,
				"error", err,
			)
		}

		resp := dto.ErrorResponse{Error: body, RequestID: requestID}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			logger.Error("write error response", "request_id", requestID, "error", err)
		}
	}
}

func ErrorBody(err error, admin bool) (int, dto.ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if ae, ok := apperr.As(he.Internal); ok {
			return ErrorBody(ae, admin)
		}
		return he.Code, dto.ErrorBody{
			Kind:    string(kindForStatus(he.Code)),
			Message: fmt.Sprint(he.Message),
		}
	}

	ae := apperr.Wrap(err)
	body := dto.ErrorBody{
		Kind:    string(ae.Kind),
		Message: apperr.PublicMessage(ae),
	}
	if ae.Kind == apperr.Provisioning {
		body.OrderID = ae.OrderID
	}
	if admin {
		body.OrderID = ae.OrderID
		body.Detail = ae.Detail
		if body.Detail == "" && ae.Err != nil {
			body.Detail = ae.Err.Error()
		}
	}
	return apperr.HTTPStatus(ae), body
}

func kindForStatus(status int) apperr.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Unauthorized
	case status == http.StatusNotFound:
		return apperr.NotFound
	case status == http.StatusConflict:
		return apperr.Conflict
	case status >= 400 && status < 500:
		return apperr.Validation
	}
	return apperr.Internal
}
