package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as the whole body.
func JSONResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, data)
}

// MessageResponse writes {"message": msg}.
func MessageResponse(c echo.Context, statusCode int, msg string) error {
	return c.JSON(statusCode, MessageBody{Message: msg})
}

// ErrorResponse writes {"error": msg}.
func ErrorResponse(c echo.Context, statusCode int, msg string) error {
	return c.JSON(statusCode, ErrorBody{Error: msg})
}

// BadRequestResponse writes a 400 carrying validation details.
func BadRequestResponse(c echo.Context, details []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ErrorBody{
		Error:   http.StatusText(http.StatusBadRequest),
		Details: details,
	})
}

// InternalServerErrorResponse writes a 500 error.
func InternalServerErrorResponse(c echo.Context, msg string) error {
	return ErrorResponse(c, http.StatusInternalServerError, msg)
}

// AppErrorResponse writes application error response.
// Errors that carry no AppError get a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, appErr.Status, appErr.Message)
	}
	return InternalServerErrorResponse(c, "Something went wrong")
}
