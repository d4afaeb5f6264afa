package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CustomErrorHandler is Echo's central error handler; every error leaves the
// API as a consistent JSON envelope
func CustomErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errorMessage := ""

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code

		if msg, ok := he.Message.(string); ok && msg != "" {
			errorMessage = msg
		}

		if errorMessage == "" {
			switch code {
			case http.StatusNotFound:
				errorMessage = "The requested resource doesn't exist."
			case http.StatusForbidden:
				errorMessage = "You don't have permission to access this resource."
			case http.StatusUnauthorized:
				errorMessage = "Authentication required."
			case http.StatusBadRequest:
				errorMessage = "The request could not be processed."
			default:
				errorMessage = "Something went wrong. Please try again later."
			}
		}
	} else {
		errorMessage = "Something went wrong. Please try again later."
	}

	c.Logger().Error(err)

	if c.Response().Committed {
		return
	}

	if jsonErr := c.JSON(code, map[string]interface{}{
		"error":  errorMessage,
		"status": code,
	}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
