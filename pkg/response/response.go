package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

// Envelope keys used by the loans API.
const (
	KeyLoan  = "prestamo"
	KeyLoans = "prestamos"
	KeyError = "error"
)

// unexpectedMessage is shown for internal failures instead of their detail.
const unexpectedMessage = "Error inesperado"

// JSON wraps the payload under a single named key.
func JSON(c *gin.Context, status int, key string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, gin.H{key: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, key string, data interface{}) {
	JSON(c, http.StatusCreated, key, data)
}

// Error converts the error to its HTTP status and renders {"error": message}.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	message := appErr.Message
	if appErr.Status >= http.StatusInternalServerError {
		message = unexpectedMessage
	}
	if err != nil {
		_ = c.Error(err)
	}
	JSON(c, appErr.Status, KeyError, message)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
