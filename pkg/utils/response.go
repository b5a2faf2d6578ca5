package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Códigos de error estables para los clientes; el mensaje es solo informativo.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInternal       = "internal"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendSuccess envía {"data": ...}.
func SendSuccess(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{"data": data})
}

// SendAccepted responde 202: la escritura está confirmada, la proyección llegará después.
func SendAccepted(c *gin.Context, data any) {
	SendSuccess(c, http.StatusAccepted, data)
}

func SendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{"error": ErrorResponse{Code: code, Message: message}})
}

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, CodeInvalidRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, CodeNotFound, message)
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, CodeConflict, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, CodeInternal, message)
}
