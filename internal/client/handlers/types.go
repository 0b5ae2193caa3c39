package handlers

import "github.com/gin-gonic/gin"

// Control plane error codes.
const (
	CodeBadRequest   = "E_BAD_REQUEST"
	CodeSyncBusy     = "E_SYNC_BUSY"
	CodeInternal     = "E_INTERNAL"
	CodeNotFound     = "E_NOT_FOUND"
	CodeNotAllowed   = "E_METHOD_NOT_ALLOWED"
	CodeUnauthorized = "E_UNAUTHORIZED"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AbortWithError ends the request with a JSON error body.
func AbortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}
