package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liftlog/workout-app/internal/service"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthenticated, service.KindAuthenticationFailed:
		return http.StatusUnauthorized
	case service.KindNotFoundOrUnauthorized:
		return http.StatusNotFound
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindHasDependentSets, service.KindConflict:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the envelope. successStatus is used when the result succeeded.
func respond[T any](c *gin.Context, successStatus int, result service.Result[T]) {
	if result.Success {
		c.JSON(successStatus, result)
		return
	}
	c.AbortWithStatusJSON(statusFor(result.Kind), result)
}

// bindError answers a body that could not be decoded.
func bindError(c *gin.Context) {
	respond(c, http.StatusOK, service.Result[any]{
		Error: "invalid request body",
		Kind:  service.KindInvalidInput,
	})
}
