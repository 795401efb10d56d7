package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/service"
)

// ContextUserIDKey holds the caller's primitive.ObjectID once authenticated.
const ContextUserIDKey = "userID"

// TokenParser resolves a bearer token to a caller id.
type TokenParser interface {
	ParseToken(tokenString string) (primitive.ObjectID, error)
}

// AuthMiddleware creates a Gin middleware for JWT authentication. Every
// request resolves the caller again from its own token.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		userID, err := tokens.ParseToken(tokenString)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// Helper to return a failed result envelope and abort the request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, service.Result[any]{Success: false, Error: message})
}

// callerID returns the authenticated caller, or the zero id. Services treat
// the zero id as unauthenticated.
func callerID(c *gin.Context) primitive.ObjectID {
	raw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return primitive.NilObjectID
	}
	id, _ := raw.(primitive.ObjectID)
	return id
}

// pathID parses an id path parameter. A malformed id is reported exactly like
// a record that does not exist.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respond(c, http.StatusOK, service.Result[any]{
			Error: service.ErrNotFoundOrUnauthorized.Error(),
			Kind:  service.KindNotFoundOrUnauthorized,
		})
		return primitive.NilObjectID, false
	}
	return id, true
}
