package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	pkgjwt "github.com/weiawesome/wes-io-live/pkg/jwt"
	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	UsernameKey   = "username"
	RolesKey      = "roles"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator resolves an access token to its claims.
type TokenValidator interface {
	ValidateToken(token string) (*pkgjwt.Claims, error)
}

// Actor is the minimal authenticated profile handlers work with.
type Actor struct {
	ID       string
	Username string
}

// AuthMiddleware validates bearer tokens and stores the actor in the Gin context.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth returns a Gin middleware that rejects requests without a valid token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.AbortUnauthorized(c, "missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.AbortUnauthorized(c, "invalid authorization format")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("token rejected")
			response.AbortUnauthorized(c, err.Error())
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(UsernameKey, claims.Username)
		c.Set(RolesKey, claims.Roles)

		// Downstream loggers carry the actor too.
		l := log.Ctx(c.Request.Context()).With().Str(log.FieldUserID, claims.UserID).Logger()
		c.Request = c.Request.WithContext(log.WithLogger(c.Request.Context(), l))

		c.Next()
	}
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// GetActor returns the authenticated actor, or false when the request is anonymous.
func GetActor(c *gin.Context) (Actor, bool) {
	id := GetUserID(c)
	if id == "" {
		return Actor{}, false
	}
	return Actor{ID: id, Username: GetUsername(c)}, true
}
