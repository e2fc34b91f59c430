package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/model"
	"marketplace/internal/service/auth"
	"marketplace/pkg/utils"
)

// userKey context key the authenticated user is stored under.
const userKey = "current_user"

// Auth bearer-token authentication middleware. Resolves the token to a
// live user row so role or deactivation changes take effect at once.
func Auth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.Error(c, utils.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			utils.Error(c, utils.CodeUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}

		user, err := authSvc.CurrentUser(c.Request.Context(), token)
		if err != nil {
			utils.Fail(c, err)
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRoles allows only the listed roles past.
func RequireRoles(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			utils.Error(c, utils.CodeUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		utils.Error(c, utils.CodeForbidden, "not enough permissions")
		c.Abort()
	}
}

// CurrentUser fetches the authenticated user from the context.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}
