package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/models"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
	"github.com/noah-isme/church-class-api/pkg/response"
)

// selfRule grants access when the named path parameter equals the caller's id.
const selfRule = "SELF:"

// RBAC enforces role-based access control for routes. An entry of the form
// "SELF:<param>" also admits callers whose user id matches that path parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{})
	var selfParams []string
	for _, a := range allowed {
		if len(a) > len(selfRule) && a[:len(selfRule)] == selfRule {
			selfParams = append(selfParams, a[len(selfRule):])
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		for _, param := range selfParams {
			if targetID := c.Param(param); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// Self builds the RBAC entry admitting the caller named by a path parameter.
func Self(param string) string {
	return selfRule + param
}
