package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "agritrace.io/agritrace/internal/pkg/errors"
)

// Permissions checked by the audit API.
const (
	PermPlatformAdmin = "platform:admin"
	PermAuditRead     = "audit:read"
)

// HasPermission reports whether the caller holds permission, either directly
// or through platform:admin.
func HasPermission(c *gin.Context, permission string) bool {
	perms, ok := c.Get(KeyPermissions)
	if !ok {
		return false
	}
	permList, ok := perms.([]string)
	if !ok {
		return false
	}
	return slices.Contains(permList, PermPlatformAdmin) || slices.Contains(permList, permission)
}

// IsPlatformAdmin reports whether the caller holds platform:admin.
func IsPlatformAdmin(c *gin.Context) bool {
	return HasPermission(c, PermPlatformAdmin)
}

// RequirePermission returns middleware that checks if the authenticated user
// has a specific global permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(KeyPermissions); !exists {
			AbortWithError(c, apperrors.Forbidden(apperrors.CodeForbidden, "no permissions in context"))
			return
		}
		if !HasPermission(c, permission) {
			AbortWithError(c, apperrors.Forbidden(apperrors.CodeForbidden, "insufficient permissions").
				WithParams(map[string]interface{}{"permission": permission}))
			return
		}
		c.Next()
	}
}
