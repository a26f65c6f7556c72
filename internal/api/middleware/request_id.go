package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID contextKey = "request_id"
	ctxKeyPrincipal contextKey = "principal"
)

// Gin context keys set by JWTAuth.
const (
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyTenantID    = "empresa_id"
	KeyRoles       = "roles"
	KeyPermissions = "permissions"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      int64
	Username    string
	TenantID    *int64
	Roles       []string
	Permissions []string
}

// SetPrincipal stores the authenticated caller in ctx.
func SetPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// GetPrincipal extracts the authenticated caller from ctx.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// GetUserID extracts the user ID from context, or 0.
func GetUserID(ctx context.Context) int64 {
	p, _ := GetPrincipal(ctx)
	return p.UserID
}

// GetTenantID extracts the caller's tenant from context.
func GetTenantID(ctx context.Context) *int64 {
	p, _ := GetPrincipal(ctx)
	return p.TenantID
}
