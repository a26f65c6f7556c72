// Package handlers implements contract.ServerInterface for the audit API.
//
// Route registration is handled by contract.RegisterHandlersWithOptions;
// handlers do NOT register their own routes.
//
// Import Path: agritrace.io/agritrace/internal/api/handlers
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agritrace.io/agritrace/internal/api/contract"
	"agritrace.io/agritrace/internal/api/middleware"
	"agritrace.io/agritrace/internal/audit"
	apperrors "agritrace.io/agritrace/internal/pkg/errors"
)

// Compile-time check: Server must implement contract.ServerInterface.
var _ contract.ServerInterface = (*Server)(nil)

// ReadinessCheck is one dependency probed by GET /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server implements all API handlers.
type Server struct {
	audit  *audit.Service
	checks []ReadinessCheck
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	Audit           *audit.Service
	ReadinessChecks []ReadinessCheck
	JWTCfg          middleware.JWTConfig
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		audit:  deps.Audit,
		checks: deps.ReadinessChecks,
	}
}

// ParamErrorHandler renders path binding failures as audit API errors.
func ParamErrorHandler(c *gin.Context, err error, status int) {
	var paramErr *contract.ParamError
	if errors.As(err, &paramErr) {
		switch paramErr.Name {
		case "entidadId":
			middleware.AbortWithError(c, apperrors.ErrAuditEntityIDInvalidf(paramErr.Value, paramErr.Err))
			return
		case "tipoEntidad":
			middleware.AbortWithError(c, apperrors.ErrAuditEntityTypeInvalidf(paramErr.Value))
			return
		}
	}
	if status == 0 {
		status = http.StatusBadRequest
	}
	middleware.AbortWithError(c, apperrors.Wrap(err, "INVALID_REQUEST", err.Error(), status))
}
