package contract

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is implemented by the HTTP handlers.
type ServerInterface interface {
	// GET /health/live
	GetLiveness(c *gin.Context)
	// GET /health/ready
	GetReadiness(c *gin.Context)
	// GET /api/auditoria
	ListAuditEvents(c *gin.Context)
	// GET /api/auditoria/entidad/{tipoEntidad}/{entidadId}
	ListEntityAuditEvents(c *gin.Context, tipoEntidad string, entidadId int64)
	// GET /api/auditoria/blockchain
	GetAuditChain(c *gin.Context)
	// GET /api/auditoria/blockchain/validar
	ValidateAuditChain(c *gin.Context)
}

// ParamError reports a path parameter that could not be bound.
type ParamError struct {
	Name  string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.Name, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// MiddlewareFunc runs before a wrapped handler.
type MiddlewareFunc func(c *gin.Context)

// GinServerOptions configures RegisterHandlersWithOptions.
type GinServerOptions struct {
	BaseURL      string
	Middlewares  []MiddlewareFunc
	ErrorHandler func(*gin.Context, error, int)
}

// ServerInterfaceWrapper binds parameters and dispatches to the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandler       func(*gin.Context, error, int)
}

func (siw *ServerInterfaceWrapper) runMiddlewares(c *gin.Context) bool {
	for _, middleware := range siw.HandlerMiddlewares {
		middleware(c)
		if c.IsAborted() {
			return false
		}
	}
	return true
}

// GetLiveness operation middleware
func (siw *ServerInterfaceWrapper) GetLiveness(c *gin.Context) {
	if siw.runMiddlewares(c) {
		siw.Handler.GetLiveness(c)
	}
}

// GetReadiness operation middleware
func (siw *ServerInterfaceWrapper) GetReadiness(c *gin.Context) {
	if siw.runMiddlewares(c) {
		siw.Handler.GetReadiness(c)
	}
}

// ListAuditEvents operation middleware
func (siw *ServerInterfaceWrapper) ListAuditEvents(c *gin.Context) {
	if siw.runMiddlewares(c) {
		siw.Handler.ListAuditEvents(c)
	}
}

// ListEntityAuditEvents operation middleware
func (siw *ServerInterfaceWrapper) ListEntityAuditEvents(c *gin.Context) {
	var tipoEntidad string
	raw := c.Param("tipoEntidad")
	err := runtime.BindStyledParameterWithOptions("simple", "tipoEntidad", raw, &tipoEntidad,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandler(c, &ParamError{Name: "tipoEntidad", Value: raw, Err: err}, http.StatusBadRequest)
		return
	}

	var entidadId int64
	raw = c.Param("entidadId")
	err = runtime.BindStyledParameterWithOptions("simple", "entidadId", raw, &entidadId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandler(c, &ParamError{Name: "entidadId", Value: raw, Err: err}, http.StatusBadRequest)
		return
	}

	if siw.runMiddlewares(c) {
		siw.Handler.ListEntityAuditEvents(c, tipoEntidad, entidadId)
	}
}

// GetAuditChain operation middleware
func (siw *ServerInterfaceWrapper) GetAuditChain(c *gin.Context) {
	if siw.runMiddlewares(c) {
		siw.Handler.GetAuditChain(c)
	}
}

// ValidateAuditChain operation middleware
func (siw *ServerInterfaceWrapper) ValidateAuditChain(c *gin.Context) {
	if siw.runMiddlewares(c) {
		siw.Handler.ValidateAuditChain(c)
	}
}

// RegisterHandlersWithOptions registers every operation on router.
func RegisterHandlersWithOptions(router gin.IRouter, si ServerInterface, options GinServerOptions) {
	errorHandler := options.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, gin.H{"msg": err.Error()})
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandler:       errorHandler,
	}

	router.GET(options.BaseURL+"/health/live", wrapper.GetLiveness)
	router.GET(options.BaseURL+"/health/ready", wrapper.GetReadiness)
	router.GET(options.BaseURL+"/api/auditoria", wrapper.ListAuditEvents)
	router.GET(options.BaseURL+"/api/auditoria/entidad/:tipoEntidad/:entidadId", wrapper.ListEntityAuditEvents)
	router.GET(options.BaseURL+"/api/auditoria/blockchain", wrapper.GetAuditChain)
	router.GET(options.BaseURL+"/api/auditoria/blockchain/validar", wrapper.ValidateAuditChain)
}
