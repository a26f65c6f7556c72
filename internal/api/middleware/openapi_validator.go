package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/api/contract"
	apperrors "agritrace.io/agritrace/internal/pkg/errors"
	"agritrace.io/agritrace/internal/pkg/logger"
)

const openAPIResponseValidationMessage = "response does not conform to OpenAPI contract"

// ValidatorOptions tunes NewOpenAPIValidator.
type ValidatorOptions struct {
	// ValidateResponses buffers each response and checks it against the
	// contract before it is sent.
	ValidateResponses bool
}

// MustOpenAPIValidator creates an OpenAPI runtime validator middleware and panics on setup failure.
func MustOpenAPIValidator(basePath string, opts ValidatorOptions) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath, opts)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator validates requests, and optionally responses, against
// the embedded audit API contract.
func NewOpenAPIValidator(basePath string, opts ValidatorOptions) (gin.HandlerFunc, error) {
	swagger, err := contract.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("load audit api contract: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("create swagger router: %w", err)
	}

	basePath = normalizeBasePath(basePath)

	return func(c *gin.Context) {
		route, pathParams, routeErr := findRoute(router, c.Request, basePath)
		if errors.Is(routeErr, routers.ErrPathNotFound) {
			// Routes outside the contract (metrics, admin) are not validated.
			c.Next()
			return
		}
		if routeErr != nil {
			abortWithOpenAPIError(c, http.StatusBadRequest, "OPENAPI_ROUTE_INVALID", routeErr.Error())
			return
		}

		reqInput := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    &openapi3filter.Options{AuthenticationFunc: skipAuthentication},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), reqInput); err != nil {
			abortWithOpenAPIError(c, http.StatusBadRequest, "OPENAPI_REQUEST_INVALID", err.Error())
			return
		}

		if !opts.ValidateResponses {
			c.Next()
			return
		}

		rec := newResponseRecorder(c.Writer)
		c.Writer = rec
		c.Next()
		c.Writer = rec.ResponseWriter

		// Nothing written yet: ErrorHandler renders c.Errors on the way out.
		if len(c.Errors) > 0 && !rec.Written() {
			return
		}

		respInput := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: reqInput,
			Status:                 rec.Status(),
			Header:                 rec.Header().Clone(),
			Options:                &openapi3filter.Options{AuthenticationFunc: skipAuthentication},
		}
		respInput.SetBodyBytes(rec.body.Bytes())

		if err := openapi3filter.ValidateResponse(c.Request.Context(), respInput); err != nil {
			logger.Error("OpenAPI response validation failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", rec.Status()),
				zap.Error(err),
			)
			rec.replace(http.StatusInternalServerError, errorBody(c, apperrors.New(
				"OPENAPI_RESPONSE_INVALID", openAPIResponseValidationMessage, http.StatusInternalServerError)))
		}

		if err := rec.flush(); err != nil {
			logger.Warn("Failed to flush validated response",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
	}, nil
}

// JWT and RBAC run earlier in the chain.
func skipAuthentication(context.Context, *openapi3filter.AuthenticationInput) error { return nil }

func normalizeBasePath(basePath string) string {
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	if basePath == "" {
		return ""
	}
	return "/" + basePath
}

// normalizeValidationPath strips basePath so the request matches the
// contract's server-relative paths.
func normalizeValidationPath(basePath, path string) string {
	switch {
	case basePath == "":
	case path == basePath:
		return "/"
	case strings.HasPrefix(path, basePath+"/"):
		return strings.TrimPrefix(path, basePath)
	}
	if path == "" {
		return "/"
	}
	return path
}

// findRoute matches req as is and, when basePath is set, with basePath
// stripped. The request URL is left untouched.
func findRoute(router routers.Router, req *http.Request, basePath string) (*routers.Route, map[string]string, error) {
	route, params, err := router.FindRoute(req)
	if !isPathNotFound(err) || basePath == "" {
		return route, params, normalizeRouteErr(err)
	}

	stripped := *req.URL
	stripped.Path = normalizeValidationPath(basePath, req.URL.Path)
	if req.URL.RawPath != "" {
		stripped.RawPath = normalizeValidationPath(basePath, req.URL.RawPath)
	}
	if stripped.Path == req.URL.Path && stripped.RawPath == req.URL.RawPath {
		return nil, nil, routers.ErrPathNotFound
	}
	alt := req.Clone(req.Context())
	alt.URL = &stripped
	route, params, err = router.FindRoute(alt)
	return route, params, normalizeRouteErr(err)
}

func isPathNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		return strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error())
	}
	return false
}

// normalizeRouteErr maps every "no such path" flavour onto ErrPathNotFound.
func normalizeRouteErr(err error) error {
	if isPathNotFound(err) {
		return routers.ErrPathNotFound
	}
	return err
}

func abortWithOpenAPIError(c *gin.Context, status int, code, message string) {
	AbortWithError(c, apperrors.New(code, message, status))
}

// responseRecorder holds the response back until it has been validated.
type responseRecorder struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func newResponseRecorder(w gin.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w}
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *responseRecorder) WriteHeaderNow() { r.WriteHeader(http.StatusOK) }

func (r *responseRecorder) Write(data []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(data)
}

func (r *responseRecorder) WriteString(s string) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.WriteString(s)
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Size() int { return r.body.Len() }

func (r *responseRecorder) Written() bool { return r.status != 0 }

func (r *responseRecorder) replace(status int, payload gin.H) {
	r.status = status
	r.body.Reset()
	r.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(&r.body).Encode(payload); err != nil {
		r.body.WriteString(`{"code":"OPENAPI_RESPONSE_INVALID","message":"` + openAPIResponseValidationMessage + `"}`)
	}
}

func (r *responseRecorder) flush() error {
	r.ResponseWriter.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.ResponseWriter.Write(r.body.Bytes())
	return err
}
