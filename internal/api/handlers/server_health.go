package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agritrace.io/agritrace/internal/api/contract"
)

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, contract.Health{
		Status: contract.HealthStatusOk,
	})
}

// GetReadiness handles GET /health/ready.
func (s *Server) GetReadiness(c *gin.Context) {
	checks := make(map[string]string, len(s.checks))
	allHealthy := true

	for _, check := range s.checks {
		if err := check.Check(c.Request.Context()); err != nil {
			checks[check.Name] = "error"
			allHealthy = false
			continue
		}
		checks[check.Name] = "ok"
	}

	status := contract.HealthStatusOk
	httpStatus := http.StatusOK
	if !allHealthy {
		status = contract.HealthStatusDegraded
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, contract.Health{
		Status: status,
		Checks: checks,
	})
}
