package modules

import (
	"context"

	"agritrace.io/agritrace/internal/api/handlers"
	"agritrace.io/agritrace/internal/api/middleware"
	"agritrace.io/agritrace/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		JWTCfg: middleware.JWTConfig{
			SigningKey: []byte(cfg.Security.JWTSigningKey),
			Issuer:     cfg.Security.JWTIssuer,
		},
	}
	if infra.DB != nil && infra.DB.Pool != nil {
		pool := infra.DB.Pool
		deps.ReadinessChecks = append(deps.ReadinessChecks, handlers.ReadinessCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return pool.Ping(ctx) },
		})
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
