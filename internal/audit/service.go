package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/pkg/logger"
)

// Service answers read and verification queries. It never writes.
type Service struct {
	store  Store
	scopes ScopeMode
}

// NewService creates a Service over store.
func NewService(store Store, scopes ScopeMode) *Service {
	return &Service{store: store, scopes: scopes}
}

// ScopeMode returns the configured scope mode.
func (s *Service) ScopeMode() ScopeMode { return s.scopes }

// ListByEntity returns the events of one entity, newest first.
func (s *Service) ListByEntity(ctx context.Context, tenant *int64, entityType string, entityID int64) ([]Event, error) {
	return s.store.ListByEntity(ctx, tenant, entityType, entityID)
}

// ListByTenant returns the events of tenant, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenant *int64) ([]Event, error) {
	return s.store.ListByTenant(ctx, tenant)
}

// ListChain returns scope in chain order. A non-nil tenantFilter keeps only
// that tenant's events, which is how tenants see a shared global chain.
func (s *Service) ListChain(ctx context.Context, scope string, tenantFilter *int64) ([]Event, error) {
	events, err := s.store.ListChain(ctx, scope)
	if err != nil {
		return nil, err
	}
	if tenantFilter == nil {
		return events, nil
	}
	kept := events[:0]
	for _, e := range events {
		if e.TenantID != nil && *e.TenantID == *tenantFilter {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// ListAllChains returns every scope's chain, scope by scope.
func (s *Service) ListAllChains(ctx context.Context) ([]Event, error) {
	scopes, err := s.store.Scopes(ctx)
	if err != nil {
		return nil, err
	}
	var all []Event
	for _, scope := range scopes {
		events, err := s.store.ListChain(ctx, scope)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// VerifyChain walks scope and reports the first broken link, if any.
func (s *Service) VerifyChain(ctx context.Context, scope string) (VerifyResult, error) {
	chain, err := s.store.ChainSnapshot(ctx, scope)
	if err != nil {
		ChainVerifications.WithLabelValues("error").Inc()
		return VerifyResult{Scope: scope}, fmt.Errorf("read chain %s: %w", scope, err)
	}

	res := VerifySnapshot(chain)
	if res.Valid {
		ChainVerifications.WithLabelValues("valid").Inc()
	} else {
		ChainVerifications.WithLabelValues("broken").Inc()
		logger.Warn("Audit chain integrity violation",
			zap.String("scope", scope),
			zap.Int64("broken_at", res.BrokenAt),
			zap.String("reason", res.Reason),
			zap.Int("verified_events", res.Events),
		)
	}
	return res, nil
}

// VerifyChainIntegrity reports whether scope is intact. Read failures count
// as broken.
func (s *Service) VerifyChainIntegrity(ctx context.Context, scope string) bool {
	res, err := s.VerifyChain(ctx, scope)
	if err != nil {
		logger.Error("Audit chain verification failed", zap.String("scope", scope), zap.Error(err))
		return false
	}
	return res.Valid
}

// VerifyAll verifies every known scope.
func (s *Service) VerifyAll(ctx context.Context) ([]VerifyResult, error) {
	scopes, err := s.store.Scopes(ctx)
	if err != nil {
		ChainVerifications.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list chain scopes: %w", err)
	}
	results := make([]VerifyResult, 0, len(scopes))
	for _, scope := range scopes {
		res, err := s.VerifyChain(ctx, scope)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// AllValid reports whether every result is valid.
func AllValid(results []VerifyResult) bool {
	for _, r := range results {
		if !r.Valid {
			return false
		}
	}
	return true
}
