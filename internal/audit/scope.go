package audit

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeMode selects how events are grouped into chains.
type ScopeMode string

const (
	// ScopePerTenant keeps one chain per tenant, plus SystemScope for events
	// without a tenant.
	ScopePerTenant ScopeMode = "tenant"
	// ScopeSingle keeps every event on GlobalScope.
	ScopeSingle ScopeMode = "global"
)

const (
	GlobalScope = "global"
	SystemScope = "system"

	tenantScopePrefix = "tenant:"
)

// ParseScopeMode parses a configured scope mode.
func ParseScopeMode(s string) (ScopeMode, error) {
	switch ScopeMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScopePerTenant, "":
		return ScopePerTenant, nil
	case ScopeSingle:
		return ScopeSingle, nil
	}
	return "", fmt.Errorf("unknown chain scope mode %q", s)
}

// TenantScope returns the chain key of one tenant.
func TenantScope(tenantID int64) string {
	return tenantScopePrefix + strconv.FormatInt(tenantID, 10)
}

// ScopeFor returns the chain an event for tenant belongs to.
func (m ScopeMode) ScopeFor(tenant *int64) string {
	if m == ScopeSingle {
		return GlobalScope
	}
	if tenant == nil {
		return SystemScope
	}
	return TenantScope(*tenant)
}

// ChainView resolves which chain a caller sees and, when the chain is shared
// with other tenants, the tenant filter to apply to dumps.
func (m ScopeMode) ChainView(tenant *int64) (scope string, filter *int64) {
	if m == ScopeSingle {
		return GlobalScope, tenant
	}
	return m.ScopeFor(tenant), nil
}
