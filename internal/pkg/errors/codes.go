package errors

// Error codes carry code + params only; clients own presentation.
// Backend logs are always in English.

// Audit query error codes.
const (
	CodeAuditQueryFailed   = "AUDIT_QUERY_FAILED"
	CodeAuditEntityTypeBad = "AUDIT_ENTITY_TYPE_INVALID"
	CodeAuditEntityIDBad   = "AUDIT_ENTITY_ID_INVALID"
)

// Tenant error codes.
const (
	CodeTenantRequired = "TENANT_REQUIRED"
)

// Auth error codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Generic codes.
const (
	CodeInternal = "INTERNAL_ERROR"
)
