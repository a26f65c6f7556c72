// Package domain holds the traceability value types that the audit chain
// observes, plus the lifecycle hooks persistence code fires around writes.
//
// The domain types here are deliberately thin: their CRUD, validation and
// storage live in the business services. What matters to the audit core is the
// Entity capability (kind + identity) and, for scoping, OwnerTenant.
//
// Import Path: agritrace.io/agritrace/internal/domain
package domain

// Entity kinds. The kind is the stable logical name persistence code reports,
// independent of the Go type name.
const (
	KindEmpresa       = "Empresa"
	KindFinca         = "Finca"
	KindLote          = "Lote"
	KindCosecha       = "Cosecha"
	KindRecepcion     = "Recepcion"
	KindClasificacion = "Clasificacion"
	KindPallet        = "Pallet"
	KindEtiqueta      = "Etiqueta"
	KindEnvio         = "Envio"
	KindCertificacion = "Certificacion"

	// Never audited.
	KindAuditEvent         = "AuditEvent"
	KindUsuario            = "Usuario"
	KindRefreshToken       = "RefreshToken"
	KindPasswordResetToken = "PasswordResetToken"
	KindSession            = "Session"
)

// Entity is a persisted domain record observable by lifecycle listeners.
type Entity interface {
	// EntityKind returns the logical kind, e.g. KindLote.
	EntityKind() string
	// AuditID returns the numeric identity and whether it has been assigned.
	AuditID() (int64, bool)
}

// TenantOwned is implemented by entities that belong to one company.
type TenantOwned interface {
	OwnerTenant() *int64
}

func tenantRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
