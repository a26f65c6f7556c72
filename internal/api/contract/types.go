package contract

import "time"

// HealthStatus is the coarse health of the process.
type HealthStatus string

const (
	HealthStatusOk       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is the body of the health probes.
type Health struct {
	Status HealthStatus      `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ChainValidation is the body of GET /api/auditoria/blockchain/validar.
type ChainValidation struct {
	IntegridadValida bool `json:"integridadValida"`
}

// AuditEvent is one audit event as exposed over HTTP.
type AuditEvent struct {
	ID                   int64     `json:"id"`
	EmpresaID            *int64    `json:"empresaId"`
	TipoEntidad          string    `json:"tipoEntidad"`
	EntidadID            *int64    `json:"entidadId"`
	CodigoEntidad        string    `json:"codigoEntidad"`
	TipoOperacion        string    `json:"tipoOperacion"`
	Descripcion          string    `json:"descripcion"`
	EstadoAnterior       *string   `json:"estadoAnterior"`
	EstadoNuevo          *string   `json:"estadoNuevo"`
	CamposModificados    []string  `json:"camposModificados"`
	UsuarioID            int64     `json:"usuarioId"`
	HashEvento           string    `json:"hashEvento"`
	HashAnterior         *string   `json:"hashAnterior"`
	EnCadena             bool      `json:"enCadena"`
	IntegridadVerificada bool      `json:"integridadVerificada"`
	FechaEvento          time.Time `json:"fechaEvento"`
}
