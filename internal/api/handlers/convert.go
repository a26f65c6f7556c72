package handlers

import (
	"agritrace.io/agritrace/internal/api/contract"
	"agritrace.io/agritrace/internal/audit"
)

// toAuditEvent maps a stored event to its wire shape. integridadVerificada
// is recomputed on every read.
func toAuditEvent(e *audit.Event) contract.AuditEvent {
	return contract.AuditEvent{
		ID:                   e.ID,
		EmpresaID:            e.TenantID,
		TipoEntidad:          e.EntityType,
		EntidadID:            e.EntityID,
		CodigoEntidad:        e.EntityCode,
		TipoOperacion:        string(e.OperationType),
		Descripcion:          e.Description,
		EstadoAnterior:       e.BeforeState,
		EstadoNuevo:          e.AfterState,
		CamposModificados:    e.ChangedFields,
		UsuarioID:            e.ActorID,
		HashEvento:           e.SelfHash,
		HashAnterior:         e.PreviousHash,
		EnCadena:             e.Chained,
		IntegridadVerificada: audit.EventIntegrity(e),
		FechaEvento:          e.OccurredAt,
	}
}

func toAuditEvents(events []audit.Event) []contract.AuditEvent {
	out := make([]contract.AuditEvent, 0, len(events))
	for i := range events {
		out = append(out, toAuditEvent(&events[i]))
	}
	return out
}
