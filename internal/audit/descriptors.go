package audit

import (
	"fmt"
	"strconv"
	"strings"

	"agritrace.io/agritrace/internal/domain"
)

// UnknownCode is the entity code used when neither a natural key nor an id
// could be read.
const UnknownCode = "UNKNOWN"

type descriptor struct {
	category   string
	noun       string
	naturalKey func(domain.Entity) string
}

var descriptors = map[string]descriptor{
	domain.KindFinca: {"FINCA", "finca", func(e domain.Entity) string {
		return e.(*domain.Finca).Nombre
	}},
	domain.KindLote: {"LOTE", "lote", func(e domain.Entity) string {
		return e.(*domain.Lote).Codigo
	}},
	domain.KindCosecha: {"COSECHA", "cosecha", func(e domain.Entity) string {
		return e.(*domain.Cosecha).Codigo
	}},
	domain.KindRecepcion: {"RECEPCION", "recepción", func(e domain.Entity) string {
		return e.(*domain.Recepcion).NumeroGuia
	}},
	domain.KindClasificacion: {"CLASIFICACION", "clasificación", func(e domain.Entity) string {
		return e.(*domain.Clasificacion).Codigo
	}},
	domain.KindPallet: {"PALLET", "pallet", func(e domain.Entity) string {
		return e.(*domain.Pallet).CodigoPallet
	}},
	domain.KindEtiqueta: {"ETIQUETA", "etiqueta", func(e domain.Entity) string {
		return e.(*domain.Etiqueta).CodigoEtiqueta
	}},
	domain.KindEnvio: {"ENVIO", "envío", func(e domain.Entity) string {
		return e.(*domain.Envio).CodigoEnvio
	}},
	domain.KindCertificacion: {"CERTIFICACION", "certificación", func(e domain.Entity) string {
		return e.(*domain.Certificacion).NumeroCertificado
	}},
	domain.KindEmpresa: {"EMPRESA", "empresa", func(e domain.Entity) string {
		return e.(*domain.Empresa).RazonSocial
	}},
}

var excludedKinds = map[string]struct{}{
	domain.KindAuditEvent:         {},
	domain.KindUsuario:            {},
	domain.KindRefreshToken:       {},
	domain.KindPasswordResetToken: {},
	domain.KindSession:            {},
}

// Excluded reports whether changes to kind are never audited.
func Excluded(kind string) bool {
	_, ok := excludedKinds[kind]
	return ok
}

// Category maps an entity kind to its audit entity type. Unmapped kinds fall
// back to the uppercased kind.
func Category(kind string) string {
	if d, ok := descriptors[kind]; ok {
		return d.category
	}
	return strings.ToUpper(kind)
}

// KnownCategory reports whether category belongs to a mapped kind.
func KnownCategory(category string) bool {
	for _, d := range descriptors {
		if d.category == category {
			return true
		}
	}
	return false
}

func noun(kind string) string {
	if d, ok := descriptors[kind]; ok {
		return d.noun
	}
	return strings.ToLower(kind)
}

// Describe renders the human-readable summary of a change.
func Describe(op OperationType, kind, code string) string {
	var verb string
	switch op {
	case OpCreate:
		verb = "Creación"
	case OpUpdate:
		verb = "Actualización"
	case OpDelete:
		verb = "Eliminación"
	default:
		verb = string(op)
	}
	return fmt.Sprintf("%s de %s: %s", verb, noun(kind), code)
}

// EntityCode picks the natural key, falling back to "ID-<id>" and then
// UnknownCode.
func EntityCode(naturalKey string, id *int64) string {
	if naturalKey != "" {
		return naturalKey
	}
	if id != nil {
		return "ID-" + strconv.FormatInt(*id, 10)
	}
	return UnknownCode
}
