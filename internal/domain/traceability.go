package domain

import "time"

// Empresa is a tenant: one exporting company.
type Empresa struct {
	ID          int64  `json:"id"`
	RazonSocial string `json:"razonSocial"`
	RUC         string `json:"ruc"`
	Activa      bool   `json:"activa"`
}

func (e *Empresa) EntityKind() string     { return KindEmpresa }
func (e *Empresa) AuditID() (int64, bool) { return e.ID, e.ID != 0 }
func (e *Empresa) OwnerTenant() *int64    { return tenantRef(e.ID) }

// Finca is a farm owned by a company.
type Finca struct {
	ID        int64   `json:"id"`
	EmpresaID int64   `json:"empresaId"`
	Nombre    string  `json:"nombre"`
	Ubicacion string  `json:"ubicacion,omitempty"`
	Hectareas float64 `json:"hectareas"`
}

func (f *Finca) EntityKind() string     { return KindFinca }
func (f *Finca) AuditID() (int64, bool) { return f.ID, f.ID != 0 }
func (f *Finca) OwnerTenant() *int64    { return tenantRef(f.EmpresaID) }

// Lote is a plot inside a farm, identified by its lot code.
type Lote struct {
	ID        int64   `json:"id"`
	EmpresaID int64   `json:"empresaId"`
	FincaID   int64   `json:"fincaId"`
	Codigo    string  `json:"codigo"`
	Nombre    string  `json:"nombre"`
	Variedad  string  `json:"variedad,omitempty"`
	Hectareas float64 `json:"hectareas"`
}

func (l *Lote) EntityKind() string     { return KindLote }
func (l *Lote) AuditID() (int64, bool) { return l.ID, l.ID != 0 }
func (l *Lote) OwnerTenant() *int64    { return tenantRef(l.EmpresaID) }

// Cosecha is a harvest taken from a lot.
type Cosecha struct {
	ID              int64     `json:"id"`
	EmpresaID       int64     `json:"empresaId"`
	LoteID          int64     `json:"loteId"`
	Codigo          string    `json:"codigo"`
	FechaCosecha    time.Time `json:"fechaCosecha"`
	KilosCosechados float64   `json:"kilosCosechados"`
}

func (c *Cosecha) EntityKind() string     { return KindCosecha }
func (c *Cosecha) AuditID() (int64, bool) { return c.ID, c.ID != 0 }
func (c *Cosecha) OwnerTenant() *int64    { return tenantRef(c.EmpresaID) }

// Recepcion is the plant intake of a harvest, keyed by its dispatch guide.
type Recepcion struct {
	ID             int64     `json:"id"`
	EmpresaID      int64     `json:"empresaId"`
	CosechaID      int64     `json:"cosechaId"`
	NumeroGuia     string    `json:"numeroGuia"`
	FechaRecepcion time.Time `json:"fechaRecepcion"`
	PesoNetoKg     float64   `json:"pesoNetoKg"`
}

func (r *Recepcion) EntityKind() string     { return KindRecepcion }
func (r *Recepcion) AuditID() (int64, bool) { return r.ID, r.ID != 0 }
func (r *Recepcion) OwnerTenant() *int64    { return tenantRef(r.EmpresaID) }

// Clasificacion grades received fruit by caliber and category.
type Clasificacion struct {
	ID              int64   `json:"id"`
	EmpresaID       int64   `json:"empresaId"`
	RecepcionID     int64   `json:"recepcionId"`
	Codigo          string  `json:"codigo"`
	Calibre         string  `json:"calibre"`
	Categoria       string  `json:"categoria"`
	KilosAprobados  float64 `json:"kilosAprobados"`
	KilosRechazados float64 `json:"kilosRechazados"`
}

func (c *Clasificacion) EntityKind() string     { return KindClasificacion }
func (c *Clasificacion) AuditID() (int64, bool) { return c.ID, c.ID != 0 }
func (c *Clasificacion) OwnerTenant() *int64    { return tenantRef(c.EmpresaID) }

// Pallet is a packed unit of boxes.
type Pallet struct {
	ID           int64   `json:"id"`
	EmpresaID    int64   `json:"empresaId"`
	CodigoPallet string  `json:"codigoPallet"`
	NumeroCajas  int     `json:"numeroCajas"`
	PesoBrutoKg  float64 `json:"pesoBrutoKg"`
}

func (p *Pallet) EntityKind() string     { return KindPallet }
func (p *Pallet) AuditID() (int64, bool) { return p.ID, p.ID != 0 }
func (p *Pallet) OwnerTenant() *int64    { return tenantRef(p.EmpresaID) }

// Etiqueta is a traceability label printed for a pallet.
type Etiqueta struct {
	ID             int64  `json:"id"`
	EmpresaID      int64  `json:"empresaId"`
	PalletID       int64  `json:"palletId"`
	CodigoEtiqueta string `json:"codigoEtiqueta"`
}

func (e *Etiqueta) EntityKind() string     { return KindEtiqueta }
func (e *Etiqueta) AuditID() (int64, bool) { return e.ID, e.ID != 0 }
func (e *Etiqueta) OwnerTenant() *int64    { return tenantRef(e.EmpresaID) }

// Envio is an export shipment.
type Envio struct {
	ID          int64     `json:"id"`
	EmpresaID   int64     `json:"empresaId"`
	CodigoEnvio string    `json:"codigoEnvio"`
	Destino     string    `json:"destino"`
	Contenedor  string    `json:"contenedor,omitempty"`
	FechaSalida time.Time `json:"fechaSalida"`
}

func (e *Envio) EntityKind() string     { return KindEnvio }
func (e *Envio) AuditID() (int64, bool) { return e.ID, e.ID != 0 }
func (e *Envio) OwnerTenant() *int64    { return tenantRef(e.EmpresaID) }

// Certificacion is a farm certificate (GlobalG.A.P., organic, ...).
type Certificacion struct {
	ID                int64     `json:"id"`
	EmpresaID         int64     `json:"empresaId"`
	FincaID           int64     `json:"fincaId"`
	NumeroCertificado string    `json:"numeroCertificado"`
	Tipo              string    `json:"tipo"`
	VigenteHasta      time.Time `json:"vigenteHasta"`
}

func (c *Certificacion) EntityKind() string     { return KindCertificacion }
func (c *Certificacion) AuditID() (int64, bool) { return c.ID, c.ID != 0 }
func (c *Certificacion) OwnerTenant() *int64    { return tenantRef(c.EmpresaID) }
