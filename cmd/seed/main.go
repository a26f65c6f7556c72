// Package main seeds a demo traceability flow through the audited write path
// and prints development tokens for the audit API.
//
// Entities live in process memory only; what persists is the audit trail in
// the configured store, which is what the API and auditctl read.
//
// Import Path: agritrace.io/agritrace/cmd/seed
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/api/middleware"
	"agritrace.io/agritrace/internal/app"
	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/pkg/logger"
)

const devTokenTTL = 12 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Audit.Store == config.StoreMemory {
		logger.Warn("Audit store is memory: seeded events are lost when this command exits")
	}

	ctx := context.Background()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("Starting demo data seeding...")

	w := newWriters(application.Lifecycle)
	for _, c := range demoCompanies() {
		if err := seedCompany(ctx, w, c); err != nil {
			application.Shutdown()
			return fmt.Errorf("seed %s: %w", c.RazonSocial, err)
		}
		logger.Info("Seeded demo company", zap.String("ruc", c.RUC))
	}

	// Drains the audit queue into the store before exiting.
	application.Shutdown()
	logger.Info("Data seeding completed successfully")

	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.JWTSigningKey),
		Issuer:     cfg.Security.JWTIssuer,
		ExpiresIn:  devTokenTTL,
	}
	return printDevTokens(os.Stdout, jwtCfg, builtInRoles())
}

type demoCompany struct {
	RazonSocial string
	RUC         string
	// Operator is the user the company's writes are attributed to.
	Operator audit.Actor
}

func demoCompanies() []demoCompany {
	return []demoCompany{
		{RazonSocial: "Agroexportadora Valle Verde S.A.C.", RUC: "20512345671", Operator: audit.Actor{ID: 101, Username: "operador.vallev"}},
		{RazonSocial: "Frutos del Sur E.I.R.L.", RUC: "20598765432", Operator: audit.Actor{ID: 201, Username: "operador.frutos"}},
	}
}

// devRole is a development principal the seeder issues a token for.
type devRole struct {
	UserID      int64
	Username    string
	EmpresaID   *int64
	Roles       []string
	Permissions []string
}

func builtInRoles() []devRole {
	empresa := func(id int64) *int64 { return &id }
	return []devRole{
		{
			UserID: 1, Username: "admin",
			Roles:       []string{"PlatformAdmin"},
			Permissions: []string{middleware.PermPlatformAdmin, middleware.PermAuditRead},
		},
		{
			UserID: 100, Username: "auditor.vallev", EmpresaID: empresa(1),
			Roles:       []string{"Auditor"},
			Permissions: []string{middleware.PermAuditRead},
		},
		{
			UserID: 200, Username: "auditor.frutos", EmpresaID: empresa(2),
			Roles:       []string{"Auditor"},
			Permissions: []string{middleware.PermAuditRead},
		},
	}
}

func printDevTokens(out io.Writer, cfg middleware.JWTConfig, roles []devRole) error {
	fmt.Fprintln(out, "# Development tokens (do not use in production)")
	for _, r := range roles {
		token, expiresAt, err := middleware.GenerateToken(cfg, r.UserID, r.Username, r.EmpresaID, r.Roles, r.Permissions)
		if err != nil {
			return fmt.Errorf("token for %s: %w", r.Username, err)
		}
		tenant := "-"
		if r.EmpresaID != nil {
			tenant = fmt.Sprintf("%d", *r.EmpresaID)
		}
		fmt.Fprintf(out, "%s\tempresa=%s\texpires=%s\n%s\n",
			r.Username, tenant, expiresAt.UTC().Format(time.RFC3339), token)
	}
	return nil
}

// seedCompany writes one company's flow: farm, certificate, lot, harvest,
// intake, grading, pallet, label and shipment. The lot is then re-measured
// and the misprinted label deleted so the trail holds every operation type.
func seedCompany(ctx context.Context, w *writers, c demoCompany) error {
	empresa := &domain.Empresa{RazonSocial: c.RazonSocial, RUC: c.RUC, Activa: true}
	if err := w.empresas.Create(audit.WithActor(ctx, c.Operator), empresa); err != nil {
		return err
	}

	tenant := empresa.ID
	actor := c.Operator
	actor.TenantID = &tenant
	ctx = audit.WithActor(ctx, actor)
	now := time.Now().UTC()

	finca := &domain.Finca{EmpresaID: tenant, Nombre: "Fundo San José", Ubicacion: "Ica", Hectareas: 120}
	if err := w.fincas.Create(ctx, finca); err != nil {
		return err
	}
	cert := &domain.Certificacion{
		EmpresaID: tenant, FincaID: finca.ID, Tipo: "GLOBALG.A.P.",
		NumeroCertificado: fmt.Sprintf("GGN-%s-001", c.RUC[len(c.RUC)-4:]),
		VigenteHasta:      now.AddDate(1, 0, 0),
	}
	if err := w.certificaciones.Create(ctx, cert); err != nil {
		return err
	}

	lote := &domain.Lote{EmpresaID: tenant, FincaID: finca.ID, Codigo: "LT-001", Nombre: "Lote Norte", Variedad: "Red Globe", Hectareas: 12.5}
	if err := w.lotes.Create(ctx, lote); err != nil {
		return err
	}
	lote.Hectareas = 12.8
	if err := w.lotes.Update(ctx, lote); err != nil {
		return err
	}

	cosecha := &domain.Cosecha{EmpresaID: tenant, LoteID: lote.ID, Codigo: "CS-001", FechaCosecha: now, KilosCosechados: 18200}
	if err := w.cosechas.Create(ctx, cosecha); err != nil {
		return err
	}
	recepcion := &domain.Recepcion{EmpresaID: tenant, CosechaID: cosecha.ID, NumeroGuia: "GR-0001", FechaRecepcion: now, PesoNetoKg: 18050}
	if err := w.recepciones.Create(ctx, recepcion); err != nil {
		return err
	}
	clasif := &domain.Clasificacion{
		EmpresaID: tenant, RecepcionID: recepcion.ID, Codigo: "CL-001",
		Calibre: "XL", Categoria: "Extra", KilosAprobados: 17100, KilosRechazados: 950,
	}
	if err := w.clasificaciones.Create(ctx, clasif); err != nil {
		return err
	}

	pallet := &domain.Pallet{EmpresaID: tenant, CodigoPallet: "PL-0001", NumeroCajas: 120, PesoBrutoKg: 1080}
	if err := w.pallets.Create(ctx, pallet); err != nil {
		return err
	}
	misprint := &domain.Etiqueta{EmpresaID: tenant, PalletID: pallet.ID, CodigoEtiqueta: "ET-0000"}
	if err := w.etiquetas.Create(ctx, misprint); err != nil {
		return err
	}
	if err := w.etiquetas.Delete(ctx, misprint.ID); err != nil {
		return err
	}
	if err := w.etiquetas.Create(ctx, &domain.Etiqueta{EmpresaID: tenant, PalletID: pallet.ID, CodigoEtiqueta: "ET-0001"}); err != nil {
		return err
	}

	envio := &domain.Envio{EmpresaID: tenant, CodigoEnvio: "EX-0001", Destino: "Rotterdam", Contenedor: "MSCU1234567", FechaSalida: now.Add(48 * time.Hour)}
	return w.envios.Create(ctx, envio)
}
