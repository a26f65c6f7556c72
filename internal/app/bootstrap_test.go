package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/api/contract"
	"agritrace.io/agritrace/internal/api/middleware"
	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/pkg/logger"
	"agritrace.io/agritrace/internal/repository/memory"
	"agritrace.io/agritrace/internal/usecase"
)

func init() {
	_ = logger.Init("error", "json")
}

const testSigningKey = "test-signing-key-0123456789abcdef0123"

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: 5 * time.Second, ValidateResponses: true},
		Log:    config.LogConfig{Level: "error", Format: "json"},
		Security: config.SecurityConfig{
			JWTSigningKey: testSigningKey,
			JWTIssuer:     "agritrace",
		},
		Worker: config.WorkerConfig{GeneralPoolSize: 4, AuditPoolSize: 2},
		Audit: config.AuditConfig{
			Store:          config.StoreMemory,
			ChainScope:     "tenant",
			HashAlgorithm:  "sha256",
			Dispatcher:     config.DispatcherQueue,
			QueueSize:      16,
			QueueWorkers:   1,
			OverflowPolicy: "block",
			EnqueueTimeout: time.Second,
			AppendRetries:  3,
			AppendBackoff:  time.Millisecond,
		},
	}
}

func TestBootstrap_NoDB(t *testing.T) {
	// A postgres store without a reachable database fails at DB connection.
	cfg := memoryConfig()
	cfg.Audit.Store = config.StorePostgres
	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     65432, // Non-existent port
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}

	app, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err, "Bootstrap should fail without database")
	assert.Nil(t, app, "Application should be nil on bootstrap failure")
}

func TestBootstrap_InvalidHashAlgorithm(t *testing.T) {
	cfg := memoryConfig()
	cfg.Audit.HashAlgorithm = "md5"

	app, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	// Shutdown on empty application should not panic.
	app := &Application{}
	app.Shutdown()
}

func bearer(t *testing.T, tenant *int64, perms ...string) string {
	t.Helper()
	token, _, err := middleware.GenerateToken(middleware.JWTConfig{
		SigningKey: []byte(testSigningKey),
		Issuer:     "agritrace",
		ExpiresIn:  time.Hour,
	}, 7, "auditor", tenant, nil, perms)
	require.NoError(t, err)
	return "Bearer " + token
}

func get(app *Application, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func TestBootstrap_AuditsDomainWrites(t *testing.T) {
	app, err := Bootstrap(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	require.NoError(t, app.Start(context.Background()))

	tenant := int64(1)
	lotes := memory.NewEntities(
		func() *domain.Lote { return &domain.Lote{} },
		func(l *domain.Lote, id int64) { l.ID = id },
	)
	writer := usecase.NewEntityWriter[*domain.Lote](lotes, app.Lifecycle)

	ctx := audit.WithActor(context.Background(), audit.Actor{ID: 7, Username: "operador", TenantID: &tenant})
	lote := &domain.Lote{EmpresaID: tenant, FincaID: 1, Codigo: "LOTE-001", Nombre: "Norte"}
	require.NoError(t, writer.Create(ctx, lote))
	lote.Nombre = "Norte Alto"
	require.NoError(t, writer.Update(ctx, lote))
	require.NoError(t, writer.Delete(ctx, lote.ID))

	auth := bearer(t, &tenant, middleware.PermAuditRead)
	var events []contract.AuditEvent
	require.Eventually(t, func() bool {
		w := get(app, "/api/auditoria/blockchain", auth)
		if w.Code != http.StatusOK {
			return false
		}
		events = nil
		return json.Unmarshal(w.Body.Bytes(), &events) == nil && len(events) == 3
	}, 5*time.Second, 10*time.Millisecond)

	ops := []string{events[0].TipoOperacion, events[1].TipoOperacion, events[2].TipoOperacion}
	assert.Equal(t, []string{"CREATE", "UPDATE", "DELETE"}, ops)
	assert.Equal(t, "LOTE-001", events[0].CodigoEntidad)
	assert.Equal(t, []string{"nombre"}, events[1].CamposModificados)

	w := get(app, "/api/auditoria/blockchain/validar", auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var validation contract.ChainValidation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &validation))
	assert.True(t, validation.IntegridadValida)
}

func TestRouter_Authorization(t *testing.T) {
	app, err := Bootstrap(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)

	tenant := int64(1)
	tests := []struct {
		name     string
		path     string
		auth     string
		wantCode int
	}{
		{name: "liveness is public", path: "/health/live", wantCode: http.StatusOK},
		{name: "readiness is public", path: "/health/ready", wantCode: http.StatusOK},
		{name: "metrics are public", path: "/metrics", wantCode: http.StatusOK},
		{name: "audit requires token", path: "/api/auditoria", wantCode: http.StatusUnauthorized},
		{name: "audit requires audit:read", path: "/api/auditoria", auth: bearer(t, &tenant, "lote:write"), wantCode: http.StatusForbidden},
		{name: "audit reader", path: "/api/auditoria", auth: bearer(t, &tenant, middleware.PermAuditRead), wantCode: http.StatusOK},
		{name: "reader without tenant", path: "/api/auditoria", auth: bearer(t, nil, middleware.PermAuditRead), wantCode: http.StatusForbidden},
		{name: "platform admin", path: "/api/auditoria/blockchain", auth: bearer(t, nil, middleware.PermPlatformAdmin), wantCode: http.StatusOK},
		{name: "contract rejects bad id", path: "/api/auditoria/entidad/LOTE/abc", auth: bearer(t, &tenant, middleware.PermAuditRead), wantCode: http.StatusBadRequest},
		{name: "log level needs admin", path: "/admin/log/level", auth: bearer(t, &tenant, middleware.PermAuditRead), wantCode: http.StatusForbidden},
		{name: "log level for admin", path: "/admin/log/level", auth: bearer(t, nil, middleware.PermPlatformAdmin), wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(app, tt.path, tt.auth)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}
