package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/repository/memory"
	"agritrace.io/agritrace/internal/repository/sqlite"
	"agritrace.io/agritrace/internal/testutil"
)

func TestOpenAuditStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := OpenAuditStore(ctx, config.AuditConfig{Store: config.StoreMemory}, nil)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := OpenAuditStore(ctx, config.AuditConfig{
			Store:      config.StoreSQLite,
			SQLitePath: testutil.SQLitePath(t),
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		assert.IsType(t, &sqlite.Store{}, store)
	})

	t.Run("postgres without pool", func(t *testing.T) {
		_, err := OpenAuditStore(ctx, config.AuditConfig{Store: config.StorePostgres}, nil)
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenAuditStore(ctx, config.AuditConfig{Store: "dynamo"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dynamo")
	})
}
