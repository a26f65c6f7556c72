package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrace.io/agritrace/internal/domain"
	apperrors "agritrace.io/agritrace/internal/pkg/errors"
)

func newLotes() *Entities[*domain.Lote] {
	return NewEntities(
		func() *domain.Lote { return &domain.Lote{} },
		func(l *domain.Lote, id int64) { l.ID = id },
	)
}

func TestEntities_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newLotes()

	lote := &domain.Lote{EmpresaID: 1, FincaID: 2, Codigo: "LOTE-001", Nombre: "Norte"}
	require.NoError(t, repo.Insert(ctx, lote))
	assert.Equal(t, int64(1), lote.ID)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, *lote, *got)

	// Stored state is isolated from the caller's pointer.
	lote.Nombre = "Sur"
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Norte", got.Nombre)

	require.NoError(t, repo.Update(ctx, lote))
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sur", got.Nombre)

	require.NoError(t, repo.Delete(ctx, 1))
	assert.Equal(t, 0, repo.Count())
	_, err = repo.Get(ctx, 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestEntities_Errors(t *testing.T) {
	ctx := context.Background()
	repo := newLotes()

	assert.Error(t, repo.Update(ctx, &domain.Lote{}), "update without id")
	assert.ErrorIs(t, repo.Update(ctx, &domain.Lote{ID: 9}), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 9), apperrors.ErrNotFound)
}
