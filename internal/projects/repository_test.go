package projects

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gateway/middleware/security/infra"
)

func newRepo(t *testing.T) *GormRepository {
	t.Helper()
	db, err := infra.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "repo.db"), false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewGormRepository(db)
}

func TestGormRepository_GetMissing(t *testing.T) {
	r := newRepo(t)

	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Update(context.Background(), "nope", Changes{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepository_UpdateWritesNulls(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	desc := "antes"
	p := &Project{Title: "Loja", CreatorID: "alice", Description: &desc}
	require.NoError(t, r.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	var none *string
	got, err := r.Update(ctx, p.ID, Changes{"description": none, "price": 12.5})
	require.NoError(t, err)
	assert.Nil(t, got.Description)
	assert.Equal(t, 12.5, got.Price)
	assert.Equal(t, "Loja", got.Title)
}
