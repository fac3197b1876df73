package utils

import (
	"testing"

	"autorepair-shop-server/internal/models"
	"autorepair-shop-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueSlug(t *testing.T) {
	db := testutil.NewDB(t)

	first, err := UniqueSlug(db, &models.Project{}, "Engine Rebuild: Land Cruiser", "")
	require.NoError(t, err)
	assert.Equal(t, "engine-rebuild-land-cruiser", first)

	p := &models.Project{Title: models.NewText("Engine Rebuild", ""), Slug: first}
	require.NoError(t, db.Create(p).Error)

	second, err := UniqueSlug(db, &models.Project{}, "Engine rebuild - Land Cruiser", "")
	require.NoError(t, err)
	assert.Equal(t, "engine-rebuild-land-cruiser-2", second)

	// Renaming a row to its own slug keeps it.
	same, err := UniqueSlug(db, &models.Project{}, "Engine Rebuild Land Cruiser", p.ID)
	require.NoError(t, err)
	assert.Equal(t, first, same)

	fallback, err := UniqueSlug(db, &models.Project{}, "!!!", "")
	require.NoError(t, err)
	assert.Len(t, fallback, 8)
}
