package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/tiendatextil/internal/adapters/repo/postgres"
	"github.com/phenrril/tiendatextil/internal/domain"
)

func newProductUC(t *testing.T) *ProductUC {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, postgres.Migrate(db))
	return &ProductUC{Products: postgres.NewProductRepo(db), Categories: postgres.NewCategoryRepo(db)}
}

func TestProductUCVariantsAndSearch(t *testing.T) {
	uc := newProductUC(t)
	ctx := context.Background()

	cat, err := uc.CreateCategory(ctx, "Polos")
	require.NoError(t, err)
	p := &domain.Product{Name: "Polo", CategoryID: cat.ID}
	require.NoError(t, uc.Products.Save(ctx, p))
	require.NoError(t, uc.Products.SaveVariant(ctx, &domain.Variant{ProductID: p.ID, Size: "M", SKU: "POLO-M"}))

	vs, err := uc.ListVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, vs, 1)

	_, err = uc.ListVariants(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v, err := uc.SearchBySKU(ctx, " POLO-M ")
	require.NoError(t, err)
	assert.Equal(t, "M", v.Size)

	list, total, err := uc.List(ctx, domain.ProductFilter{PageSize: 500})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	cats, err := uc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}
