package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/tiendatextil/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&domain.Variant{}))
	assert.True(t, db.Migrator().HasTable(&domain.Image{}))
}

func TestCategoryRepoSaveIsIdempotentByName(t *testing.T) {
	repo := NewCategoryRepo(newTestDB(t))
	ctx := context.Background()

	first := &domain.Category{Name: "T-shirts"}
	require.NoError(t, repo.Save(ctx, first))
	require.NotEqual(t, uuid.Nil, first.ID)

	again := &domain.Category{Name: " t-shirts "}
	require.NoError(t, repo.Save(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, repo.Save(ctx, &domain.Category{Name: "Polos"}))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Polos", list[0].Name)

	found, err := repo.FindByName(ctx, "POLOS")
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, found.ID)

	_, err = repo.FindByName(ctx, "Casquettes")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Error(t, repo.Save(ctx, &domain.Category{Name: "  "}))
}

func TestProductRepoRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewProductRepo(db)
	ctx := context.Background()

	w := 180
	p := &domain.Product{Name: "Polo piqué", BasePrice: 12.5, WeightGSM: &w, SupplierReference: "SOL-11346", CategoryID: uuid.New()}
	require.NoError(t, repo.Save(ctx, p))

	red := "#FF0000"
	v1 := &domain.Variant{ProductID: p.ID, Size: "S", Color: &red, SKU: "ABC-S", StockQuantity: 10}
	v2 := &domain.Variant{ProductID: p.ID, Size: "M", Color: &red, SKU: "ABC-M", StockQuantity: 10}
	require.NoError(t, repo.SaveVariant(ctx, v1))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.SaveVariant(ctx, v2))

	vid := v1.ID
	require.NoError(t, repo.AddImage(ctx, &domain.Image{ProductID: p.ID, VariantID: &vid, URL: "/uploads/a.jpg"}))
	require.NoError(t, repo.AddImage(ctx, &domain.Image{ProductID: p.ID, VariantID: &vid, URL: "/uploads/b.jpg", IsPrimary: true}))

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Polo piqué", got.Name)
	require.NotNil(t, got.WeightGSM)
	assert.Equal(t, 180, *got.WeightGSM)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, "ABC-S", got.Variants[0].SKU)
	require.Len(t, got.Images, 2)
	assert.True(t, got.Images[0].IsPrimary)

	v, err := repo.FindVariantBySKU(ctx, "ABC-M")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, v.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProductRepoListFilters(t *testing.T) {
	repo := NewProductRepo(newTestDB(t))
	ctx := context.Background()
	cat := uuid.New()
	for _, name := range []string{"Sweat capuche", "Polo", "T-shirt bio"} {
		require.NoError(t, repo.Save(ctx, &domain.Product{Name: name, CategoryID: cat}))
	}
	require.NoError(t, repo.Save(ctx, &domain.Product{Name: "Casquette", CategoryID: uuid.New()}))

	list, total, err := repo.List(ctx, domain.ProductFilter{CategoryID: cat})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "Polo", list[0].Name)

	list, total, err = repo.List(ctx, domain.ProductFilter{Query: "SWEAT"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Sweat capuche", list[0].Name)

	list, _, err = repo.List(ctx, domain.ProductFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
