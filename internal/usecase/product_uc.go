package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/phenrril/tiendatextil/internal/domain"
)

type ProductUC struct {
	Products   domain.ProductRepo
	Categories domain.CategoryRepo
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.PageSize == 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return uc.Products.List(ctx, f)
}

func (uc *ProductUC) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, errors.New("product id")
	}
	return uc.Products.FindByID(ctx, id)
}

func (uc *ProductUC) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	if productID == uuid.Nil {
		return nil, errors.New("product id")
	}
	if _, err := uc.Products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return uc.Products.ListVariants(ctx, productID)
}

func (uc *ProductUC) SearchBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	s := strings.TrimSpace(sku)
	if s == "" {
		return nil, errors.New("sku vide")
	}
	if repo, ok := uc.Products.(interface {
		FindVariantBySKU(context.Context, string) (*domain.Variant, error)
	}); ok {
		return repo.FindVariantBySKU(ctx, s)
	}
	return nil, errors.New("repo ne supporte pas la recherche par sku")
}

func (uc *ProductUC) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if uc.Categories == nil {
		return []domain.Category{}, nil
	}
	return uc.Categories.List(ctx)
}

// CreateCategory returns the existing category when the name is already taken.
func (uc *ProductUC) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	c := &domain.Category{Name: name}
	if err := uc.Categories.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
