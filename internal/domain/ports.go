package domain

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrMissingCategory = errors.New("catégorie manquante")
)

// CatalogGateway is the backend the importer writes into. A returned error
// means the backend refused or could not be reached.
type CatalogGateway interface {
	CreateProduct(ctx context.Context, p ProductData) (Product, error)
	CreateVariant(ctx context.Context, v VariantData) (Variant, error)
	AddImageFromURL(ctx context.Context, url string, productID, variantID uuid.UUID, isPrimary bool) (Image, error)
	FetchCategories(ctx context.Context) ([]Category, error)
}

type ProductRepo interface {
	Save(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	SaveVariant(ctx context.Context, v *Variant) error
	ListVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error)
	AddImage(ctx context.Context, img *Image) error
	ListImages(ctx context.Context, productID uuid.UUID) ([]Image, error)
}

type CategoryRepo interface {
	List(ctx context.Context) ([]Category, error)
	Save(ctx context.Context, c *Category) error
	FindByName(ctx context.Context, name string) (*Category, error)
}

// FileStorage persists binary objects and returns the public URL for them.
type FileStorage interface {
	Save(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
}
