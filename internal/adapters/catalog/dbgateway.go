package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/tiendatextil/internal/adapters/imagefetch"
	"github.com/phenrril/tiendatextil/internal/domain"
)

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*imagefetch.Image, error)
}

// DBGateway writes imported products straight into the catalog database.
// Without Storage the supplier URL is recorded as the image URL.
type DBGateway struct {
	Products   domain.ProductRepo
	Categories domain.CategoryRepo
	Fetcher    ImageFetcher
	Storage    domain.FileStorage
}

func NewDBGateway(products domain.ProductRepo, categories domain.CategoryRepo, fetcher ImageFetcher, storage domain.FileStorage) *DBGateway {
	return &DBGateway{Products: products, Categories: categories, Fetcher: fetcher, Storage: storage}
}

func (g *DBGateway) CreateProduct(ctx context.Context, d domain.ProductData) (domain.Product, error) {
	if d.CategoryID == uuid.Nil {
		return domain.Product{}, domain.ErrMissingCategory
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return domain.Product{}, errors.New("nom du produit vide")
	}
	p := domain.Product{
		ID:                uuid.New(),
		Name:              name,
		Description:       d.Description,
		BasePrice:         d.BasePrice,
		WeightGSM:         d.WeightGSM,
		SupplierReference: d.SupplierReference,
		Material:          d.Material,
		IsFeatured:        d.IsFeatured,
		IsNew:             d.IsNew,
		CategoryID:        d.CategoryID,
		ImageURL:          d.ImageURL,
	}
	if err := g.Products.Save(ctx, &p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (g *DBGateway) CreateVariant(ctx context.Context, d domain.VariantData) (domain.Variant, error) {
	if d.ProductID == uuid.Nil {
		return domain.Variant{}, errors.New("produit de la variante manquant")
	}
	v := domain.Variant{
		ID:              uuid.New(),
		ProductID:       d.ProductID,
		Size:            d.Size,
		Color:           d.Color,
		ColorURL:        d.ColorURL,
		StockQuantity:   d.StockQuantity,
		PriceAdjustment: d.PriceAdjustment,
		SKU:             d.SKU,
	}
	if err := g.Products.SaveVariant(ctx, &v); err != nil {
		return domain.Variant{}, err
	}
	return v, nil
}

func (g *DBGateway) AddImageFromURL(ctx context.Context, url string, productID, variantID uuid.UUID, isPrimary bool) (domain.Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.Image{}, errors.New("url d'image vide")
	}
	stored := url
	if g.Storage != nil && g.Fetcher != nil {
		img, err := g.Fetcher.Fetch(ctx, url)
		if err != nil {
			return domain.Image{}, fmt.Errorf("téléchargement de %s: %w", url, err)
		}
		path := fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), img.Ext)
		stored, err = g.Storage.Save(ctx, path, bytes.NewReader(img.Data), img.ContentType)
		if err != nil {
			return domain.Image{}, fmt.Errorf("stockage de %s: %w", url, err)
		}
	}

	im := domain.Image{ID: uuid.New(), ProductID: productID, URL: stored, IsPrimary: isPrimary}
	if variantID != uuid.Nil {
		vid := variantID
		im.VariantID = &vid
	}
	if err := g.Products.AddImage(ctx, &im); err != nil {
		return domain.Image{}, err
	}

	if isPrimary {
		if repo, ok := g.Products.(interface {
			SetImageURL(context.Context, uuid.UUID, string) error
		}); ok {
			if err := repo.SetImageURL(ctx, productID, stored); err != nil {
				log.Warn().Err(err).Str("product", productID.String()).Msg("image principale non reportée sur le produit")
			}
		}
	}
	return im, nil
}

func (g *DBGateway) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	return g.Categories.List(ctx)
}
