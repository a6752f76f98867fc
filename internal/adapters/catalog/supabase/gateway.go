package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	supa "github.com/supabase-community/supabase-go"

	"github.com/phenrril/tiendatextil/internal/adapters/imagefetch"
	"github.com/phenrril/tiendatextil/internal/domain"
)

const (
	tableProducts   = "products"
	tableVariants   = "product_variants"
	tableImages     = "product_images"
	tableCategories = "categories"
)

// backend is the slice of the Supabase client the gateway needs.
type backend interface {
	Insert(table string, row any, out any) error
	SelectAll(table string, out any) error
	Upload(bucket, path string, r io.Reader) error
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*imagefetch.Image, error)
}

// Gateway writes the catalog into a Supabase project through PostgREST and
// stores product images in a Storage bucket.
type Gateway struct {
	api     backend
	baseURL string
	bucket  string
	fetcher ImageFetcher
}

func New(url, key, bucket string, fetcher ImageFetcher) (*Gateway, error) {
	if url == "" || key == "" {
		return nil, errors.New("SUPABASE_URL et SUPABASE_KEY requis")
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("client supabase: %w", err)
	}
	if bucket == "" {
		bucket = "product-images"
	}
	log.Info().Str("url", url).Str("bucket", bucket).Msg("passerelle supabase configurée")
	return &Gateway{api: clientBackend{c: client}, baseURL: strings.TrimRight(url, "/"), bucket: bucket, fetcher: fetcher}, nil
}

type productRow struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	BasePrice         float64   `json:"base_price"`
	WeightGSM         *int      `json:"weight_gsm"`
	SupplierReference string    `json:"supplier_reference"`
	Material          string    `json:"material"`
	IsFeatured        bool      `json:"is_featured"`
	IsNew             bool      `json:"is_new"`
	CategoryID        uuid.UUID `json:"category_id"`
	ImageURL          string    `json:"image_url"`
}

type variantRow struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Size            string    `json:"size"`
	Color           *string   `json:"color"`
	ColorURL        *string   `json:"color_url,omitempty"`
	StockQuantity   int       `json:"stock_quantity"`
	PriceAdjustment float64   `json:"price_adjustment"`
	SKU             string    `json:"sku"`
}

type imageRow struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id"`
	ImageURL  string     `json:"image_url"`
	IsPrimary bool       `json:"is_primary"`
}

func (g *Gateway) CreateProduct(_ context.Context, d domain.ProductData) (domain.Product, error) {
	if d.CategoryID == uuid.Nil {
		return domain.Product{}, domain.ErrMissingCategory
	}
	row := productRow{
		ID: uuid.New(), Name: d.Name, Description: d.Description, BasePrice: d.BasePrice,
		WeightGSM: d.WeightGSM, SupplierReference: d.SupplierReference, Material: d.Material,
		IsFeatured: d.IsFeatured, IsNew: d.IsNew, CategoryID: d.CategoryID, ImageURL: d.ImageURL,
	}
	var out []productRow
	if err := g.api.Insert(tableProducts, row, &out); err != nil {
		return domain.Product{}, fmt.Errorf("insertion produit: %w", err)
	}
	if len(out) > 0 {
		row = out[0]
	}
	return domain.Product{
		ID: row.ID, Name: row.Name, Description: row.Description, BasePrice: row.BasePrice,
		WeightGSM: row.WeightGSM, SupplierReference: row.SupplierReference, Material: row.Material,
		IsFeatured: row.IsFeatured, IsNew: row.IsNew, CategoryID: row.CategoryID, ImageURL: row.ImageURL,
	}, nil
}

func (g *Gateway) CreateVariant(_ context.Context, d domain.VariantData) (domain.Variant, error) {
	row := variantRow{
		ID: uuid.New(), ProductID: d.ProductID, Size: d.Size, Color: d.Color,
		StockQuantity: d.StockQuantity, PriceAdjustment: d.PriceAdjustment, SKU: d.SKU,
	}
	if d.ColorURL != "" {
		u := d.ColorURL
		row.ColorURL = &u
	}
	var out []variantRow
	if err := g.api.Insert(tableVariants, row, &out); err != nil {
		return domain.Variant{}, fmt.Errorf("insertion variante %s: %w", d.SKU, err)
	}
	if len(out) > 0 {
		row = out[0]
	}
	v := domain.Variant{
		ID: row.ID, ProductID: row.ProductID, Size: row.Size, Color: row.Color,
		StockQuantity: row.StockQuantity, PriceAdjustment: row.PriceAdjustment, SKU: row.SKU,
	}
	if row.ColorURL != nil {
		v.ColorURL = *row.ColorURL
	}
	return v, nil
}

// AddImageFromURL copies the remote image into the bucket when a fetcher is
// configured, otherwise the remote URL is referenced directly.
func (g *Gateway) AddImageFromURL(ctx context.Context, url string, productID, variantID uuid.UUID, isPrimary bool) (domain.Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.Image{}, errors.New("url d'image vide")
	}
	public := url
	if g.fetcher != nil {
		img, err := g.fetcher.Fetch(ctx, url)
		if err != nil {
			return domain.Image{}, fmt.Errorf("téléchargement de %s: %w", url, err)
		}
		path := fmt.Sprintf("%s/%s%s", productID, uuid.NewString(), img.Ext)
		if err := g.api.Upload(g.bucket, path, bytes.NewReader(img.Data)); err != nil {
			return domain.Image{}, fmt.Errorf("upload de %s: %w", url, err)
		}
		public = fmt.Sprintf("%s/storage/v1/object/public/%s/%s", g.baseURL, g.bucket, path)
	}

	row := imageRow{ID: uuid.New(), ProductID: productID, ImageURL: public, IsPrimary: isPrimary}
	if variantID != uuid.Nil {
		vid := variantID
		row.VariantID = &vid
	}
	var out []imageRow
	if err := g.api.Insert(tableImages, row, &out); err != nil {
		return domain.Image{}, fmt.Errorf("insertion image: %w", err)
	}
	if len(out) > 0 {
		row = out[0]
	}
	return domain.Image{ID: row.ID, ProductID: row.ProductID, VariantID: row.VariantID, URL: row.ImageURL, IsPrimary: row.IsPrimary}, nil
}

func (g *Gateway) FetchCategories(_ context.Context) ([]domain.Category, error) {
	var rows []domain.Category
	if err := g.api.SelectAll(tableCategories, &rows); err != nil {
		return nil, fmt.Errorf("lecture des catégories: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

type clientBackend struct{ c *supa.Client }

func (b clientBackend) Insert(table string, row any, out any) error {
	_, err := b.c.From(table).Insert(row, false, "", "representation", "").ExecuteTo(out)
	return err
}

func (b clientBackend) SelectAll(table string, out any) error {
	_, err := b.c.From(table).Select("*", "", false).ExecuteTo(out)
	return err
}

func (b clientBackend) Upload(bucket, path string, r io.Reader) error {
	_, err := b.c.Storage.UploadFile(bucket, path, r)
	return err
}
