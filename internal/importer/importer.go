package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/spreadsheet"
)

const (
	defaultStock       = 10
	defaultCallTimeout = 30 * time.Second
)

// Limits caps the number of gateway calls in flight at each level.
type Limits struct {
	Products int
	Variants int
	Images   int
}

func DefaultLimits() Limits {
	return Limits{Products: 5, Variants: 10, Images: 3}
}

type RunConfig struct {
	Profile SupplierProfile
	// DefaultCategory is used for groups missing from CategoryMapping.
	DefaultCategory string
	// CategoryMapping maps a parent product key to a category id.
	CategoryMapping map[string]string
}

type ProgressFunc func(domain.ImportProgress)

type Importer struct {
	Gateway      domain.CatalogGateway
	Limits       Limits
	DefaultStock int
	CallTimeout  time.Duration

	now func() time.Time
}

func New(gw domain.CatalogGateway, limits Limits) *Importer {
	return &Importer{Gateway: gw, Limits: limits, DefaultStock: defaultStock, CallTimeout: defaultCallTimeout}
}

// Run imports every product group and returns the final progress. Failures
// are recorded in the progress and never stop the run: a failed product skips
// its colors, a failed color skips its images, a failed image only adds a
// warning.
func (im *Importer) Run(ctx context.Context, groups []spreadsheet.ProductGroup, cfg RunConfig, onProgress ProgressFunc) domain.ImportProgress {
	r := newRun(len(groups), onProgress)
	r.update(func(p *domain.ImportProgress) {
		p.Status = fmt.Sprintf("Démarrage de l'importation de %d produits", len(groups))
	})

	res := RunLimited(ctx, groups, im.Limits.Products, func(ctx context.Context, g spreadsheet.ProductGroup) (struct{}, error) {
		im.importGroup(ctx, r, g, cfg)
		return struct{}{}, nil
	})

	skipped := 0
	var skipErr error
	for _, x := range res {
		if !x.OK() {
			skipped++
			skipErr = x.Err
		}
	}
	if skipped > 0 {
		r.addError(fmt.Sprintf("%d produits non traités: %v", skipped, skipErr))
	}

	r.update(func(p *domain.ImportProgress) {
		if len(p.Errors) == 0 {
			p.Status = "Importation terminée avec succès!"
		} else {
			p.Status = fmt.Sprintf("Importation terminée avec %d erreurs", len(p.Errors))
		}
	})
	final := r.snapshot()
	log.Info().
		Int("produits", final.ProductsCreated).
		Int("variantes", final.VariantsCreated).
		Int("images", final.ImagesCreated).
		Int("images_echec", final.ImagesFailed).
		Int("erreurs", len(final.Errors)).
		Msg("importation terminée")
	return final
}

func (im *Importer) importGroup(ctx context.Context, r *run, g spreadsheet.ProductGroup, cfg RunConfig) {
	r.update(func(p *domain.ImportProgress) {
		p.Current++
		p.Status = fmt.Sprintf("Importation du produit %d/%d: %s", p.Current, p.Total, g.Key)
	})
	if err := im.importProduct(ctx, r, g, cfg); err != nil {
		log.Error().Err(err).Str("produit", g.Key).Msg("échec de l'import du produit")
		r.addError(fmt.Sprintf("Produit %s: %v", g.Key, err))
	}
	r.update(func(p *domain.ImportProgress) { p.Completed++ })
}

func (im *Importer) importProduct(ctx context.Context, r *run, g spreadsheet.ProductGroup, cfg RunConfig) error {
	if len(g.Rows) == 0 {
		return errors.New("aucune ligne")
	}
	categoryID, err := resolveCategory(g.Key, cfg)
	if err != nil {
		return err
	}

	cols := cfg.Profile.Columns
	data := buildProduct(g.Key, g.Rows[0], cols, categoryID)
	product, err := withTimeout(ctx, im.callTimeout(), func(ctx context.Context) (domain.Product, error) {
		return im.Gateway.CreateProduct(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("création du produit échouée: %w", err)
	}
	if product.ID == uuid.Nil {
		return errors.New("création du produit échouée: identifiant vide")
	}
	r.update(func(p *domain.ImportProgress) { p.ProductsCreated++ })

	for _, cg := range groupByColor(g.Rows, cols) {
		if err := im.importColor(ctx, r, product, cg, cfg.Profile); err != nil {
			log.Error().Err(err).Str("produit", g.Key).Str("couleur", cg.Key).Msg("échec de l'import de la couleur")
			r.addError(fmt.Sprintf("Produit %s, couleur %s: %v", g.Key, cg.Key, err))
		}
	}
	return nil
}

func (im *Importer) importColor(ctx context.Context, r *run, product domain.Product, cg colorGroup, profile SupplierProfile) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if !r.reserveColor(product.ID, cg.Key) {
		return nil
	}
	cols := profile.Columns
	color, colorURL := profile.resolveColor(cg.Code, cg.URL)
	r.update(func(p *domain.ImportProgress) {
		p.Status = fmt.Sprintf("Produit %s: couleur %s", product.Name, cg.Key)
	})

	payloads := im.buildVariants(product.ID, cg, cols, color, colorURL)
	res := RunLimited(ctx, payloads, im.Limits.Variants, func(ctx context.Context, v domain.VariantData) (domain.Variant, error) {
		return withTimeout(ctx, im.callTimeout(), func(ctx context.Context) (domain.Variant, error) {
			return im.Gateway.CreateVariant(ctx, v)
		})
	})

	var failures []string
	representative := uuid.Nil
	created := 0
	for i, x := range res {
		if !x.OK() {
			failures = append(failures, fmt.Sprintf("%s (%v)", payloads[i].SKU, x.Err))
			continue
		}
		created++
		if representative == uuid.Nil {
			representative = x.Value.ID
		}
	}
	r.update(func(p *domain.ImportProgress) { p.VariantsCreated += created })
	r.setColorVariant(product.ID, cg.Key, representative)

	if representative != uuid.Nil {
		im.importImages(ctx, r, product, representative, cg.Rows[0], cols)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d variante(s) en échec: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

type imageTask struct {
	URL     string
	Primary bool
}

func (im *Importer) importImages(ctx context.Context, r *run, product domain.Product, variantID uuid.UUID, row spreadsheet.RawRow, cols spreadsheet.ColumnMapping) {
	var urls []string
	for _, c := range []string{cols.MainImage, cols.ModelImageA, cols.ModelImageB, cols.ModelImageC} {
		if u := row.Get(c); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return
	}

	// The primary candidate goes first; on failure the next image of the same
	// color takes its place so a product with any image always has one primary.
	if r.claimPrimary(product.ID) {
		promoted := false
		for len(urls) > 0 && !promoted {
			u := urls[0]
			urls = urls[1:]
			promoted = im.uploadImage(ctx, r, product.ID, variantID, imageTask{URL: u, Primary: true})
		}
		if !promoted {
			r.releasePrimary(product.ID)
		}
	}
	if len(urls) == 0 {
		return
	}

	tasks := make([]imageTask, len(urls))
	for i, u := range urls {
		tasks[i] = imageTask{URL: u}
	}
	RunLimited(ctx, tasks, im.Limits.Images, func(ctx context.Context, t imageTask) (struct{}, error) {
		im.uploadImage(ctx, r, product.ID, variantID, t)
		return struct{}{}, nil
	})
}

// uploadImage records the outcome of one image in the run progress. A failed
// image is a warning, never an error.
func (im *Importer) uploadImage(ctx context.Context, r *run, productID, variantID uuid.UUID, t imageTask) bool {
	_, err := withTimeout(ctx, im.callTimeout(), func(ctx context.Context) (domain.Image, error) {
		return im.Gateway.AddImageFromURL(ctx, t.URL, productID, variantID, t.Primary)
	})
	if err == nil {
		r.update(func(p *domain.ImportProgress) { p.ImagesCreated++ })
		return true
	}
	log.Warn().Err(err).Str("produit", productID.String()).Str("url", t.URL).Bool("principale", t.Primary).Msg("image ignorée")
	r.update(func(p *domain.ImportProgress) {
		p.ImagesFailed++
		p.Warnings = append(p.Warnings, fmt.Sprintf("Image %s: %v", t.URL, err))
	})
	return false
}

func (im *Importer) buildVariants(productID uuid.UUID, cg colorGroup, cols spreadsheet.ColumnMapping, color *string, colorURL string) []domain.VariantData {
	stock := im.DefaultStock
	if stock <= 0 {
		stock = defaultStock
	}
	now := time.Now
	if im.now != nil {
		now = im.now
	}

	var out []domain.VariantData
	seen := map[string]struct{}{}
	for _, row := range cg.Rows {
		size := row.Get(cols.Size)
		if size == "" {
			size = defaultSize
		}
		if _, dup := seen[size]; dup {
			continue
		}
		seen[size] = struct{}{}

		sku := row.Get(cols.SKU)
		if sku == "" {
			sku = generateSKU(productID, cg.Key, size, now())
		} else {
			sku = sku + "-" + size
		}
		out = append(out, domain.VariantData{
			ProductID:     productID,
			Size:          size,
			Color:         color,
			ColorURL:      colorURL,
			StockQuantity: stock,
			SKU:           sku,
		})
	}
	return out
}

func (im *Importer) callTimeout() time.Duration {
	if im.CallTimeout <= 0 {
		return defaultCallTimeout
	}
	return im.CallTimeout
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func resolveCategory(key string, cfg RunConfig) (uuid.UUID, error) {
	raw := strings.TrimSpace(cfg.CategoryMapping[key])
	if raw == "" {
		raw = strings.TrimSpace(cfg.DefaultCategory)
	}
	if raw == "" {
		return uuid.Nil, domain.ErrMissingCategory
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: identifiant %q invalide", domain.ErrMissingCategory, raw)
	}
	return id, nil
}

func buildProduct(key string, row spreadsheet.RawRow, cols spreadsheet.ColumnMapping, categoryID uuid.UUID) domain.ProductData {
	name := row.Get(cols.ProductName)
	if name == "" {
		name = key
	}
	return domain.ProductData{
		Name:              name,
		Description:       row.Get(cols.Description),
		BasePrice:         ParsePrice(row.Get(cols.Price)),
		WeightGSM:         ParseWeight(row.Get(cols.WeightGSM)),
		SupplierReference: row.Get(cols.SupplierReference),
		Material:          row.Get(cols.Material),
		IsFeatured:        ParseFlag(row.Get(cols.IsFeatured)),
		IsNew:             ParseFlag(row.Get(cols.IsNew)),
		CategoryID:        categoryID,
		ImageURL:          row.Get(cols.MainImage),
	}
}

type colorGroup struct {
	Key  string
	Code string
	URL  string
	Rows []spreadsheet.RawRow
}

func groupByColor(rows []spreadsheet.RawRow, cols spreadsheet.ColumnMapping) []colorGroup {
	var out []colorGroup
	idx := map[string]int{}
	for _, row := range rows {
		code, url := row.Get(cols.ColorCode), row.Get(cols.ColorURL)
		key := url
		if key == "" {
			key = code
		}
		if key == "" {
			key = "default"
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, colorGroup{Key: key, Code: code, URL: url})
		}
		out[i].Rows = append(out[i].Rows, row)
	}
	return out
}
