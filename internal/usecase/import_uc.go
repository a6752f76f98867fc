package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/importer"
	"github.com/phenrril/tiendatextil/internal/spreadsheet"
)

var (
	ErrUnknownSupplier = errors.New("fournisseur inconnu")
	ErrNoProducts      = errors.New("aucun produit à importer")
)

type JobStore interface {
	Create(supplier, fileName string, total int) domain.ImportJob
	Get(ctx context.Context, id uuid.UUID) (domain.ImportJob, bool)
	SetProgress(id uuid.UUID, p domain.ImportProgress)
	Complete(id uuid.UUID, status string, p domain.ImportProgress)
}

type ImportRequest struct {
	Supplier string
	FileName string
	Data     []byte
	// Manufacturers restricts the import to these brands; empty keeps all.
	Manufacturers   []string
	DefaultCategory string
	CategoryMapping map[string]string
}

type Preview struct {
	Supplier      string               `json:"supplier"`
	Headers       []string             `json:"headers"`
	PreviewRows   []spreadsheet.RawRow `json:"preview_rows"`
	TotalRows     int                  `json:"total_rows"`
	TotalProducts int                  `json:"total_products"`
	TotalVariants int                  `json:"total_variants"`
	Unassigned    int                  `json:"unassigned"`
	Synthetic     bool                 `json:"synthetic"`
	Manufacturers []string             `json:"manufacturers"`
	ProductKeys   []string             `json:"product_keys"`
}

type ImportUC struct {
	Importer *importer.Importer
	Gateway  domain.CatalogGateway
	Jobs     JobStore

	wg sync.WaitGroup
}

func NewImportUC(im *importer.Importer, jobs JobStore) *ImportUC {
	return &ImportUC{Importer: im, Gateway: im.Gateway, Jobs: jobs}
}

func (uc *ImportUC) Suppliers() []importer.SupplierProfile { return importer.Profiles() }

// Preview parses the file with the supplier's columns without touching the
// backend. Manufacturers are listed before any filtering.
func (uc *ImportUC) Preview(data []byte, supplier string) (*Preview, error) {
	profile, ok := importer.ProfileByName(supplier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSupplier, supplier)
	}
	headers, rows, err := spreadsheet.Decode(data)
	if err != nil {
		return nil, err
	}
	manufacturers := importer.ExtractManufacturers(rows, profile.ManufacturerColumn)
	rows = profile.Preprocess(rows, nil)
	res := spreadsheet.ParseRows(headers, rows, profile.Columns)

	keys := make([]string, 0, len(res.Groups))
	for _, g := range res.Groups {
		keys = append(keys, g.Key)
	}
	return &Preview{
		Supplier:      profile.Name,
		Headers:       res.Headers,
		PreviewRows:   res.PreviewRows,
		TotalRows:     res.TotalRows,
		TotalProducts: res.TotalProducts,
		TotalVariants: res.TotalVariants,
		Unassigned:    len(res.Unassigned),
		Synthetic:     res.Synthetic,
		Manufacturers: manufacturers,
		ProductKeys:   keys,
	}, nil
}

// Prepare decodes and preprocesses the file then groups it into products.
// Preprocessing runs manufacturer filter, CMYK conversion, then the price
// multiplier, before grouping.
func (uc *ImportUC) Prepare(req ImportRequest) (*spreadsheet.ParseResult, importer.RunConfig, error) {
	profile, ok := importer.ProfileByName(req.Supplier)
	if !ok {
		return nil, importer.RunConfig{}, fmt.Errorf("%w: %q", ErrUnknownSupplier, req.Supplier)
	}
	cfg := importer.RunConfig{
		Profile:         profile,
		DefaultCategory: strings.TrimSpace(req.DefaultCategory),
		CategoryMapping: req.CategoryMapping,
	}
	if cfg.DefaultCategory == "" && len(cfg.CategoryMapping) == 0 {
		return nil, cfg, domain.ErrMissingCategory
	}
	headers, rows, err := spreadsheet.Decode(req.Data)
	if err != nil {
		return nil, cfg, err
	}
	rows = profile.Preprocess(rows, req.Manufacturers)
	res := spreadsheet.ParseRows(headers, rows, profile.Columns)
	if len(res.Groups) == 0 {
		return nil, cfg, ErrNoProducts
	}
	return res, cfg, nil
}

// Start validates the request, creates a job and runs the import in the
// background. The run outlives the request context.
func (uc *ImportUC) Start(ctx context.Context, req ImportRequest) (domain.ImportJob, error) {
	res, cfg, err := uc.Prepare(req)
	if err != nil {
		return domain.ImportJob{}, err
	}
	job := uc.Jobs.Create(cfg.Profile.Name, req.FileName, len(res.Groups))
	log.Info().Str("job", job.ID.String()).Str("fournisseur", cfg.Profile.Name).Int("produits", len(res.Groups)).Msg("importation lancée")

	runCtx := context.WithoutCancel(ctx)
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("job", job.ID.String()).Msg("importation interrompue")
				uc.Jobs.Complete(job.ID, domain.JobStatusFailed, domain.ImportProgress{
					Total:  len(res.Groups),
					Status: "Importation interrompue",
					Errors: []string{fmt.Sprint(rec)},
				})
			}
		}()
		final := uc.Importer.Run(runCtx, res.Groups, cfg, func(p domain.ImportProgress) {
			uc.Jobs.SetProgress(job.ID, p)
		})
		uc.Jobs.Complete(job.ID, jobStatus(final), final)
	}()
	return job, nil
}

// RunSync runs an import in the caller's goroutine.
func (uc *ImportUC) RunSync(ctx context.Context, req ImportRequest, onProgress importer.ProgressFunc) (domain.ImportProgress, error) {
	res, cfg, err := uc.Prepare(req)
	if err != nil {
		return domain.ImportProgress{}, err
	}
	return uc.Importer.Run(ctx, res.Groups, cfg, onProgress), nil
}

func (uc *ImportUC) Job(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	job, ok := uc.Jobs.Get(ctx, id)
	if !ok {
		return domain.ImportJob{}, domain.ErrNotFound
	}
	return job, nil
}

func (uc *ImportUC) Categories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return uc.Gateway.FetchCategories(ctx)
}

// Wait blocks until background imports have finished.
func (uc *ImportUC) Wait() { uc.wg.Wait() }

// jobStatus marks a run failed only when nothing was created at all.
func jobStatus(p domain.ImportProgress) string {
	if len(p.Errors) > 0 && p.ProductsCreated == 0 {
		return domain.JobStatusFailed
	}
	return domain.JobStatusCompleted
}
