package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/tiendatextil/internal/adapters/jobs"
	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/importer"
	"github.com/phenrril/tiendatextil/internal/spreadsheet"
)

type recordingGateway struct {
	mu         sync.Mutex
	products   []domain.ProductData
	variants   []domain.VariantData
	images     int
	failAll    bool
	categories []domain.Category
}

func (g *recordingGateway) CreateProduct(_ context.Context, d domain.ProductData) (domain.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return domain.Product{}, errors.New("backend indisponible")
	}
	g.products = append(g.products, d)
	return domain.Product{ID: uuid.New(), Name: d.Name, CategoryID: d.CategoryID, BasePrice: d.BasePrice}, nil
}

func (g *recordingGateway) CreateVariant(_ context.Context, d domain.VariantData) (domain.Variant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.variants = append(g.variants, d)
	return domain.Variant{ID: uuid.New(), ProductID: d.ProductID, Size: d.Size, Color: d.Color, SKU: d.SKU}, nil
}

func (g *recordingGateway) AddImageFromURL(_ context.Context, url string, productID, variantID uuid.UUID, isPrimary bool) (domain.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images++
	return domain.Image{ID: uuid.New(), ProductID: productID, URL: url, IsPrimary: isPrimary}, nil
}

func (g *recordingGateway) FetchCategories(context.Context) ([]domain.Category, error) {
	return g.categories, nil
}

func toptexFile(t *testing.T) []byte {
	t.Helper()
	rows := [][]interface{}{
		{"SKU", "Designation", "CMYK", "Size", "Price", "Catalog reference", "Brand", "Packshot"},
		{"K356-RED-S", "T-shirt col rond", "0,100,100,0", "S", "10,00", "K356", "Kariban", "https://cdn.test/k356.jpg"},
		{"K356-RED-M", "T-shirt col rond", "0,100,100,0", "M", "10,00", "K356", "Kariban", "https://cdn.test/k356.jpg"},
		{"NS300-BLK-L", "Sweat bio", "C=0 M=0 Y=0 K=100", "L", "20,00", "NS300", "Native Spirit", ""},
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newImportUC(gw *recordingGateway) *ImportUC {
	return NewImportUC(importer.New(gw, importer.DefaultLimits()), jobs.NewStore(nil))
}

func TestPreviewListsManufacturersAndGroups(t *testing.T) {
	uc := newImportUC(&recordingGateway{})

	p, err := uc.Preview(toptexFile(t), "TopTex")
	require.NoError(t, err)
	assert.Equal(t, "toptex", p.Supplier)
	assert.Equal(t, []string{"Kariban", "Native Spirit"}, p.Manufacturers)
	assert.Equal(t, 2, p.TotalProducts)
	assert.Equal(t, 3, p.TotalVariants)
	assert.Equal(t, []string{"K356", "NS300"}, p.ProductKeys)
	require.NotEmpty(t, p.PreviewRows)
	assert.Equal(t, "#FF0000", p.PreviewRows[0]["CMYK"])

	_, err = uc.Preview(toptexFile(t), "inconnu")
	assert.ErrorIs(t, err, ErrUnknownSupplier)

	_, err = uc.Preview([]byte("pas un classeur"), "toptex")
	assert.Error(t, err)
}

func TestStartRunsFilteredImportInBackground(t *testing.T) {
	gw := &recordingGateway{}
	uc := newImportUC(gw)
	cat := uuid.NewString()

	job, err := uc.Start(context.Background(), ImportRequest{
		Supplier:        "toptex",
		FileName:        "toptex.xlsx",
		Data:            toptexFile(t),
		Manufacturers:   []string{"Kariban"},
		DefaultCategory: cat,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, job.Progress.Total)
	uc.Wait()

	done, err := uc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 1, done.Progress.Completed)
	assert.Equal(t, "Importation terminée avec succès!", done.Progress.Status)

	require.Len(t, gw.products, 1)
	assert.Equal(t, "T-shirt col rond", gw.products[0].Name)
	assert.InDelta(t, 13.0, gw.products[0].BasePrice, 0.001)
	assert.Equal(t, cat, gw.products[0].CategoryID.String())
	require.Len(t, gw.variants, 2)
	require.NotNil(t, gw.variants[0].Color)
	assert.Equal(t, "#FF0000", *gw.variants[0].Color)
	assert.Equal(t, 1, gw.images)
}

func TestStartMarksFailedJob(t *testing.T) {
	uc := newImportUC(&recordingGateway{failAll: true})

	job, err := uc.Start(context.Background(), ImportRequest{Supplier: "toptex", Data: toptexFile(t), DefaultCategory: uuid.NewString()})
	require.NoError(t, err)
	uc.Wait()

	done, err := uc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, done.Status)
	assert.Len(t, done.Progress.Errors, 2)
}

func TestStartValidatesRequest(t *testing.T) {
	uc := newImportUC(&recordingGateway{})
	ctx := context.Background()

	_, err := uc.Start(ctx, ImportRequest{Supplier: "toptex", Data: toptexFile(t)})
	assert.ErrorIs(t, err, domain.ErrMissingCategory)

	_, err = uc.Start(ctx, ImportRequest{Supplier: "nope", Data: toptexFile(t), DefaultCategory: uuid.NewString()})
	assert.ErrorIs(t, err, ErrUnknownSupplier)

	_, err = uc.Start(ctx, ImportRequest{Supplier: "toptex", Data: toptexFile(t), DefaultCategory: uuid.NewString(), Manufacturers: []string{"Absent"}})
	var empty *spreadsheet.EmptyFileError
	assert.True(t, errors.Is(err, ErrNoProducts) || errors.As(err, &empty))

	_, err = uc.Job(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunSyncReportsProgress(t *testing.T) {
	uc := newImportUC(&recordingGateway{})
	var last domain.ImportProgress
	final, err := uc.RunSync(context.Background(), ImportRequest{Supplier: "toptex", Data: toptexFile(t), DefaultCategory: uuid.NewString()},
		func(p domain.ImportProgress) { last = p })
	require.NoError(t, err)
	assert.Equal(t, 2, final.ProductsCreated)
	assert.Equal(t, final.Status, last.Status)
}

func TestCategoriesComeFromGateway(t *testing.T) {
	gw := &recordingGateway{categories: []domain.Category{{ID: uuid.New(), Name: "Polos"}}}
	cats, err := newImportUC(gw).Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Polos", cats[0].Name)
}
