package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/tiendatextil/internal/adapters/catalog"
	"github.com/phenrril/tiendatextil/internal/adapters/catalog/supabase"
	"github.com/phenrril/tiendatextil/internal/adapters/httpserver"
	"github.com/phenrril/tiendatextil/internal/adapters/imagefetch"
	"github.com/phenrril/tiendatextil/internal/adapters/jobs"
	"github.com/phenrril/tiendatextil/internal/adapters/repo/postgres"
	"github.com/phenrril/tiendatextil/internal/adapters/storage/localfs"
	"github.com/phenrril/tiendatextil/internal/adapters/storage/s3store"
	"github.com/phenrril/tiendatextil/internal/config"
	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/importer"
	"github.com/phenrril/tiendatextil/internal/usecase"
)

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Gateway   domain.CatalogGateway
	Storage   domain.FileStorage
	ProductUC *usecase.ProductUC
	ImportUC  *usecase.ImportUC

	closers []func() error
}

// OpenDB connects to Postgres with the configured DSN.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}
	db, err := gorm.Open(pgdriver.Open(cfg.DSN), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewApp wires the catalog backend, storage and import pipeline. db may be
// nil when the catalog backend is Supabase.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: db}

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = storage

	fetcher := imagefetch.New(imagefetch.Options{
		RequestsPerSecond: cfg.ImageFetchRPS,
		MaxBytes:          int64(cfg.ImageMaxMB) << 20,
	})

	switch cfg.CatalogBackend {
	case config.BackendSupabase:
		gw, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket, fetcher)
		if err != nil {
			return nil, err
		}
		a.Gateway = gw
	default:
		if db == nil {
			return nil, fmt.Errorf("base de données requise pour CATALOG_BACKEND=%s", cfg.CatalogBackend)
		}
		products := postgres.NewProductRepo(db)
		categories := postgres.NewCategoryRepo(db)
		a.ProductUC = &usecase.ProductUC{Products: products, Categories: categories}
		var f catalog.ImageFetcher
		if storage != nil {
			f = fetcher
		}
		a.Gateway = catalog.NewDBGateway(products, categories, f, storage)
	}

	var mirror jobs.Mirror
	if cfg.RedisURL != "" {
		m, err := jobs.NewRedisMirror(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis indisponible, suivi des imports en mémoire uniquement")
		} else {
			mirror = m
			a.closers = append(a.closers, m.Close)
		}
	}

	im := importer.New(a.Gateway, importer.Limits{
		Products: cfg.ProductConcurrency,
		Variants: cfg.VariantConcurrency,
		Images:   cfg.ImageConcurrency,
	})
	im.DefaultStock = cfg.DefaultStock
	im.CallTimeout = cfg.CallTimeout
	store := jobs.NewStore(mirror)
	a.closers = append([]func() error{store.Close}, a.closers...)
	a.ImportUC = usecase.NewImportUC(im, store)

	log.Info().
		Str("backend", cfg.CatalogBackend).
		Str("storage", cfg.StorageDriver).
		Bool("redis", mirror != nil).
		Msg("application configurée")
	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (domain.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageLocalFS:
		st, err := localfs.New(cfg.StorageDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorageS3:
		st, err := s3store.New(ctx, s3store.Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKey,
			SecretAccessKey: cfg.AWSSecretKey,
			PublicBase:      publicBaseFor(cfg),
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, nil
}

// publicBaseFor ignores the local default when objects live in S3.
func publicBaseFor(cfg *config.Config) string {
	if strings.HasPrefix(cfg.PublicBaseURL, "http") {
		return cfg.PublicBaseURL
	}
	return ""
}

func (a *App) HTTPHandler() http.Handler {
	uploads := ""
	if a.Config.StorageDriver == config.StorageLocalFS && strings.HasPrefix(a.Config.PublicBaseURL, "/uploads") {
		uploads = a.Config.StorageDir
	}
	return httpserver.New(a.ProductUC, a.ImportUC, httpserver.Options{
		AdminToken:  a.Config.AdminToken,
		MaxUploadMB: a.Config.MaxUploadMB,
		UploadsDir:  uploads,
	})
}

func (a *App) Migrate() error {
	if a.DB == nil {
		return nil
	}
	return postgres.Migrate(a.DB)
}

// Close waits for running imports then releases external clients.
func (a *App) Close() {
	a.ImportUC.Wait()
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("fermeture")
		}
	}
}
