package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"

	StorageNone    = "none"
	StorageLocalFS = "localfs"
	StorageS3      = "s3"
)

type Config struct {
	Env  string
	Port string

	DSN string

	CatalogBackend string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	StorageDriver string
	StorageDir    string
	PublicBaseURL string
	S3Bucket      string
	AWSRegion     string
	AWSEndpoint   string
	AWSAccessKey  string
	AWSSecretKey  string

	RedisURL    string
	AdminToken  string
	MaxUploadMB int

	ProductConcurrency int
	VariantConcurrency int
	ImageConcurrency   int
	CallTimeout        time.Duration
	DefaultStock       int
	ImageFetchRPS      float64
	ImageMaxMB         int
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	c := &Config{
		Env:                strings.ToLower(e.str("APP_ENV", "development")),
		Port:               e.str("PORT", "8080"),
		DSN:                e.dsn(),
		CatalogBackend:     strings.ToLower(e.str("CATALOG_BACKEND", BackendPostgres)),
		SupabaseURL:        e.str("SUPABASE_URL", ""),
		SupabaseKey:        e.str("SUPABASE_KEY", ""),
		SupabaseBucket:     e.str("SUPABASE_BUCKET", "product-images"),
		StorageDriver:      strings.ToLower(e.str("STORAGE_DRIVER", StorageNone)),
		StorageDir:         e.str("STORAGE_DIR", "uploads"),
		PublicBaseURL:      e.str("PUBLIC_BASE_URL", "/uploads"),
		S3Bucket:           e.str("S3_BUCKET", ""),
		AWSRegion:          e.str("AWS_REGION", "eu-west-3"),
		AWSEndpoint:        e.str("AWS_ENDPOINT", ""),
		AWSAccessKey:       e.str("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:       e.str("AWS_SECRET_ACCESS_KEY", ""),
		RedisURL:           e.str("REDIS_URL", ""),
		AdminToken:         e.str("ADMIN_TOKEN", ""),
		MaxUploadMB:        e.integer("MAX_UPLOAD_MB", 5),
		ProductConcurrency: e.integer("IMPORT_PRODUCT_CONCURRENCY", 5),
		VariantConcurrency: e.integer("IMPORT_VARIANT_CONCURRENCY", 10),
		ImageConcurrency:   e.integer("IMPORT_IMAGE_CONCURRENCY", 3),
		CallTimeout:        e.duration("IMPORT_CALL_TIMEOUT", 30*time.Second),
		DefaultStock:       e.integer("IMPORT_DEFAULT_STOCK", 10),
		ImageFetchRPS:      e.decimal("IMAGE_FETCH_RPS", 4),
		ImageMaxMB:         e.integer("IMAGE_MAX_MB", 10),
	}
	if e.err != nil {
		return nil, e.err
	}
	return c, c.validate()
}

func (c *Config) IsProduction() bool { return c.Env == "production" || c.Env == "prod" }

func (c *Config) validate() error {
	switch c.CatalogBackend {
	case BackendPostgres:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("CATALOG_BACKEND=supabase requiert SUPABASE_URL et SUPABASE_KEY")
		}
	default:
		return fmt.Errorf("CATALOG_BACKEND inconnu: %q", c.CatalogBackend)
	}
	switch c.StorageDriver {
	case StorageNone, StorageLocalFS:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=s3 requiert S3_BUCKET")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER inconnu: %q", c.StorageDriver)
	}
	if c.IsProduction() && c.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN vide: les routes d'administration sont ouvertes")
	}
	return nil
}

type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.fail(key, v)
		return def
	}
	return n
}

func (e *env) decimal(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		e.fail(key, v)
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if secs, err2 := strconv.Atoi(v); err2 == nil {
			d, err = time.Duration(secs)*time.Second, nil
		}
	}
	if err != nil || d <= 0 {
		e.fail(key, v)
		return def
	}
	return d
}

func (e *env) fail(key, v string) {
	if e.err == nil {
		e.err = fmt.Errorf("valeur invalide pour %s: %q", key, v)
	}
}

// dsn honours DB_DSN, otherwise assembles one from DB_* and POSTGRES_* vars.
func (e *env) dsn() string {
	if dsn := e.str("DB_DSN", ""); dsn != "" {
		return dsn
	}
	user := e.str("DB_USER", e.str("POSTGRES_USER", "postgres"))
	pass := e.str("DB_PASSWORD", e.str("POSTGRES_PASSWORD", "postgres"))
	name := e.str("DB_NAME", e.str("POSTGRES_DB", "tiendatextil"))
	return "host=" + e.str("DB_HOST", "localhost") +
		" user=" + user +
		" password=" + pass +
		" dbname=" + name +
		" port=" + e.str("DB_PORT", "5432") +
		" sslmode=" + e.str("DB_SSLMODE", "disable")
}
