package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	c, err := FromEnv(lookup(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, BackendPostgres, c.CatalogBackend)
	assert.Equal(t, StorageNone, c.StorageDriver)
	assert.Equal(t, 5, c.MaxUploadMB)
	assert.Equal(t, 5, c.ProductConcurrency)
	assert.Equal(t, 10, c.VariantConcurrency)
	assert.Equal(t, 3, c.ImageConcurrency)
	assert.Equal(t, 30*time.Second, c.CallTimeout)
	assert.Equal(t, 10, c.DefaultStock)
	assert.Equal(t, "host=localhost user=postgres password=postgres dbname=tiendatextil port=5432 sslmode=disable", c.DSN)
}

func TestOverrides(t *testing.T) {
	c, err := FromEnv(lookup(map[string]string{
		"DB_DSN":                     "postgres://u:p@db/x",
		"IMPORT_CALL_TIMEOUT":        "45",
		"IMPORT_PRODUCT_CONCURRENCY": "2",
		"STORAGE_DRIVER":             "S3",
		"S3_BUCKET":                  "catalogue",
		"APP_ENV":                    "Production",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/x", c.DSN)
	assert.Equal(t, 45*time.Second, c.CallTimeout)
	assert.Equal(t, 2, c.ProductConcurrency)
	assert.Equal(t, StorageS3, c.StorageDriver)
	assert.True(t, c.IsProduction())
}

func TestInvalidValues(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{"IMPORT_VARIANT_CONCURRENCY": "zero"}))
	assert.ErrorContains(t, err, "IMPORT_VARIANT_CONCURRENCY")

	_, err = FromEnv(lookup(map[string]string{"CATALOG_BACKEND": "supabase"}))
	assert.Error(t, err)

	_, err = FromEnv(lookup(map[string]string{"STORAGE_DRIVER": "s3"}))
	assert.Error(t, err)

	_, err = FromEnv(lookup(map[string]string{"STORAGE_DRIVER": "ftp"}))
	assert.Error(t, err)
}
