package postgres

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/tiendatextil/internal/domain"
)

// Migrate creates or updates the catalog tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Category{}, &domain.Product{}, &domain.Variant{}, &domain.Image{}); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for name, stmt := range map[string]string{
		"idx_variants_product_sku": "CREATE INDEX IF NOT EXISTS idx_variants_product_sku ON variants (product_id, sku)",
		"idx_images_one_primary":   "CREATE UNIQUE INDEX IF NOT EXISTS idx_images_one_primary ON images (product_id) WHERE is_primary",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warn().Err(err).Str("index", name).Msg("création d'index impossible")
		}
	}
	return nil
}
