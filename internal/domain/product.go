package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:140;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string    `gorm:"size:180" json:"name"`
	Description       string    `gorm:"type:text" json:"description"`
	BasePrice         float64   `gorm:"type:decimal(12,2)" json:"base_price"`
	WeightGSM         *int      `gorm:"type:int" json:"weight_gsm"`
	SupplierReference string    `gorm:"size:120;index" json:"supplier_reference"`
	Material          string    `gorm:"size:180" json:"material"`
	IsFeatured        bool      `gorm:"default:false" json:"is_featured"`
	IsNew             bool      `gorm:"default:false" json:"is_new"`
	CategoryID        uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	ImageURL          string    `gorm:"size:500" json:"image_url"`
	Images            []Image   `json:"images,omitempty"`
	Variants          []Variant `json:"variants,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Variant struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID       uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Size            string    `gorm:"size:40" json:"size"`
	Color           *string   `gorm:"size:20" json:"color"`
	ColorURL        string    `gorm:"size:500" json:"color_url,omitempty"`
	StockQuantity   int       `gorm:"type:int;default:0" json:"stock_quantity"`
	PriceAdjustment float64   `gorm:"type:decimal(12,2);default:0" json:"price_adjustment"`
	SKU             string    `gorm:"size:160;index" json:"sku"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Image struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID  `gorm:"type:uuid;index" json:"product_id"`
	VariantID *uuid.UUID `gorm:"type:uuid;index" json:"variant_id"`
	URL       string     `gorm:"size:500" json:"url"`
	IsPrimary bool       `gorm:"default:false" json:"is_primary"`
	CreatedAt time.Time  `json:"created_at"`
}

// ProductData is the creation payload for a product. CategoryID must be set.
type ProductData struct {
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

type VariantData struct {
	ProductID       uuid.UUID `json:"product_id"`
	Size            string    `json:"size"`
	Color           *string   `json:"color"`
	ColorURL        string    `json:"color_url,omitempty"`
	StockQuantity   int       `json:"stock_quantity"`
	PriceAdjustment float64   `json:"price_adjustment"`
	SKU             string    `json:"sku"`
}

type ProductFilter struct {
	CategoryID uuid.UUID
	Query      string
	Page       int
	PageSize   int
}
