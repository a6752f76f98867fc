package importer

import (
	"sort"
	"strings"

	"github.com/phenrril/tiendatextil/internal/spreadsheet"
)

// ColorPolicy decides how a color group's swatch is stored on its variants.
type ColorPolicy int

const (
	// ColorHexOnly always stores a hex color and drops any swatch URL.
	ColorHexOnly ColorPolicy = iota
	// ColorPreferURL stores the swatch URL and leaves the hex empty when a
	// URL exists, otherwise falls back to the hex.
	ColorPreferURL
)

const (
	defaultHex  = "#CCCCCC"
	defaultSize = "Unique"
)

// SupplierProfile captures everything that differs between supplier files.
type SupplierProfile struct {
	Name               string                    `json:"name"`
	Label              string                    `json:"label"`
	Columns            spreadsheet.ColumnMapping `json:"columns"`
	ColorPolicy        ColorPolicy               `json:"color_policy"`
	CMYKColors         bool                      `json:"cmyk_colors"`
	PriceMultiplier    float64                   `json:"price_multiplier"`
	ManufacturerColumn string                    `json:"manufacturer_column"`
}

// Preprocess applies the supplier's value normalization to rows in place and
// returns the rows kept by the manufacturer allow-list.
func (p SupplierProfile) Preprocess(rows []spreadsheet.RawRow, manufacturers []string) []spreadsheet.RawRow {
	rows = FilterByManufacturer(rows, p.ManufacturerColumn, manufacturers)
	if p.CMYKColors {
		ConvertCMYKColumn(rows, p.Columns.ColorCode)
	}
	ApplyPriceMultiplier(rows, p.Columns.Price, p.PriceMultiplier)
	return rows
}

// resolveColor returns the variant color and color URL for a color group.
func (p SupplierProfile) resolveColor(code, url string) (*string, string) {
	if p.ColorPolicy == ColorPreferURL && url != "" {
		return nil, url
	}
	hex := strings.TrimSpace(code)
	switch {
	case hex == "":
		hex = defaultHex
	case !strings.HasPrefix(hex, "#"):
		hex = "#" + hex
	}
	hex = strings.ToUpper(hex)
	return &hex, ""
}

var profiles = map[string]SupplierProfile{
	"sologroup": {
		Name:  "sologroup",
		Label: "SOL'S Group",
		Columns: spreadsheet.ColumnMapping{
			SKU:               "Référence",
			ProductName:       "Nom du produit",
			ColorCode:         "Code couleur",
			ColorURL:          "Visuel couleur",
			Size:              "Taille",
			Price:             "Prix",
			ParentProduct:     "Produit parent",
			MainImage:         "Image principale",
			ModelImageA:       "Image modèle A",
			ModelImageB:       "Image modèle B",
			ModelImageC:       "Image modèle C",
			Description:       "Description",
			WeightGSM:         "Grammage",
			SupplierReference: "Référence fournisseur",
			Material:          "Composition",
			IsFeatured:        "Mis en avant",
			IsNew:             "Nouveauté",
		},
		ColorPolicy:        ColorPreferURL,
		ManufacturerColumn: "Marque",
	},
	"toptex": {
		Name:  "toptex",
		Label: "TopTex",
		Columns: spreadsheet.ColumnMapping{
			SKU:               "SKU",
			ProductName:       "Designation",
			ColorCode:         "CMYK",
			Size:              "Size",
			Price:             "Price",
			ParentProduct:     "Catalog reference",
			MainImage:         "Packshot",
			ModelImageA:       "Model picture 1",
			ModelImageB:       "Model picture 2",
			ModelImageC:       "Model picture 3",
			Description:       "Description",
			WeightGSM:         "Weight (g/m²)",
			SupplierReference: "Supplier reference",
			Material:          "Composition",
		},
		ColorPolicy:        ColorHexOnly,
		CMYKColors:         true,
		PriceMultiplier:    1.30,
		ManufacturerColumn: "Brand",
	},
	"imbretex": {
		Name:  "imbretex",
		Label: "Imbretex",
		Columns: spreadsheet.ColumnMapping{
			SKU:               "Code article",
			ProductName:       "Libellé",
			ColorCode:         "Couleur HEX",
			ColorURL:          "Visuel couleur",
			Size:              "Taille",
			Price:             "Prix HT",
			ParentProduct:     "Code parent",
			MainImage:         "Image",
			ModelImageA:       "Photo 1",
			ModelImageB:       "Photo 2",
			ModelImageC:       "Photo 3",
			Description:       "Description",
			WeightGSM:         "Poids",
			SupplierReference: "Référence fabricant",
			Material:          "Matière",
		},
		ColorPolicy:        ColorHexOnly,
		ManufacturerColumn: "Marque",
	},
}

func ProfileByName(name string) (SupplierProfile, bool) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Profiles lists the built-in supplier profiles sorted by name.
func Profiles() []SupplierProfile {
	out := make([]SupplierProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
