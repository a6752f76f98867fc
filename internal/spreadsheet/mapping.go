package spreadsheet

// ColumnMapping maps the logical fields the importer reads to the header used
// in a supplier file. An empty string means the supplier has no such column.
type ColumnMapping struct {
	SKU               string `json:"sku"`
	ProductName       string `json:"product_name"`
	ColorCode         string `json:"color_code"`
	ColorURL          string `json:"color_url"`
	Size              string `json:"size"`
	Price             string `json:"price"`
	ParentProduct     string `json:"parent_product"`
	MainImage         string `json:"main_image"`
	ModelImageA       string `json:"model_image_a"`
	ModelImageB       string `json:"model_image_b"`
	ModelImageC       string `json:"model_image_c"`
	Description       string `json:"description"`
	WeightGSM         string `json:"weight_gsm"`
	SupplierReference string `json:"supplier_reference"`
	Material          string `json:"material"`
	IsFeatured        string `json:"is_featured"`
	IsNew             string `json:"is_new"`
}

// RawRow is one spreadsheet data row keyed by header.
type RawRow map[string]string

// Get returns the trimmed cell for column, or "" when the column is unmapped
// or absent from the row.
func (r RawRow) Get(column string) string {
	if column == "" || r == nil {
		return ""
	}
	return trimCell(r[column])
}

// articleCodeHeaders are tried, in order, when rows carry no parent product
// and the mapped SKU column is empty too.
var articleCodeHeaders = []string{"Code article", "Article", "Référence", "Reference", "SKU"}
