package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	previewLimit   = 5
	fallbackPrefix = "PROD_"
)

// EmptyFileError is returned when the first sheet holds no data rows.
type EmptyFileError struct {
	Sheet string
}

func (e *EmptyFileError) Error() string {
	if e.Sheet == "" {
		return "le fichier est vide"
	}
	return fmt.Sprintf("le fichier est vide (feuille %q)", e.Sheet)
}

// ProductGroup is the set of rows sharing one parent product key.
type ProductGroup struct {
	Key  string   `json:"key"`
	Rows []RawRow `json:"rows"`
}

type ParseResult struct {
	Headers       []string       `json:"headers"`
	PreviewRows   []RawRow       `json:"preview_rows"`
	Groups        []ProductGroup `json:"-"`
	Unassigned    []RawRow       `json:"-"`
	TotalRows     int            `json:"total_rows"`
	TotalProducts int            `json:"total_products"`
	TotalVariants int            `json:"total_variants"`
	// Synthetic reports that group keys were derived from SKUs.
	Synthetic bool `json:"synthetic"`
}

// Rows returns every decoded row, grouped rows first.
func (r *ParseResult) Rows() []RawRow {
	out := make([]RawRow, 0, r.TotalRows)
	for _, g := range r.Groups {
		out = append(out, g.Rows...)
	}
	return append(out, r.Unassigned...)
}

// Decode reads the first sheet of an xlsx workbook into header-keyed rows.
func Decode(data []byte) ([]string, []RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("lecture du classeur: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, &EmptyFileError{}
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("lecture de la feuille %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, nil, &EmptyFileError{Sheet: sheet}
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = trimCell(h)
	}

	records := make([]RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := RawRow{}
		empty := true
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			if _, dup := rec[h]; dup {
				continue
			}
			v := trimCell(row[i])
			if v != "" {
				empty = false
			}
			rec[h] = v
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, nil, &EmptyFileError{Sheet: sheet}
	}
	return headers, records, nil
}

// Parse decodes an xlsx file and groups its rows by parent product.
func Parse(data []byte, m ColumnMapping) (*ParseResult, error) {
	headers, rows, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ParseRows(headers, rows, m), nil
}

// ParseRows groups already decoded rows. Rows without a parent product stay
// unassigned unless no group could be formed at all, in which case keys are
// synthesized from the SKU or an article code column.
func ParseRows(headers []string, rows []RawRow, m ColumnMapping) *ParseResult {
	res := &ParseResult{Headers: headers, TotalRows: len(rows)}
	n := len(rows)
	if n > previewLimit {
		n = previewLimit
	}
	res.PreviewRows = rows[:n]

	idx := map[string]int{}
	add := func(key string, row RawRow) {
		i, ok := idx[key]
		if !ok {
			i = len(res.Groups)
			idx[key] = i
			res.Groups = append(res.Groups, ProductGroup{Key: key})
		}
		res.Groups[i].Rows = append(res.Groups[i].Rows, row)
	}

	for _, row := range rows {
		key := row.Get(m.ParentProduct)
		if key == "" {
			res.Unassigned = append(res.Unassigned, row)
			continue
		}
		add(key, row)
	}

	if len(res.Groups) == 0 && len(res.Unassigned) > 0 {
		pending := res.Unassigned
		res.Unassigned = nil
		for _, row := range pending {
			sku := fallbackKey(row, m, headers)
			if sku == "" {
				res.Unassigned = append(res.Unassigned, row)
				continue
			}
			add(fallbackPrefix+sku, row)
		}
		res.Synthetic = len(res.Groups) > 0
		if res.Synthetic {
			log.Debug().Int("groups", len(res.Groups)).Msg("aucun produit parent, regroupement par SKU")
		}
	}

	res.TotalProducts = len(res.Groups)
	for _, g := range res.Groups {
		res.TotalVariants += len(g.Rows)
	}
	return res
}

func fallbackKey(row RawRow, m ColumnMapping, headers []string) string {
	if v := row.Get(m.SKU); v != "" {
		return v
	}
	for _, cand := range articleCodeHeaders {
		for _, h := range headers {
			if strings.EqualFold(h, cand) {
				if v := row.Get(h); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func trimCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
