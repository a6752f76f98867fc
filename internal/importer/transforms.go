package importer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/phenrril/tiendatextil/internal/spreadsheet"
)

const fallbackHex = "#000000"

var (
	cmykLabeled = regexp.MustCompile(`(?i)C\s*[=:]\s*(\d{1,3})\s*%?\s*,?\s*M\s*[=:]\s*(\d{1,3})\s*%?\s*,?\s*Y\s*[=:]\s*(\d{1,3})\s*%?\s*,?\s*K\s*[=:]\s*(\d{1,3})\s*%?`)
	cmykComma   = regexp.MustCompile(`^\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*$`)
	cmykSpace   = regexp.MustCompile(`^\s*(\d{1,3})\s+(\d{1,3})\s+(\d{1,3})\s+(\d{1,3})\s*$`)
	weightJunk  = regexp.MustCompile(`[^0-9.,]`)
	priceJunk   = regexp.MustCompile(`[^0-9.,-]`)
)

// CMYKToHex converts a CMYK string (0-100 per channel) to #RRGGBB. Accepted:
// "C=0 M=0 Y=0 K=0", "C: 0% M: 0% Y: 0% K: 0%", "0,0,0,0" and "0 0 0 0".
// Anything else yields #000000.
func CMYKToHex(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallbackHex
	}
	var m []string
	for _, re := range []*regexp.Regexp{cmykLabeled, cmykComma, cmykSpace} {
		if m = re.FindStringSubmatch(s); m != nil {
			break
		}
	}
	if m == nil {
		return fallbackHex
	}
	var ch [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 100 {
			return fallbackHex
		}
		ch[i] = float64(v) / 100
	}
	c, mg, y, k := ch[0], ch[1], ch[2], ch[3]
	r := math.Round(255 * (1 - c) * (1 - k))
	g := math.Round(255 * (1 - mg) * (1 - k))
	b := math.Round(255 * (1 - y) * (1 - k))
	return fmt.Sprintf("#%02X%02X%02X", int(r), int(g), int(b))
}

// ApplyPriceMultiplier scales the price column in place. Rows whose price is
// not a positive number are left untouched.
func ApplyPriceMultiplier(rows []spreadsheet.RawRow, column string, factor float64) {
	if column == "" || factor <= 0 || factor == 1 {
		return
	}
	for _, row := range rows {
		p := ParsePrice(row.Get(column))
		if p <= 0 {
			continue
		}
		row[column] = strconv.FormatFloat(math.Round(p*factor*100)/100, 'f', 2, 64)
	}
}

// ConvertCMYKColumn replaces CMYK strings in column by their hex value.
func ConvertCMYKColumn(rows []spreadsheet.RawRow, column string) {
	if column == "" {
		return
	}
	for _, row := range rows {
		if v := row.Get(column); v != "" && !strings.HasPrefix(v, "#") {
			row[column] = CMYKToHex(v)
		}
	}
}

// ExtractManufacturers returns the distinct non-empty manufacturers, sorted.
func ExtractManufacturers(rows []spreadsheet.RawRow, column string) []string {
	if column == "" {
		return nil
	}
	set := map[string]struct{}{}
	for _, row := range rows {
		if v := row.Get(column); v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FilterByManufacturer keeps rows whose manufacturer is in allow. An empty
// allow-list keeps everything.
func FilterByManufacturer(rows []spreadsheet.RawRow, column string, allow []string) []spreadsheet.RawRow {
	if column == "" || len(allow) == 0 {
		return rows
	}
	ok := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		ok[strings.TrimSpace(a)] = struct{}{}
	}
	out := make([]spreadsheet.RawRow, 0, len(rows))
	for _, row := range rows {
		if _, keep := ok[row.Get(column)]; keep {
			out = append(out, row)
		}
	}
	return out
}

// ParsePrice reads "12.50", "12,50" or "12,50 €". Unreadable or negative
// input is 0.
func ParsePrice(s string) float64 {
	s = priceJunk.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return 0
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// ParseWeight reads a grammage such as "180", "180 g/m²" or "185,5" and
// rounds it. Unreadable input is nil.
func ParseWeight(s string) *int {
	s = weightJunk.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	w := int(math.Round(v))
	return &w
}

var truthy = map[string]struct{}{"oui": {}, "yes": {}, "true": {}, "1": {}}

func ParseFlag(s string) bool {
	_, ok := truthy[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
