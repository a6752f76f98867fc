package importer

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// generateSKU builds {product}-{color}-{size}-{timestamp}-{random} for rows
// that carry no SKU of their own.
func generateSKU(productID uuid.UUID, colorKey, size string, now time.Time) string {
	pid := strings.ToUpper(strings.ReplaceAll(productID.String(), "-", ""))[:8]

	color := colorKey
	if strings.Contains(color, "/") {
		color = strings.TrimSuffix(path.Base(color), path.Ext(color))
	}
	color = skuToken(color, 6)
	if color == "" {
		color = "DEF"
	}
	sz := skuToken(size, 10)
	if sz == "" {
		sz = "U"
	}
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s-%s-%s", pid, color, sz, strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)), random)
}

func skuToken(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == max {
				break
			}
		}
	}
	return b.String()
}
