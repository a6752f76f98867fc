package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	rows := [][]interface{}{
		{"SKU", "Designation", "CMYK", "Size", "Price", "Catalog reference", "Brand"},
		{"K1-S", "Polo", "0 0 0 100", "S", "5", "K1", "Kariban"},
		{"W1-M", "Sweat", "0 0 0 0", "M", "8", "W1", "WK"},
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "toptex.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestManufacturersCommand(t *testing.T) {
	out, err := execute(t, "manufacturers", "--supplier", "toptex", writeWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Kariban", "WK"}, strings.Fields(out))
}

func TestPreviewCommand(t *testing.T) {
	out, err := execute(t, "preview", "-s", "toptex", writeWorkbook(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"total_products": 2`)
	assert.Contains(t, out, `"#000000"`)
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, "preview", "-s", "inconnu", writeWorkbook(t))
	assert.Error(t, err)

	_, err = execute(t, "preview", writeWorkbook(t))
	assert.Error(t, err)

	_, err = execute(t, "preview", "-s", "toptex", filepath.Join(os.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
