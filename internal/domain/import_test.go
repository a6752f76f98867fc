package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportProgressCloneEncodesEmptyLists(t *testing.T) {
	c := ImportProgress{Total: 2}.Clone()

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"errors":[]`)
	assert.Contains(t, string(raw), `"warnings":[]`)
}

func TestImportProgressCloneDoesNotShareSlices(t *testing.T) {
	p := ImportProgress{Errors: []string{"a"}, Warnings: []string{"w"}}
	c := p.Clone()
	c.Errors[0] = "b"
	c.Warnings = append(c.Warnings, "x")

	assert.Equal(t, []string{"a"}, p.Errors)
	assert.Equal(t, []string{"w"}, p.Warnings)
}
