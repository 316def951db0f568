package export

import (
	"bytes"
	"testing"

	"layout-server/core"
	"layout-server/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestManifest(t *testing.T) {
	lines := []workspace.ManifestLine{
		{
			ProductID: "desk-1",
			Product: core.Product{
				ID: "desk-1", Name: "Standing Desk", Category: core.CategoryDesk,
				Dimensions: &core.Dimensions{Width: 140, Height: 75, Depth: 70},
			},
			Quantity: 2,
			ItemIDs:  []string{"a", "b"},
		},
		{
			ProductID: "lamp-1",
			Product:   core.Product{ID: "lamp-1", Name: "Lamp", Category: core.CategoryAccessory},
			Quantity:  1,
			ItemIDs:   []string{"c"},
		},
	}

	data, err := Manifest(lines)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ManifestSheet}, f.GetSheetList())

	rows, err := f.GetRows(ManifestSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, manifestHeader, rows[0])
	assert.Equal(t, []string{"desk-1", "Standing Desk", "desk", "140", "75", "70", "2", "a, b"}, rows[1])
	assert.Equal(t, []string{"lamp-1", "Lamp", "accessory", "", "", "", "1", "c"}, rows[2])
}

func TestManifest_Empty(t *testing.T) {
	data, err := Manifest(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ManifestSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, manifestHeader, rows[0])
}
