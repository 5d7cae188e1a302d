package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestImport_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letters.csv")
	data := "id,symbol,name,example,image,symbol_audio,word_audio,order\n" +
		"BA,ب,باء,بطة,🦆,,,2\n" +
		"alif,أ,ألف,أسد,🦁,,,1\n" +
		",,,,,,,\n" +
		"ta,,تاء,تفاحة,🍎,,,3\n" +
		"ba,ب,باء,باب,🚪,,,2\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := Import(cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Row 5")

	require.Len(t, result.Units, 2)
	assert.Equal(t, "alif", result.Units[0].ID)
	assert.Equal(t, "ba", result.Units[1].ID)
	assert.Equal(t, "باب", result.Units[1].ExampleWord)

	_, err = New(result.Units)
	assert.NoError(t, err)
}

func TestImport_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letters.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"id", "symbol", "name", "example"},
		{"alif", "أ", "ألف", "أسد"},
		{"ba", "ب", "باء", "بطة"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := Import(cfg)
	require.NoError(t, err)

	require.Len(t, result.Units, 2)
	// Without an order column the row number is used
	assert.Equal(t, 2, result.Units[0].Order)
	assert.Equal(t, 3, result.Units[1].Order)
	assert.Equal(t, "بطة", result.Units[1].ExampleWord)
}

func TestImport_MissingFile(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	_, err := Import(cfg)
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 7, columnToIndex("h"))
	assert.Equal(t, 26, columnToIndex("AA"))
	assert.Equal(t, -1, columnToIndex("1"))
}
