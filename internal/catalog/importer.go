package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/example/khutwa/pkg/models"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	IDColumn          string // Column with the stable unit id
	SymbolColumn      string // Column with the letter glyph
	NameColumn        string // Column with the letter name
	ExampleColumn     string // Column with the example word
	ImageColumn       string // Column with the image reference
	SymbolAudioColumn string // Column with the letter cue key (optional)
	WordAudioColumn   string // Column with the word cue key (optional)
	OrderColumn       string // Column with the catalog position (optional)
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		IDColumn:          "A",
		SymbolColumn:      "B",
		NameColumn:        "C",
		ExampleColumn:     "D",
		ImageColumn:       "E",
		SymbolAudioColumn: "F",
		WordAudioColumn:   "G",
		OrderColumn:       "H",
		SheetName:         "Sheet1",
		StartRow:          2, // Skip the header row
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	Units          []models.UnitContent
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Import reads units from an Excel or CSV file. Rows are returned sorted by
// order; rows without an order take their row number.
func Import(config ImportConfig) (*ImportResult, error) {
	var rows [][]string
	var err error

	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	return importRows(rows, config), nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func importRows(rows [][]string, config ImportConfig) *ImportResult {
	result := &ImportResult{Errors: make([]string, 0)}
	seen := make(map[string]int)

	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		rowNum := i + 1

		if isBlank(row) {
			result.Skipped++
			continue
		}
		result.TotalProcessed++

		unit, err := processRow(row, config, rowNum)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			result.Skipped++
			continue
		}

		// A repeated id replaces the earlier row
		if idx, ok := seen[unit.ID]; ok {
			result.Units[idx] = unit
			result.Updated++
			continue
		}
		seen[unit.ID] = len(result.Units)
		result.Units = append(result.Units, unit)
		result.Created++
	}

	sort.SliceStable(result.Units, func(i, j int) bool {
		return result.Units[i].Order < result.Units[j].Order
	})
	return result
}

// processRow processes a single row from either source
func processRow(row []string, config ImportConfig, rowNum int) (models.UnitContent, error) {
	unit := models.UnitContent{
		ID:             strings.ToLower(cell(row, config.IDColumn)),
		Symbol:         cell(row, config.SymbolColumn),
		Name:           cell(row, config.NameColumn),
		ExampleWord:    cell(row, config.ExampleColumn),
		ImageRef:       cell(row, config.ImageColumn),
		SymbolAudioKey: cell(row, config.SymbolAudioColumn),
		WordAudioKey:   cell(row, config.WordAudioColumn),
		Order:          parseIntOrDefault(cell(row, config.OrderColumn), rowNum),
	}

	if unit.ID == "" {
		return unit, fmt.Errorf("id cannot be empty")
	}
	if unit.Symbol == "" {
		return unit, fmt.Errorf("symbol cannot be empty")
	}
	if unit.Name == "" {
		unit.Name = unit.Symbol
	}
	return unit, nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// columnToIndex converts an Excel column letter to a zero-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

func parseIntOrDefault(s string, defaultVal int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}
