package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// nullLiterals are the cell spellings treated as null when reading CSV
var nullLiterals = map[string]bool{
	"":     true,
	"na":   true,
	"NA":   true,
	"N/A":  true,
	"null": true,
	"NULL": true,
}

// CSVLoader loads CSV files into typed tables, inferring column types
// from the data unless an override is given
type CSVLoader struct {
	TypeOverrides map[string]models.ColumnType
	Logger        *logrus.Logger
}

// NewCSVLoader creates a new CSV loader
func NewCSVLoader(logger *logrus.Logger) *CSVLoader {
	return &CSVLoader{
		TypeOverrides: make(map[string]models.ColumnType),
		Logger:        logger,
	}
}

// Load reads a CSV file with a header row into a typed table
func (cl *CSVLoader) Load(path string) (*models.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		cl.Logger.Errorf("Error opening CSV file %s: %v", path, err)
		return nil, err
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return cl.LoadReader(name, file)
}

// LoadReader parses CSV content with a header row into a typed table
func (cl *CSVLoader) LoadReader(name string, r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV input %s is empty", name)
	}
	if err != nil {
		cl.Logger.Errorf("Error reading CSV header: %v", err)
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		cl.Logger.Errorf("Error reading CSV records: %v", err)
		return nil, err
	}

	// Gather the raw cells per column for type inference
	cells := make([][]string, len(header))
	for _, record := range records {
		for i := range header {
			cells[i] = append(cells[i], record[i])
		}
	}

	columns := make([]models.Column, len(header))
	for i, colName := range header {
		colType, overridden := cl.TypeOverrides[colName]
		if !overridden {
			colType = inferColumnType(cells[i])
		}
		columns[i] = models.Column{Name: colName, Type: colType}
	}

	rows := make([]models.Row, len(records))
	for i, record := range records {
		row := make(models.Row, len(columns))
		for j, col := range columns {
			row[col.Name] = convertCSVValue(record[j], col.Type)
		}
		rows[i] = row
	}

	table, err := models.NewTable(name, columns, rows)
	if err != nil {
		return nil, err
	}

	cl.Logger.Infof("Loaded CSV %s: %d records, %d columns", name, table.NumRows(), table.NumColumns())
	return table, nil
}

// inferColumnType picks the narrowest type that fits every non-null cell.
// A column whose cells disagree is mixed; a column of plain text is a
// string column; a column with no values at all defaults to string.
func inferColumnType(cells []string) models.ColumnType {
	sawValue := false
	anyTyped := false
	allInt, allFloat, allBool, allTime := true, true, true, true

	for _, cell := range cells {
		if nullLiterals[cell] {
			continue
		}
		sawValue = true

		isInt := parsesAsInt(cell)
		isFloat := parsesAsFloat(cell)
		isBool := parsesAsBool(cell)
		isTime := parsesAsTime(cell)

		if isInt || isFloat || isBool || isTime {
			anyTyped = true
		}
		allInt = allInt && isInt
		allFloat = allFloat && isFloat
		allBool = allBool && isBool
		allTime = allTime && isTime
	}

	switch {
	case !sawValue:
		return models.TypeString
	case allInt:
		return models.TypeInteger
	case allFloat:
		return models.TypeFloat
	case allBool:
		return models.TypeBoolean
	case allTime:
		return models.TypeTime
	case !anyTyped:
		return models.TypeString
	default:
		return models.TypeMixed
	}
}

// convertCSVValue parses one cell under the column's declared type
func convertCSVValue(cell string, colType models.ColumnType) models.Value {
	if nullLiterals[cell] {
		return models.NullValue()
	}

	switch colType {
	case models.TypeInteger:
		if parsed, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return models.IntegerValue(parsed)
		}
	case models.TypeFloat:
		if parsed, err := strconv.ParseFloat(cell, 64); err == nil {
			return models.FloatValue(parsed)
		}
	case models.TypeBoolean:
		if parsed, err := strconv.ParseBool(cell); err == nil {
			return models.BooleanValue(parsed)
		}
	case models.TypeTime:
		if parsed, err := dateparse.ParseAny(cell); err == nil {
			return models.TimeValue(parsed)
		}
	case models.TypeMixed:
		return detectValue(cell)
	}
	return models.StringValue(cell)
}

// detectValue types a single cell on its own, narrowest first
func detectValue(cell string) models.Value {
	if parsed, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return models.IntegerValue(parsed)
	}
	if parsed, err := strconv.ParseFloat(cell, 64); err == nil {
		return models.FloatValue(parsed)
	}
	if parsed, err := strconv.ParseBool(cell); err == nil {
		return models.BooleanValue(parsed)
	}
	if parsed, err := dateparse.ParseAny(cell); err == nil {
		return models.TimeValue(parsed)
	}
	return models.StringValue(cell)
}

func parsesAsInt(cell string) bool {
	_, err := strconv.ParseInt(cell, 10, 64)
	return err == nil
}

func parsesAsFloat(cell string) bool {
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}

func parsesAsBool(cell string) bool {
	_, err := strconv.ParseBool(cell)
	return err == nil
}

func parsesAsTime(cell string) bool {
	_, err := dateparse.ParseAny(cell)
	return err == nil
}
