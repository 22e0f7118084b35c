package comparator

import (
	"sort"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// SchemaComparator compares the declared columns of two table versions
type SchemaComparator struct {
	Logger *logrus.Logger
}

// NewSchemaComparator creates a new schema comparator
func NewSchemaComparator(logger *logrus.Logger) *SchemaComparator {
	return &SchemaComparator{
		Logger: logger,
	}
}

// ValidateSubset checks that every requested column exists in at least one
// of the two table versions. A column present on only one side is a valid
// request: it will surface as an added or removed column.
func (sc *SchemaComparator) ValidateSubset(oldTable, newTable *models.Table, subset []string) error {
	for _, col := range subset {
		if !oldTable.HasColumn(col) && !newTable.HasColumn(col) {
			return models.NewConfigurationError("column %s from the column subset exists in neither table", col)
		}
	}
	return nil
}

// Compare builds the column-level diff of two table versions.
// Types are compared nominally: an integer column that became a float
// column counts as a type change even though the values may be castable.
func (sc *SchemaComparator) Compare(oldTable, newTable *models.Table) *models.SchemaDiff {
	sc.Logger.Debugf("Comparing schemas: %s (%d columns) vs %s (%d columns)",
		oldTable.Name, oldTable.NumColumns(), newTable.Name, newTable.NumColumns())

	oldTypes := make(map[string]models.ColumnType, oldTable.NumColumns())
	for _, col := range oldTable.Columns {
		oldTypes[col.Name] = col.Type
	}

	newTypes := make(map[string]models.ColumnType, newTable.NumColumns())
	for _, col := range newTable.Columns {
		newTypes[col.Name] = col.Type
	}

	diff := &models.SchemaDiff{}

	// Columns only in the old version
	for name := range oldTypes {
		if _, ok := newTypes[name]; !ok {
			diff.RemovedColumns = append(diff.RemovedColumns, name)
		}
	}

	// Columns only in the new version
	for name := range newTypes {
		if _, ok := oldTypes[name]; !ok {
			diff.AddedColumns = append(diff.AddedColumns, name)
		}
	}

	// Columns in both versions, split by declared type
	for name, oldType := range oldTypes {
		newType, ok := newTypes[name]
		if !ok {
			continue
		}
		if oldType != newType {
			diff.TypeChanges = append(diff.TypeChanges, models.TypeChange{
				Column:  name,
				OldType: oldType,
				NewType: newType,
			})
		} else {
			diff.UnchangedColumns = append(diff.UnchangedColumns, name)
		}
	}

	sort.Strings(diff.AddedColumns)
	sort.Strings(diff.RemovedColumns)
	sort.Strings(diff.UnchangedColumns)
	sort.Slice(diff.TypeChanges, func(i, j int) bool {
		return diff.TypeChanges[i].Column < diff.TypeChanges[j].Column
	})

	if diff.HasChanges() {
		sc.Logger.Infof("Schema changes detected: %d added, %d removed, %d type changes",
			len(diff.AddedColumns), len(diff.RemovedColumns), len(diff.TypeChanges))
	} else {
		sc.Logger.Debugf("Schemas are identical: %d shared columns", len(diff.UnchangedColumns))
	}

	return diff
}
