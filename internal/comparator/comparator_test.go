package comparator

import (
	"errors"
	"testing"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

func TestNewSchemaComparator(t *testing.T) {
	// Create a logger
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	// Create a new schema comparator
	comparator := NewSchemaComparator(logger)

	// Check that the comparator was created correctly
	if comparator == nil {
		t.Fatal("Expected comparator to be created, got nil")
	}
	if comparator.Logger != logger {
		t.Error("Expected comparator.Logger to be the test logger")
	}
}

func TestCompareIdenticalSchemas(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
	})

	diff := comparator.Compare(oldTable, newTable)

	// Identical schemas produce an empty diff
	if diff.HasChanges() {
		t.Error("Expected no schema changes for identical schemas")
	}
	if len(diff.AddedColumns) != 0 {
		t.Errorf("Expected 0 added columns, got %d", len(diff.AddedColumns))
	}
	if len(diff.RemovedColumns) != 0 {
		t.Errorf("Expected 0 removed columns, got %d", len(diff.RemovedColumns))
	}
	if len(diff.TypeChanges) != 0 {
		t.Errorf("Expected 0 type changes, got %d", len(diff.TypeChanges))
	}
	if len(diff.UnchangedColumns) != 2 {
		t.Errorf("Expected 2 unchanged columns, got %d", len(diff.UnchangedColumns))
	}
}

func TestCompareAddedColumn(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	// Old schema has {id, name}; new schema has {id, name, age}
	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
		{Name: "age", Type: models.TypeInteger},
	})

	diff := comparator.Compare(oldTable, newTable)

	// One column added, zero removed, zero type changes
	if len(diff.AddedColumns) != 1 || diff.AddedColumns[0] != "age" {
		t.Errorf("Expected added columns [age], got %v", diff.AddedColumns)
	}
	if len(diff.RemovedColumns) != 0 {
		t.Errorf("Expected 0 removed columns, got %v", diff.RemovedColumns)
	}
	if len(diff.TypeChanges) != 0 {
		t.Errorf("Expected 0 type changes, got %v", diff.TypeChanges)
	}
	if !diff.HasChanges() {
		t.Error("Expected changes to be reported")
	}
}

func TestCompareRemovedColumn(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
		{Name: "legacy", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
	})

	diff := comparator.Compare(oldTable, newTable)

	if len(diff.RemovedColumns) != 1 || diff.RemovedColumns[0] != "legacy" {
		t.Errorf("Expected removed columns [legacy], got %v", diff.RemovedColumns)
	}
	if len(diff.AddedColumns) != 0 {
		t.Errorf("Expected 0 added columns, got %v", diff.AddedColumns)
	}
}

func TestCompareTypeChanges(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	// The amount column changed from integer to float
	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "amount", Type: models.TypeInteger},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "amount", Type: models.TypeFloat},
	})

	diff := comparator.Compare(oldTable, newTable)

	// A nominal type change is reported, not raised
	if len(diff.TypeChanges) != 1 {
		t.Fatalf("Expected 1 type change, got %d", len(diff.TypeChanges))
	}
	change := diff.TypeChanges[0]
	if change.Column != "amount" {
		t.Errorf("Expected type change on amount, got %s", change.Column)
	}
	if change.OldType != models.TypeInteger || change.NewType != models.TypeFloat {
		t.Errorf("Expected integer -> float, got %s -> %s", change.OldType, change.NewType)
	}

	// A type-changed column is still a common column
	common := diff.CommonColumns()
	if len(common) != 2 {
		t.Fatalf("Expected 2 common columns, got %d", len(common))
	}
	if common[0] != "amount" || common[1] != "id" {
		t.Errorf("Expected common columns [amount id], got %v", common)
	}
}

func TestComparePartitionsColumnUnion(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
		{Name: "amount", Type: models.TypeInteger},
		{Name: "legacy", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
		{Name: "amount", Type: models.TypeFloat},
		{Name: "age", Type: models.TypeInteger},
	})

	diff := comparator.Compare(oldTable, newTable)

	// Every column in the union appears in exactly one partition
	seen := make(map[string]int)
	for _, col := range diff.AddedColumns {
		seen[col]++
	}
	for _, col := range diff.RemovedColumns {
		seen[col]++
	}
	for _, col := range diff.UnchangedColumns {
		seen[col]++
	}
	for _, change := range diff.TypeChanges {
		seen[change.Column]++
	}

	union := []string{"id", "name", "amount", "legacy", "age"}
	if len(seen) != len(union) {
		t.Errorf("Expected %d partitioned columns, got %d", len(union), len(seen))
	}
	for _, col := range union {
		if seen[col] != 1 {
			t.Errorf("Expected column %s to appear exactly once, got %d", col, seen[col])
		}
	}
}

func TestCompareSortsOutput(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "zebra", Type: models.TypeString},
		{Name: "bear", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "yak", Type: models.TypeString},
		{Name: "ant", Type: models.TypeString},
	})

	diff := comparator.Compare(oldTable, newTable)

	// Output columns sort by name regardless of declaration order
	if diff.RemovedColumns[0] != "bear" || diff.RemovedColumns[1] != "zebra" {
		t.Errorf("Expected removed columns [bear zebra], got %v", diff.RemovedColumns)
	}
	if diff.AddedColumns[0] != "ant" || diff.AddedColumns[1] != "yak" {
		t.Errorf("Expected added columns [ant yak], got %v", diff.AddedColumns)
	}
}

func TestValidateSubset(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	comparator := NewSchemaComparator(logger)

	oldTable := buildSchemaTable(t, "old", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "name", Type: models.TypeString},
	})
	newTable := buildSchemaTable(t, "new", []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "age", Type: models.TypeInteger},
	})

	// An empty subset is always valid
	if err := comparator.ValidateSubset(oldTable, newTable, nil); err != nil {
		t.Errorf("Expected empty subset to validate, got %v", err)
	}

	// A column present in both tables is valid
	if err := comparator.ValidateSubset(oldTable, newTable, []string{"id"}); err != nil {
		t.Errorf("Expected subset [id] to validate, got %v", err)
	}

	// A column present in only one table is still a valid request
	if err := comparator.ValidateSubset(oldTable, newTable, []string{"age"}); err != nil {
		t.Errorf("Expected subset [age] to validate, got %v", err)
	}
	if err := comparator.ValidateSubset(oldTable, newTable, []string{"name"}); err != nil {
		t.Errorf("Expected subset [name] to validate, got %v", err)
	}

	// A column present in neither table is a configuration error
	err := comparator.ValidateSubset(oldTable, newTable, []string{"ghost"})
	if err == nil {
		t.Fatal("Expected an error for a column in neither table")
	}
	var confErr *models.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("Expected a ConfigurationError, got %T", err)
	}
}

// buildSchemaTable builds an empty keyed table with the given columns
func buildSchemaTable(t *testing.T, name string, columns []models.Column) *models.Table {
	t.Helper()

	table, err := models.NewTable(name, columns, nil)
	if err != nil {
		t.Fatalf("Expected test table to build, got %v", err)
	}
	table.Key = []string{"id"}
	return table
}
