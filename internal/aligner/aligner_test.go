package aligner

import (
	"errors"
	"testing"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

func TestNewRecordAligner(t *testing.T) {
	// Create a logger
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	// Create a new record aligner
	aligner := NewRecordAligner(logger)

	// Check that the aligner was created correctly
	if aligner == nil {
		t.Fatal("Expected aligner to be created, got nil")
	}
	if aligner.Logger != logger {
		t.Error("Expected aligner.Logger to be the test logger")
	}
}

func TestAlignAddedRemovedMatched(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Old table has keys {1, 2}; new table has keys {2, 3}
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("x")},
		{"id": models.IntegerValue(2), "val": models.StringValue("y")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(2), "val": models.StringValue("y")},
		{"id": models.IntegerValue(3), "val": models.StringValue("z")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// Expected: removed = {1}, added = {3}, matched = {2}
	if len(result.Removed) != 1 || result.Removed[0].Display != "1" {
		t.Errorf("Expected removed keys [1], got %v", result.Removed)
	}
	if len(result.Added) != 1 || result.Added[0].Display != "3" {
		t.Errorf("Expected added keys [3], got %v", result.Added)
	}
	if len(result.Matched) != 1 || result.Matched[0].Display != "2" {
		t.Errorf("Expected matched keys [2], got %v", result.Matched)
	}
	if result.Matched[0].OldRow != 1 || result.Matched[0].NewRow != 0 {
		t.Errorf("Expected matched pair rows (1, 0), got (%d, %d)",
			result.Matched[0].OldRow, result.Matched[0].NewRow)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected 0 warnings, got %d", len(result.Warnings))
	}
}

func TestAlignPartitionCompleteness(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"id": models.IntegerValue(2), "val": models.StringValue("b")},
		{"id": models.IntegerValue(2), "val": models.StringValue("b2")},
		{"id": models.IntegerValue(4), "val": models.StringValue("d")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(2), "val": models.StringValue("b")},
		{"id": models.IntegerValue(3), "val": models.StringValue("c")},
		{"id": models.IntegerValue(4), "val": models.StringValue("d")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// Every key in the union lands in exactly one partition
	partitions := make(map[string]int)
	for _, group := range result.Removed {
		partitions[group.Display]++
	}
	for _, group := range result.Added {
		partitions[group.Display]++
	}
	matchedKeys := make(map[string]bool)
	for _, pair := range result.Matched {
		if !matchedKeys[pair.Display] {
			matchedKeys[pair.Display] = true
			partitions[pair.Display]++
		}
	}

	union := []string{"1", "2", "3", "4"}
	if len(partitions) != len(union) {
		t.Errorf("Expected %d partitioned keys, got %d", len(union), len(partitions))
	}
	for _, key := range union {
		if partitions[key] != 1 {
			t.Errorf("Expected key %s to appear in exactly one partition, got %d", key, partitions[key])
		}
	}
}

func TestAlignSymmetry(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"id": models.IntegerValue(2), "val": models.StringValue("b")},
		{"id": models.IntegerValue(5), "val": models.StringValue("e")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(2), "val": models.StringValue("b")},
		{"id": models.IntegerValue(3), "val": models.StringValue("c")},
	})

	forward, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected forward alignment to succeed, got %v", err)
	}
	backward, err := aligner.Align(newTable, oldTable)
	if err != nil {
		t.Fatalf("Expected backward alignment to succeed, got %v", err)
	}

	// Swapping the tables swaps the added and removed sets
	if len(forward.Added) != len(backward.Removed) {
		t.Fatalf("Expected added and removed to swap, got %d and %d",
			len(forward.Added), len(backward.Removed))
	}
	for i := range forward.Added {
		if forward.Added[i].Display != backward.Removed[i].Display {
			t.Errorf("Expected added key %s to be removed on swap, got %s",
				forward.Added[i].Display, backward.Removed[i].Display)
		}
	}
	if len(forward.Removed) != len(backward.Added) {
		t.Fatalf("Expected removed and added to swap, got %d and %d",
			len(forward.Removed), len(backward.Added))
	}
	for i := range forward.Removed {
		if forward.Removed[i].Display != backward.Added[i].Display {
			t.Errorf("Expected removed key %s to be added on swap, got %s",
				forward.Removed[i].Display, backward.Added[i].Display)
		}
	}
	if len(forward.Matched) != len(backward.Matched) {
		t.Errorf("Expected matched counts to agree, got %d and %d",
			len(forward.Matched), len(backward.Matched))
	}
}

func TestAlignNullKeys(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Both tables carry a row with a null key; null keys never match each other
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"id": models.NullValue(), "val": models.StringValue("ghost-old")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"id": models.NullValue(), "val": models.StringValue("ghost-new")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// The null-key rows appear in no partition
	if len(result.Added) != 0 {
		t.Errorf("Expected 0 added keys, got %d", len(result.Added))
	}
	if len(result.Removed) != 0 {
		t.Errorf("Expected 0 removed keys, got %d", len(result.Removed))
	}
	if len(result.Matched) != 1 {
		t.Errorf("Expected 1 matched key, got %d", len(result.Matched))
	}

	// One warning per excluded row, naming the side and the row
	if len(result.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %d", len(result.Warnings))
	}
	for _, warning := range result.Warnings {
		if warning.Kind != models.WarningNullKey {
			t.Errorf("Expected a null key warning, got %s", warning.Kind)
		}
		if warning.Row != 1 {
			t.Errorf("Expected the warning to name row 1, got %d", warning.Row)
		}
	}
	sides := map[string]bool{}
	for _, warning := range result.Warnings {
		sides[warning.Side] = true
	}
	if !sides[models.SideOld] || !sides[models.SideNew] {
		t.Errorf("Expected one warning per side, got %v", sides)
	}
}

func TestAlignDuplicateKeys(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Old has two rows with id=1; new has one row with id=1
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"id": models.IntegerValue(1), "val": models.StringValue("b")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// The first old row pairs with the first new row
	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 matched pair, got %d", len(result.Matched))
	}
	if result.Matched[0].OldRow != 0 || result.Matched[0].NewRow != 0 {
		t.Errorf("Expected pair rows (0, 0), got (%d, %d)",
			result.Matched[0].OldRow, result.Matched[0].NewRow)
	}

	// The leftover old row is surfaced as a warning, never dropped silently
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	warning := result.Warnings[0]
	if warning.Kind != models.WarningDuplicateKey {
		t.Errorf("Expected a duplicate key warning, got %s", warning.Kind)
	}
	if warning.Side != models.SideOld {
		t.Errorf("Expected the warning on the old side, got %s", warning.Side)
	}
	if warning.Row != 1 {
		t.Errorf("Expected the warning to name row 1, got %d", warning.Row)
	}
	if warning.Key != "1" {
		t.Errorf("Expected the warning to carry key 1, got %s", warning.Key)
	}

	// The duplicated key stays matched, not added or removed
	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("Expected no added or removed keys, got %d and %d",
			len(result.Added), len(result.Removed))
	}
}

func TestAlignDuplicateKeysBothSides(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Old has three rows with id=7, new has two; rows pair in table order
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(7), "val": models.StringValue("first")},
		{"id": models.IntegerValue(7), "val": models.StringValue("second")},
		{"id": models.IntegerValue(7), "val": models.StringValue("third")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.IntegerValue(7), "val": models.StringValue("first")},
		{"id": models.IntegerValue(7), "val": models.StringValue("second")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// Two positional pairs, in original table order
	if len(result.Matched) != 2 {
		t.Fatalf("Expected 2 matched pairs, got %d", len(result.Matched))
	}
	for i, pair := range result.Matched {
		if pair.OldRow != i || pair.NewRow != i {
			t.Errorf("Expected pair %d to be rows (%d, %d), got (%d, %d)",
				i, i, i, pair.OldRow, pair.NewRow)
		}
	}

	// The third old row is the unresolved leftover
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	if result.Warnings[0].Row != 2 || result.Warnings[0].Side != models.SideOld {
		t.Errorf("Expected a leftover warning for old row 2, got side %s row %d",
			result.Warnings[0].Side, result.Warnings[0].Row)
	}
}

func TestAlignKeyKindsNeverCoerce(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Integer 1 and string "1" are different keys
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.IntegerValue(1), "val": models.StringValue("a")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.StringValue("1"), "val": models.StringValue("a")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	if len(result.Matched) != 0 {
		t.Errorf("Expected 0 matched keys across kinds, got %d", len(result.Matched))
	}
	if len(result.Removed) != 1 || len(result.Added) != 1 {
		t.Errorf("Expected 1 removed and 1 added key, got %d and %d",
			len(result.Removed), len(result.Added))
	}
}

func TestAlignCompositeKey(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	columns := []models.Column{
		{Name: "region", Type: models.TypeString},
		{Name: "id", Type: models.TypeInteger},
		{Name: "val", Type: models.TypeString},
	}

	oldTable, err := models.NewTable("old", columns, []models.Row{
		{"region": models.StringValue("eu"), "id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"region": models.StringValue("us"), "id": models.IntegerValue(1), "val": models.StringValue("b")},
	})
	if err != nil {
		t.Fatalf("Expected old table to build, got %v", err)
	}
	oldTable.Key = []string{"region", "id"}

	newTable, err := models.NewTable("new", columns, []models.Row{
		{"region": models.StringValue("eu"), "id": models.IntegerValue(1), "val": models.StringValue("a")},
		{"region": models.StringValue("ap"), "id": models.IntegerValue(1), "val": models.StringValue("c")},
	})
	if err != nil {
		t.Fatalf("Expected new table to build, got %v", err)
	}
	newTable.Key = []string{"region", "id"}

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	// Only the (eu, 1) key exists in both versions
	if len(result.Matched) != 1 || result.Matched[0].Display != "eu|1" {
		t.Errorf("Expected matched key eu|1, got %v", result.Matched)
	}
	if len(result.Removed) != 1 || result.Removed[0].Display != "us|1" {
		t.Errorf("Expected removed key us|1, got %v", result.Removed)
	}
	if len(result.Added) != 1 || result.Added[0].Display != "ap|1" {
		t.Errorf("Expected added key ap|1, got %v", result.Added)
	}
}

func TestAlignMissingKeyColumn(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	oldTable := buildKeyedTable(t, "old", nil)
	newTable := buildKeyedTable(t, "new", nil)
	newTable.Key = []string{"ghost"}

	_, err := aligner.Align(oldTable, newTable)
	if err == nil {
		t.Fatal("Expected an error for a missing key column")
	}
	var confErr *models.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("Expected a ConfigurationError, got %T", err)
	}
}

func TestAlignSortsDeterministically(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	aligner := NewRecordAligner(logger)

	// Declaration order differs from key order on both sides
	oldTable := buildKeyedTable(t, "old", []models.Row{
		{"id": models.StringValue("delta"), "val": models.StringValue("d")},
		{"id": models.StringValue("alpha"), "val": models.StringValue("a")},
	})
	newTable := buildKeyedTable(t, "new", []models.Row{
		{"id": models.StringValue("echo"), "val": models.StringValue("e")},
		{"id": models.StringValue("bravo"), "val": models.StringValue("b")},
	})

	result, err := aligner.Align(oldTable, newTable)
	if err != nil {
		t.Fatalf("Expected alignment to succeed, got %v", err)
	}

	if result.Removed[0].Display != "alpha" || result.Removed[1].Display != "delta" {
		t.Errorf("Expected removed keys sorted [alpha delta], got %v", result.Removed)
	}
	if result.Added[0].Display != "bravo" || result.Added[1].Display != "echo" {
		t.Errorf("Expected added keys sorted [bravo echo], got %v", result.Added)
	}
}

// buildKeyedTable builds a table keyed on id with the given rows
func buildKeyedTable(t *testing.T, name string, rows []models.Row) *models.Table {
	t.Helper()

	columns := []models.Column{
		{Name: "id", Type: models.TypeInteger},
		{Name: "val", Type: models.TypeString},
	}
	table, err := models.NewTable(name, columns, rows)
	if err != nil {
		t.Fatalf("Expected test table to build, got %v", err)
	}
	table.Key = []string{"id"}
	return table
}
