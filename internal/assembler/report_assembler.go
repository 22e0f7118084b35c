package assembler

import (
	"runtime"
	"sort"
	"time"

	"github.com/gibbsbravo/DataDelta/internal/aligner"
	"github.com/gibbsbravo/DataDelta/internal/comparator"
	"github.com/gibbsbravo/DataDelta/internal/differ"
	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReportAssembler runs a full comparison and assembles the report.
// It aggregates the verdicts of the comparison stages without ever
// recomputing them.
type ReportAssembler struct {
	SchemaComparator *comparator.SchemaComparator
	RecordAligner    *aligner.RecordAligner
	ValueDiffer      *differ.ValueDiffer
	Workers          int
	Logger           *logrus.Logger
}

// NewReportAssembler creates a new report assembler
func NewReportAssembler(
	schemaComparator *comparator.SchemaComparator,
	recordAligner *aligner.RecordAligner,
	valueDiffer *differ.ValueDiffer,
	workers int,
	logger *logrus.Logger,
) *ReportAssembler {
	return &ReportAssembler{
		SchemaComparator: schemaComparator,
		RecordAligner:    recordAligner,
		ValueDiffer:      valueDiffer,
		Workers:          workers,
		Logger:           logger,
	}
}

// Run compares two table versions and assembles the report.
// Configuration problems fail fast before any comparison work starts.
func (ra *ReportAssembler) Run(oldTable, newTable *models.Table, title string, subset []string) (*models.Report, error) {
	startTime := time.Now()

	// Validate the configuration before any stage runs
	if err := oldTable.ValidateKey(); err != nil {
		return nil, err
	}
	if err := newTable.ValidateKey(); err != nil {
		return nil, err
	}
	if err := sameKey(oldTable.Key, newTable.Key); err != nil {
		return nil, err
	}
	if err := ra.SchemaComparator.ValidateSubset(oldTable, newTable, subset); err != nil {
		return nil, err
	}

	// Restrict each table to the requested columns plus the key.
	// A subset column missing from one side is kept out of that side's
	// filter so it can surface as an added or removed column.
	oldFiltered, err := restrictToSubset(oldTable, subset)
	if err != nil {
		return nil, err
	}
	newFiltered, err := restrictToSubset(newTable, subset)
	if err != nil {
		return nil, err
	}

	schema := ra.SchemaComparator.Compare(oldFiltered, newFiltered)

	alignment, err := ra.RecordAligner.Align(oldFiltered, newFiltered)
	if err != nil {
		return nil, err
	}

	// Value comparison covers the shared non-key columns only
	keyColumns := make(map[string]bool, len(oldTable.Key))
	for _, col := range oldTable.Key {
		keyColumns[col] = true
	}
	var compareColumns []string
	for _, col := range schema.CommonColumns() {
		if !keyColumns[col] {
			compareColumns = append(compareColumns, col)
		}
	}

	diffs, err := ra.compareMatched(oldFiltered, newFiltered, alignment.Matched, compareColumns)
	if err != nil {
		return nil, err
	}

	report, err := ra.assemble(oldFiltered, newFiltered, title, subset, schema, alignment, diffs, compareColumns)
	if err != nil {
		return nil, err
	}

	ra.Logger.Infof("Comparison of %s and %s completed in %s", oldTable.Name, newTable.Name, time.Since(startTime))
	return report, nil
}

// compareMatched diffs all matched pairs, spreading the work across workers.
// Results land in a slot per pair, so the output order never depends on
// goroutine scheduling.
func (ra *ReportAssembler) compareMatched(oldTable, newTable *models.Table, matched []models.MatchedPair, columns []string) ([]models.RecordDiff, error) {
	diffs := make([]models.RecordDiff, len(matched))
	if len(matched) == 0 {
		return diffs, nil
	}

	workers := ra.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(matched) {
		workers = len(matched)
	}

	ra.Logger.Debugf("Comparing %d matched record pair(s) with %d worker(s)", len(matched), workers)

	chunk := (len(matched) + workers - 1) / workers
	var group errgroup.Group
	for start := 0; start < len(matched); start += chunk {
		start := start
		end := start + chunk
		if end > len(matched) {
			end = len(matched)
		}
		group.Go(func() error {
			for i := start; i < end; i++ {
				diffs[i] = ra.ValueDiffer.CompareRecords(oldTable, newTable, matched[i], columns)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return diffs, nil
}

// assemble builds the final report from the stage outputs
func (ra *ReportAssembler) assemble(
	oldTable, newTable *models.Table,
	title string,
	subset []string,
	schema *models.SchemaDiff,
	alignment *models.AlignmentResult,
	diffs []models.RecordDiff,
	compareColumns []string,
) (*models.Report, error) {
	if title == "" {
		title = "DataDelta Report"
	}

	var changedDiffs []models.RecordDiff
	for _, diff := range diffs {
		if diff.Changed {
			changedDiffs = append(changedDiffs, diff)
		}
	}

	summary := models.ReportSummary{
		RecordsAdded:       alignment.AddedRecordCount(),
		RecordsRemoved:     alignment.RemovedRecordCount(),
		RecordsChanged:     len(changedDiffs),
		RecordsUnchanged:   len(alignment.Matched) - len(changedDiffs),
		ColumnsAdded:       len(schema.AddedColumns),
		ColumnsRemoved:     len(schema.RemovedColumns),
		ColumnsTypeChanged: len(schema.TypeChanges),
	}

	addedKeys := make([]string, 0, len(alignment.Added))
	for _, group := range alignment.Added {
		addedKeys = append(addedKeys, group.Display)
	}
	removedKeys := make([]string, 0, len(alignment.Removed))
	for _, group := range alignment.Removed {
		removedKeys = append(removedKeys, group.Display)
	}

	changedRecords, err := buildChangedRecordsTable(changedDiffs)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		Meta: models.ReportMeta{
			Title:        title,
			GeneratedAt:  time.Now(),
			OldName:      oldTable.Name,
			NewName:      newTable.Name,
			Key:          oldTable.Key,
			ColumnSubset: subset,
			AllEqual: !schema.HasChanges() &&
				summary.RecordsAdded == 0 &&
				summary.RecordsRemoved == 0 &&
				summary.RecordsChanged == 0,
		},
		OldSummary:     oldTable.Summary(),
		NewSummary:     newTable.Summary(),
		Schema:         *schema,
		Summary:        summary,
		AddedKeys:      addedKeys,
		RemovedKeys:    removedKeys,
		RecordDiffs:    changedDiffs,
		ColumnStats:    columnStats(diffs, compareColumns, len(alignment.Matched)),
		ChangedRecords: changedRecords,
		Warnings:       alignment.Warnings,
	}

	return report, nil
}

// buildChangedRecordsTable denormalizes the changed records into one row
// per changed record and column pair
func buildChangedRecordsTable(changedDiffs []models.RecordDiff) (*models.Table, error) {
	columns := []models.Column{
		{Name: "key", Type: models.TypeString},
		{Name: "column", Type: models.TypeString},
		{Name: "old_value", Type: models.TypeMixed},
		{Name: "new_value", Type: models.TypeMixed},
	}

	var rows []models.Row
	for _, diff := range changedDiffs {
		for _, field := range diff.ChangedFields() {
			rows = append(rows, models.Row{
				"key":       models.StringValue(diff.Key),
				"column":    models.StringValue(field.Column),
				"old_value": field.Old,
				"new_value": field.New,
			})
		}
	}

	table, err := models.NewTable("changed_records", columns, rows)
	if err != nil {
		return nil, err
	}
	table.Key = []string{"key", "column"}
	return table, nil
}

// columnStats counts how often each compared column changed
func columnStats(diffs []models.RecordDiff, compareColumns []string, matched int) []models.ColumnChangeStat {
	counts := make(map[string]int, len(compareColumns))
	for _, diff := range diffs {
		for _, field := range diff.Fields {
			if field.Changed {
				counts[field.Column]++
			}
		}
	}

	var stats []models.ColumnChangeStat
	for _, col := range compareColumns {
		if counts[col] == 0 {
			continue
		}
		proportion := 0.0
		if matched > 0 {
			proportion = float64(counts[col]) / float64(matched)
		}
		stats = append(stats, models.ColumnChangeStat{
			Column:     col,
			Changed:    counts[col],
			Proportion: proportion,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Changed != stats[j].Changed {
			return stats[i].Changed > stats[j].Changed
		}
		return stats[i].Column < stats[j].Column
	})

	return stats
}

// restrictToSubset filters a table to the subset columns it actually has.
// When none of the subset columns exist on this side only the key remains,
// so the schema diff never sees columns the subset excluded.
func restrictToSubset(table *models.Table, subset []string) (*models.Table, error) {
	if len(subset) == 0 {
		return table, nil
	}
	present := make([]string, 0, len(subset))
	for _, col := range subset {
		if table.HasColumn(col) {
			present = append(present, col)
		}
	}
	if len(present) == 0 {
		present = table.Key
	}
	return table.Filter(present)
}

// sameKey checks that both tables declare the same identity key
func sameKey(oldKey, newKey []string) error {
	if len(oldKey) != len(newKey) {
		return models.NewConfigurationError("old and new tables must declare the same identity key")
	}
	for i := range oldKey {
		if oldKey[i] != newKey[i] {
			return models.NewConfigurationError("old and new tables must declare the same identity key")
		}
	}
	return nil
}
