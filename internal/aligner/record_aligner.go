package aligner

import (
	"fmt"
	"sort"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// RecordAligner matches the records of two table versions by identity key
type RecordAligner struct {
	Logger *logrus.Logger
}

// NewRecordAligner creates a new record aligner
func NewRecordAligner(logger *logrus.Logger) *RecordAligner {
	return &RecordAligner{
		Logger: logger,
	}
}

// keyIndex groups the row ordinals of one table by canonical key
type keyIndex struct {
	groups map[string]*models.KeyGroup
}

// Align partitions the records of both versions into added, removed and
// matched sets. Rows with a null key component never match anything: they
// are excluded from alignment and surfaced as warnings. Rows sharing a
// duplicated key are paired positionally; rows left over on the longer
// side stay unpaired and are surfaced as warnings.
func (ra *RecordAligner) Align(oldTable, newTable *models.Table) (*models.AlignmentResult, error) {
	if err := oldTable.ValidateKey(); err != nil {
		return nil, err
	}
	if err := newTable.ValidateKey(); err != nil {
		return nil, err
	}

	result := &models.AlignmentResult{}

	oldIndex := ra.buildIndex(oldTable, models.SideOld, result)
	newIndex := ra.buildIndex(newTable, models.SideNew, result)

	// Keys present on one side only
	for key, group := range oldIndex.groups {
		if _, ok := newIndex.groups[key]; !ok {
			result.Removed = append(result.Removed, *group)
		}
	}
	for key, group := range newIndex.groups {
		if _, ok := oldIndex.groups[key]; !ok {
			result.Added = append(result.Added, *group)
		}
	}

	// Keys present on both sides pair up positionally within their group
	for key, oldGroup := range oldIndex.groups {
		newGroup, ok := newIndex.groups[key]
		if !ok {
			continue
		}

		paired := len(oldGroup.Rows)
		if len(newGroup.Rows) < paired {
			paired = len(newGroup.Rows)
		}

		for i := 0; i < paired; i++ {
			result.Matched = append(result.Matched, models.MatchedPair{
				Key:     key,
				Display: oldGroup.Display,
				OldRow:  oldGroup.Rows[i],
				NewRow:  newGroup.Rows[i],
			})
		}

		for i := paired; i < len(oldGroup.Rows); i++ {
			ra.warnLeftover(result, oldGroup, newGroup, models.SideOld, oldGroup.Rows[i])
		}
		for i := paired; i < len(newGroup.Rows); i++ {
			ra.warnLeftover(result, oldGroup, newGroup, models.SideNew, newGroup.Rows[i])
		}
	}

	sortGroups(result.Removed)
	sortGroups(result.Added)
	sort.SliceStable(result.Matched, func(i, j int) bool {
		if result.Matched[i].Display != result.Matched[j].Display {
			return result.Matched[i].Display < result.Matched[j].Display
		}
		if result.Matched[i].Key != result.Matched[j].Key {
			return result.Matched[i].Key < result.Matched[j].Key
		}
		return result.Matched[i].OldRow < result.Matched[j].OldRow
	})
	sort.SliceStable(result.Warnings, func(i, j int) bool {
		if result.Warnings[i].Key != result.Warnings[j].Key {
			return result.Warnings[i].Key < result.Warnings[j].Key
		}
		if result.Warnings[i].Side != result.Warnings[j].Side {
			return result.Warnings[i].Side > result.Warnings[j].Side // old before new
		}
		return result.Warnings[i].Row < result.Warnings[j].Row
	})

	ra.Logger.Infof("Aligned records: %d added, %d removed, %d matched, %d warnings",
		result.AddedRecordCount(), result.RemovedRecordCount(), len(result.Matched), len(result.Warnings))

	return result, nil
}

// buildIndex groups a table's rows by canonical key, warning on null keys
func (ra *RecordAligner) buildIndex(table *models.Table, side string, result *models.AlignmentResult) *keyIndex {
	index := &keyIndex{
		groups: make(map[string]*models.KeyGroup),
	}

	for i, row := range table.Rows {
		key, ok := table.KeyOf(row)
		if !ok {
			result.Warnings = append(result.Warnings, models.Warning{
				Kind:    models.WarningNullKey,
				Side:    side,
				Row:     i,
				Message: fmt.Sprintf("row %d in the %s table has a null identity key component and was excluded from matching", i, side),
			})
			continue
		}

		group, exists := index.groups[key]
		if !exists {
			group = &models.KeyGroup{
				Key:     key,
				Display: table.KeyDisplay(row),
			}
			index.groups[key] = group
		}
		group.Rows = append(group.Rows, i)
	}

	return index
}

// warnLeftover records a duplicated key row that found no positional partner
func (ra *RecordAligner) warnLeftover(result *models.AlignmentResult, oldGroup, newGroup *models.KeyGroup, side string, row int) {
	result.Warnings = append(result.Warnings, models.Warning{
		Kind: models.WarningDuplicateKey,
		Side: side,
		Row:  row,
		Key:  oldGroup.Display,
		Message: fmt.Sprintf("key %s appears %d times in the old table and %d times in the new table; row %d in the %s table was left unmatched",
			oldGroup.Display, len(oldGroup.Rows), len(newGroup.Rows), row, side),
	})
}

// sortGroups orders key groups by display value for reproducible output
func sortGroups(groups []models.KeyGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Display != groups[j].Display {
			return groups[i].Display < groups[j].Display
		}
		return groups[i].Key < groups[j].Key
	})
}
