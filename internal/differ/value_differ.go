package differ

import (
	"math"
	"time"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
)

// ValueDiffer judges cell equality for matched record pairs under a policy
type ValueDiffer struct {
	Policy models.ComparePolicy
	Logger *logrus.Logger
}

// NewValueDiffer creates a new value differ with the given policy
func NewValueDiffer(policy models.ComparePolicy, logger *logrus.Logger) *ValueDiffer {
	return &ValueDiffer{
		Policy: policy,
		Logger: logger,
	}
}

// CompareRecords diffs one matched record pair over the given columns.
// The verdict for a record is changed when at least one column changed.
func (vd *ValueDiffer) CompareRecords(oldTable, newTable *models.Table, pair models.MatchedPair, columns []string) models.RecordDiff {
	diff := models.RecordDiff{
		Key:    pair.Display,
		OldRow: pair.OldRow,
		NewRow: pair.NewRow,
	}

	oldRow := oldTable.Rows[pair.OldRow]
	newRow := newTable.Rows[pair.NewRow]

	for _, col := range columns {
		oldValue := oldRow[col]
		newValue := newRow[col]
		changed := !vd.Equal(oldValue, newValue)
		diff.Fields = append(diff.Fields, models.FieldDiff{
			Column:  col,
			Old:     oldValue,
			New:     newValue,
			Changed: changed,
		})
		if changed {
			diff.Changed = true
		}
	}

	if diff.Changed {
		vd.Logger.Debugf("Record %s changed in %d column(s)", pair.Display, len(diff.ChangedFields()))
	}

	return diff
}

// Equal reports whether two cell values are equal under the policy.
// Values of incomparable kinds are unequal, never an error.
func (vd *ValueDiffer) Equal(oldValue, newValue models.Value) bool {
	if oldValue.IsNull() && newValue.IsNull() {
		return true
	}
	if oldValue.IsNull() || newValue.IsNull() {
		if vd.Policy.NullEqualsEmpty {
			other := oldValue
			if oldValue.IsNull() {
				other = newValue
			}
			return other.Kind == models.KindString && other.Str == ""
		}
		return false
	}

	// Integer pairs compare exactly unless a tolerance is in play,
	// so values beyond float64 precision are still told apart
	if oldValue.Kind == models.KindInteger && newValue.Kind == models.KindInteger &&
		vd.Policy.AbsTolerance == 0 && vd.Policy.RelTolerance == 0 {
		return oldValue.Int == newValue.Int
	}

	oldFloat, oldNumeric := oldValue.AsFloat()
	newFloat, newNumeric := newValue.AsFloat()
	if oldNumeric && newNumeric {
		return vd.floatEqual(oldFloat, newFloat)
	}

	if oldValue.Kind != newValue.Kind {
		return false
	}

	switch oldValue.Kind {
	case models.KindString:
		return oldValue.Str == newValue.Str
	case models.KindBoolean:
		return oldValue.Bool == newValue.Bool
	case models.KindTime:
		return vd.timeEqual(oldValue.Time, newValue.Time)
	default:
		return false
	}
}

// floatEqual compares two numbers under the configured tolerances.
// NaN equals NaN and same-signed infinities are equal, so re-running a
// comparison over unchanged data never reports phantom changes.
func (vd *ValueDiffer) floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	if a == b {
		return true
	}

	diff := math.Abs(a - b)
	if vd.Policy.AbsTolerance > 0 && diff <= vd.Policy.AbsTolerance {
		return true
	}
	if vd.Policy.RelTolerance > 0 {
		largest := math.Max(math.Abs(a), math.Abs(b))
		if largest > 0 && diff/largest <= vd.Policy.RelTolerance {
			return true
		}
	}

	return false
}

// timeEqual compares two timestamps, truncating to the calendar date
// when the policy asks for date-only comparison
func (vd *ValueDiffer) timeEqual(a, b time.Time) bool {
	if vd.Policy.DateOnly {
		aYear, aMonth, aDay := a.Date()
		bYear, bMonth, bDay := b.Date()
		return aYear == bYear && aMonth == bMonth && aDay == bDay
	}
	return a.Equal(b)
}
