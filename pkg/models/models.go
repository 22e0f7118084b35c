package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies the runtime type carried by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindTime
)

// String returns the lowercase name of the value kind
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a single table cell: a typed scalar or null
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Time  time.Time
}

// NullValue returns the null cell value
func NullValue() Value {
	return Value{Kind: KindNull}
}

// IntegerValue returns an integer cell value
func IntegerValue(v int64) Value {
	return Value{Kind: KindInteger, Int: v}
}

// FloatValue returns a float cell value
func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// StringValue returns a string cell value
func StringValue(v string) Value {
	return Value{Kind: KindString, Str: v}
}

// BooleanValue returns a boolean cell value
func BooleanValue(v bool) Value {
	return Value{Kind: KindBoolean, Bool: v}
}

// TimeValue returns a date/time cell value
func TimeValue(v time.Time) Value {
	return Value{Kind: KindTime, Time: v}
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// AsFloat widens an integer or float value to float64
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// String formats the value for display
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		// Bare dates print without the zero time of day
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	default:
		return "unknown"
	}
}

// Identity returns a type-tagged encoding used for key matching.
// Values of different kinds never share an identity, so an integer 1
// and a string "1" remain distinct keys.
func (v Value) Identity() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInteger:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return "f:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return "s:" + strconv.Quote(v.Str)
	case KindBoolean:
		return "b:" + strconv.FormatBool(v.Bool)
	case KindTime:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return "?"
	}
}

// MarshalJSON renders the value as its native JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindInteger:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	case KindBoolean:
		return json.Marshal(v.Bool)
	case KindTime:
		return json.Marshal(v.String())
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %d", v.Kind)
	}
}

// ColumnType is the declared type of a table column
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeFloat
	TypeString
	TypeBoolean
	TypeTime
	TypeMixed
)

// String returns the lowercase name of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeTime:
		return "time"
	case TypeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the column type as its name
func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Column is a named, typed table column
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Row maps column names to cell values
type Row map[string]Value

// Table is a typed tabular dataset with an identity key
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	Key     []string `json:"key,omitempty"`
}

// NewTable builds a table from declared columns and rows.
// Missing cells are padded with nulls; cells for undeclared columns are rejected.
func NewTable(name string, columns []Column, rows []Row) (*Table, error) {
	declared := make(map[string]bool, len(columns))
	for _, col := range columns {
		if declared[col.Name] {
			return nil, fmt.Errorf("table %s declares column %s more than once", name, col.Name)
		}
		declared[col.Name] = true
	}

	for i, row := range rows {
		for cell := range row {
			if !declared[cell] {
				return nil, fmt.Errorf("table %s row %d has a value for undeclared column %s", name, i, cell)
			}
		}
		for _, col := range columns {
			if _, ok := row[col.Name]; !ok {
				row[col.Name] = NullValue()
			}
		}
	}

	return &Table{Name: name, Columns: columns, Rows: rows}, nil
}

// NumRows returns the number of records in the table
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of declared columns
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// ColumnNames returns the declared column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the table declares the named column
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// ColumnType returns the declared type of the named column
func (t *Table) ColumnType(name string) (ColumnType, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col.Type, true
		}
	}
	return TypeMixed, false
}

// ValidateKey checks that the identity key is usable for this table
func (t *Table) ValidateKey() error {
	if len(t.Key) == 0 {
		return NewConfigurationError("table %s has no identity key columns", t.Name)
	}
	for _, col := range t.Key {
		if !t.HasColumn(col) {
			return NewConfigurationError("table %s does not contain key column %s", t.Name, col)
		}
	}
	return nil
}

// KeyOf returns the canonical identity of a row's key.
// The second return is false when any key component is null.
func (t *Table) KeyOf(row Row) (string, bool) {
	parts := make([]string, len(t.Key))
	for i, col := range t.Key {
		v := row[col]
		if v.IsNull() {
			return "", false
		}
		parts[i] = v.Identity()
	}
	return strings.Join(parts, "|"), true
}

// KeyDisplay returns the human-readable form of a row's key
func (t *Table) KeyDisplay(row Row) string {
	parts := make([]string, len(t.Key))
	for i, col := range t.Key {
		parts[i] = row[col].String()
	}
	return strings.Join(parts, "|")
}

// Filter returns a copy of the table restricted to the given columns.
// Identity key columns are always retained. Unknown columns are rejected.
func (t *Table) Filter(subset []string) (*Table, error) {
	if len(subset) == 0 {
		return t, nil
	}

	keep := make(map[string]bool, len(subset)+len(t.Key))
	for _, col := range subset {
		if !t.HasColumn(col) {
			return nil, NewConfigurationError("table %s does not contain column %s from the column subset", t.Name, col)
		}
		keep[col] = true
	}
	for _, col := range t.Key {
		keep[col] = true
	}

	columns := make([]Column, 0, len(keep))
	for _, col := range t.Columns {
		if keep[col.Name] {
			columns = append(columns, col)
		}
	}

	rows := make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		filtered := make(Row, len(columns))
		for _, col := range columns {
			filtered[col.Name] = row[col.Name]
		}
		rows[i] = filtered
	}

	return &Table{Name: t.Name, Columns: columns, Rows: rows, Key: t.Key}, nil
}

// ColumnSummary describes how populated a single column is
type ColumnSummary struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	NonNull    int        `json:"non_null"`
	Proportion float64    `json:"proportion"`
}

// TableSummary describes the shape and population of a table
type TableSummary struct {
	Name        string          `json:"name"`
	RecordCount int             `json:"record_count"`
	ColumnCount int             `json:"column_count"`
	KeyIsUnique bool            `json:"key_is_unique"`
	Columns     []ColumnSummary `json:"columns"`
}

// Summary computes record, column and population statistics for the table.
// The key counts as unique when no complete key value occurs twice; rows
// with null key components are left out of the uniqueness check.
func (t *Table) Summary() TableSummary {
	summary := TableSummary{
		Name:        t.Name,
		RecordCount: len(t.Rows),
		ColumnCount: len(t.Columns),
		KeyIsUnique: true,
	}

	seen := make(map[string]bool)
	for _, row := range t.Rows {
		key, ok := t.KeyOf(row)
		if !ok {
			continue
		}
		if seen[key] {
			summary.KeyIsUnique = false
		}
		seen[key] = true
	}

	for _, col := range t.Columns {
		nonNull := 0
		for _, row := range t.Rows {
			if !row[col.Name].IsNull() {
				nonNull++
			}
		}
		proportion := 0.0
		if len(t.Rows) > 0 {
			proportion = float64(nonNull) / float64(len(t.Rows))
		}
		summary.Columns = append(summary.Columns, ColumnSummary{
			Name:       col.Name,
			Type:       col.Type,
			NonNull:    nonNull,
			Proportion: proportion,
		})
	}

	sort.SliceStable(summary.Columns, func(i, j int) bool {
		if summary.Columns[i].NonNull != summary.Columns[j].NonNull {
			return summary.Columns[i].NonNull > summary.Columns[j].NonNull
		}
		return summary.Columns[i].Name < summary.Columns[j].Name
	})

	return summary
}

// TypeChange records a column whose declared type differs between versions
type TypeChange struct {
	Column  string     `json:"column"`
	OldType ColumnType `json:"old_type"`
	NewType ColumnType `json:"new_type"`
}

// SchemaDiff is the column-level comparison of two table versions
type SchemaDiff struct {
	AddedColumns     []string     `json:"added_columns"`
	RemovedColumns   []string     `json:"removed_columns"`
	TypeChanges      []TypeChange `json:"type_changes"`
	UnchangedColumns []string     `json:"unchanged_columns"`
}

// CommonColumns returns the columns present in both versions, sorted by name
func (d *SchemaDiff) CommonColumns() []string {
	common := make([]string, 0, len(d.UnchangedColumns)+len(d.TypeChanges))
	common = append(common, d.UnchangedColumns...)
	for _, change := range d.TypeChanges {
		common = append(common, change.Column)
	}
	sort.Strings(common)
	return common
}

// HasChanges reports whether any column was added, removed or retyped
func (d *SchemaDiff) HasChanges() bool {
	return len(d.AddedColumns) > 0 || len(d.RemovedColumns) > 0 || len(d.TypeChanges) > 0
}

// Side names for the two table versions in a comparison
const (
	SideOld = "old"
	SideNew = "new"
)

// WarningKind identifies a category of data quality warning
type WarningKind int

const (
	WarningNullKey WarningKind = iota
	WarningDuplicateKey
)

// String returns the lowercase name of the warning kind
func (k WarningKind) String() string {
	switch k {
	case WarningNullKey:
		return "null_key"
	case WarningDuplicateKey:
		return "duplicate_key"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the warning kind as its name
func (k WarningKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Warning flags a data quality issue found during comparison.
// Warnings never interrupt a comparison run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Side    string      `json:"side"`
	Row     int         `json:"row"`
	Key     string      `json:"key,omitempty"`
	Message string      `json:"message"`
}

// String returns the warning message
func (w Warning) String() string {
	return w.Message
}

// KeyGroup is the set of row ordinals sharing one identity key on one side
type KeyGroup struct {
	Key     string `json:"-"`
	Display string `json:"key"`
	Rows    []int  `json:"rows"`
}

// MatchedPair pairs an old row with a new row sharing an identity key
type MatchedPair struct {
	Key     string `json:"-"`
	Display string `json:"key"`
	OldRow  int    `json:"old_row"`
	NewRow  int    `json:"new_row"`
}

// AlignmentResult is the record-population comparison of two table versions
type AlignmentResult struct {
	Added    []KeyGroup    `json:"added"`
	Removed  []KeyGroup    `json:"removed"`
	Matched  []MatchedPair `json:"matched"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// AddedRecordCount returns the number of rows whose key exists only in the new version
func (a *AlignmentResult) AddedRecordCount() int {
	count := 0
	for _, group := range a.Added {
		count += len(group.Rows)
	}
	return count
}

// RemovedRecordCount returns the number of rows whose key exists only in the old version
func (a *AlignmentResult) RemovedRecordCount() int {
	count := 0
	for _, group := range a.Removed {
		count += len(group.Rows)
	}
	return count
}

// FieldDiff records one column's comparison verdict for a matched record pair
type FieldDiff struct {
	Column  string `json:"column"`
	Old     Value  `json:"old"`
	New     Value  `json:"new"`
	Changed bool   `json:"changed"`
}

// RecordDiff is the field-by-field comparison of one matched record pair
type RecordDiff struct {
	Key     string      `json:"key"`
	OldRow  int         `json:"old_row"`
	NewRow  int         `json:"new_row"`
	Fields  []FieldDiff `json:"fields"`
	Changed bool        `json:"changed"`
}

// ChangedFields returns only the fields whose values differ
func (d *RecordDiff) ChangedFields() []FieldDiff {
	var changed []FieldDiff
	for _, field := range d.Fields {
		if field.Changed {
			changed = append(changed, field)
		}
	}
	return changed
}

// ComparePolicy controls how cell values are judged equal
type ComparePolicy struct {
	AbsTolerance    float64 `json:"abs_tolerance" yaml:"abs_tolerance"`
	RelTolerance    float64 `json:"rel_tolerance" yaml:"rel_tolerance"`
	NullEqualsEmpty bool    `json:"null_equals_empty" yaml:"null_equals_empty"`
	DateOnly        bool    `json:"date_only" yaml:"date_only"`
}

// DefaultComparePolicy returns the strict policy: exact numeric equality,
// nulls distinct from empty strings, full-precision time comparison
func DefaultComparePolicy() ComparePolicy {
	return ComparePolicy{}
}

// ReportMeta describes a comparison run
type ReportMeta struct {
	Title        string    `json:"title"`
	GeneratedAt  time.Time `json:"generated_at"`
	OldName      string    `json:"old_name"`
	NewName      string    `json:"new_name"`
	Key          []string  `json:"key"`
	ColumnSubset []string  `json:"column_subset,omitempty"`
	AllEqual     bool      `json:"all_equal"`
}

// ReportSummary holds the headline counts of a comparison
type ReportSummary struct {
	RecordsAdded       int `json:"records_added"`
	RecordsRemoved     int `json:"records_removed"`
	RecordsChanged     int `json:"records_changed"`
	RecordsUnchanged   int `json:"records_unchanged"`
	ColumnsAdded       int `json:"columns_added"`
	ColumnsRemoved     int `json:"columns_removed"`
	ColumnsTypeChanged int `json:"columns_type_changed"`
}

// ColumnChangeStat reports how often one column changed across matched records
type ColumnChangeStat struct {
	Column     string  `json:"column"`
	Changed    int     `json:"changed"`
	Proportion float64 `json:"proportion"`
}

// Report is the assembled outcome of one comparison run.
// It is a read-only aggregate: nothing in it is recomputed after assembly.
type Report struct {
	Meta           ReportMeta         `json:"meta"`
	OldSummary     TableSummary       `json:"old_summary"`
	NewSummary     TableSummary       `json:"new_summary"`
	Schema         SchemaDiff         `json:"schema"`
	Summary        ReportSummary      `json:"summary"`
	AddedKeys      []string           `json:"added_keys"`
	RemovedKeys    []string           `json:"removed_keys"`
	RecordDiffs    []RecordDiff       `json:"record_diffs"`
	ColumnStats    []ColumnChangeStat `json:"column_stats,omitempty"`
	ChangedRecords *Table             `json:"changed_records,omitempty"`
	Warnings       []Warning          `json:"warnings,omitempty"`
}

// ConfigurationError indicates a comparison was requested with unusable inputs
type ConfigurationError struct {
	Message string
}

// Error returns the configuration error message
func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError builds a configuration error from a format string
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
