package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operator identifies the check a Rule applies to a field value.
type Operator string

const (
	OpEquals             Operator = "Equals"
	OpNotEquals          Operator = "NotEquals"
	OpGreaterThan        Operator = "GreaterThan"
	OpLessThan           Operator = "LessThan"
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpContains           Operator = "Contains"
	OpNotContains        Operator = "NotContains"
	OpStartsWith         Operator = "StartsWith"
	OpEndsWith           Operator = "EndsWith"
	OpMatches            Operator = "Matches"
	OpBetween            Operator = "Between"
	OpIn                 Operator = "In"
	OpNotIn              Operator = "NotIn"
	OpIsNull             Operator = "IsNull"
	OpIsNotNull          Operator = "IsNotNull"
	OpIsEmail            Operator = "IsEmail"
	OpIsURL              Operator = "IsUrl"
	OpIsPhoneNumber      Operator = "IsPhoneNumber"
	OpLength             Operator = "Length"
	OpMinLength          Operator = "MinLength"
	OpMaxLength          Operator = "MaxLength"
	OpNumericRange       Operator = "NumericRange"
	OpDateRange          Operator = "DateRange"
)

// Operators lists every declared operator in declaration order.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual,
	OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpMatches, OpBetween, OpIn, OpNotIn,
	OpIsNull, OpIsNotNull, OpIsEmail, OpIsURL, OpIsPhoneNumber, OpLength, OpMinLength,
	OpMaxLength, OpNumericRange, OpDateRange,
}

// ParseOperator resolves an operator name case-insensitively.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	for _, op := range Operators {
		if strings.EqualFold(string(op), s) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// UnmarshalText lets operators be decoded from JSON by name.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// DataType is the semantic type of a field, declared on rules and inferred by the profiler.
type DataType string

const (
	TypeString      DataType = "String"
	TypeInteger     DataType = "Integer"
	TypeDecimal     DataType = "Decimal"
	TypeBoolean     DataType = "Boolean"
	TypeDateTime    DataType = "DateTime"
	TypeEmail       DataType = "Email"
	TypePhoneNumber DataType = "PhoneNumber"
	TypeURL         DataType = "Url"
)

var dataTypes = []DataType{
	TypeString, TypeInteger, TypeDecimal, TypeBoolean, TypeDateTime, TypeEmail, TypePhoneNumber, TypeURL,
}

// ParseDataType resolves a data type name case-insensitively.
// An empty name resolves to TypeString.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeString, nil
	}
	for _, dt := range dataTypes {
		if strings.EqualFold(string(dt), s) {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// UnmarshalText lets data types be decoded from JSON by name.
func (d *DataType) UnmarshalText(text []byte) error {
	dt, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// Row is one record of a batch: field name to dynamically typed value.
type Row map[string]Value

// Rule is a configured field-level check applied to every row of a batch.
type Rule struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Priority          int       `json:"priority"` // higher runs first
	FieldName         string    `json:"fieldName"`
	FieldType         DataType  `json:"fieldType"`
	Operator          Operator  `json:"operator"`
	OperatorValue     string    `json:"operatorValue,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	IsActive          bool      `json:"isActive"`
	CanAutoCorrect    bool      `json:"canAutoCorrect"`
	AutoCorrectAction string    `json:"autoCorrectAction,omitempty"`

	// Bookkeeping set by rule stores; the engine ignores these.
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// FieldResult is the outcome of one rule against one field of one row.
type FieldResult struct {
	FieldName    string    `json:"fieldName"`
	Value        Value     `json:"value"`
	IsValid      bool      `json:"isValid"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Suggestion   string    `json:"suggestion,omitempty"`
	FailedRule   *Operator `json:"failedRule,omitempty"`
}

// RowResult collects every field result for one row.
type RowResult struct {
	RowNumber          int           `json:"rowNumber"` // 1-based
	RowID              string        `json:"rowId"`
	IsValid            bool          `json:"isValid"`
	FieldResults       []FieldResult `json:"fieldResults"`
	CrossFieldErrors   []string      `json:"crossFieldErrors"`
	HasDuplicate       bool          `json:"hasDuplicate"`
	DuplicateRowNumber *int          `json:"duplicateRowNumber,omitempty"`
}

// Report is the aggregate outcome of validating a batch.
type Report struct {
	ID                 uuid.UUID              `json:"id"`
	DataSourceName     string                 `json:"dataSourceName"`
	ExecutedAt         time.Time              `json:"executedAt"`
	TotalRows          int                    `json:"totalRows"`
	ValidRows          int                    `json:"validRows"`
	InvalidRows        int                    `json:"invalidRows"`
	ValidityPercentage float64                `json:"validityPercentage"`
	RowResults         []RowResult            `json:"rowResults"`
	ErrorSummary       map[string]int         `json:"errorSummary"`
	DuplicateFields    []string               `json:"duplicateFields"`
	DuplicateCount     int                    `json:"duplicateCount"`
	Profile            *DataProfile           `json:"profile,omitempty"`
	Corrections        []CorrectionSuggestion `json:"corrections,omitempty"`
}

// InvalidRowResults returns the row results that failed, in batch order.
func (r *Report) InvalidRowResults() []RowResult {
	var out []RowResult
	for _, rr := range r.RowResults {
		if !rr.IsValid {
			out = append(out, rr)
		}
	}
	return out
}

// TopValue is one entry of a column's most frequent values.
type TopValue struct {
	Value     string `json:"value"`
	Frequency int    `json:"frequency"`
}

// FieldProfile holds descriptive statistics for one column.
type FieldProfile struct {
	FieldName            string     `json:"fieldName"`
	FieldType            DataType   `json:"fieldType"`
	TotalCount           int        `json:"totalCount"`
	NullCount            int        `json:"nullCount"`
	NullPercentage       float64    `json:"nullPercentage"`
	UniqueValues         int        `json:"uniqueValues"`
	UniquenessPercentage float64    `json:"uniquenessPercentage"`
	MinValue             *float64   `json:"minValue,omitempty"`
	MaxValue             *float64   `json:"maxValue,omitempty"`
	Average              *float64   `json:"average,omitempty"`
	StdDeviation         *float64   `json:"stdDeviation,omitempty"`
	TopValues            []TopValue `json:"topValues,omitempty"`
}

// Completeness is the share of non-null values, in percent.
func (p FieldProfile) Completeness() float64 {
	return 100 - p.NullPercentage
}

// DataProfile aggregates the field profiles of a batch.
type DataProfile struct {
	ID              uuid.UUID               `json:"id"`
	DataSourceName  string                  `json:"dataSourceName"`
	ProfiledAt      time.Time               `json:"profiledAt"`
	TotalRows       int                     `json:"totalRows"`
	TotalFields     int                     `json:"totalFields"`
	FieldProfiles   map[string]FieldProfile `json:"fieldProfiles"`
	PotentialIssues []string                `json:"potentialIssues"`
}

// CorrectionSuggestion proposes a replacement for a failing field.
// Suggestions are best-effort and never applied by the engine.
type CorrectionSuggestion struct {
	RowNumber      int     `json:"rowNumber"`
	FieldName      string  `json:"fieldName"`
	CurrentValue   Value   `json:"currentValue"`
	SuggestedValue Value   `json:"suggestedValue"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
}

// ValidateRequest carries a batch and the options for one Validate call.
type ValidateRequest struct {
	DataSourceName       string
	Rows                 []Row
	DetectDuplicates     bool
	DuplicateCheckFields []string
	GenerateProfile      bool
	IncludeCorrections   bool
}
