package quality

// profile.go computes descriptive statistics per column.
//
// The column set comes from the first row only; fields that appear in later rows
// but not in the first one are not profiled. Each column's type is inferred from
// its first non-null value (see InferType), and numeric statistics are computed
// over the values that parse as decimals.

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// maxTopValues caps the frequency table of each column.
const maxTopValues = 10

// Issue thresholds, in percent.
const (
	highNullThreshold        = 50.0
	highCardinalityThreshold = 95.0
	lowCardinalityThreshold  = 5.0
)

// ProfileData profiles every column of the batch.
func (e *Engine) ProfileData(dataSourceName string, rows []Row) DataProfile {
	profile := DataProfile{
		ID:              uuid.New(),
		DataSourceName:  dataSourceName,
		ProfiledAt:      e.now().UTC(),
		TotalRows:       len(rows),
		FieldProfiles:   map[string]FieldProfile{},
		PotentialIssues: []string{},
	}
	if len(rows) == 0 {
		return profile
	}

	for _, field := range DefaultCheckFields(rows) {
		fp := profileField(field, rows)
		profile.FieldProfiles[field] = fp
		profile.PotentialIssues = append(profile.PotentialIssues, fieldIssues(fp)...)
	}
	profile.TotalFields = len(profile.FieldProfiles)

	return profile
}

// profileField computes the statistics of one column.
func profileField(field string, rows []Row) FieldProfile {
	total := len(rows)
	nonNull := make([]Value, 0, total)
	for _, row := range rows {
		v := row[field] // absent reads as null
		if !v.IsBlank() {
			nonNull = append(nonNull, v)
		}
	}

	top := frequencies(nonNull)
	nullCount := total - len(nonNull)

	fp := FieldProfile{
		FieldName:            field,
		FieldType:            TypeString,
		TotalCount:           total,
		NullCount:            nullCount,
		NullPercentage:       percent(nullCount, total),
		UniqueValues:         len(top),
		UniquenessPercentage: percent(len(top), total),
	}

	if len(nonNull) > 0 {
		fp.FieldType = InferType(nonNull[0])
	}
	if fp.FieldType == TypeInteger || fp.FieldType == TypeDecimal {
		numericStats(&fp, nonNull)
	}

	if len(top) > maxTopValues {
		top = top[:maxTopValues]
	}
	if len(top) > 0 {
		fp.TopValues = top
	}

	return fp
}

// frequencies groups values by exact value and sorts by descending count.
// Ties keep first-appearance order.
func frequencies(values []Value) []TopValue {
	index := make(map[string]int)
	var out []TopValue
	for _, v := range values {
		key := v.groupKey()
		if i, ok := index[key]; ok {
			out[i].Frequency++
			continue
		}
		index[key] = len(out)
		out = append(out, TopValue{Value: v.String(), Frequency: 1})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Frequency > out[j].Frequency
	})
	return out
}

// numericStats fills mean, min, max and population standard deviation over the
// values that parse as decimals. Nothing is set when none parse.
func numericStats(fp *FieldProfile, values []Value) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := parseFloat(v.String()); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return
	}

	lo, hi, sum := nums[0], nums[0], 0.0
	for _, n := range nums {
		sum += n
		lo = math.Min(lo, n)
		hi = math.Max(hi, n)
	}
	mean := sum / float64(len(nums))

	var sq float64
	for _, n := range nums {
		d := n - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(len(nums)))

	fp.Average = &mean
	fp.MinValue = &lo
	fp.MaxValue = &hi
	fp.StdDeviation = &stdDev
}

// fieldIssues flags completeness and cardinality problems of one column.
func fieldIssues(fp FieldProfile) []string {
	var issues []string
	if fp.NullPercentage > highNullThreshold {
		issues = append(issues, fmt.Sprintf("Field '%s' has %.1f%% null values",
			fp.FieldName, fp.NullPercentage))
	}
	if fp.UniquenessPercentage > highCardinalityThreshold {
		issues = append(issues, fmt.Sprintf("Field '%s' has very high cardinality (%.1f%% unique)",
			fp.FieldName, fp.UniquenessPercentage))
	}
	if fp.UniquenessPercentage < lowCardinalityThreshold && fp.FieldType != TypeBoolean {
		issues = append(issues, fmt.Sprintf("Field '%s' has very low cardinality (%.1f%% unique)",
			fp.FieldName, fp.UniquenessPercentage))
	}
	return issues
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
