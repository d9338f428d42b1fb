package quality

import (
	"sort"
	"strings"
)

// keySeparator joins field values into a composite duplicate key.
// The ASCII unit separator does not occur in ordinary field content.
const keySeparator = "\x1f"

// Placeholders used in duplicate keys for absent and null fields.
const (
	keyNull    = "NULL"
	keyMissing = "MISSING"
)

// Duplicate records that the row at RowIndex repeats the key of the row at
// DuplicateOf, the first row that carried it. Indices are 0-based.
type Duplicate struct {
	RowIndex    int      `json:"rowIndex"`
	DuplicateOf int      `json:"duplicateOf"`
	Fields      []string `json:"fields"`
}

// DuplicateKey builds the composite key of row over fields.
func DuplicateKey(row Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := row[f]
		switch {
		case !ok:
			parts[i] = keyMissing
		case v.IsNull():
			parts[i] = keyNull
		default:
			parts[i] = v.String()
		}
	}
	return strings.Join(parts, keySeparator)
}

// DefaultCheckFields returns the first row's field names, sorted.
// An empty batch has no check fields.
func DefaultCheckFields(rows []Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	fields := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// DetectDuplicates reports every row whose key over checkFields repeats an
// earlier row's key. The first occurrence of a key is never reported, and every
// later occurrence points at that first occurrence. When checkFields is empty
// the first row's field names are used.
func DetectDuplicates(rows []Row, checkFields []string) []Duplicate {
	if len(checkFields) == 0 {
		checkFields = DefaultCheckFields(rows)
	}

	duplicates := []Duplicate{}
	firstSeen := make(map[string]int, len(rows))

	for i, row := range rows {
		key := DuplicateKey(row, checkFields)
		if first, ok := firstSeen[key]; ok {
			duplicates = append(duplicates, Duplicate{
				RowIndex:    i,
				DuplicateOf: first,
				Fields:      checkFields,
			})
			continue
		}
		firstSeen[key] = i
	}

	return duplicates
}
