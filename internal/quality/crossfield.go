package quality

import "fmt"

// CrossFieldRule inspects several fields of one row and reports violations.
// Implementations parse the fields they need, skip the row silently when a field
// is missing or unparseable, and return one message per violation.
type CrossFieldRule interface {
	Check(row Row) []string
}

// DateOrder requires Start to be strictly before End when both parse as dates.
type DateOrder struct {
	Start string
	End   string
}

// Check implements CrossFieldRule.
func (d DateOrder) Check(row Row) []string {
	startVal, ok := row[d.Start]
	if !ok {
		return nil
	}
	endVal, ok := row[d.End]
	if !ok {
		return nil
	}

	start, ok := valueTime(startVal)
	if !ok {
		return nil
	}
	end, ok := valueTime(endVal)
	if !ok {
		return nil
	}

	if !start.Before(end) {
		return []string{fmt.Sprintf("%s must be before %s", d.Start, d.End)}
	}
	return nil
}

// DefaultCrossFieldRules is the relation set used by NewEngine.
func DefaultCrossFieldRules() []CrossFieldRule {
	return []CrossFieldRule{DateOrder{Start: "StartDate", End: "EndDate"}}
}

// ValidateCrossFields runs every configured cross-field rule against row.
// The result is never nil so it serializes as an empty list.
func (e *Engine) ValidateCrossFields(row Row) []string {
	errs := []string{}
	for _, rule := range e.crossField {
		errs = append(errs, rule.Check(row)...)
	}
	return errs
}
