package quality

// field.go evaluates one rule against one field of one row.
//
// Evaluation happens in three steps:
//  1. Missing field: only IsNull passes
//  2. Null or blank value: only IsNull passes, whatever the operator
//  3. Operator dispatch on the value's string form
//
// Parse failures (numbers, ranges, lengths) never escape as errors; they turn
// into an invalid result with a message.

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// emptyFieldSuggestion is the generic suggestion attached to blank required fields.
const emptyFieldSuggestion = "Provide a value for this required field"

// outcome is the operator-level verdict before it is wrapped into a FieldResult.
type outcome struct {
	valid      bool
	message    string
	suggestion string
}

func pass() outcome { return outcome{valid: true} }

func fail(format string, args ...any) outcome {
	return outcome{message: fmt.Sprintf(format, args...)}
}

// check turns a boolean into an outcome, formatting the message only on failure.
func check(ok bool, format string, args ...any) outcome {
	if ok {
		return pass()
	}
	return fail(format, args...)
}

// ValidateField evaluates rule against the rule's field in row.
// It is a pure function of its arguments apart from the shared pattern cache.
func (e *Engine) ValidateField(row Row, rule Rule) FieldResult {
	value, ok := row[rule.FieldName]
	if !ok {
		res := FieldResult{
			FieldName: rule.FieldName,
			IsValid:   rule.Operator == OpIsNull,
		}
		if !res.IsValid {
			res.ErrorMessage = fmt.Sprintf("Field '%s' not found in data", rule.FieldName)
			res.FailedRule = operatorRef(rule.Operator)
		}
		return res
	}

	out := e.checkValue(value, rule)
	res := FieldResult{
		FieldName:    rule.FieldName,
		Value:        value,
		IsValid:      out.valid,
		ErrorMessage: out.message,
		Suggestion:   out.suggestion,
	}
	if !out.valid {
		res.FailedRule = operatorRef(rule.Operator)
	}
	return res
}

func operatorRef(op Operator) *Operator {
	return &op
}

// checkValue dispatches on the rule's operator for a present value.
func (e *Engine) checkValue(value Value, rule Rule) outcome {
	if value.IsBlank() {
		if rule.Operator == OpIsNull {
			return pass()
		}
		msg := rule.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("Required field '%s' is empty", rule.FieldName)
		}
		return outcome{message: msg, suggestion: emptyFieldSuggestion}
	}

	s := value.String()
	operand := rule.OperatorValue

	switch rule.Operator {
	case OpIsNotNull:
		return pass()

	case OpEquals:
		if s == operand {
			return pass()
		}
		return outcome{
			message:    fmt.Sprintf("Expected '%s'", operand),
			suggestion: fmt.Sprintf("Change to '%s'", operand),
		}

	case OpNotEquals:
		return check(s != operand, "Must not equal '%s'", operand)

	case OpContains:
		return check(strings.Contains(s, operand), "Must contain '%s'", operand)

	case OpStartsWith:
		return check(strings.HasPrefix(s, operand), "Must start with '%s'", operand)

	case OpEndsWith:
		return check(strings.HasSuffix(s, operand), "Must end with '%s'", operand)

	case OpIsEmail:
		return check(isEmail(s), "Invalid email format")

	case OpIsPhoneNumber:
		return check(isPhoneNumber(s), "Invalid phone number format")

	case OpIsURL:
		return check(isAbsoluteURL(s), "Invalid URL format")

	case OpMinLength:
		n, ok := parseInt(operand)
		if !ok {
			return fail("Invalid length value '%s'", operand)
		}
		return check(int64(utf8.RuneCountInString(s)) >= n, "Minimum %d characters required", n)

	case OpMaxLength:
		n, ok := parseInt(operand)
		if !ok {
			return fail("Invalid length value '%s'", operand)
		}
		return check(int64(utf8.RuneCountInString(s)) <= n, "Maximum %d characters allowed", n)

	case OpGreaterThan:
		return compareNumeric(s, operand, ">")
	case OpLessThan:
		return compareNumeric(s, operand, "<")
	case OpGreaterThanOrEqual:
		return compareNumeric(s, operand, ">=")
	case OpLessThanOrEqual:
		return compareNumeric(s, operand, "<=")

	case OpBetween:
		return between(s, operand)

	case OpIn:
		for _, candidate := range strings.Split(operand, ",") {
			if candidate == s {
				return pass()
			}
		}
		return fail("Must be one of: %s", operand)

	case OpMatches:
		re, err := e.patterns.get(operand)
		if err != nil {
			return fail("Invalid pattern '%s'", operand)
		}
		return check(re.MatchString(s), "Format doesn't match pattern")
	}

	// Declared but unimplemented operators pass through.
	return pass()
}

// compareNumeric parses both sides as decimals and applies op.
func compareNumeric(s, operand, op string) outcome {
	val, ok := parseDecimal(s)
	if !ok {
		return fail("Invalid numeric value")
	}
	target, ok := parseDecimal(operand)
	if !ok {
		return fail("Invalid numeric value")
	}

	cmp := val.Cmp(target)
	var valid bool
	switch op {
	case ">":
		valid = cmp > 0
	case "<":
		valid = cmp < 0
	case ">=":
		valid = cmp >= 0
	case "<=":
		valid = cmp <= 0
	}
	return check(valid, "Value must be %s %s", op, operand)
}

// between checks min <= value <= max for an operand of the form "min,max".
func between(s, operand string) outcome {
	parts := strings.Split(operand, ",")
	if len(parts) != 2 {
		return fail("Invalid range format")
	}
	lo, okLo := parseDecimal(parts[0])
	hi, okHi := parseDecimal(parts[1])
	val, okVal := parseDecimal(s)
	if !okLo || !okHi || !okVal {
		return fail("Invalid range format")
	}

	valid := val.Cmp(lo) >= 0 && val.Cmp(hi) <= 0
	return check(valid, "Value must be between %s and %s",
		strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
}
