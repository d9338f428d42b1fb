// Package rules provides the rule sets the validation engine runs.
//
// Rules come from one of three places:
//   - Defaults, the built-in example set used when nothing else is configured
//   - A YAML rule file (LoadFile)
//   - A PostgreSQL table managed through Store
//
// All of them satisfy Source.
package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataquality/internal/quality"
)

var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule is returned when a rule definition is incomplete or malformed.
	ErrInvalidRule = errors.New("invalid rule")
)

// Source lists the rules available for validation.
type Source interface {
	List(ctx context.Context) ([]quality.Rule, error)
}

// Static is a fixed in-memory rule set.
type Static []quality.Rule

// List implements Source. The returned slice is a copy.
func (s Static) List(context.Context) ([]quality.Rule, error) {
	out := make([]quality.Rule, len(s))
	copy(out, s)
	return out, nil
}

// Defaults returns the built-in example rules: email format, required name
// and phone number format.
func Defaults() Static {
	return Static{
		{
			ID:           uuid.New(),
			Name:         "Email Format",
			Description:  "Validate email field format",
			Priority:     10,
			FieldName:    "Email",
			FieldType:    quality.TypeEmail,
			Operator:     quality.OpIsEmail,
			ErrorMessage: "Invalid email format",
			IsActive:     true,
			CreatedBy:    "system",
		},
		{
			ID:           uuid.New(),
			Name:         "Name Required",
			Description:  "Name field is required",
			Priority:     9,
			FieldName:    "Name",
			FieldType:    quality.TypeString,
			Operator:     quality.OpIsNotNull,
			ErrorMessage: "Name is required",
			IsActive:     true,
			CreatedBy:    "system",
		},
		{
			ID:           uuid.New(),
			Name:         "Phone Number Format",
			Description:  "Validate phone number format",
			Priority:     8,
			FieldName:    "Phone",
			FieldType:    quality.TypePhoneNumber,
			Operator:     quality.OpIsPhoneNumber,
			ErrorMessage: "Invalid phone number",
			IsActive:     true,
			CreatedBy:    "system",
		},
	}
}

// FilterByFields keeps the rules whose field is one of fields.
func FilterByFields(rules []quality.Rule, fields []string) []quality.Rule {
	present := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		present[f] = struct{}{}
	}

	out := make([]quality.Rule, 0, len(rules))
	for _, r := range rules {
		if _, ok := present[r.FieldName]; ok {
			out = append(out, r)
		}
	}
	return out
}

// SelectByID keeps the rules whose ID is listed, in rule order.
// An empty ids list selects every rule. Unknown IDs are reported with
// ErrRuleNotFound.
func SelectByID(rules []quality.Rule, ids []uuid.UUID) ([]quality.Rule, error) {
	if len(ids) == 0 {
		return rules, nil
	}

	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = false
	}

	out := make([]quality.Rule, 0, len(ids))
	for _, r := range rules {
		if _, ok := wanted[r.ID]; ok {
			wanted[r.ID] = true
			out = append(out, r)
		}
	}

	var missing []string
	for _, id := range ids {
		if !wanted[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

// Validate checks that a rule can be evaluated: it needs a name, a field and
// a known operator, and operators that take an operand need a usable one.
func Validate(r quality.Rule) error {
	var problems []string

	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(r.FieldName) == "" {
		problems = append(problems, "field is required")
	}
	if _, err := quality.ParseOperator(string(r.Operator)); err != nil {
		problems = append(problems, err.Error())
	}

	switch r.Operator {
	case quality.OpMatches:
		if _, err := regexp.Compile(r.OperatorValue); err != nil {
			problems = append(problems, fmt.Sprintf("pattern %q does not compile", r.OperatorValue))
		}
	case quality.OpBetween:
		if len(strings.Split(r.OperatorValue, ",")) != 2 {
			problems = append(problems, `between needs a "min,max" value`)
		}
	case quality.OpEquals, quality.OpNotEquals, quality.OpContains, quality.OpStartsWith,
		quality.OpEndsWith, quality.OpIn, quality.OpMinLength, quality.OpMaxLength,
		quality.OpGreaterThan, quality.OpLessThan, quality.OpGreaterThanOrEqual, quality.OpLessThanOrEqual:
		if r.OperatorValue == "" {
			problems = append(problems, fmt.Sprintf("operator %s needs a value", r.Operator))
		}
	}

	if len(problems) > 0 {
		label := r.Name
		if label == "" {
			label = r.FieldName
		}
		return fmt.Errorf("%w %q: %s", ErrInvalidRule, label, strings.Join(problems, "; "))
	}
	return nil
}
