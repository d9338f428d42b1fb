package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dataquality/internal/quality"
)

// File is the on-disk rule file layout:
//
//	version: "1"
//	rules:
//	  - name: Email Format
//	    field: Email
//	    operator: IsEmail
//	    priority: 10
//	    message: Invalid email format
//	  - name: Status
//	    field: Status
//	    operator: In
//	    value: active,inactive
type File struct {
	Version string     `yaml:"version"`
	Rules   []fileRule `yaml:"rules"`
}

// fileRule mirrors quality.Rule with optional fields so omitted keys get
// defaults: rules are active unless "active: false" is given.
type fileRule struct {
	ID                string `yaml:"id,omitempty"`
	Name              string `yaml:"name"`
	Description       string `yaml:"description,omitempty"`
	Priority          int    `yaml:"priority,omitempty"`
	Field             string `yaml:"field"`
	Type              string `yaml:"type,omitempty"`
	Operator          string `yaml:"operator"`
	Value             string `yaml:"value,omitempty"`
	Message           string `yaml:"message,omitempty"`
	Active            *bool  `yaml:"active,omitempty"`
	AutoCorrect       bool   `yaml:"autoCorrect,omitempty"`
	AutoCorrectAction string `yaml:"autoCorrectAction,omitempty"`
}

// LoadFile reads and parses a YAML rule file.
func LoadFile(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rules, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes a YAML rule document. Every rule is checked with Validate and
// the first invalid one fails the whole file.
func Parse(r io.Reader) (Static, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Static{}, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	out := make(Static, 0, len(f.Rules))
	for i, fr := range f.Rules {
		rule, err := fr.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func (fr fileRule) toRule() (quality.Rule, error) {
	op, err := quality.ParseOperator(fr.Operator)
	if err != nil {
		return quality.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	dt, err := quality.ParseDataType(fr.Type)
	if err != nil {
		return quality.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	id := uuid.New()
	if fr.ID != "" {
		id, err = uuid.Parse(fr.ID)
		if err != nil {
			return quality.Rule{}, fmt.Errorf("%w: id %q: %v", ErrInvalidRule, fr.ID, err)
		}
	}

	active := true
	if fr.Active != nil {
		active = *fr.Active
	}

	return quality.Rule{
		ID:                id,
		Name:              fr.Name,
		Description:       fr.Description,
		Priority:          fr.Priority,
		FieldName:         fr.Field,
		FieldType:         dt,
		Operator:          op,
		OperatorValue:     fr.Value,
		ErrorMessage:      fr.Message,
		IsActive:          active,
		CanAutoCorrect:    fr.AutoCorrect,
		AutoCorrectAction: fr.AutoCorrectAction,
		CreatedBy:         "file",
	}, nil
}
