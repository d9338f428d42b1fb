package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Engine validates, deduplicates and profiles batches of rows.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	crossField []CrossFieldRule
	patterns   *patternCache
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCrossFieldRules replaces the default cross-field relations.
func WithCrossFieldRules(rules ...CrossFieldRule) Option {
	return func(e *Engine) {
		e.crossField = rules
	}
}

// WithClock overrides the clock used for report and profile timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine with the default cross-field relations.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		crossField: DefaultCrossFieldRules(),
		patterns:   newPatternCache(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ActiveRules returns the active rules ordered by descending priority.
// Rules with equal priority keep their input order.
func ActiveRules(rules []Rule) []Rule {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active
}

// CompileRules checks that every active Matches rule carries a valid pattern
// and warms the pattern cache.
func (e *Engine) CompileRules(rules []Rule) error {
	for _, r := range rules {
		if !r.IsActive || r.Operator != OpMatches {
			continue
		}
		if _, err := e.patterns.get(r.OperatorValue); err != nil {
			return fmt.Errorf("rule %q on field %q: %w", r.Name, r.FieldName, err)
		}
	}
	return nil
}

// reportBuilder accumulates counters while rows are processed.
type reportBuilder struct {
	rowResults   []RowResult
	errorSummary map[string]int
	valid        int
}

// Validate runs every active rule, the cross-field relations and, when
// requested, duplicate detection over the batch. Per-field problems are
// reported as data; the only error is a Matches pattern that does not compile.
func (e *Engine) Validate(req ValidateRequest, rules []Rule) (*Report, error) {
	active := ActiveRules(rules)
	if err := e.CompileRules(active); err != nil {
		return nil, err
	}

	var (
		duplicates  []Duplicate
		checkFields = []string{}
	)
	if req.DetectDuplicates {
		checkFields = req.DuplicateCheckFields
		if len(checkFields) == 0 {
			checkFields = DefaultCheckFields(req.Rows)
		}
		duplicates = DetectDuplicates(req.Rows, checkFields)
	}
	precedent := make(map[int]int, len(duplicates))
	for _, d := range duplicates {
		precedent[d.RowIndex] = d.DuplicateOf
	}

	b := reportBuilder{
		rowResults:   make([]RowResult, 0, len(req.Rows)),
		errorSummary: map[string]int{},
	}

	for i, row := range req.Rows {
		fieldResults := make([]FieldResult, 0, len(active))
		allValid := true
		for _, rule := range active {
			fr := e.ValidateField(row, rule)
			fieldResults = append(fieldResults, fr)
			if !fr.IsValid {
				allValid = false
				b.errorSummary[fr.FieldName]++
			}
		}

		crossErrs := e.ValidateCrossFields(row)

		rr := RowResult{
			RowNumber:        i + 1,
			RowID:            fmt.Sprintf("Row_%d", i+1),
			FieldResults:     fieldResults,
			CrossFieldErrors: crossErrs,
		}
		if first, ok := precedent[i]; ok {
			n := first + 1
			rr.HasDuplicate = true
			rr.DuplicateRowNumber = &n
		}
		rr.IsValid = allValid && len(crossErrs) == 0 && !rr.HasDuplicate

		if rr.IsValid {
			b.valid++
		}
		b.rowResults = append(b.rowResults, rr)
	}

	total := len(req.Rows)
	report := &Report{
		ID:                 uuid.New(),
		DataSourceName:     req.DataSourceName,
		ExecutedAt:         e.now().UTC(),
		TotalRows:          total,
		ValidRows:          b.valid,
		InvalidRows:        total - b.valid,
		ValidityPercentage: percent(b.valid, total),
		RowResults:         b.rowResults,
		ErrorSummary:       b.errorSummary,
		DuplicateFields:    checkFields,
		DuplicateCount:     len(duplicates),
	}

	if req.GenerateProfile {
		profile := e.ProfileData(req.DataSourceName, req.Rows)
		report.Profile = &profile
	}
	if req.IncludeCorrections {
		report.Corrections = GenerateCorrections(report.InvalidRowResults(), req.Rows)
	}

	return report, nil
}
