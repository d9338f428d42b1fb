package quality

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// Validate Tests
// ----------------------------------------------------------------------------

func TestValidate_EmailScenario(t *testing.T) {
	e := NewEngine(WithClock(fixedClock))
	rules := []Rule{rule("Email", OpIsEmail, "")}

	report, err := e.Validate(ValidateRequest{
		DataSourceName: "emails",
		Rows:           []Row{{"Email": Text("a@b.com")}, {"Email": Text("bad")}},
	}, rules)
	require.NoError(t, err)

	assert.Equal(t, "emails", report.DataSourceName)
	assert.Equal(t, fixedClock(), report.ExecutedAt)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 1, report.ValidRows)
	assert.Equal(t, 1, report.InvalidRows)
	assert.InDelta(t, 50.0, report.ValidityPercentage, 1e-9)
	assert.Equal(t, map[string]int{"Email": 1}, report.ErrorSummary)

	require.Len(t, report.RowResults, 2)
	first, second := report.RowResults[0], report.RowResults[1]
	assert.Equal(t, 1, first.RowNumber)
	assert.Equal(t, "Row_1", first.RowID)
	assert.True(t, first.IsValid)

	assert.Equal(t, 2, second.RowNumber)
	assert.False(t, second.IsValid)
	require.Len(t, second.FieldResults, 1)
	assert.False(t, second.FieldResults[0].IsValid)
	assert.Equal(t, "Invalid email format", second.FieldResults[0].ErrorMessage)

	assert.Nil(t, report.Profile)
	assert.Nil(t, report.Corrections)
	assert.Equal(t, []string{}, report.DuplicateFields)
}

func TestValidate_CrossFieldMakesRowInvalid(t *testing.T) {
	e := NewEngine()
	rules := []Rule{rule("StartDate", OpIsNotNull, ""), rule("EndDate", OpIsNotNull, "")}

	report, err := e.Validate(ValidateRequest{
		Rows: []Row{{"StartDate": Text("2024-05-01"), "EndDate": Text("2024-04-01")}},
	}, rules)
	require.NoError(t, err)

	rr := report.RowResults[0]
	for _, fr := range rr.FieldResults {
		assert.True(t, fr.IsValid)
	}
	assert.Equal(t, []string{"StartDate must be before EndDate"}, rr.CrossFieldErrors)
	assert.False(t, rr.IsValid)
	assert.Equal(t, 0, report.ValidRows)
	assert.Empty(t, report.ErrorSummary, "cross-field errors are not field failures")
}

func TestValidate_Duplicates(t *testing.T) {
	e := NewEngine()
	rows := []Row{
		{"id": FromAny(1), "name": Text("Ann")},
		{"id": FromAny(2), "name": Text("Bob")},
		{"id": FromAny(3), "name": Text("Ann")},
		{"id": FromAny(4), "name": Text("Ann")},
	}

	report, err := e.Validate(ValidateRequest{
		Rows:                 rows,
		DetectDuplicates:     true,
		DuplicateCheckFields: []string{"name"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.DuplicateCount)
	assert.Equal(t, []string{"name"}, report.DuplicateFields)
	assert.Equal(t, 2, report.ValidRows)

	assert.False(t, report.RowResults[0].HasDuplicate)
	assert.Nil(t, report.RowResults[0].DuplicateRowNumber)

	for _, i := range []int{2, 3} {
		rr := report.RowResults[i]
		assert.True(t, rr.HasDuplicate)
		assert.False(t, rr.IsValid)
		require.NotNil(t, rr.DuplicateRowNumber)
		assert.Equal(t, 1, *rr.DuplicateRowNumber)
	}
}

func TestValidate_DuplicatesDefaultFields(t *testing.T) {
	e := NewEngine()
	rows := []Row{
		{"b": Text("x"), "a": Text("y")},
		{"b": Text("x"), "a": Text("y")},
	}

	report, err := e.Validate(ValidateRequest{Rows: rows, DetectDuplicates: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.DuplicateFields)
	assert.Equal(t, 1, report.DuplicateCount)
}

func TestValidate_DuplicatesNotRequested(t *testing.T) {
	e := NewEngine()
	rows := []Row{{"a": Text("x")}, {"a": Text("x")}}

	report, err := e.Validate(ValidateRequest{Rows: rows}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DuplicateCount)
	assert.Equal(t, 2, report.ValidRows)
}

func TestValidate_RuleOrderAndActivity(t *testing.T) {
	e := NewEngine()

	low := rule("a", OpIsNotNull, "")
	low.Priority = 1
	high := rule("b", OpIsNotNull, "")
	high.Priority = 9
	tie := rule("c", OpIsNotNull, "")
	tie.Priority = 1
	inactive := rule("d", OpIsEmail, "")
	inactive.Priority = 100
	inactive.IsActive = false

	report, err := e.Validate(ValidateRequest{
		Rows: []Row{{"a": Text("1"), "b": Text("2"), "c": Text("3"), "d": Text("not an email")}},
	}, []Rule{low, inactive, high, tie})
	require.NoError(t, err)

	var order []string
	for _, fr := range report.RowResults[0].FieldResults {
		order = append(order, fr.FieldName)
	}
	assert.Equal(t, []string{"b", "a", "c"}, order)
	assert.True(t, report.RowResults[0].IsValid)
	assert.NotContains(t, report.ErrorSummary, "d")
}

func TestValidate_Empty(t *testing.T) {
	e := NewEngine()
	report, err := e.Validate(ValidateRequest{GenerateProfile: true, DetectDuplicates: true}, []Rule{rule("x", OpIsEmail, "")})
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalRows)
	assert.Equal(t, 0, report.InvalidRows)
	assert.Equal(t, 0.0, report.ValidityPercentage)
	assert.NotNil(t, report.RowResults)
	require.NotNil(t, report.Profile)
	assert.Equal(t, 0, report.Profile.TotalFields)
}

func TestValidate_CountsAlwaysAddUp(t *testing.T) {
	e := NewEngine()
	rules := []Rule{
		rule("n", OpBetween, "0,100"),
		rule("s", OpMaxLength, "3"),
	}

	rows := make([]Row, 0, 57)
	for i := 0; i < 57; i++ {
		rows = append(rows, Row{
			"n": FromAny(i * 7 % 130),
			"s": Text(fmt.Sprintf("%0*d", i%5, 0)),
		})
	}

	report, err := e.Validate(ValidateRequest{Rows: rows, DetectDuplicates: true}, rules)
	require.NoError(t, err)
	assert.Equal(t, report.TotalRows, report.ValidRows+report.InvalidRows)
	assert.Len(t, report.InvalidRowResults(), report.InvalidRows)
	assert.InDelta(t, float64(report.ValidRows)/57*100, report.ValidityPercentage, 1e-9)
}

func TestValidate_WithProfileAndCorrections(t *testing.T) {
	e := NewEngine()
	rules := []Rule{rule("Name", OpIsNotNull, ""), rule("Status", OpEquals, "active")}

	report, err := e.Validate(ValidateRequest{
		DataSourceName:     "people",
		Rows:               []Row{{"Name": Text(""), "Status": Text("active")}, {"Name": Text("Ann"), "Status": Text("gone")}},
		GenerateProfile:    true,
		IncludeCorrections: true,
	}, rules)
	require.NoError(t, err)

	require.NotNil(t, report.Profile)
	assert.Equal(t, "people", report.Profile.DataSourceName)
	assert.Equal(t, 2, report.Profile.TotalFields)

	require.Len(t, report.Corrections, 2)
	assert.Equal(t, 1, report.Corrections[0].RowNumber)
	assert.Equal(t, "Name", report.Corrections[0].FieldName)
	assert.Equal(t, 2, report.Corrections[1].RowNumber)
	assert.Equal(t, "Status", report.Corrections[1].FieldName)
}

func TestValidate_InvalidPattern(t *testing.T) {
	e := NewEngine()
	_, err := e.Validate(ValidateRequest{Rows: []Row{{"f": Text("x")}}}, []Rule{rule("f", OpMatches, "([")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	// Inactive rules are never compiled.
	bad := rule("f", OpMatches, "([")
	bad.IsActive = false
	_, err = e.Validate(ValidateRequest{Rows: []Row{{"f": Text("x")}}}, []Rule{bad})
	assert.NoError(t, err)
}

func TestValidate_DoesNotMutateRules(t *testing.T) {
	e := NewEngine()
	rules := []Rule{rule("a", OpIsNotNull, ""), rule("b", OpIsNotNull, "")}
	rules[1].Priority = 5

	_, err := e.Validate(ValidateRequest{Rows: []Row{{"a": Text("x"), "b": Text("y")}}}, rules)
	require.NoError(t, err)
	assert.Equal(t, "a", rules[0].FieldName)
}

// ----------------------------------------------------------------------------
// Concurrency Tests
// ----------------------------------------------------------------------------

func TestValidate_ConcurrentPatterns(t *testing.T) {
	e := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pattern := fmt.Sprintf(`^x%d$`, i%4)
			report, err := e.Validate(ValidateRequest{
				Rows: []Row{{"f": Text(fmt.Sprintf("x%d", i%4))}, {"f": Text("nope")}},
			}, []Rule{rule("f", OpMatches, pattern)})
			assert.NoError(t, err)
			assert.Equal(t, 1, report.ValidRows)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, e.patterns.len())
}
