package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestProfileData_Numeric(t *testing.T) {
	e := NewEngine(WithClock(fixedClock))
	rows := []Row{{"a": FromAny(1)}, {"a": FromAny(2)}, {"a": FromAny(3)}}

	p := e.ProfileData("numbers", rows)

	assert.Equal(t, "numbers", p.DataSourceName)
	assert.Equal(t, fixedClock(), p.ProfiledAt)
	assert.Equal(t, 3, p.TotalRows)
	assert.Equal(t, 1, p.TotalFields)

	fp, ok := p.FieldProfiles["a"]
	require.True(t, ok)
	assert.Equal(t, TypeInteger, fp.FieldType)
	assert.Equal(t, 3, fp.TotalCount)
	assert.Equal(t, 0, fp.NullCount)
	assert.Equal(t, 3, fp.UniqueValues)
	assert.InDelta(t, 100.0, fp.UniquenessPercentage, 1e-9)
	assert.InDelta(t, 100.0, fp.Completeness(), 1e-9)

	require.NotNil(t, fp.Average)
	assert.InDelta(t, 2.0, *fp.Average, 1e-9)
	assert.InDelta(t, 1.0, *fp.MinValue, 1e-9)
	assert.InDelta(t, 3.0, *fp.MaxValue, 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), *fp.StdDeviation, 1e-9)

	assert.Equal(t, []string{"Field 'a' has very high cardinality (100.0% unique)"}, p.PotentialIssues)
}

func TestProfileData_Empty(t *testing.T) {
	e := NewEngine()
	p := e.ProfileData("empty", nil)

	assert.Equal(t, 0, p.TotalRows)
	assert.Equal(t, 0, p.TotalFields)
	assert.NotNil(t, p.FieldProfiles)
	assert.Empty(t, p.FieldProfiles)
	assert.NotNil(t, p.PotentialIssues)
	assert.Empty(t, p.PotentialIssues)
}

func TestProfileData_NullsAndTopValues(t *testing.T) {
	e := NewEngine()
	rows := []Row{
		{"city": Text("Oslo"), "note": Null()},
		{"city": Text("Bergen"), "note": Text("")},
		{"city": Text("Oslo"), "note": Null()},
		{"city": Null(), "note": Text("x")},
	}

	p := e.ProfileData("cities", rows)

	city := p.FieldProfiles["city"]
	assert.Equal(t, TypeString, city.FieldType)
	assert.Equal(t, 1, city.NullCount)
	assert.InDelta(t, 25.0, city.NullPercentage, 1e-9)
	assert.Equal(t, 2, city.UniqueValues)
	assert.Equal(t, []TopValue{{Value: "Oslo", Frequency: 2}, {Value: "Bergen", Frequency: 1}}, city.TopValues)
	assert.Nil(t, city.Average, "string columns carry no numeric statistics")

	note := p.FieldProfiles["note"]
	assert.Equal(t, 3, note.NullCount, "blank strings count as null")
	assert.InDelta(t, 75.0, note.NullPercentage, 1e-9)
	assert.Contains(t, p.PotentialIssues, "Field 'note' has 75.0% null values")
}

func TestProfileData_TopValuesCapped(t *testing.T) {
	e := NewEngine()
	rows := make([]Row, 0, 40)
	for i := 0; i < 40; i++ {
		rows = append(rows, Row{"n": FromAny(i % 20)})
	}

	fp := e.ProfileData("capped", rows).FieldProfiles["n"]
	assert.Equal(t, 20, fp.UniqueValues)
	require.Len(t, fp.TopValues, maxTopValues)
	// All counts tie, so first appearance order is kept.
	assert.Equal(t, "0", fp.TopValues[0].Value)
	assert.Equal(t, "9", fp.TopValues[9].Value)
}

func TestProfileData_LowCardinality(t *testing.T) {
	e := NewEngine()
	rows := make([]Row, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, Row{"status": Text("active"), "flag": Bool(i%2 == 0)})
	}

	p := e.ProfileData("status", rows)
	assert.Contains(t, p.PotentialIssues, "Field 'status' has very low cardinality (2.0% unique)")
	for _, issue := range p.PotentialIssues {
		assert.NotContains(t, issue, "'flag'", "boolean columns are exempt from the low cardinality flag")
	}
}

func TestProfileData_ColumnsFromFirstRow(t *testing.T) {
	e := NewEngine()
	rows := []Row{
		{"a": Text("x")},
		{"a": Text("y"), "late": Text("z")},
	}

	p := e.ProfileData("late", rows)
	assert.Len(t, p.FieldProfiles, 1)
	assert.NotContains(t, p.FieldProfiles, "late")
}

func TestProfileData_TypeFromFirstNonNull(t *testing.T) {
	e := NewEngine()
	rows := []Row{
		{"v": Null()},
		{"v": Text("12.5")},
		{"v": Text("n/a")},
		{"v": Text("7.5")},
	}

	fp := e.ProfileData("mixed", rows).FieldProfiles["v"]
	assert.Equal(t, TypeDecimal, fp.FieldType)
	require.NotNil(t, fp.Average)
	assert.InDelta(t, 10.0, *fp.Average, 1e-9, "unparseable values are skipped")
}
