package web

// dto.go defines the JSON shapes of the validation API.

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/service"
)

// validateRequest is the body of every /api/validation endpoint. The three
// option flags default to true when omitted.
type validateRequest struct {
	DataSourceName         string        `json:"dataSourceName"`
	Rows                   []quality.Row `json:"rows"`
	ValidationRuleIDs      []uuid.UUID   `json:"validationRuleIds"`
	DetectDuplicates       *bool         `json:"detectDuplicates"`
	DuplicateCheckFields   []string      `json:"duplicateCheckFields"`
	GenerateProfile        *bool         `json:"generateProfile"`
	IncludeAutoCorrections *bool         `json:"includeAutoCorrections"`
}

func (req validateRequest) serviceRequest() service.Request {
	return service.Request{
		ValidateRequest: quality.ValidateRequest{
			DataSourceName:       req.DataSourceName,
			Rows:                 req.Rows,
			DetectDuplicates:     boolOr(req.DetectDuplicates, true),
			DuplicateCheckFields: req.DuplicateCheckFields,
			GenerateProfile:      boolOr(req.GenerateProfile, true),
			IncludeCorrections:   boolOr(req.IncludeAutoCorrections, true),
		},
		RuleIDs: req.ValidationRuleIDs,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ---- Validate ----

type validateResponse struct {
	Success bool       `json:"success"`
	Report  reportView `json:"report"`
}

type reportView struct {
	ID             uuid.UUID                      `json:"id"`
	DataSourceName string                         `json:"dataSourceName"`
	ExecutedAt     time.Time                      `json:"executedAt"`
	Summary        summaryView                    `json:"summary"`
	Results        []quality.RowResult            `json:"results"`
	ErrorSummary   map[string]int                 `json:"errorSummary"`
	Profile        *profileView                   `json:"profile"`
	Corrections    []quality.CorrectionSuggestion `json:"corrections,omitempty"`
}

type summaryView struct {
	TotalRows          int     `json:"totalRows"`
	ValidRows          int     `json:"validRows"`
	InvalidRows        int     `json:"invalidRows"`
	ValidityPercentage float64 `json:"validityPercentage"`
	DuplicateCount     int     `json:"duplicateCount"`
}

// newReportView keeps at most limit invalid row results.
func newReportView(r *quality.Report, limit int) reportView {
	results := r.InvalidRowResults()
	if results == nil {
		results = []quality.RowResult{}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	view := reportView{
		ID:             r.ID,
		DataSourceName: r.DataSourceName,
		ExecutedAt:     r.ExecutedAt,
		Summary: summaryView{
			TotalRows:          r.TotalRows,
			ValidRows:          r.ValidRows,
			InvalidRows:        r.InvalidRows,
			ValidityPercentage: r.ValidityPercentage,
			DuplicateCount:     r.DuplicateCount,
		},
		Results:      results,
		ErrorSummary: r.ErrorSummary,
		Corrections:  r.Corrections,
	}
	if r.Profile != nil {
		p := newProfileView(*r.Profile)
		view.Profile = &p
	}
	return view
}

// ---- Profile ----

type profileResponse struct {
	Success bool        `json:"success"`
	Profile profileView `json:"profile"`
}

type profileView struct {
	ID              uuid.UUID          `json:"id"`
	DataSourceName  string             `json:"dataSourceName"`
	ProfiledAt      time.Time          `json:"profiledAt"`
	TotalRows       int                `json:"totalRows"`
	TotalFields     int                `json:"totalFields"`
	FieldProfiles   []fieldProfileView `json:"fieldProfiles"`
	PotentialIssues []string           `json:"potentialIssues"`
}

type fieldProfileView struct {
	FieldName    string             `json:"fieldName"`
	FieldType    quality.DataType   `json:"fieldType"`
	Completeness float64            `json:"completeness"`
	Uniqueness   float64            `json:"uniqueness"`
	NullCount    int                `json:"nullCount"`
	UniqueValues int                `json:"uniqueValues"`
	MinValue     *string            `json:"minValue"`
	MaxValue     *string            `json:"maxValue"`
	Average      *float64           `json:"average"`
	StdDeviation *float64           `json:"stdDeviation"`
	TopValues    []quality.TopValue `json:"topValues"`
}

// newProfileView lists field profiles by field name.
func newProfileView(p quality.DataProfile) profileView {
	names := make([]string, 0, len(p.FieldProfiles))
	for name := range p.FieldProfiles {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]fieldProfileView, 0, len(names))
	for _, name := range names {
		fp := p.FieldProfiles[name]
		fields = append(fields, fieldProfileView{
			FieldName:    fp.FieldName,
			FieldType:    fp.FieldType,
			Completeness: fp.Completeness(),
			Uniqueness:   fp.UniquenessPercentage,
			NullCount:    fp.NullCount,
			UniqueValues: fp.UniqueValues,
			MinValue:     formatNumber(fp.MinValue),
			MaxValue:     formatNumber(fp.MaxValue),
			Average:      fp.Average,
			StdDeviation: fp.StdDeviation,
			TopValues:    fp.TopValues,
		})
	}

	issues := p.PotentialIssues
	if issues == nil {
		issues = []string{}
	}

	return profileView{
		ID:              p.ID,
		DataSourceName:  p.DataSourceName,
		ProfiledAt:      p.ProfiledAt,
		TotalRows:       p.TotalRows,
		TotalFields:     p.TotalFields,
		FieldProfiles:   fields,
		PotentialIssues: issues,
	}
}

func formatNumber(f *float64) *string {
	if f == nil {
		return nil
	}
	s := strconv.FormatFloat(*f, 'f', -1, 64)
	return &s
}

// ---- Duplicates ----

type duplicatesResponse struct {
	Success         bool            `json:"success"`
	DuplicatesFound int             `json:"duplicatesFound"`
	CheckFields     []string        `json:"checkFields"`
	Details         []duplicateView `json:"details"`
}

type duplicateView struct {
	RowNumber      int         `json:"rowNumber"`
	DuplicateOfRow int         `json:"duplicateOfRow"`
	CheckFields    []string    `json:"checkFields"`
	Values         quality.Row `json:"values"`
}

// newDuplicatesResponse reports 1-based row numbers and the compared values.
func newDuplicatesResponse(rows []quality.Row, fields []string, dups []quality.Duplicate) duplicatesResponse {
	details := make([]duplicateView, 0, len(dups))
	for _, d := range dups {
		values := quality.Row{}
		for _, f := range d.Fields {
			if v, ok := rows[d.RowIndex][f]; ok {
				values[f] = v
			}
		}
		details = append(details, duplicateView{
			RowNumber:      d.RowIndex + 1,
			DuplicateOfRow: d.DuplicateOf + 1,
			CheckFields:    d.Fields,
			Values:         values,
		})
	}
	return duplicatesResponse{
		Success:         true,
		DuplicatesFound: len(dups),
		CheckFields:     fields,
		Details:         details,
	}
}

// ---- Corrections ----

type correctionsResponse struct {
	Success          bool                `json:"success"`
	SuggestionsCount int                 `json:"suggestionsCount"`
	Suggestions      []rowCorrectionView `json:"suggestions"`
}

type rowCorrectionView struct {
	RowNumber   int              `json:"rowNumber"`
	Corrections []correctionView `json:"corrections"`
}

type correctionView struct {
	FieldName      string        `json:"fieldName"`
	CurrentValue   quality.Value `json:"currentValue"`
	SuggestedValue quality.Value `json:"suggestedValue"`
	Reason         string        `json:"reason"`
	Confidence     float64       `json:"confidence"`
}

// newCorrectionsResponse groups suggestions by row, in order of first appearance.
func newCorrectionsResponse(suggestions []quality.CorrectionSuggestion) correctionsResponse {
	groups := []rowCorrectionView{}
	index := map[int]int{}
	for _, s := range suggestions {
		i, ok := index[s.RowNumber]
		if !ok {
			i = len(groups)
			index[s.RowNumber] = i
			groups = append(groups, rowCorrectionView{RowNumber: s.RowNumber})
		}
		groups[i].Corrections = append(groups[i].Corrections, correctionView{
			FieldName:      s.FieldName,
			CurrentValue:   s.CurrentValue,
			SuggestedValue: s.SuggestedValue,
			Reason:         s.Reason,
			Confidence:     s.Confidence,
		})
	}
	return correctionsResponse{
		Success:          true,
		SuggestionsCount: len(suggestions),
		Suggestions:      groups,
	}
}

// ---- Rules ----

type rulesResponse struct {
	Success  bool           `json:"success"`
	Editable bool           `json:"editable"`
	Rules    []quality.Rule `json:"rules"`
}

type ruleResponse struct {
	Success bool         `json:"success"`
	Rule    quality.Rule `json:"rule"`
}

// ---- Health ----

type healthResponse struct {
	Status  string         `json:"status"`
	Service service.Status `json:"service"`
}
