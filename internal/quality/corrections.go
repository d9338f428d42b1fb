package quality

// corrections.go turns failed field results into replacement proposals.
//
// Suggestions are deliberately simple placeholders: they surface the failing
// value next to the reason it failed and leave the decision to the caller.
// Only field results that carry a suggestion (blank required fields, Equals
// mismatches) produce a proposal.

const (
	// correctionConfidence is attached to every suggestion.
	correctionConfidence = 0.8

	// truncateLength is the cut applied to values that fail MaxLength.
	truncateLength = 10
)

// GenerateCorrections proposes replacements for the failing fields of the
// invalid rows in failed. original is the batch the results came from; rows
// whose number falls outside it are skipped.
func GenerateCorrections(failed []RowResult, original []Row) []CorrectionSuggestion {
	suggestions := []CorrectionSuggestion{}

	for _, rr := range failed {
		if rr.IsValid {
			continue
		}
		if rr.RowNumber < 1 || rr.RowNumber > len(original) {
			continue
		}

		for _, fr := range rr.FieldResults {
			if fr.IsValid || fr.Suggestion == "" {
				continue
			}
			reason := fr.ErrorMessage
			if reason == "" {
				reason = "Failed validation"
			}
			suggestions = append(suggestions, CorrectionSuggestion{
				RowNumber:      rr.RowNumber,
				FieldName:      fr.FieldName,
				CurrentValue:   fr.Value,
				SuggestedValue: suggestedValue(fr),
				Reason:         reason,
				Confidence:     correctionConfidence,
			})
		}
	}

	return suggestions
}

// suggestedValue picks the replacement for one failed field.
func suggestedValue(fr FieldResult) Value {
	if fr.FailedRule == nil || fr.Value.IsNull() {
		return fr.Value
	}

	switch *fr.FailedRule {
	case OpMaxLength:
		runes := []rune(fr.Value.String())
		if len(runes) > truncateLength {
			runes = runes[:truncateLength]
		}
		return Text(string(runes))
	default:
		// MinLength and the numeric comparisons echo the current value.
		return fr.Value
	}
}
