// Package quality implements the data quality validation engine.
//
// The engine takes a batch of loosely typed rows and a list of field rules and
// produces value objects describing the batch. It never mutates its inputs,
// performs no I/O and keeps no state between calls.
//
// # Components
//
//   - Field validation: [Engine.ValidateField] applies one [Rule] to one field.
//   - Cross-field validation: [CrossFieldRule] relations such as [DateOrder].
//   - Duplicate detection: [DetectDuplicates] groups rows by a composite key.
//   - Profiling: [Engine.ProfileData] computes per-column statistics and flags.
//   - Reports: [Engine.Validate] orchestrates all of the above.
//   - Corrections: [GenerateCorrections] proposes replacement values.
//
// # Values
//
// Fields are carried as [Value], a tagged variant of null, bool, number, text
// and time. Operators compare a value's string form; numeric operators parse it
// as an exact decimal. Type inference follows a fixed parse order:
//
//	boolean -> integer -> decimal -> date/time -> email -> absolute URL -> string
//
// # Validity
//
// A row is valid when every active rule passes, no cross-field relation is
// violated and the row does not repeat an earlier row's duplicate key. Row
// numbers in results are 1-based.
//
// Usage:
//
//	engine := quality.NewEngine()
//	report, err := engine.Validate(quality.ValidateRequest{
//	    DataSourceName:   "customers.csv",
//	    Rows:             rows,
//	    DetectDuplicates: true,
//	    GenerateProfile:  true,
//	}, rules)
package quality
