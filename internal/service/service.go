// Package service runs the validation engine on behalf of the HTTP server and
// the CLI.
//
// It resolves which rules apply to a batch, enforces the batch size limit,
// bounds concurrent validations with a Limiter, records metrics and logs one
// structured line per operation.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataquality/internal/ingest"
	"github.com/JonMunkholm/dataquality/internal/logging"
	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/rules"
)

// DefaultMaxRows is the batch size limit used when Config.MaxRows is not set.
const DefaultMaxRows = 100_000

// RuleStore is a rule source that supports editing.
// Satisfied by *rules.Store.
type RuleStore interface {
	rules.Source
	Get(ctx context.Context, id uuid.UUID) (quality.Rule, error)
	Create(ctx context.Context, req rules.CreateRequest, createdBy string) (quality.Rule, error)
	Update(ctx context.Context, id uuid.UUID, req rules.UpdateRequest) (quality.Rule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Config holds the service limits.
type Config struct {
	MaxRows       int
	MaxConcurrent int
	MaxWait       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithEngine replaces the default engine.
func WithEngine(e *quality.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithMetrics records operations on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRuleStore enables rule editing. The store also becomes the rule source.
func WithRuleStore(store RuleStore) Option {
	return func(s *Service) {
		s.store = store
		s.rules = store
	}
}

// Service provides validation, profiling, duplicate detection and correction
// suggestions over batches of rows.
type Service struct {
	engine  *quality.Engine
	rules   rules.Source
	store   RuleStore
	limiter *Limiter
	metrics *Metrics
	maxRows int
}

// New creates a service that reads its rules from source.
func New(source rules.Source, cfg Config, opts ...Option) *Service {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	s := &Service{
		engine:  quality.NewEngine(),
		rules:   source,
		limiter: NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		maxRows: maxRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request is a validation request. RuleIDs restricts validation to the listed
// rules; when empty every rule of the source is considered.
type Request struct {
	quality.ValidateRequest
	RuleIDs []uuid.UUID
}

// Validate validates a batch against the rules that apply to it.
//
// Applicable rules are the selected (or all) rules whose field appears in the
// first row of the batch.
func (s *Service) Validate(ctx context.Context, req Request) (report *quality.Report, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("validate", started, err) }()

	report, ruleCount, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	logging.WithFields(ctx,
		"data_source", req.DataSourceName,
		"rows", report.TotalRows,
	).Info("validation completed",
		"rules", ruleCount,
		"valid", report.ValidRows,
		"invalid", report.InvalidRows,
		"duplicates", report.DuplicateCount,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (s *Service) validate(ctx context.Context, req Request) (*quality.Report, int, error) {
	if err := s.checkBatch(len(req.Rows)); err != nil {
		return nil, 0, err
	}

	ruleSet, err := s.resolveRules(ctx, req.RuleIDs, req.Rows)
	if err != nil {
		return nil, 0, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	report, err := s.engine.Validate(req.ValidateRequest, ruleSet)
	if err != nil {
		return nil, 0, err
	}
	s.metrics.recordRows(report.ValidRows, report.InvalidRows, report.DuplicateCount)
	return report, len(ruleSet), nil
}

// Profile computes descriptive statistics for every column of the batch.
func (s *Service) Profile(ctx context.Context, dataSourceName string, rows []quality.Row) (profile quality.DataProfile, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("profile", started, err) }()

	if err = s.checkBatch(len(rows)); err != nil {
		return quality.DataProfile{}, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return quality.DataProfile{}, err
	}
	defer release()

	profile = s.engine.ProfileData(dataSourceName, rows)

	logging.WithFields(ctx,
		"data_source", dataSourceName,
		"rows", len(rows),
	).Info("profile completed",
		"fields", profile.TotalFields,
		"issues", len(profile.PotentialIssues),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return profile, nil
}

// DetectDuplicates reports rows that repeat an earlier row over checkFields.
// An empty checkFields uses the first row's field names. The fields actually
// compared are returned with the duplicates.
func (s *Service) DetectDuplicates(ctx context.Context, rows []quality.Row, checkFields []string) (dups []quality.Duplicate, fields []string, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("detect_duplicates", started, err) }()

	if err = s.checkBatch(len(rows)); err != nil {
		return nil, nil, err
	}

	fields = checkFields
	if len(fields) == 0 {
		fields = quality.DefaultCheckFields(rows)
	}
	dups = quality.DetectDuplicates(rows, fields)

	logging.FromContext(ctx).Info("duplicate detection completed",
		"rows", len(rows),
		"fields", fields,
		"duplicates", len(dups),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return dups, fields, nil
}

// SuggestCorrections validates the batch and returns replacement proposals
// for the failing fields.
func (s *Service) SuggestCorrections(ctx context.Context, req Request) (suggestions []quality.CorrectionSuggestion, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("suggest_corrections", started, err) }()

	req.GenerateProfile = false
	req.IncludeCorrections = true

	report, _, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	logging.WithFields(ctx,
		"data_source", req.DataSourceName,
		"rows", report.TotalRows,
	).Info("corrections suggested",
		"invalid", report.InvalidRows,
		"suggestions", len(report.Corrections),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report.Corrections, nil
}

// ValidateCSV reads a CSV document and validates its rows. req.Rows is
// replaced by the file's rows.
func (s *Service) ValidateCSV(ctx context.Context, r io.Reader, req Request) (*quality.Report, error) {
	table, err := ingest.ReadCSV(r, ingest.Options{MaxRows: s.maxRows})
	if err != nil {
		s.metrics.observe("validate", time.Now(), err)
		return nil, fmt.Errorf("read csv: %w", err)
	}

	logging.FromContext(ctx).Debug("csv parsed",
		"columns", len(table.Header),
		"rows", len(table.Rows),
		"bytes", table.BytesRead,
	)

	req.Rows = table.Rows
	return s.Validate(ctx, req)
}

// ----------------------------------------------------------------------------
// Rule management
// ----------------------------------------------------------------------------

// ListRules returns every rule of the configured source.
func (s *Service) ListRules(ctx context.Context) ([]quality.Rule, error) {
	return s.rules.List(ctx)
}

// RulesEditable reports whether rule CRUD is available.
func (s *Service) RulesEditable() bool {
	return s.store != nil
}

// GetRule returns one rule.
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (quality.Rule, error) {
	if s.store == nil {
		return quality.Rule{}, ErrNoRuleStore
	}
	return s.store.Get(ctx, id)
}

// CreateRule stores a new rule.
func (s *Service) CreateRule(ctx context.Context, req rules.CreateRequest, createdBy string) (quality.Rule, error) {
	if s.store == nil {
		return quality.Rule{}, ErrNoRuleStore
	}
	r, err := s.store.Create(ctx, req, createdBy)
	if err != nil {
		return quality.Rule{}, err
	}
	logging.FromContext(ctx).Info("rule created", "rule_id", r.ID, "field", r.FieldName, "operator", r.Operator)
	return r, nil
}

// UpdateRule applies a partial update to a rule.
func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, req rules.UpdateRequest) (quality.Rule, error) {
	if s.store == nil {
		return quality.Rule{}, ErrNoRuleStore
	}
	r, err := s.store.Update(ctx, id, req)
	if err != nil {
		return quality.Rule{}, err
	}
	logging.FromContext(ctx).Info("rule updated", "rule_id", r.ID, "active", r.IsActive)
	return r, nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if s.store == nil {
		return ErrNoRuleStore
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("rule deleted", "rule_id", id)
	return nil
}

// ----------------------------------------------------------------------------
// Lifecycle
// ----------------------------------------------------------------------------

// Status is a health snapshot.
type Status struct {
	Validations   LimiterStatus `json:"validations"`
	RulesEditable bool          `json:"rulesEditable"`
	MaxRows       int           `json:"maxRows"`
}

// Status returns the current service state.
func (s *Service) Status() Status {
	return Status{
		Validations:   s.limiter.Status(),
		RulesEditable: s.store != nil,
		MaxRows:       s.maxRows,
	}
}

// WaitForDrain blocks until in-flight validations finish or ctx is done.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ----------------------------------------------------------------------------
// Internal helper functions
// ----------------------------------------------------------------------------

func (s *Service) checkBatch(rows int) error {
	if rows > s.maxRows {
		return fmt.Errorf("%w: %d rows, limit is %d", ErrBatchTooLarge, rows, s.maxRows)
	}
	return nil
}

// resolveRules selects the requested rules and keeps those whose field is
// present in the first row.
func (s *Service) resolveRules(ctx context.Context, ids []uuid.UUID, rows []quality.Row) ([]quality.Rule, error) {
	all, err := s.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	selected, err := rules.SelectByID(all, ids)
	if err != nil {
		return nil, err
	}

	var fields []string
	if len(rows) > 0 {
		fields = make([]string, 0, len(rows[0]))
		for name := range rows[0] {
			fields = append(fields, name)
		}
	}
	return rules.FilterByFields(selected, fields), nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	s.metrics.slotTaken()
	return func() {
		s.metrics.slotReleased()
		s.limiter.Release()
	}, nil
}
