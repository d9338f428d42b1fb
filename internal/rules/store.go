package rules

// store.go persists rules in PostgreSQL.
//
// The table is created by Migrate. Updates run in a transaction that locks the
// row, applies the partial update in Go and validates the result before it is
// written back, so a rule in the table is always evaluable.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/dataquality/internal/quality"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB is a DBTX that can also open transactions.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS validation_rules (
    id                  UUID PRIMARY KEY,
    name                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    priority            INTEGER NOT NULL DEFAULT 0,
    field_name          TEXT NOT NULL,
    field_type          TEXT NOT NULL DEFAULT 'String',
    operator            TEXT NOT NULL,
    operator_value      TEXT,
    error_message       TEXT,
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    can_auto_correct    BOOLEAN NOT NULL DEFAULT FALSE,
    auto_correct_action TEXT,
    created_by          TEXT NOT NULL DEFAULT 'system',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS validation_rules_priority_idx ON validation_rules (priority DESC);
`

const selectColumns = `id, name, description, priority, field_name, field_type, operator,
    operator_value, error_message, is_active, can_auto_correct, auto_correct_action,
    created_by, created_at, updated_at`

// Store is a rule repository backed by PostgreSQL.
type Store struct {
	db DB
}

// NewStore creates a store over db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the rules table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate validation_rules: %w", err)
	}
	return nil
}

// List returns every rule, highest priority first. It implements Source.
func (s *Store) List(ctx context.Context) ([]quality.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns+` FROM validation_rules ORDER BY priority DESC, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	out := make([]quality.Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

// Get returns one rule or ErrRuleNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (quality.Rule, error) {
	return getRule(ctx, s.db, id, false)
}

func getRule(ctx context.Context, db DBTX, id uuid.UUID, forUpdate bool) (quality.Rule, error) {
	query := `SELECT ` + selectColumns + ` FROM validation_rules WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	r, err := scanRule(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return quality.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return quality.Rule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return r, nil
}

// CreateRequest holds the fields of a new rule.
type CreateRequest struct {
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Priority          int              `json:"priority"`
	FieldName         string           `json:"fieldName"`
	FieldType         quality.DataType `json:"fieldType"`
	Operator          quality.Operator `json:"operator"`
	OperatorValue     string           `json:"operatorValue"`
	ErrorMessage      string           `json:"errorMessage"`
	CanAutoCorrect    bool             `json:"canAutoCorrect"`
	AutoCorrectAction string           `json:"autoCorrectAction"`
}

// Rule builds the active rule described by the request.
func (req CreateRequest) Rule(createdBy string) quality.Rule {
	fieldType := req.FieldType
	if fieldType == "" {
		fieldType = quality.TypeString
	}
	return quality.Rule{
		ID:                uuid.New(),
		Name:              req.Name,
		Description:       req.Description,
		Priority:          req.Priority,
		FieldName:         req.FieldName,
		FieldType:         fieldType,
		Operator:          req.Operator,
		OperatorValue:     req.OperatorValue,
		ErrorMessage:      req.ErrorMessage,
		IsActive:          true,
		CanAutoCorrect:    req.CanAutoCorrect,
		AutoCorrectAction: req.AutoCorrectAction,
		CreatedBy:         createdBy,
	}
}

// Create validates and inserts a new rule.
func (s *Store) Create(ctx context.Context, req CreateRequest, createdBy string) (quality.Rule, error) {
	r := req.Rule(createdBy)
	if err := Validate(r); err != nil {
		return quality.Rule{}, err
	}
	if err := insertRule(ctx, s.db, &r); err != nil {
		return quality.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return r, nil
}

// Seed inserts rules when the table is empty and reports how many were
// written. A table that already holds rules is left alone.
func (s *Store) Seed(ctx context.Context, seed []quality.Rule) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM validation_rules`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	for i := range seed {
		r := seed[i]
		if err := Validate(r); err != nil {
			return 0, err
		}
		if err := insertRule(ctx, tx, &r); err != nil {
			return 0, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(seed), nil
}

func insertRule(ctx context.Context, db DBTX, r *quality.Rule) error {
	return db.QueryRow(ctx, `
		INSERT INTO validation_rules (id, name, description, priority, field_name, field_type, operator,
		    operator_value, error_message, is_active, can_auto_correct, auto_correct_action, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		r.ID, r.Name, r.Description, r.Priority, r.FieldName, string(r.FieldType), string(r.Operator),
		nullText(r.OperatorValue), nullText(r.ErrorMessage), r.IsActive, r.CanAutoCorrect,
		nullText(r.AutoCorrectAction), r.CreatedBy,
	).Scan(&r.CreatedAt)
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name              *string           `json:"name"`
	Description       *string           `json:"description"`
	Priority          *int              `json:"priority"`
	FieldName         *string           `json:"fieldName"`
	FieldType         *quality.DataType `json:"fieldType"`
	Operator          *quality.Operator `json:"operator"`
	OperatorValue     *string           `json:"operatorValue"`
	ErrorMessage      *string           `json:"errorMessage"`
	CanAutoCorrect    *bool             `json:"canAutoCorrect"`
	AutoCorrectAction *string           `json:"autoCorrectAction"`
	IsActive          *bool             `json:"isActive"`
}

// Apply returns r with the request's non-nil fields copied over.
func (req UpdateRequest) Apply(r quality.Rule) quality.Rule {
	setString(&r.Name, req.Name)
	setString(&r.Description, req.Description)
	setString(&r.FieldName, req.FieldName)
	setString(&r.OperatorValue, req.OperatorValue)
	setString(&r.ErrorMessage, req.ErrorMessage)
	setString(&r.AutoCorrectAction, req.AutoCorrectAction)
	if req.Priority != nil {
		r.Priority = *req.Priority
	}
	if req.FieldType != nil {
		r.FieldType = *req.FieldType
	}
	if req.Operator != nil {
		r.Operator = *req.Operator
	}
	if req.CanAutoCorrect != nil {
		r.CanAutoCorrect = *req.CanAutoCorrect
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
	return r
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Update applies a partial update to an existing rule.
func (s *Store) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (quality.Rule, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return quality.Rule{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := getRule(ctx, tx, id, true)
	if err != nil {
		return quality.Rule{}, err
	}

	r := req.Apply(current)
	if err := Validate(r); err != nil {
		return quality.Rule{}, err
	}

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE validation_rules SET
		    name = $2, description = $3, priority = $4, field_name = $5, field_type = $6,
		    operator = $7, operator_value = $8, error_message = $9, is_active = $10,
		    can_auto_correct = $11, auto_correct_action = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		r.ID, r.Name, r.Description, r.Priority, r.FieldName, string(r.FieldType), string(r.Operator),
		nullText(r.OperatorValue), nullText(r.ErrorMessage), r.IsActive, r.CanAutoCorrect,
		nullText(r.AutoCorrectAction),
	).Scan(&updatedAt)
	if err != nil {
		return quality.Rule{}, fmt.Errorf("update rule %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return quality.Rule{}, fmt.Errorf("commit update: %w", err)
	}
	r.UpdatedAt = &updatedAt
	return r, nil
}

// Delete removes a rule or returns ErrRuleNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM validation_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Internal helper functions
// ----------------------------------------------------------------------------

func scanRule(row pgx.Row) (quality.Rule, error) {
	var (
		r                 quality.Rule
		fieldType         string
		operator          string
		operatorValue     pgtype.Text
		errorMessage      pgtype.Text
		autoCorrectAction pgtype.Text
		updatedAt         pgtype.Timestamptz
	)

	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Priority, &r.FieldName, &fieldType, &operator,
		&operatorValue, &errorMessage, &r.IsActive, &r.CanAutoCorrect, &autoCorrectAction,
		&r.CreatedBy, &r.CreatedAt, &updatedAt,
	)
	if err != nil {
		return quality.Rule{}, err
	}

	// Stored names were validated on write; unknown ones surface as errors here.
	if r.FieldType, err = quality.ParseDataType(fieldType); err != nil {
		return quality.Rule{}, err
	}
	if r.Operator, err = quality.ParseOperator(operator); err != nil {
		return quality.Rule{}, err
	}

	r.OperatorValue = operatorValue.String
	r.ErrorMessage = errorMessage.String
	r.AutoCorrectAction = autoCorrectAction.String
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}
	return r, nil
}

// nullText stores empty strings as NULL.
func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
