package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NormalizeIntent canonicalizes an intent label. Intents match
// case-insensitively across the classifier output, the stored corpus and
// the feedback loop, so every read and write folds through here.
func NormalizeIntent(intent string) string {
	return strings.ToLower(strings.TrimSpace(intent))
}

// UpsertTrainingExample replaces the example/response sets for an intent.
// Used by the operator-facing management surface.
func (s *Store) UpsertTrainingExample(ex TrainingExample) error {
	ex.Intent = NormalizeIntent(ex.Intent)
	if ex.Intent == "" {
		return fmt.Errorf("training example intent is required")
	}
	if len(ex.Examples) == 0 {
		return fmt.Errorf("training example needs at least one utterance")
	}
	if len(ex.Responses) == 0 {
		return fmt.Errorf("training example needs at least one response")
	}

	examples, err := json.Marshal(ex.Examples)
	if err != nil {
		return fmt.Errorf("marshal examples: %w", err)
	}
	responses, err := json.Marshal(ex.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO training_examples (tenant_id, intent, examples, responses, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(tenant_id, intent)
		 DO UPDATE SET examples = excluded.examples, responses = excluded.responses,
		               updated_at = datetime('now')`,
		ex.TenantID, ex.Intent, string(examples), string(responses),
	)
	if err != nil {
		return fmt.Errorf("upsert training example: %w", err)
	}
	return nil
}

// AppendTrainingFeedback merges one (utterance, reply) pair into the
// intent's example record, creating the record when the intent is new.
// This is the write side of the live-traffic feedback loop.
func (s *Store) AppendTrainingFeedback(tenantID, intent, utterance, reply string) error {
	existing, err := s.GetTrainingExample(tenantID, intent)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if existing == nil {
		return s.UpsertTrainingExample(TrainingExample{
			TenantID:  tenantID,
			Intent:    intent,
			Examples:  []string{utterance},
			Responses: []string{reply},
		})
	}

	existing.Examples = appendUnique(existing.Examples, utterance)
	existing.Responses = appendUnique(existing.Responses, reply)
	return s.UpsertTrainingExample(*existing)
}

func appendUnique(list []string, val string) []string {
	for _, v := range list {
		if v == val {
			return list
		}
	}
	return append(list, val)
}

// GetTrainingExample returns one intent record or ErrNotFound.
func (s *Store) GetTrainingExample(tenantID, intent string) (*TrainingExample, error) {
	row := s.db.QueryRow(
		`SELECT tenant_id, intent, examples, responses
		 FROM training_examples WHERE tenant_id = ? AND intent = ?`,
		tenantID, NormalizeIntent(intent),
	)
	ex, err := scanTrainingExample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get training example: %w", err)
	}
	return ex, nil
}

// ListTrainingExamples returns the tenant's full training corpus.
func (s *Store) ListTrainingExamples(tenantID string) ([]TrainingExample, error) {
	rows, err := s.db.Query(
		`SELECT tenant_id, intent, examples, responses
		 FROM training_examples WHERE tenant_id = ? ORDER BY intent ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list training examples: %w", err)
	}
	defer rows.Close()

	var result []TrainingExample
	for rows.Next() {
		ex, err := scanTrainingExample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training example: %w", err)
		}
		result = append(result, *ex)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingExample(row rowScanner) (*TrainingExample, error) {
	var ex TrainingExample
	var examples, responses string
	if err := row.Scan(&ex.TenantID, &ex.Intent, &examples, &responses); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(examples), &ex.Examples); err != nil {
		return nil, fmt.Errorf("decode examples: %w", err)
	}
	if err := json.Unmarshal([]byte(responses), &ex.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return &ex, nil
}
