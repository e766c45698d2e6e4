package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencodebook/coder/internal/types"
)

// SaveResults stores classification outputs for a project, replacing any
// previous result for the same response ID. All rows are written in one
// transaction so a partial save never survives.
func (s *Store) SaveResults(ctx context.Context, projectID string, codebookVersion int, outputs []types.ClassificationOutput) error {
	if len(outputs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO classifications
			(project_id, response_id, codebook_version, assigned_codes,
			 evidence_text, pertinence, outcome, failure_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, response_id) DO UPDATE SET
			codebook_version = excluded.codebook_version,
			assigned_codes   = excluded.assigned_codes,
			evidence_text    = excluded.evidence_text,
			pertinence       = excluded.pertinence,
			outcome          = excluded.outcome,
			failure_reason   = excluded.failure_reason,
			created_at       = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, out := range outputs {
		codes, err := json.Marshal(out.AssignedCodes)
		if err != nil {
			return fmt.Errorf("failed to encode codes for %s: %w", out.ResponseID, err)
		}
		_, err = stmt.ExecContext(ctx,
			projectID, out.ResponseID, codebookVersion, string(codes),
			out.EvidenceText, out.PertinenceScore, string(out.Outcome),
			out.FailureReason, now)
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", out.ResponseID, err)
		}
	}
	return tx.Commit()
}

// GetResults returns all stored results for a project ordered by response ID.
func (s *Store) GetResults(ctx context.Context, projectID string) ([]types.ClassificationOutput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT response_id, assigned_codes, evidence_text, pertinence,
		       outcome, failure_reason
		FROM classifications WHERE project_id = ? ORDER BY response_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var outputs []types.ClassificationOutput
	for rows.Next() {
		var out types.ClassificationOutput
		var codes, outcome string
		err := rows.Scan(&out.ResponseID, &codes, &out.EvidenceText,
			&out.PertinenceScore, &outcome, &out.FailureReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(codes), &out.AssignedCodes); err != nil {
			return nil, fmt.Errorf("failed to decode codes for %s: %w", out.ResponseID, err)
		}
		out.Outcome = types.Outcome(outcome)
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// CountResults returns how many responses classified and how many failed.
func (s *Store) CountResults(ctx context.Context, projectID string) (classified, failed int, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM classifications
		WHERE project_id = ? GROUP BY outcome
	`, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return 0, 0, err
		}
		switch types.Outcome(outcome) {
		case types.OutcomeClassified:
			classified = n
		case types.OutcomeFailed:
			failed = n
		}
	}
	return classified, failed, rows.Err()
}
