package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencodebook/coder/internal/types"
)

// SaveCodebook stores a codebook as the next version for the project.
// Versions are assigned by the store and strictly increase; the codebook's
// own Version field is overwritten with the assigned number.
func (s *Store) SaveCodebook(ctx context.Context, projectID string, cb *types.Codebook) (int, error) {
	if err := cb.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid codebook: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(version) FROM codebook_versions WHERE project_id = ?
	`, projectID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to query codebook versions: %w", err)
	}
	version := int(maxVersion.Int64) + 1

	cb.Version = version
	codes, err := json.Marshal(cb.Codes)
	if err != nil {
		return 0, fmt.Errorf("failed to encode codes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO codebook_versions (project_id, version, codes, created_at)
		VALUES (?, ?, ?, ?)
	`, projectID, version, string(codes), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to save codebook version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit codebook version %d: %w", version, err)
	}
	return version, nil
}

// LoadCodebook loads the given codebook version; version 0 loads the latest.
func (s *Store) LoadCodebook(ctx context.Context, projectID string, version int) (*types.Codebook, error) {
	var row *sql.Row
	if version > 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT version, codes FROM codebook_versions
			WHERE project_id = ? AND version = ?
		`, projectID, version)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT version, codes FROM codebook_versions
			WHERE project_id = ? ORDER BY version DESC LIMIT 1
		`, projectID)
	}

	var cb types.Codebook
	var codes string
	err := row.Scan(&cb.Version, &codes)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("codebook: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load codebook: %w", err)
	}
	if err := json.Unmarshal([]byte(codes), &cb.Codes); err != nil {
		return nil, fmt.Errorf("failed to decode codes for version %d: %w", cb.Version, err)
	}
	return &cb, nil
}

// ListCodebookVersions returns the stored version numbers in ascending order.
func (s *Store) ListCodebookVersions(ctx context.Context, projectID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version FROM codebook_versions WHERE project_id = ? ORDER BY version
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list codebook versions: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
