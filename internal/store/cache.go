package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NormalizeQuery folds case and trims surrounding whitespace so messages
// differing only in casing or padding share one cache row.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// LookupCachedResponse returns the cached reply for an already-normalized
// query, or ErrNotFound.
func (s *Store) LookupCachedResponse(tenantID, queryText string) (*CachedResponse, error) {
	row := s.db.QueryRow(
		`SELECT tenant_id, query_text, response_text, usage_count
		 FROM cached_responses WHERE tenant_id = ? AND query_text = ?`,
		tenantID, queryText,
	)

	var cr CachedResponse
	if err := row.Scan(&cr.TenantID, &cr.QueryText, &cr.ResponseText, &cr.UsageCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup cached response: %w", err)
	}
	return &cr, nil
}

// UpsertCachedResponse writes the (query, response) pair. Concurrent writes
// for the same key are last-write-wins; the unique constraint keeps the
// key single-rowed either way.
func (s *Store) UpsertCachedResponse(tenantID, queryText, responseText string) error {
	_, err := s.db.Exec(
		`INSERT INTO cached_responses (tenant_id, query_text, response_text, usage_count)
		 VALUES (?, ?, ?, 0)
		 ON CONFLICT(tenant_id, query_text)
		 DO UPDATE SET response_text = excluded.response_text`,
		tenantID, queryText, responseText,
	)
	if err != nil {
		return fmt.Errorf("upsert cached response: %w", err)
	}
	return nil
}

// BumpCacheUsage increments the hit counter. Best effort; usage_count only
// ever grows while the row exists.
func (s *Store) BumpCacheUsage(tenantID, queryText string) error {
	_, err := s.db.Exec(
		`UPDATE cached_responses SET usage_count = usage_count + 1
		 WHERE tenant_id = ? AND query_text = ?`,
		tenantID, queryText,
	)
	if err != nil {
		return fmt.Errorf("bump cache usage: %w", err)
	}
	return nil
}

// ListCachedResponses returns the tenant's cache ordered by usage count
// descending.
func (s *Store) ListCachedResponses(tenantID string) ([]CachedResponse, error) {
	rows, err := s.db.Query(
		`SELECT tenant_id, query_text, response_text, usage_count
		 FROM cached_responses WHERE tenant_id = ?
		 ORDER BY usage_count DESC, query_text ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cached responses: %w", err)
	}
	defer rows.Close()

	var result []CachedResponse
	for rows.Next() {
		var cr CachedResponse
		if err := rows.Scan(&cr.TenantID, &cr.QueryText, &cr.ResponseText, &cr.UsageCount); err != nil {
			return nil, fmt.Errorf("scan cached response: %w", err)
		}
		result = append(result, cr)
	}
	return result, rows.Err()
}
