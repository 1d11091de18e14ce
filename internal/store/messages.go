package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendMessage writes one conversation log entry. The log is append-only;
// entries are never updated.
func (s *Store) AppendMessage(tenantID, direction, peer, body string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, tenant_id, direction, peer, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), tenantID, direction, peer, body,
		time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the tenant's log most-recent-first, capped at
// limit entries.
func (s *Store) RecentMessages(tenantID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, tenant_id, direction, peer, body, created_at
		 FROM messages WHERE tenant_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Direction, &m.Peer, &m.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			m.Timestamp = parsed
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
