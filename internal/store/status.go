package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SetSessionStatus persists the last known transport status ("connected" /
// "disconnected") so Status can answer across process restarts.
func (s *Store) SetSessionStatus(tenantID, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_status (tenant_id, status, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(tenant_id)
		 DO UPDATE SET status = excluded.status, updated_at = datetime('now')`,
		tenantID, status,
	)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return nil
}

// SessionStatus returns the persisted status or ErrNotFound.
func (s *Store) SessionStatus(tenantID string) (string, error) {
	var status string
	err := s.db.QueryRow(
		`SELECT status FROM session_status WHERE tenant_id = ?`, tenantID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get session status: %w", err)
	}
	return status, nil
}

// UpsertTenant writes contact info for one store account.
func (s *Store) UpsertTenant(t Tenant) error {
	_, err := s.db.Exec(
		`INSERT INTO tenants (tenant_id, name, phone, email, telegram_chat_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id)
		 DO UPDATE SET name = excluded.name, phone = excluded.phone,
		               email = excluded.email,
		               telegram_chat_id = excluded.telegram_chat_id`,
		t.ID, t.Name, t.Phone, t.Email, t.TelegramChatID,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

// GetTenant returns contact info or ErrNotFound.
func (s *Store) GetTenant(tenantID string) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRow(
		`SELECT tenant_id, name, phone, email, telegram_chat_id FROM tenants WHERE tenant_id = ?`,
		tenantID,
	).Scan(&t.ID, &t.Name, &t.Phone, &t.Email, &t.TelegramChatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// ListTenants returns all known tenants.
func (s *Store) ListTenants() ([]Tenant, error) {
	rows, err := s.db.Query(`SELECT tenant_id, name, phone, email, telegram_chat_id FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var result []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Phone, &t.Email, &t.TelegramChatID); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
