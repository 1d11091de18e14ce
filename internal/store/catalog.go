package store

import (
	"fmt"

	"github.com/google/uuid"
)

// UpsertCatalogItem writes one product row.
func (s *Store) UpsertCatalogItem(item CatalogItem) (*CatalogItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO catalog_items (id, tenant_id, name, description, price_cents, available)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id)
		 DO UPDATE SET name = excluded.name, description = excluded.description,
		               price_cents = excluded.price_cents, available = excluded.available`,
		item.ID, item.TenantID, item.Name, item.Description, item.PriceCents, item.Available,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert catalog item: %w", err)
	}
	return &item, nil
}

// ListCatalogItems returns the tenant's catalog.
func (s *Store) ListCatalogItems(tenantID string) ([]CatalogItem, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, name, description, price_cents, available
		 FROM catalog_items WHERE tenant_id = ? ORDER BY name ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	var result []CatalogItem
	for rows.Next() {
		var item CatalogItem
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Name, &item.Description,
			&item.PriceCents, &item.Available); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// SetBusinessHours writes one weekday's open/close window.
func (s *Store) SetBusinessHours(h BusinessHours) error {
	_, err := s.db.Exec(
		`INSERT INTO business_hours (tenant_id, weekday, open_time, close_time)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, weekday)
		 DO UPDATE SET open_time = excluded.open_time, close_time = excluded.close_time`,
		h.TenantID, h.Weekday, h.OpenTime, h.CloseTime,
	)
	if err != nil {
		return fmt.Errorf("set business hours: %w", err)
	}
	return nil
}

// ListBusinessHours returns the tenant's weekly schedule.
func (s *Store) ListBusinessHours(tenantID string) ([]BusinessHours, error) {
	rows, err := s.db.Query(
		`SELECT tenant_id, weekday, open_time, close_time
		 FROM business_hours WHERE tenant_id = ?`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var result []BusinessHours
	for rows.Next() {
		var h BusinessHours
		if err := rows.Scan(&h.TenantID, &h.Weekday, &h.OpenTime, &h.CloseTime); err != nil {
			return nil, fmt.Errorf("scan business hours: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
