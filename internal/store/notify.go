package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertNotificationSetting writes the policy for one notification type.
func (s *Store) UpsertNotificationSetting(setting NotificationSetting) error {
	channels, err := json.Marshal(setting.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	var schedule any
	if setting.Schedule != nil {
		data, err := json.Marshal(setting.Schedule)
		if err != nil {
			return fmt.Errorf("marshal schedule: %w", err)
		}
		schedule = string(data)
	}

	_, err = s.db.Exec(
		`INSERT INTO notification_settings (tenant_id, notification_type, enabled, channels, schedule)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, notification_type)
		 DO UPDATE SET enabled = excluded.enabled, channels = excluded.channels,
		               schedule = excluded.schedule`,
		setting.TenantID, setting.Type, setting.Enabled, string(channels), schedule,
	)
	if err != nil {
		return fmt.Errorf("upsert notification setting: %w", err)
	}
	return nil
}

// GetNotificationSetting returns the policy for one type or ErrNotFound.
// Read errors must not be swallowed by callers: the scheduler skips
// dispatch when the authoritative setting cannot be read.
func (s *Store) GetNotificationSetting(tenantID, notificationType string) (*NotificationSetting, error) {
	row := s.db.QueryRow(
		`SELECT tenant_id, notification_type, enabled, channels, schedule
		 FROM notification_settings WHERE tenant_id = ? AND notification_type = ?`,
		tenantID, notificationType,
	)

	var setting NotificationSetting
	var channels string
	var schedule sql.NullString
	if err := row.Scan(&setting.TenantID, &setting.Type, &setting.Enabled, &channels, &schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification setting: %w", err)
	}
	if err := json.Unmarshal([]byte(channels), &setting.Channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	if schedule.Valid && schedule.String != "" {
		setting.Schedule = &NotificationSchedule{}
		if err := json.Unmarshal([]byte(schedule.String), setting.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
	}
	return &setting, nil
}

// AppendNotificationRecord writes one immutable dispatch log entry and
// returns it with its generated id and timestamp.
func (s *Store) AppendNotificationRecord(tenantID, notificationType, message string, channelsUsed []string) (*NotificationRecord, error) {
	if channelsUsed == nil {
		channelsUsed = []string{}
	}
	used, err := json.Marshal(channelsUsed)
	if err != nil {
		return nil, fmt.Errorf("marshal channels used: %w", err)
	}

	rec := &NotificationRecord{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Type:         notificationType,
		Message:      message,
		ChannelsUsed: channelsUsed,
		Timestamp:    time.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO notification_log (id, tenant_id, notification_type, message, channels_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Type, rec.Message, string(used),
		rec.Timestamp.Format(timestampLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("append notification record: %w", err)
	}
	return rec, nil
}

// ListNotificationRecords returns the tenant's dispatch log most-recent-first.
func (s *Store) ListNotificationRecords(tenantID string, limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, tenant_id, notification_type, message, channels_used, created_at
		 FROM notification_log WHERE tenant_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	defer rows.Close()

	var result []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var used, ts string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Message, &used, &ts); err != nil {
			return nil, fmt.Errorf("scan notification record: %w", err)
		}
		if err := json.Unmarshal([]byte(used), &rec.ChannelsUsed); err != nil {
			return nil, fmt.Errorf("decode channels used: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// AddNotificationJob registers a recurring campaign.
func (s *Store) AddNotificationJob(job NotificationJob) (*NotificationJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO notification_jobs (id, tenant_id, notification_type, message, cron_expr, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.TenantID, job.Type, job.Message, job.CronExpr, job.Enabled,
	)
	if err != nil {
		return nil, fmt.Errorf("add notification job: %w", err)
	}
	return &job, nil
}

// ListNotificationJobs returns all registered campaigns across tenants.
func (s *Store) ListNotificationJobs() ([]NotificationJob, error) {
	rows, err := s.db.Query(
		`SELECT id, tenant_id, notification_type, message, cron_expr, enabled, last_run_at, last_status
		 FROM notification_jobs ORDER BY tenant_id, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification jobs: %w", err)
	}
	defer rows.Close()

	var result []NotificationJob
	for rows.Next() {
		var job NotificationJob
		var lastRun sql.NullString
		if err := rows.Scan(&job.ID, &job.TenantID, &job.Type, &job.Message,
			&job.CronExpr, &job.Enabled, &lastRun, &job.LastStatus); err != nil {
			return nil, fmt.Errorf("scan notification job: %w", err)
		}
		if lastRun.Valid {
			if parsed, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
				job.LastRunAt = &parsed
			}
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// MarkNotificationJobRun records the outcome of one campaign firing.
func (s *Store) MarkNotificationJobRun(jobID, status string) error {
	_, err := s.db.Exec(
		`UPDATE notification_jobs SET last_run_at = ?, last_status = ? WHERE id = ?`,
		time.Now().UTC().Format(timestampLayout), status, jobID,
	)
	if err != nil {
		return fmt.Errorf("mark notification job run: %w", err)
	}
	return nil
}

// RemoveNotificationJob deletes one campaign; reports whether it existed.
func (s *Store) RemoveNotificationJob(jobID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM notification_jobs WHERE id = ?`, jobID)
	if err != nil {
		return false, fmt.Errorf("remove notification job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
