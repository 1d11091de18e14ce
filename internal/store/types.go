package store

import "time"

// Tenant holds contact information for one store account.
type Tenant struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	TelegramChatID string `json:"telegramChatId,omitempty"`
}

// CachedResponse maps a normalized inbound query to a previously produced
// reply. (TenantID, QueryText) is unique per row.
type CachedResponse struct {
	TenantID     string `json:"tenantId"`
	QueryText    string `json:"queryText"`
	ResponseText string `json:"responseText"`
	UsageCount   int64  `json:"usageCount"`
}

// TrainingExample is a labeled intent with its example utterances and the
// pool of candidate replies. Examples and Responses are never empty when
// read back for generation.
type TrainingExample struct {
	TenantID  string   `json:"tenantId"`
	Intent    string   `json:"intent"`
	Examples  []string `json:"examples"`
	Responses []string `json:"responses"`
}

// Message is one append-only conversation log entry.
type Message struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Direction string    `json:"direction"` // "inbound" or "outbound"
	Peer      string    `json:"peer"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ChannelSetting is one entry of a NotificationSetting's ordered channel
// list.
type ChannelSetting struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// NotificationSchedule restricts delivery to a weekday set and an inclusive
// [StartTime, EndTime] window ("HH:MM", no overnight wraparound).
type NotificationSchedule struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

// NotificationSetting is the per-tenant policy for one notification type.
type NotificationSetting struct {
	TenantID string                `json:"tenantId"`
	Type     string                `json:"notificationType"`
	Enabled  bool                  `json:"enabled"`
	Channels []ChannelSetting      `json:"channels"`
	Schedule *NotificationSchedule `json:"schedule,omitempty"`
}

// NotificationRecord is an immutable log entry written after dispatch.
type NotificationRecord struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Type         string    `json:"notificationType"`
	Message      string    `json:"message"`
	ChannelsUsed []string  `json:"channelsUsed"`
	Timestamp    time.Time `json:"timestamp"`
}

// NotificationJob is a recurring campaign: a cron expression that triggers
// a dispatch of the given type and message.
type NotificationJob struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId"`
	Type       string     `json:"notificationType"`
	Message    string     `json:"message"`
	CronExpr   string     `json:"cronExpr"`
	Enabled    bool       `json:"enabled"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastStatus string     `json:"lastStatus,omitempty"`
}

// CatalogItem is one sellable product shown to the generation prompt.
type CatalogItem struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Available   bool   `json:"available"`
}

// BusinessHours is the open/close window for one weekday.
type BusinessHours struct {
	TenantID  string `json:"tenantId"`
	Weekday   string `json:"weekday"`
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}
