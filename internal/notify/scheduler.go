// Package notify decides whether and where system-generated notifications
// go out: per-tenant settings gate by enabled flag and day/time window,
// then delivery fans out over the configured channel list.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nexshop/storebot/internal/store"
)

// Storage is the slice of the persistence layer the dispatcher reads and
// writes. Setting reads are authoritative: their failure propagates and
// skips dispatch entirely.
type Storage interface {
	GetNotificationSetting(tenantID, notificationType string) (*store.NotificationSetting, error)
	GetTenant(tenantID string) (*store.Tenant, error)
	AppendNotificationRecord(tenantID, notificationType, message string, channelsUsed []string) (*store.NotificationRecord, error)
}

type Dispatcher struct {
	storage   Storage
	messaging MessageSender
	telegram  TelegramBot
	mailer    Mailer

	// loc is the timezone basis for window evaluation; now is replaced in
	// tests.
	loc *time.Location
	now func() time.Time
}

// NewDispatcher builds a dispatcher evaluating windows in loc. telegram
// and mailer may be nil when those channels are not configured.
func NewDispatcher(storage Storage, messaging MessageSender, telegram TelegramBot, mailer Mailer, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{
		storage:   storage,
		messaging: messaging,
		telegram:  telegram,
		mailer:    mailer,
		loc:       loc,
		now:       time.Now,
	}
}

// LoadLocation resolves the configured timezone basis. "Local" or "" means
// the server zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// ShouldNotify reports whether a notification of this type may go out now.
// Absent or disabled settings mean no; a present schedule restricts
// delivery to its weekday set and inclusive [start, end] window.
func (d *Dispatcher) ShouldNotify(tenantID, notificationType string) (bool, error) {
	setting, err := d.storage.GetNotificationSetting(tenantID, notificationType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load notification setting: %w", err)
	}
	if !setting.Enabled {
		return false, nil
	}
	if setting.Schedule == nil {
		return true, nil
	}
	return d.inWindow(setting.Schedule), nil
}

func (d *Dispatcher) inWindow(schedule *store.NotificationSchedule) bool {
	now := d.now().In(d.loc)

	weekday := strings.ToLower(now.Weekday().String())
	dayOK := false
	for _, day := range schedule.Days {
		if strings.EqualFold(strings.TrimSpace(day), weekday) {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	start, err := parseClock(schedule.StartTime)
	if err != nil {
		log.Printf("[notify] bad schedule start %q: %v", schedule.StartTime, err)
		return false
	}
	end, err := parseClock(schedule.EndTime)
	if err != nil {
		log.Printf("[notify] bad schedule end %q: %v", schedule.EndTime, err)
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	return minute >= start && minute <= end
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(val string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(val))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Dispatch re-evaluates the window, loads tenant contact info and fans the
// message out over the enabled channels in configured order. One record is
// appended listing every channel that was enabled and attempted;
// per-channel delivery failures are logged and never block other channels
// or the record.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, notificationType, message string) error {
	ok, err := d.ShouldNotify(tenantID, notificationType)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	tenant, err := d.storage.GetTenant(tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[notify] no contact info for %s, skipping %s", tenantID, notificationType)
			return nil
		}
		return fmt.Errorf("load tenant contact: %w", err)
	}

	setting, err := d.storage.GetNotificationSetting(tenantID, notificationType)
	if err != nil {
		return fmt.Errorf("load notification setting: %w", err)
	}

	attempted := make([]string, 0, len(setting.Channels))
	for _, ch := range setting.Channels {
		if !ch.Enabled {
			continue
		}
		kind, known := ParseChannelKind(ch.Type)
		if !known {
			log.Printf("[notify] unknown channel %q for %s, skipping", ch.Type, tenantID)
			continue
		}
		attempted = append(attempted, string(kind))
		if err := d.deliver(ctx, kind, tenant, notificationType, message); err != nil {
			log.Printf("[notify] deliver %s/%s via %s failed: %v", tenantID, notificationType, kind, err)
		}
	}

	if _, err := d.storage.AppendNotificationRecord(tenantID, notificationType, message, attempted); err != nil {
		return fmt.Errorf("append notification record: %w", err)
	}
	return nil
}
