package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "storebot.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"  Hello There  ": "hello there",
		"HELLO THERE":     "hello there",
		"hello there":     "hello there",
		"\tHeLLo TheRe\n": "hello there",
	}
	for input, want := range cases {
		if got := NormalizeQuery(input); got != want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCachedResponse_UpsertAndLookup(t *testing.T) {
	s := openTestStore(t)

	key := NormalizeQuery("  What are your HOURS? ")
	if err := s.UpsertCachedResponse("shop-1", key, "9 to 6, Mon-Sat"); err != nil {
		t.Fatalf("UpsertCachedResponse error: %v", err)
	}

	// Same question in different casing maps to the same row.
	got, err := s.LookupCachedResponse("shop-1", NormalizeQuery("what are your hours?"))
	if err != nil {
		t.Fatalf("LookupCachedResponse error: %v", err)
	}
	if got.ResponseText != "9 to 6, Mon-Sat" {
		t.Errorf("ResponseText = %q, want %q", got.ResponseText, "9 to 6, Mon-Sat")
	}

	// Upsert for the same key replaces, never duplicates.
	if err := s.UpsertCachedResponse("shop-1", key, "9 to 7, Mon-Sat"); err != nil {
		t.Fatalf("second upsert error: %v", err)
	}
	entries, err := s.ListCachedResponses("shop-1")
	if err != nil {
		t.Fatalf("ListCachedResponses error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].ResponseText != "9 to 7, Mon-Sat" {
		t.Errorf("ResponseText = %q after upsert", entries[0].ResponseText)
	}
}

func TestCachedResponse_TenantIsolation(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertCachedResponse("shop-1", "hours", "reply"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if _, err := s.LookupCachedResponse("shop-2", "hours"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup for other tenant = %v, want ErrNotFound", err)
	}
}

func TestCachedResponse_UsageOrdering(t *testing.T) {
	s := openTestStore(t)

	for _, q := range []string{"a", "b", "c"} {
		if err := s.UpsertCachedResponse("shop-1", q, "r-"+q); err != nil {
			t.Fatalf("upsert %s error: %v", q, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := s.BumpCacheUsage("shop-1", "b"); err != nil {
			t.Fatalf("bump error: %v", err)
		}
	}
	if err := s.BumpCacheUsage("shop-1", "c"); err != nil {
		t.Fatalf("bump error: %v", err)
	}

	entries, err := s.ListCachedResponses("shop-1")
	if err != nil {
		t.Fatalf("ListCachedResponses error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].QueryText != "b" || entries[0].UsageCount != 3 {
		t.Errorf("entries[0] = %q/%d, want b/3", entries[0].QueryText, entries[0].UsageCount)
	}
	if entries[1].QueryText != "c" {
		t.Errorf("entries[1] = %q, want c", entries[1].QueryText)
	}
}

func TestTrainingExample_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	ex := TrainingExample{
		TenantID:  "shop-1",
		Intent:    "shipping",
		Examples:  []string{"when does my order arrive?", "shipping time?"},
		Responses: []string{"Orders ship within 2 business days."},
	}
	if err := s.UpsertTrainingExample(ex); err != nil {
		t.Fatalf("UpsertTrainingExample error: %v", err)
	}

	got, err := s.GetTrainingExample("shop-1", "shipping")
	if err != nil {
		t.Fatalf("GetTrainingExample error: %v", err)
	}
	if got.Intent != "shipping" {
		t.Errorf("Intent = %q", got.Intent)
	}
	if len(got.Examples) != 2 || got.Examples[0] != ex.Examples[0] {
		t.Errorf("Examples = %v", got.Examples)
	}
	if len(got.Responses) != 1 || got.Responses[0] != ex.Responses[0] {
		t.Errorf("Responses = %v", got.Responses)
	}
}

func TestTrainingExample_IntentMatchesCaseInsensitively(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertTrainingExample(TrainingExample{
		TenantID:  "shop-1",
		Intent:    "Shipping",
		Examples:  []string{"shipping time?"},
		Responses: []string{"2 business days."},
	}); err != nil {
		t.Fatalf("UpsertTrainingExample error: %v", err)
	}

	got, err := s.GetTrainingExample("shop-1", "SHIPPING")
	if err != nil {
		t.Fatalf("GetTrainingExample error: %v", err)
	}
	if got.Intent != "shipping" {
		t.Errorf("Intent = %q, want the canonical lowercase label", got.Intent)
	}

	// Feedback for a differently-cased label merges into the same row
	// instead of forking a duplicate intent.
	if err := s.AppendTrainingFeedback("shop-1", "shipping", "when will it arrive?", "2 business days."); err != nil {
		t.Fatalf("AppendTrainingFeedback error: %v", err)
	}
	corpus, err := s.ListTrainingExamples("shop-1")
	if err != nil {
		t.Fatalf("ListTrainingExamples error: %v", err)
	}
	if len(corpus) != 1 {
		t.Fatalf("corpus = %d intents, want 1", len(corpus))
	}
	if len(corpus[0].Examples) != 2 {
		t.Errorf("Examples = %v, want both utterances merged", corpus[0].Examples)
	}
}

func TestTrainingExample_Validation(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertTrainingExample(TrainingExample{TenantID: "shop-1", Intent: " ", Examples: []string{"x"}, Responses: []string{"y"}}); err == nil {
		t.Error("expected error for empty intent")
	}
	if err := s.UpsertTrainingExample(TrainingExample{TenantID: "shop-1", Intent: "a", Responses: []string{"y"}}); err == nil {
		t.Error("expected error for empty examples")
	}
	if err := s.UpsertTrainingExample(TrainingExample{TenantID: "shop-1", Intent: "a", Examples: []string{"x"}}); err == nil {
		t.Error("expected error for empty responses")
	}
}

func TestAppendTrainingFeedback_NewIntent(t *testing.T) {
	s := openTestStore(t)

	if err := s.AppendTrainingFeedback("shop-1", "returns", "can I return this?", "Yes, within 30 days."); err != nil {
		t.Fatalf("AppendTrainingFeedback error: %v", err)
	}

	got, err := s.GetTrainingExample("shop-1", "returns")
	if err != nil {
		t.Fatalf("GetTrainingExample error: %v", err)
	}
	if len(got.Examples) != 1 || got.Examples[0] != "can I return this?" {
		t.Errorf("Examples = %v, want the triggering message only", got.Examples)
	}
	if len(got.Responses) != 1 || got.Responses[0] != "Yes, within 30 days." {
		t.Errorf("Responses = %v, want the generated reply only", got.Responses)
	}
}

func TestAppendTrainingFeedback_MergesWithoutDuplicates(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.AppendTrainingFeedback("shop-1", "returns", "can I return this?", "Yes."); err != nil {
			t.Fatalf("AppendTrainingFeedback error: %v", err)
		}
	}
	if err := s.AppendTrainingFeedback("shop-1", "returns", "how do returns work?", "Yes."); err != nil {
		t.Fatalf("AppendTrainingFeedback error: %v", err)
	}

	got, err := s.GetTrainingExample("shop-1", "returns")
	if err != nil {
		t.Fatalf("GetTrainingExample error: %v", err)
	}
	if len(got.Examples) != 2 {
		t.Errorf("Examples = %v, want 2 distinct utterances", got.Examples)
	}
	if len(got.Responses) != 1 {
		t.Errorf("Responses = %v, want 1 distinct reply", got.Responses)
	}
}

func TestMessages_MostRecentFirstCapped(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		body := string(rune('a' + i))
		if err := s.AppendMessage("shop-1", DirectionInbound, "peer", body); err != nil {
			t.Fatalf("AppendMessage error: %v", err)
		}
	}

	msgs, err := s.RecentMessages("shop-1", 3)
	if err != nil {
		t.Fatalf("RecentMessages error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	if msgs[0].Body != "e" {
		t.Errorf("msgs[0].Body = %q, want most recent first", msgs[0].Body)
	}
}

func TestSessionStatus_UpsertAndGet(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.SessionStatus("shop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SessionStatus before write = %v, want ErrNotFound", err)
	}

	if err := s.SetSessionStatus("shop-1", "connected"); err != nil {
		t.Fatalf("SetSessionStatus error: %v", err)
	}
	if err := s.SetSessionStatus("shop-1", "disconnected"); err != nil {
		t.Fatalf("SetSessionStatus error: %v", err)
	}

	status, err := s.SessionStatus("shop-1")
	if err != nil {
		t.Fatalf("SessionStatus error: %v", err)
	}
	if status != "disconnected" {
		t.Errorf("status = %q, want disconnected", status)
	}
}

func TestNotificationSetting_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	setting := NotificationSetting{
		TenantID: "shop-1",
		Type:     "new_order",
		Enabled:  true,
		Channels: []ChannelSetting{
			{Type: "whatsapp", Enabled: true},
			{Type: "telegram", Enabled: false},
		},
		Schedule: &NotificationSchedule{
			Days:      []string{"monday", "tuesday"},
			StartTime: "09:00",
			EndTime:   "18:00",
		},
	}
	if err := s.UpsertNotificationSetting(setting); err != nil {
		t.Fatalf("UpsertNotificationSetting error: %v", err)
	}

	got, err := s.GetNotificationSetting("shop-1", "new_order")
	if err != nil {
		t.Fatalf("GetNotificationSetting error: %v", err)
	}
	if !got.Enabled {
		t.Error("Enabled should round-trip")
	}
	if len(got.Channels) != 2 || got.Channels[0].Type != "whatsapp" {
		t.Errorf("Channels = %v", got.Channels)
	}
	if got.Schedule == nil || got.Schedule.StartTime != "09:00" {
		t.Errorf("Schedule = %+v", got.Schedule)
	}

	// No schedule stays absent.
	setting.Type = "low_stock"
	setting.Schedule = nil
	if err := s.UpsertNotificationSetting(setting); err != nil {
		t.Fatalf("UpsertNotificationSetting error: %v", err)
	}
	got, err = s.GetNotificationSetting("shop-1", "low_stock")
	if err != nil {
		t.Fatalf("GetNotificationSetting error: %v", err)
	}
	if got.Schedule != nil {
		t.Errorf("Schedule = %+v, want nil", got.Schedule)
	}
}

func TestNotificationRecord_Append(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.AppendNotificationRecord("shop-1", "new_order", "Order #42", []string{"whatsapp", "telegram"})
	if err != nil {
		t.Fatalf("AppendNotificationRecord error: %v", err)
	}
	if rec.ID == "" {
		t.Error("record ID should be generated")
	}

	records, err := s.ListNotificationRecords("shop-1", 10)
	if err != nil {
		t.Fatalf("ListNotificationRecords error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if len(records[0].ChannelsUsed) != 2 {
		t.Errorf("ChannelsUsed = %v", records[0].ChannelsUsed)
	}
}

func TestNotificationJobs_Lifecycle(t *testing.T) {
	s := openTestStore(t)

	job, err := s.AddNotificationJob(NotificationJob{
		TenantID: "shop-1",
		Type:     "daily_digest",
		Message:  "Yesterday's summary",
		CronExpr: "0 0 9 * * *",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("AddNotificationJob error: %v", err)
	}

	if err := s.MarkNotificationJobRun(job.ID, "ok"); err != nil {
		t.Fatalf("MarkNotificationJobRun error: %v", err)
	}

	jobs, err := s.ListNotificationJobs()
	if err != nil {
		t.Fatalf("ListNotificationJobs error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].LastStatus != "ok" || jobs[0].LastRunAt == nil {
		t.Errorf("job run bookkeeping = %q/%v", jobs[0].LastStatus, jobs[0].LastRunAt)
	}

	removed, err := s.RemoveNotificationJob(job.ID)
	if err != nil || !removed {
		t.Fatalf("RemoveNotificationJob = %v/%v, want removed", removed, err)
	}
	removed, err = s.RemoveNotificationJob(job.ID)
	if err != nil || removed {
		t.Fatalf("second remove = %v/%v, want no-op", removed, err)
	}
}

func TestTenantAndCatalog(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertTenant(Tenant{ID: "shop-1", Name: "Flower Corner", Phone: "5511999990000", Email: "owner@flowercorner.example"}); err != nil {
		t.Fatalf("UpsertTenant error: %v", err)
	}
	tenant, err := s.GetTenant("shop-1")
	if err != nil {
		t.Fatalf("GetTenant error: %v", err)
	}
	if tenant.Name != "Flower Corner" {
		t.Errorf("Name = %q", tenant.Name)
	}
	if tenant.Email != "owner@flowercorner.example" {
		t.Errorf("Email = %q", tenant.Email)
	}

	if _, err := s.UpsertCatalogItem(CatalogItem{TenantID: "shop-1", Name: "Roses", PriceCents: 2500, Available: true}); err != nil {
		t.Fatalf("UpsertCatalogItem error: %v", err)
	}
	items, err := s.ListCatalogItems("shop-1")
	if err != nil {
		t.Fatalf("ListCatalogItems error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Roses" {
		t.Errorf("items = %v", items)
	}

	if err := s.SetBusinessHours(BusinessHours{TenantID: "shop-1", Weekday: "monday", OpenTime: "09:00", CloseTime: "18:00"}); err != nil {
		t.Fatalf("SetBusinessHours error: %v", err)
	}
	hours, err := s.ListBusinessHours("shop-1")
	if err != nil {
		t.Fatalf("ListBusinessHours error: %v", err)
	}
	if len(hours) != 1 || hours[0].OpenTime != "09:00" {
		t.Errorf("hours = %v", hours)
	}
}
