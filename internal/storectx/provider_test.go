package storectx

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nexshop/storebot/internal/store"
)

type fakeReader struct {
	tenant     *store.Tenant
	tenantErr  error
	catalog    []store.CatalogItem
	hours      []store.BusinessHours
	training   []store.TrainingExample
	catalogErr error
}

func (f *fakeReader) GetTenant(tenantID string) (*store.Tenant, error) {
	if f.tenantErr != nil {
		return nil, f.tenantErr
	}
	if f.tenant == nil {
		return nil, store.ErrNotFound
	}
	return f.tenant, nil
}

func (f *fakeReader) ListCatalogItems(tenantID string) ([]store.CatalogItem, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeReader) ListBusinessHours(tenantID string) ([]store.BusinessHours, error) {
	return f.hours, nil
}

func (f *fakeReader) ListTrainingExamples(tenantID string) ([]store.TrainingExample, error) {
	return f.training, nil
}

func TestLoad_ToleratesMissingTenant(t *testing.T) {
	p := NewProvider(&fakeReader{})
	snap, err := p.Load("shop-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Tenant != nil {
		t.Error("Tenant should be nil for an unregistered store")
	}

	// A wrapped not-found must be tolerated the same way.
	p = NewProvider(&fakeReader{tenantErr: fmt.Errorf("load tenant row: %w", store.ErrNotFound)})
	if _, err := p.Load("shop-1"); err != nil {
		t.Fatalf("Load with wrapped not-found: %v", err)
	}
}

func TestLoad_PropagatesRequiredReadFailures(t *testing.T) {
	p := NewProvider(&fakeReader{catalogErr: errors.New("db down")})
	if _, err := p.Load("shop-1"); err == nil {
		t.Fatal("catalog read failure must propagate")
	}
}

func TestRender(t *testing.T) {
	snap := &Snapshot{
		Tenant: &store.Tenant{ID: "shop-1", Name: "Vela Candles"},
		Catalog: []store.CatalogItem{
			{Name: "Lavender candle", Description: "200g soy wax", PriceCents: 2490, Available: true},
			{Name: "Pine candle", Description: "seasonal", PriceCents: 1990, Available: false},
		},
		Hours: []store.BusinessHours{
			{Weekday: "monday", OpenTime: "09:00", CloseTime: "18:00"},
		},
		Training: []store.TrainingExample{
			{Intent: "shipping", Examples: []string{"do you deliver?"}},
		},
	}
	out := snap.Render()

	for _, want := range []string{
		"Store: Vela Candles",
		"Lavender candle: 200g soy wax, $24.90",
		"Pine candle: seasonal, $19.90 (unavailable)",
		"monday: 09:00-18:00",
		`shipping: e.g. "do you deliver?"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EmptySnapshot(t *testing.T) {
	if out := (&Snapshot{}).Render(); out != "" {
		t.Errorf("empty snapshot rendered %q", out)
	}
}
